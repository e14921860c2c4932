package contract

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreateInput is the wire form of CreateRequest. Dates are YYYY-MM-DD and
// Value is a decimal string.
type CreateInput struct {
	Title          string `json:"title"`
	OwnerID        string `json:"owner_id"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
	RiskLevel      string `json:"risk_level,omitempty"`
	Value          string `json:"value,omitempty"`
	Frequency      string `json:"frequency,omitempty"`
	EffectiveDate  string `json:"effective_date"`
	EndDate        string `json:"end_date,omitempty"`
	Content        string `json:"content,omitempty"`
}

// Request converts the input, reporting unparsable fields as validation errors.
func (in CreateInput) Request(actorID string) (CreateRequest, error) {
	req := CreateRequest{
		Title:          in.Title,
		OwnerID:        in.OwnerID,
		CounterpartyID: in.CounterpartyID,
		RiskLevel:      in.RiskLevel,
		Frequency:      in.Frequency,
		Content:        in.Content,
		ActorID:        actorID,
	}
	var err error
	if req.Value, err = parseValue(OpCreate, in.Value); err != nil {
		return CreateRequest{}, err
	}
	if req.EffectiveDate, err = ParseDate("effective_date", in.EffectiveDate); err != nil {
		return CreateRequest{}, err
	}
	if req.EndDate, err = ParseDate("end_date", in.EndDate); err != nil {
		return CreateRequest{}, err
	}
	return req, nil
}

// TermsInput is the wire form of VersionTerms.
type TermsInput struct {
	Value         *string `json:"value,omitempty"`
	Frequency     *string `json:"frequency,omitempty"`
	EffectiveDate *string `json:"effective_date,omitempty"`
	EndDate       *string `json:"end_date,omitempty"`
}

// Terms converts the input. Absent fields stay nil.
func (in TermsInput) Terms() (VersionTerms, error) {
	out := VersionTerms{Frequency: in.Frequency}
	if in.Value != nil {
		v, err := parseValue(OpCreateVersion, *in.Value)
		if err != nil {
			return VersionTerms{}, err
		}
		out.Value = &v
	}
	for _, f := range []struct {
		name string
		src  *string
		dst  **time.Time
	}{
		{"effective_date", in.EffectiveDate, &out.EffectiveDate},
		{"end_date", in.EndDate, &out.EndDate},
	} {
		if f.src == nil {
			continue
		}
		t, err := ParseDate(f.name, *f.src)
		if err != nil {
			return VersionTerms{}, err
		}
		*f.dst = &t
	}
	return out, nil
}

// ParseDate parses a YYYY-MM-DD calendar date. An empty string is the zero
// time.
func ParseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, validationError("", "%s must be a date in YYYY-MM-DD form, got %q", field, s)
	}
	return t, nil
}

func parseValue(op ActionName, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, validationError(op, "value %q is not a decimal number", s)
	}
	return v, nil
}
