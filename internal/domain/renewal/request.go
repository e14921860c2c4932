package renewal

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotLive indicates the request has already completed or been cancelled.
	ErrNotLive = errors.New("renewal request is not live")
	// ErrDecisionTaken indicates a branch was already chosen.
	ErrDecisionTaken = errors.New("renewal decision already taken")
	// ErrInvalidTerms indicates unusable renewal parameters.
	ErrInvalidTerms = errors.New("invalid renewal terms")
	// ErrEmptyFeedback indicates feedback without a body or author.
	ErrEmptyFeedback = errors.New("feedback requires an author and a body")
)

// StartRequest holds the parameters for a new renewal request.
type StartRequest struct {
	ContractID       string
	EndDate          time.Time
	OwnerID          *string
	TermMonths       int
	NoticePeriodDays int
	UpliftPercent    decimal.Decimal
}

// Start opens a request in DECISION_NEEDED with its notice deadline computed.
func Start(req StartRequest, now time.Time) (*Request, error) {
	if req.EndDate.IsZero() || req.TermMonths <= 0 || req.NoticePeriodDays < 0 {
		return nil, ErrInvalidTerms
	}
	if req.UpliftPercent.LessThanOrEqual(decimal.NewFromInt(-100)) {
		return nil, ErrInvalidTerms
	}
	return &Request{
		ID:               uuid.NewString(),
		ContractID:       req.ContractID,
		Status:           StatusDecisionNeeded,
		Mode:             ModePending,
		OwnerID:          req.OwnerID,
		NoticeDeadline:   NoticeDeadline(req.EndDate, req.NoticePeriodDays),
		TermMonths:       req.TermMonths,
		NoticePeriodDays: req.NoticePeriodDays,
		UpliftPercent:    req.UpliftPercent,
		Feedback:         []Feedback{},
		CreatedAt:        now,
		ModifiedAt:       now,
	}, nil
}

// Live reports whether the request still awaits a decision or an outcome.
func (r *Request) Live() bool {
	return r != nil && (r.Status == StatusDecisionNeeded || r.Status == StatusInProgress)
}

// Decide chooses a branch. status is IN_PROGRESS for branches that wait on
// further work and COMPLETED for branches that conclude immediately.
func (r *Request) Decide(mode Mode, status Status, now time.Time) error {
	if !r.Live() {
		return ErrNotLive
	}
	if r.Status != StatusDecisionNeeded {
		return ErrDecisionTaken
	}
	r.Mode = mode
	r.Status = status
	r.ModifiedAt = now
	return nil
}

// Complete concludes an in-progress request.
func (r *Request) Complete(now time.Time) error {
	if !r.Live() {
		return ErrNotLive
	}
	r.Status = StatusCompleted
	r.ModifiedAt = now
	return nil
}

// Cancel abandons a live request.
func (r *Request) Cancel(now time.Time) error {
	if !r.Live() {
		return ErrNotLive
	}
	r.Status = StatusCancelled
	r.ModifiedAt = now
	return nil
}

// AddFeedback appends a note. It never changes status or mode.
func (r *Request) AddFeedback(authorID, body string, now time.Time) (Feedback, error) {
	if !r.Live() {
		return Feedback{}, ErrNotLive
	}
	if strings.TrimSpace(authorID) == "" || strings.TrimSpace(body) == "" {
		return Feedback{}, ErrEmptyFeedback
	}
	fb := Feedback{
		ID:        uuid.NewString(),
		RenewalID: r.ID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: now,
	}
	r.Feedback = append(r.Feedback, fb)
	r.ModifiedAt = now
	return fb, nil
}
