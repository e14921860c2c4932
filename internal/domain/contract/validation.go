package contract

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ValidateCreateInput validates fields required to create a contract.
func ValidateCreateInput(req CreateRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return validationError(OpCreate, "title is required")
	}
	if strings.TrimSpace(req.OwnerID) == "" {
		return validationError(OpCreate, "owner_id is required")
	}
	if req.EffectiveDate.IsZero() {
		return validationError(OpCreate, "effective_date is required")
	}
	return validateTerms(OpCreate, req.Value, req.EffectiveDate, req.EndDate)
}

func validateTerms(op ActionName, value decimal.Decimal, effective, end time.Time) error {
	if value.IsNegative() {
		return validationError(op, "value must not be negative")
	}
	if !end.IsZero() && end.Before(effective) {
		return validationError(op, "end_date %s is before effective_date %s", end.Format(dateLayout), effective.Format(dateLayout))
	}
	return nil
}
