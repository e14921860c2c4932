package renewal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the progress of a renewal request.
type Status string

const (
	StatusDecisionNeeded Status = "DECISION_NEEDED"
	StatusInProgress     Status = "IN_PROGRESS"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

// Mode is the strategy chosen for continuing a contract past its end date.
type Mode string

const (
	ModePending     Mode = "PENDING"
	ModeRenewAsIs   Mode = "RENEW_AS_IS"
	ModeAmendment   Mode = "AMENDMENT"
	ModeNewContract Mode = "NEW_CONTRACT"
	ModeTerminate   Mode = "TERMINATE"
)

// TerminationPolicy decides when a TERMINATE decision takes effect.
type TerminationPolicy string

const (
	// TerminateImmediately moves the contract to TERMINATED when decided.
	TerminateImmediately TerminationPolicy = "immediate"
	// TerminateAtEndDate records intent only; an external scheduler
	// terminates the contract at its end date.
	TerminateAtEndDate TerminationPolicy = "at_end_date"
)

// Valid reports whether p is a known policy.
func (p TerminationPolicy) Valid() bool {
	return p == TerminateImmediately || p == TerminateAtEndDate
}

// Request is the renewal decision tree attached to a contract.
type Request struct {
	ID                  string            `json:"id"`
	ContractID          string            `json:"contract_id"`
	Status              Status            `json:"status"`
	Mode                Mode              `json:"mode"`
	OwnerID             *string           `json:"renewal_owner_id,omitempty"`
	NoticeDeadline      time.Time         `json:"notice_deadline"`
	TermMonths          int               `json:"renewal_term_months"`
	NoticePeriodDays    int               `json:"notice_period_days"`
	UpliftPercent       decimal.Decimal   `json:"uplift_percent"`
	RequireReexecution  bool              `json:"require_reexecution"`
	TerminationPolicy   TerminationPolicy `json:"termination_policy,omitempty"`
	SuccessorContractID *string           `json:"successor_contract_id,omitempty"`
	Feedback            []Feedback        `json:"feedback"`
	CreatedAt           time.Time         `json:"created_at"`
	ModifiedAt          time.Time         `json:"modified_at"`
}

// Feedback is an append-only note on a renewal request.
type Feedback struct {
	ID        string    `json:"id"`
	RenewalID string    `json:"renewal_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Terms are the commercial terms of a renewed contract.
type Terms struct {
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Value     decimal.Decimal `json:"value"`
}
