package approval

import "time"

// Status represents an approver's decision on a step.
type Status string

const (
	StatusPending          Status = "PENDING"
	StatusRequestedChanges Status = "REQUESTED_CHANGES"
	StatusRejected         Status = "REJECTED"
	StatusApproved         Status = "APPROVED"
)

// Step is one approver's slot in an approval round.
type Step struct {
	ID         string     `json:"id"`
	ContractID string     `json:"contract_id"`
	VersionID  string     `json:"version_id"`
	Round      int        `json:"round"`
	ApproverID string     `json:"approver_id"`
	Status     Status     `json:"status"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	VoidedAt   *time.Time `json:"voided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Voided reports whether the step belongs to a round that was reset.
func (s Step) Voided() bool {
	return s.VoidedAt != nil
}

// Summary is the aggregate view of a round.
type Summary struct {
	Total            int  `json:"total"`
	Approved         int  `json:"approved"`
	Pending          int  `json:"pending"`
	RequestedChanges int  `json:"requested_changes"`
	Rejected         int  `json:"rejected"`
	FullyApproved    bool `json:"fully_approved"`
	HasRejection     bool `json:"has_rejection"`
}
