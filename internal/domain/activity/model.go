package activity

import "time"

// ActivityType represents the type of activity event
type ActivityType string

const (
	TypeContractCreated  ActivityType = "contract_created"
	TypeVersionCreated   ActivityType = "version_created"
	TypeVersionUpdated   ActivityType = "version_updated"
	TypeTransition       ActivityType = "transition"
	TypeSigningProgress  ActivityType = "signing_progress"
	TypeRenewalFeedback  ActivityType = "renewal_feedback"
	TypeSuccessorCreated ActivityType = "successor_created"
)

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case TypeContractCreated, TypeVersionCreated, TypeVersionUpdated, TypeTransition,
		TypeSigningProgress, TypeRenewalFeedback, TypeSuccessorCreated:
		return true
	}
	return false
}

// ActivityEntry represents an event in a contract's audit trail
type ActivityEntry struct {
	ID           int64        `json:"id"`
	TenantID     string       `json:"tenant_id"`
	ContractID   string       `json:"contract_id"`
	ActorID      string       `json:"actor_id,omitempty"`
	ActivityType ActivityType `json:"type"`
	Action       string       `json:"action,omitempty"`
	FromStatus   string       `json:"from_status,omitempty"`
	ToStatus     string       `json:"to_status,omitempty"`
	Summary      string       `json:"summary"`
	Details      string       `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time    `json:"created_at"`
	Revision     int64        `json:"revision"`
}
