package contract

import (
	"time"

	"github.com/rpggio/clmcore/internal/domain/approval"
	"github.com/rpggio/clmcore/internal/domain/renewal"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a contract.
type Status string

const (
	StatusDraft            Status = "DRAFT"
	StatusInReview         Status = "IN_REVIEW"
	StatusPendingApproval  Status = "PENDING_APPROVAL"
	StatusApproved         Status = "APPROVED"
	StatusSentForSignature Status = "SENT_FOR_SIGNATURE"
	StatusFullyExecuted    Status = "FULLY_EXECUTED"
	StatusActive           Status = "ACTIVE"
	StatusExpired          Status = "EXPIRED"
	StatusTerminated       Status = "TERMINATED"
	StatusArchived         Status = "ARCHIVED"
	StatusSuperseded       Status = "SUPERSEDED"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusArchived || s == StatusSuperseded
}

// SigningStatus tracks signature collection while SENT_FOR_SIGNATURE.
type SigningStatus string

const (
	SigningAwaitingInternal     SigningStatus = "AWAITING_INTERNAL"
	SigningAwaitingCounterparty SigningStatus = "AWAITING_COUNTERPARTY"
)

// Contract is the lifecycle aggregate. It owns its versions, approval
// steps and renewal request.
type Contract struct {
	ID               string           `json:"id"`
	TenantID         string           `json:"tenant_id"`
	Title            string           `json:"title"`
	Status           Status           `json:"status"`
	RiskLevel        string           `json:"risk_level,omitempty"`
	Value            decimal.Decimal  `json:"value"`
	Frequency        string           `json:"frequency,omitempty"`
	EffectiveDate    time.Time        `json:"effective_date"`
	EndDate          time.Time        `json:"end_date"`
	OwnerID          string           `json:"owner_id"`
	CounterpartyID   string           `json:"counterparty_id,omitempty"`
	ParentContractID *string          `json:"parent_contract_id,omitempty"`
	SigningStatus    *SigningStatus   `json:"signing_status,omitempty"`
	ReviewVersionID  *string          `json:"review_version_id,omitempty"`
	ApprovalRound    int              `json:"approval_round"`
	Versions         []Version        `json:"versions"`
	ApprovalSteps    []approval.Step  `json:"approval_steps"`
	Renewal          *renewal.Request `json:"renewal,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	ModifiedAt       time.Time        `json:"modified_at"`
	Revision         int64            `json:"revision"`
}

// Version is an immutable snapshot of contract content and terms. Only the
// latest unlocked version of a DRAFT contract may be edited in place.
type Version struct {
	ID            string          `json:"id"`
	ContractID    string          `json:"contract_id"`
	VersionNumber int             `json:"version_number"`
	Content       string          `json:"content"`
	Value         decimal.Decimal `json:"value"`
	Frequency     string          `json:"frequency,omitempty"`
	EffectiveDate time.Time       `json:"effective_date"`
	EndDate       time.Time       `json:"end_date"`
	AuthorID      string          `json:"author_id"`
	Locked        bool            `json:"locked"`
	CreatedAt     time.Time       `json:"created_at"`
}

// LatestVersion returns the highest-numbered version, or nil.
func (c *Contract) LatestVersion() *Version {
	if len(c.Versions) == 0 {
		return nil
	}
	return &c.Versions[len(c.Versions)-1]
}

// VersionByID finds a version by id.
func (c *Contract) VersionByID(id string) *Version {
	for i := range c.Versions {
		if c.Versions[i].ID == id {
			return &c.Versions[i]
		}
	}
	return nil
}

// VersionByNumber finds a version by its number.
func (c *Contract) VersionByNumber(n int) *Version {
	for i := range c.Versions {
		if c.Versions[i].VersionNumber == n {
			return &c.Versions[i]
		}
	}
	return nil
}

// LiveRenewal returns the renewal request if it is still live.
func (c *Contract) LiveRenewal() *renewal.Request {
	if c.Renewal.Live() {
		return c.Renewal
	}
	return nil
}

// ApprovalSummary aggregates the active approval round.
func (c *Contract) ApprovalSummary() approval.Summary {
	return approval.Summarize(c.ApprovalSteps)
}

// Clone returns a deep copy so cached aggregates are never shared.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	out := *c
	out.ParentContractID = clonePtr(c.ParentContractID)
	out.SigningStatus = clonePtr(c.SigningStatus)
	out.ReviewVersionID = clonePtr(c.ReviewVersionID)
	out.Versions = append([]Version(nil), c.Versions...)
	out.ApprovalSteps = make([]approval.Step, len(c.ApprovalSteps))
	for i, s := range c.ApprovalSteps {
		s.ApprovedAt = clonePtr(s.ApprovedAt)
		s.DecidedAt = clonePtr(s.DecidedAt)
		s.VoidedAt = clonePtr(s.VoidedAt)
		out.ApprovalSteps[i] = s
	}
	if c.Renewal != nil {
		r := *c.Renewal
		r.OwnerID = clonePtr(r.OwnerID)
		r.SuccessorContractID = clonePtr(r.SuccessorContractID)
		r.Feedback = append([]renewal.Feedback(nil), r.Feedback...)
		out.Renewal = &r
	}
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// LifetimeValue is read-only derived data: the sum of a contract's value and
// every ancestor reachable through parent_contract_id.
type LifetimeValue struct {
	ContractID string          `json:"contract_id"`
	Total      decimal.Decimal `json:"total"`
	Chain      []ChainLink     `json:"chain"`
}

// ChainLink is one contract on the lineage walk.
type ChainLink struct {
	ContractID string          `json:"contract_id"`
	Status     Status          `json:"status"`
	Value      decimal.Decimal `json:"value"`
}

// dateLayout is the wire and storage format of calendar dates.
const dateLayout = "2006-01-02"
