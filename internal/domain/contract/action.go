package contract

import (
	"bytes"
	"encoding/json"

	"github.com/rpggio/clmcore/internal/domain/renewal"
	"github.com/shopspring/decimal"
)

// ActionName is the wire name of a transition request.
type ActionName string

// Workflow verbs. Status targets use the Status value as their name.
const (
	ActionApproveStep           ActionName = "APPROVE_STEP"
	ActionRejectStep            ActionName = "REJECT_STEP"
	ActionRequestChanges        ActionName = "REQUEST_CHANGES"
	ActionStartRenewal          ActionName = "START_RENEWAL"
	ActionRenewAsIs             ActionName = "RENEW_AS_IS"
	ActionRenewAmendStart       ActionName = "RENEW_AMEND_START"
	ActionRenewRenegotiateStart ActionName = "RENEW_RENEGOTIATE_START"
	ActionRenewDecideTerminate  ActionName = "RENEW_DECIDE_TERMINATE"
	ActionCancelRenewal         ActionName = "CANCEL_RENEWAL"
)

// Action is a transition request. The set of implementations is closed:
// SetStatus for plain status moves, RequestApproval for PENDING_APPROVAL,
// and one struct per workflow verb carrying exactly that verb's payload.
type Action interface {
	Name() ActionName
	action()
}

// SetStatus moves the contract to Target. PENDING_APPROVAL needs approvers
// and is expressed with RequestApproval instead.
type SetStatus struct {
	Target Status `json:"target"`
}

// RequestApproval opens a new approval round on a version.
type RequestApproval struct {
	VersionID string   `json:"version_id"`
	Approvers []string `json:"approvers"`
}

// ApproveStep records an approval on one step of the active round.
type ApproveStep struct {
	StepID string `json:"step_id"`
}

// RejectStep rejects one step; the whole round is sent back to review.
type RejectStep struct {
	StepID string `json:"step_id"`
	Reason string `json:"reason,omitempty"`
}

// RequestChanges asks for changes on one step; the round is sent back to review.
type RequestChanges struct {
	StepID string `json:"step_id"`
	Reason string `json:"reason,omitempty"`
}

// StartRenewal opens the renewal decision tree on an ACTIVE contract.
// Zero TermMonths and nil NoticePeriodDays fall back to service defaults.
type StartRenewal struct {
	RenewalOwnerID   *string         `json:"renewal_owner_id,omitempty"`
	TermMonths       int             `json:"renewal_term_months,omitempty"`
	NoticePeriodDays *int            `json:"notice_period_days,omitempty"`
	UpliftPercent    decimal.Decimal `json:"uplift_percent"`
}

// RenewAsIs renews with unchanged content and uplifted value.
type RenewAsIs struct {
	RequireReexecution bool `json:"require_reexecution,omitempty"`
}

// RenewAmendStart amends the same contract through a new version. Content
// defaults to the latest version's content.
type RenewAmendStart struct {
	Content *string `json:"content,omitempty"`
}

// RenewRenegotiateStart drafts a successor contract. Title defaults to the
// original title.
type RenewRenegotiateStart struct {
	Title string `json:"title,omitempty"`
}

// RenewDecideTerminate records the decision not to renew. An empty Policy
// uses the service default.
type RenewDecideTerminate struct {
	Policy renewal.TerminationPolicy `json:"policy,omitempty"`
}

// CancelRenewal abandons the live renewal request.
type CancelRenewal struct {
	Reason string `json:"reason,omitempty"`
}

func (a SetStatus) Name() ActionName { return ActionName(a.Target) }
func (RequestApproval) Name() ActionName { return ActionName(StatusPendingApproval) }
func (ApproveStep) Name() ActionName { return ActionApproveStep }
func (RejectStep) Name() ActionName { return ActionRejectStep }
func (RequestChanges) Name() ActionName { return ActionRequestChanges }
func (StartRenewal) Name() ActionName { return ActionStartRenewal }
func (RenewAsIs) Name() ActionName { return ActionRenewAsIs }
func (RenewAmendStart) Name() ActionName { return ActionRenewAmendStart }
func (RenewRenegotiateStart) Name() ActionName { return ActionRenewRenegotiateStart }
func (RenewDecideTerminate) Name() ActionName { return ActionRenewDecideTerminate }
func (CancelRenewal) Name() ActionName { return ActionCancelRenewal }
func (SetStatus) action() {}
func (RequestApproval) action() {}
func (ApproveStep) action() {}
func (RejectStep) action() {}
func (RequestChanges) action() {}
func (StartRenewal) action() {}
func (RenewAsIs) action() {}
func (RenewAmendStart) action() {}
func (RenewRenegotiateStart) action() {}
func (RenewDecideTerminate) action() {}
func (CancelRenewal) action() {}

// settableStatuses are the status names a caller may request directly.
// SUPERSEDED is only ever set by a renewal.
var settableStatuses = map[Status]bool{
	StatusDraft:            true,
	StatusInReview:         true,
	StatusApproved:         true,
	StatusSentForSignature: true,
	StatusFullyExecuted:    true,
	StatusActive:           true,
	StatusExpired:          true,
	StatusTerminated:       true,
	StatusArchived:         true,
}

// ParseAction decodes a wire action name and its JSON payload into a typed
// Action. Unknown names and malformed payloads are validation errors.
func ParseAction(name string, payload json.RawMessage) (Action, error) {
	an := ActionName(name)
	switch an {
	case ActionName(StatusPendingApproval):
		return decodeAction[RequestApproval](an, payload)
	case ActionApproveStep:
		return decodeAction[ApproveStep](an, payload)
	case ActionRejectStep:
		return decodeAction[RejectStep](an, payload)
	case ActionRequestChanges:
		return decodeAction[RequestChanges](an, payload)
	case ActionStartRenewal:
		return decodeAction[StartRenewal](an, payload)
	case ActionRenewAsIs:
		return decodeAction[RenewAsIs](an, payload)
	case ActionRenewAmendStart:
		return decodeAction[RenewAmendStart](an, payload)
	case ActionRenewRenegotiateStart:
		return decodeAction[RenewRenegotiateStart](an, payload)
	case ActionRenewDecideTerminate:
		return decodeAction[RenewDecideTerminate](an, payload)
	case ActionCancelRenewal:
		return decodeAction[CancelRenewal](an, payload)
	}
	if settableStatuses[Status(name)] {
		return SetStatus{Target: Status(name)}, nil
	}
	return nil, validationError(an, "unknown action %q", name)
}

func decodeAction[T Action](name ActionName, payload json.RawMessage) (Action, error) {
	var a T
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return a, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, validationError(name, "malformed payload: %v", err)
	}
	return a, nil
}
