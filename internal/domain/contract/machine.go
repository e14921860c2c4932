package contract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/clmcore/internal/domain/approval"
	"github.com/rpggio/clmcore/internal/domain/renewal"
)

// Policy holds the lifecycle decisions left to the deployment.
type Policy struct {
	// TerminationPolicy applies when a RENEW_DECIDE_TERMINATE payload names none.
	TerminationPolicy renewal.TerminationPolicy
	// EnforceReexecution makes RENEW_AS_IS honour require_reexecution by
	// starting the successor in IN_REVIEW instead of ACTIVE.
	EnforceReexecution      bool
	DefaultTermMonths       int
	DefaultNoticePeriodDays int
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		TerminationPolicy:       renewal.TerminateAtEndDate,
		DefaultTermMonths:       12,
		DefaultNoticePeriodDays: 30,
	}
}

// statusMoves lists the legal direct moves for SetStatus.
var statusMoves = map[Status][]Status{
	StatusDraft:            {StatusInReview, StatusArchived},
	StatusInReview:         {StatusDraft, StatusArchived},
	StatusPendingApproval:  {StatusInReview, StatusArchived},
	StatusApproved:         {StatusSentForSignature, StatusInReview, StatusArchived},
	StatusSentForSignature: {StatusFullyExecuted, StatusApproved, StatusArchived},
	StatusFullyExecuted:    {StatusActive, StatusArchived},
	StatusActive:           {StatusExpired, StatusTerminated, StatusArchived},
	StatusExpired:          {StatusArchived},
	StatusTerminated:       {StatusArchived},
}

// CanSetStatus reports whether a direct move from -> to is legal.
func CanSetStatus(from, to Status) bool {
	for _, s := range statusMoves[from] {
		if s == to {
			return true
		}
	}
	return false
}

// machine applies one operation to an in-memory aggregate. It never
// touches storage; the service persists whatever it mutated.
type machine struct {
	policy  Policy
	actorID string
	now     time.Time
	notes   notifier

	parent        *Contract
	parentTouched bool
	created       []*Contract
}

func newMachine(policy Policy, actorID string, now time.Time) *machine {
	return &machine{
		policy:  policy,
		actorID: actorID,
		now:     now,
		notes:   notifier{actorID: actorID},
	}
}

func (m *machine) apply(c *Contract, a Action) error {
	switch a := a.(type) {
	case SetStatus:
		return m.setStatus(c, a)
	case RequestApproval:
		return m.requestApproval(c, a)
	case ApproveStep:
		return m.decideStep(c, a.Name(), a.StepID, approval.StatusApproved, "")
	case RejectStep:
		return m.decideStep(c, a.Name(), a.StepID, approval.StatusRejected, a.Reason)
	case RequestChanges:
		return m.decideStep(c, a.Name(), a.StepID, approval.StatusRequestedChanges, a.Reason)
	case StartRenewal:
		return m.startRenewal(c, a)
	case RenewAsIs:
		return m.renewAsIs(c, a)
	case RenewAmendStart:
		return m.renewAmend(c, a)
	case RenewRenegotiateStart:
		return m.renewRenegotiate(c, a)
	case RenewDecideTerminate:
		return m.renewTerminate(c, a)
	case CancelRenewal:
		return m.cancelRenewal(c, a)
	default:
		return validationError(a.Name(), "unsupported action %T", a)
	}
}

func (m *machine) setStatus(c *Contract, a SetStatus) error {
	from, to := c.Status, a.Target
	switch {
	case to == StatusPendingApproval:
		return validationError(a.Name(), "approval requires a version and approvers")
	case !settableStatuses[to]:
		return invalidTransition(a.Name(), from, "%s cannot be requested directly", to)
	case !CanSetStatus(from, to):
		return invalidTransition(a.Name(), from, "cannot move from %s to %s", from, to)
	}

	switch from {
	case StatusPendingApproval, StatusApproved, StatusSentForSignature:
		if to == StatusInReview || to == StatusDraft || to == StatusArchived {
			m.resetRound(c)
		}
	}

	c.SigningStatus = nil
	if to == StatusSentForSignature {
		s := SigningAwaitingInternal
		c.SigningStatus = &s
	}

	switch to {
	case StatusActive:
		if err := m.settleOnActive(c, a.Name()); err != nil {
			return err
		}
	case StatusArchived:
		if err := m.settleOnArchive(c, a.Name()); err != nil {
			return err
		}
	case StatusExpired, StatusTerminated:
		if r := c.LiveRenewal(); r != nil && r.Status == renewal.StatusDecisionNeeded {
			if err := r.Cancel(m.now); err != nil {
				return renewalStateError(a.Name(), err)
			}
		}
	}

	c.Status = to
	m.notes.add(c.OwnerID, NotifyStatusChange, c.ID, fmt.Sprintf("%q moved from %s to %s", c.Title, from, to))
	if to == StatusSentForSignature {
		m.notes.add(c.OwnerID, NotifySigningProgress, c.ID, fmt.Sprintf("%q is awaiting internal signature", c.Title))
	}
	return nil
}

func (m *machine) requestApproval(c *Contract, a RequestApproval) error {
	if c.Status != StatusDraft && c.Status != StatusInReview {
		return invalidTransition(a.Name(), c.Status, "approval can only be requested from %s or %s", StatusDraft, StatusInReview)
	}
	if strings.TrimSpace(a.VersionID) == "" {
		return validationError(a.Name(), "version_id is required")
	}
	version := c.VersionByID(a.VersionID)
	if version == nil {
		return validationError(a.Name(), "version %s does not exist on this contract", a.VersionID)
	}
	if latest := c.LatestVersion(); latest.ID != version.ID {
		return validationError(a.Name(), "version %d is not the latest version (%d)", version.VersionNumber, latest.VersionNumber)
	}

	round := c.ApprovalRound + 1
	steps, err := approval.NewRound(c.ID, version.ID, round, a.Approvers, m.now)
	if err != nil {
		return validationError(a.Name(), "%v", err)
	}

	c.ApprovalRound = round
	c.ApprovalSteps = steps
	c.ReviewVersionID = &version.ID
	version.Locked = true
	c.Status = StatusPendingApproval

	for _, step := range steps {
		m.notes.add(step.ApproverID, NotifyApprovalRequest, c.ID,
			fmt.Sprintf("Your approval is requested for %q version %d", c.Title, version.VersionNumber))
	}
	return nil
}

func (m *machine) decideStep(c *Contract, name ActionName, stepID string, decision approval.Status, reason string) error {
	if c.Status != StatusPendingApproval {
		return invalidTransition(name, c.Status, "no approval round is pending")
	}
	if strings.TrimSpace(stepID) == "" {
		return validationError(name, "step_id is required")
	}

	step, err := approval.Decide(c.ApprovalSteps, stepID, m.actorID, decision, m.now)
	switch {
	case errors.Is(err, approval.ErrStepNotFound):
		return notFoundError(name, "approval step %s is not in the active round", stepID)
	case errors.Is(err, approval.ErrStepDecided):
		return conflictError(name, "approval step %s was already decided", stepID)
	case errors.Is(err, approval.ErrWrongApprover):
		return validationError(name, "step %s belongs to another approver", stepID)
	case err != nil:
		return err
	}

	message := fmt.Sprintf("%s %s %q", step.ApproverID, strings.ToLower(strings.ReplaceAll(string(decision), "_", " ")), c.Title)
	if reason != "" {
		message += ": " + reason
	}
	m.notes.add(c.OwnerID, NotifyApprovalResponse, c.ID, message)

	switch decision {
	case approval.StatusApproved:
		if approval.FullyApproved(c.ApprovalSteps) {
			c.Status = StatusApproved
			m.notes.add(c.OwnerID, NotifyStatusChange, c.ID, fmt.Sprintf("%q is fully approved", c.Title))
		}
	default:
		// One rejection or change request invalidates the whole round.
		c.Status = StatusInReview
		c.ReviewVersionID = nil
	}
	return nil
}

func (m *machine) startRenewal(c *Contract, a StartRenewal) error {
	if c.LiveRenewal() != nil {
		return conflictError(a.Name(), "a renewal is already %s for this contract", c.Renewal.Status)
	}
	if c.Status != StatusActive {
		return invalidTransition(a.Name(), c.Status, "renewal can only start on an %s contract", StatusActive)
	}
	if c.EndDate.IsZero() {
		return validationError(a.Name(), "contract has no end date")
	}

	termMonths := a.TermMonths
	if termMonths == 0 {
		termMonths = m.policy.DefaultTermMonths
	}
	noticeDays := m.policy.DefaultNoticePeriodDays
	if a.NoticePeriodDays != nil {
		noticeDays = *a.NoticePeriodDays
	}

	req, err := renewal.Start(renewal.StartRequest{
		ContractID:       c.ID,
		EndDate:          c.EndDate,
		OwnerID:          a.RenewalOwnerID,
		TermMonths:       termMonths,
		NoticePeriodDays: noticeDays,
		UpliftPercent:    a.UpliftPercent,
	}, m.now)
	if err != nil {
		return validationError(a.Name(), "%v", err)
	}
	c.Renewal = req

	message := fmt.Sprintf("%q ends on %s; a renewal decision is due by %s",
		c.Title, c.EndDate.Format(dateLayout), req.NoticeDeadline.Format(dateLayout))
	m.notes.add(c.OwnerID, NotifyRenewalReminder, c.ID, message)
	if req.OwnerID != nil {
		m.notes.add(*req.OwnerID, NotifyRenewalReminder, c.ID, message)
	}
	return nil
}

// pendingDecision returns the live renewal awaiting a branch choice.
func (m *machine) pendingDecision(c *Contract, name ActionName) (*renewal.Request, error) {
	r := c.LiveRenewal()
	if r == nil {
		// A decision that already produced a successor is a lost race, not a
		// missing request.
		if prev := c.Renewal; prev != nil && prev.Status == renewal.StatusCompleted && prev.SuccessorContractID != nil {
			return nil, conflictError(name, "renewal decision already taken (%s)", prev.Mode)
		}
		if c.Status == StatusSuperseded {
			return nil, conflictError(name, "contract was already superseded")
		}
		return nil, notFoundError(name, "no live renewal request for this contract")
	}
	if r.Status != renewal.StatusDecisionNeeded {
		return nil, conflictError(name, "renewal decision already taken (%s)", r.Mode)
	}
	if c.Status != StatusActive {
		return nil, invalidTransition(name, c.Status, "renewal decisions require an %s contract", StatusActive)
	}
	return r, nil
}

func (m *machine) renewAsIs(c *Contract, a RenewAsIs) error {
	r, err := m.pendingDecision(c, a.Name())
	if err != nil {
		return err
	}
	terms, err := renewal.RenewedTerms(c.EndDate, r.TermMonths, c.Value, r.UpliftPercent)
	if err != nil {
		return validationError(a.Name(), "%v", err)
	}

	r.RequireReexecution = a.RequireReexecution
	if m.policy.EnforceReexecution && a.RequireReexecution {
		successor := m.successor(c, c.Title, StatusInReview, terms)
		if err := r.Decide(renewal.ModeRenewAsIs, renewal.StatusInProgress, m.now); err != nil {
			return renewalStateError(a.Name(), err)
		}
		r.SuccessorContractID = &successor.ID
		m.notes.add(c.OwnerID, NotifyStatusChange, c.ID,
			fmt.Sprintf("Renewal of %q was drafted for re-execution", c.Title))
		return nil
	}

	successor := m.successor(c, c.Title, StatusActive, terms)
	if err := r.Decide(renewal.ModeRenewAsIs, renewal.StatusCompleted, m.now); err != nil {
		return renewalStateError(a.Name(), err)
	}
	r.SuccessorContractID = &successor.ID
	c.Status = StatusSuperseded
	m.notes.add(c.OwnerID, NotifyStatusChange, c.ID,
		fmt.Sprintf("%q was renewed as-is through %s at %s", c.Title, terms.EndDate.Format(dateLayout), terms.Value.String()))
	return nil
}

func (m *machine) renewAmend(c *Contract, a RenewAmendStart) error {
	r, err := m.pendingDecision(c, a.Name())
	if err != nil {
		return err
	}
	latest := c.LatestVersion()
	if latest == nil {
		return notFoundError(a.Name(), "contract has no versions")
	}
	content := latest.Content
	if a.Content != nil {
		content = *a.Content
	}

	next := *latest
	next.ID = uuid.NewString()
	next.VersionNumber = latest.VersionNumber + 1
	next.Content = content
	next.AuthorID = m.authorFor(c)
	next.Locked = false
	next.CreatedAt = m.now
	c.Versions = append(c.Versions, next)

	m.resetRound(c)
	if err := r.Decide(renewal.ModeAmendment, renewal.StatusInProgress, m.now); err != nil {
		return renewalStateError(a.Name(), err)
	}
	c.Status = StatusInReview
	m.notes.add(c.OwnerID, NotifyStatusChange, c.ID,
		fmt.Sprintf("%q is being amended as version %d", c.Title, next.VersionNumber))
	return nil
}

func (m *machine) renewRenegotiate(c *Contract, a RenewRenegotiateStart) error {
	r, err := m.pendingDecision(c, a.Name())
	if err != nil {
		return err
	}
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = c.Title
	}
	successor := m.successor(c, title, StatusDraft, renewal.Terms{
		StartDate: c.EffectiveDate,
		EndDate:   c.EndDate,
		Value:     c.Value,
	})
	if err := r.Decide(renewal.ModeNewContract, renewal.StatusInProgress, m.now); err != nil {
		return renewalStateError(a.Name(), err)
	}
	r.SuccessorContractID = &successor.ID
	m.notes.add(c.OwnerID, NotifyStatusChange, c.ID,
		fmt.Sprintf("A new contract was drafted to renegotiate %q", c.Title))
	return nil
}

func (m *machine) renewTerminate(c *Contract, a RenewDecideTerminate) error {
	r, err := m.pendingDecision(c, a.Name())
	if err != nil {
		return err
	}
	policy := a.Policy
	if policy == "" {
		policy = m.policy.TerminationPolicy
	}
	if !policy.Valid() {
		return validationError(a.Name(), "unknown termination policy %q", policy)
	}
	if err := r.Decide(renewal.ModeTerminate, renewal.StatusCompleted, m.now); err != nil {
		return renewalStateError(a.Name(), err)
	}
	r.TerminationPolicy = policy

	if policy == renewal.TerminateImmediately {
		c.Status = StatusTerminated
		m.notes.add(c.OwnerID, NotifyStatusChange, c.ID, fmt.Sprintf("%q was terminated", c.Title))
		return nil
	}
	m.notes.add(c.OwnerID, NotifyStatusChange, c.ID,
		fmt.Sprintf("%q will be marked as terminated on %s", c.Title, c.EndDate.Format(dateLayout)))
	return nil
}

func (m *machine) cancelRenewal(c *Contract, a CancelRenewal) error {
	r := c.LiveRenewal()
	if r == nil {
		return notFoundError(a.Name(), "no live renewal request for this contract")
	}
	if err := r.Cancel(m.now); err != nil {
		return renewalStateError(a.Name(), err)
	}
	message := fmt.Sprintf("Renewal of %q was cancelled", c.Title)
	if a.Reason != "" {
		message += ": " + a.Reason
	}
	m.notes.add(c.OwnerID, NotifyStatusChange, c.ID, message)
	return nil
}

// settleOnActive concludes renewals waiting for c to go live: an amendment
// of c itself, or a successor negotiation on c's parent.
func (m *machine) settleOnActive(c *Contract, name ActionName) error {
	if r := c.LiveRenewal(); r != nil && r.Mode == renewal.ModeAmendment {
		if err := r.Complete(m.now); err != nil {
			return renewalStateError(name, err)
		}
		if v := c.LatestVersion(); v != nil {
			c.Value = v.Value
			c.Frequency = v.Frequency
			c.EffectiveDate = v.EffectiveDate
			c.EndDate = v.EndDate
		}
	}

	if r := m.parentRenewalFor(c); r != nil {
		if err := r.Complete(m.now); err != nil {
			return renewalStateError(name, err)
		}
		m.parent.Status = StatusSuperseded
		m.parentTouched = true
		m.notes.add(m.parent.OwnerID, NotifyStatusChange, m.parent.ID,
			fmt.Sprintf("%q was superseded by %q", m.parent.Title, c.Title))
	}
	return nil
}

// settleOnArchive abandons renewals that depended on c.
func (m *machine) settleOnArchive(c *Contract, name ActionName) error {
	if r := c.LiveRenewal(); r != nil {
		if err := r.Cancel(m.now); err != nil {
			return renewalStateError(name, err)
		}
	}
	if r := m.parentRenewalFor(c); r != nil {
		if err := r.Cancel(m.now); err != nil {
			return renewalStateError(name, err)
		}
		m.parentTouched = true
		m.notes.add(m.parent.OwnerID, NotifyStatusChange, m.parent.ID,
			fmt.Sprintf("Renewal of %q was cancelled because %q was archived", m.parent.Title, c.Title))
	}
	return nil
}

func (m *machine) parentRenewalFor(c *Contract) *renewal.Request {
	if m.parent == nil || m.parent.Status.Terminal() {
		return nil
	}
	r := m.parent.LiveRenewal()
	if r == nil || r.Status != renewal.StatusInProgress || r.SuccessorContractID == nil || *r.SuccessorContractID != c.ID {
		return nil
	}
	return r
}

// resetRound voids the active approval round so stale content cannot be
// approved.
func (m *machine) resetRound(c *Contract) {
	approval.Void(c.ApprovalSteps, m.now)
	c.ReviewVersionID = nil
	c.SigningStatus = nil
}

// successor builds a contract that continues c with the given terms.
func (m *machine) successor(c *Contract, title string, status Status, terms renewal.Terms) *Contract {
	id := uuid.NewString()
	content := ""
	frequency := c.Frequency
	if latest := c.LatestVersion(); latest != nil {
		content = latest.Content
	}
	parentID := c.ID
	next := &Contract{
		ID:               id,
		TenantID:         c.TenantID,
		Title:            title,
		Status:           status,
		RiskLevel:        c.RiskLevel,
		Value:            terms.Value,
		Frequency:        frequency,
		EffectiveDate:    terms.StartDate,
		EndDate:          terms.EndDate,
		OwnerID:          c.OwnerID,
		CounterpartyID:   c.CounterpartyID,
		ParentContractID: &parentID,
		Versions: []Version{{
			ID:            uuid.NewString(),
			ContractID:    id,
			VersionNumber: 1,
			Content:       content,
			Value:         terms.Value,
			Frequency:     frequency,
			EffectiveDate: terms.StartDate,
			EndDate:       terms.EndDate,
			AuthorID:      m.authorFor(c),
			Locked:        status != StatusDraft,
			CreatedAt:     m.now,
		}},
		ApprovalSteps: []approval.Step{},
		CreatedAt:     m.now,
		ModifiedAt:    m.now,
		Revision:      1,
	}
	m.created = append(m.created, next)
	return next
}

func (m *machine) authorFor(c *Contract) string {
	if m.actorID != "" {
		return m.actorID
	}
	return c.OwnerID
}
