package contract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/clmcore/internal/domain/renewal"
	"github.com/shopspring/decimal"
)

// Operation names for mutations that are not transition actions.
const (
	OpCreate             ActionName = "CREATE_CONTRACT"
	OpCreateVersion      ActionName = "CREATE_VERSION"
	OpUpdateDraftVersion ActionName = "UPDATE_DRAFT_VERSION"
	OpAdvanceSigning     ActionName = "ADVANCE_SIGNING"
	OpAddRenewalFeedback ActionName = "ADD_RENEWAL_FEEDBACK"
)

// VersionTerms overrides the terms carried by a new or edited version.
// Nil fields keep the previous value.
type VersionTerms struct {
	Value         *decimal.Decimal `json:"value,omitempty"`
	Frequency     *string          `json:"frequency,omitempty"`
	EffectiveDate *time.Time       `json:"effective_date,omitempty"`
	EndDate       *time.Time       `json:"end_date,omitempty"`
}

func (t VersionTerms) applyTo(v *Version) {
	if t.Value != nil {
		v.Value = *t.Value
	}
	if t.Frequency != nil {
		v.Frequency = *t.Frequency
	}
	if t.EffectiveDate != nil {
		v.EffectiveDate = renewal.Date(*t.EffectiveDate)
	}
	if t.EndDate != nil {
		v.EndDate = renewal.Date(*t.EndDate)
	}
}

// editableStatuses accept new versions. Anything past signature is frozen.
var editableStatuses = map[Status]bool{
	StatusDraft:            true,
	StatusInReview:         true,
	StatusPendingApproval:  true,
	StatusApproved:         true,
	StatusSentForSignature: true,
}

func (m *machine) createVersion(c *Contract, content string, terms VersionTerms) (*Version, error) {
	if !editableStatuses[c.Status] {
		return nil, invalidTransition(OpCreateVersion, c.Status, "versions cannot be added once a contract is %s", c.Status)
	}
	next := Version{
		ContractID:    c.ID,
		Value:         c.Value,
		Frequency:     c.Frequency,
		EffectiveDate: c.EffectiveDate,
		EndDate:       c.EndDate,
	}
	if latest := c.LatestVersion(); latest != nil {
		next = *latest
	}
	next.ID = uuid.NewString()
	next.VersionNumber = len(c.Versions) + 1
	if latest := c.LatestVersion(); latest != nil {
		next.VersionNumber = latest.VersionNumber + 1
	}
	next.Content = content
	next.AuthorID = m.authorFor(c)
	next.Locked = false
	next.CreatedAt = m.now
	terms.applyTo(&next)
	if err := validateTerms(OpCreateVersion, next.Value, next.EffectiveDate, next.EndDate); err != nil {
		return nil, err
	}

	// Any in-flight round or signature was for content that no longer is
	// the latest.
	m.resetRound(c)
	from := c.Status
	if from == StatusPendingApproval || from == StatusApproved || from == StatusSentForSignature {
		c.Status = StatusInReview
		m.notes.add(c.OwnerID, NotifyStatusChange, c.ID,
			fmt.Sprintf("%q returned to %s after version %d was added", c.Title, StatusInReview, next.VersionNumber))
	}
	if c.Status == StatusDraft {
		syncTerms(c, &next)
	}
	c.Versions = append(c.Versions, next)
	return c.LatestVersion(), nil
}

func (m *machine) updateDraftVersion(c *Contract, versionID string, content *string, terms VersionTerms) (*Version, error) {
	v := c.VersionByID(versionID)
	if v == nil {
		return nil, notFoundError(OpUpdateDraftVersion, "version %s does not exist on this contract", versionID)
	}
	if c.Status != StatusDraft {
		return nil, invalidTransition(OpUpdateDraftVersion, c.Status, "only %s contracts can be edited in place", StatusDraft)
	}
	if latest := c.LatestVersion(); latest.ID != v.ID {
		return nil, invalidTransition(OpUpdateDraftVersion, c.Status, "version %d is not the latest version", v.VersionNumber)
	}
	if v.Locked {
		return nil, invalidTransition(OpUpdateDraftVersion, c.Status, "version %d is locked", v.VersionNumber)
	}

	edited := *v
	if content != nil {
		edited.Content = *content
	}
	terms.applyTo(&edited)
	if err := validateTerms(OpUpdateDraftVersion, edited.Value, edited.EffectiveDate, edited.EndDate); err != nil {
		return nil, err
	}
	if m.actorID != "" {
		edited.AuthorID = m.actorID
	}
	*v = edited
	syncTerms(c, v)
	return v, nil
}

func (m *machine) advanceSigning(c *Contract) error {
	if c.Status != StatusSentForSignature {
		return invalidTransition(OpAdvanceSigning, c.Status, "contract is not out for signature")
	}
	current := SigningAwaitingInternal
	if c.SigningStatus != nil {
		current = *c.SigningStatus
	}
	switch current {
	case SigningAwaitingInternal:
		next := SigningAwaitingCounterparty
		c.SigningStatus = &next
		m.notes.add(c.OwnerID, NotifySigningProgress, c.ID,
			fmt.Sprintf("%q was signed internally and awaits the counterparty", c.Title))
		m.notes.add(c.CounterpartyID, NotifySigningProgress, c.ID,
			fmt.Sprintf("%q awaits your signature", c.Title))
	default:
		c.SigningStatus = nil
		c.Status = StatusFullyExecuted
		m.notes.add(c.OwnerID, NotifySigningProgress, c.ID, fmt.Sprintf("%q is fully executed", c.Title))
	}
	return nil
}

func (m *machine) addRenewalFeedback(c *Contract, body string, mentions []string) (renewal.Feedback, error) {
	r := c.LiveRenewal()
	if r == nil {
		return renewal.Feedback{}, notFoundError(OpAddRenewalFeedback, "no live renewal request for this contract")
	}
	fb, err := r.AddFeedback(m.actorID, body, m.now)
	if errors.Is(err, renewal.ErrEmptyFeedback) {
		return renewal.Feedback{}, validationError(OpAddRenewalFeedback, "%v", err)
	}
	if err != nil {
		return renewal.Feedback{}, err
	}

	message := fmt.Sprintf("%s commented on the renewal of %q: %s", m.actorID, c.Title, body)
	if r.OwnerID != nil {
		m.notes.add(*r.OwnerID, NotifyCommentMention, c.ID, message)
	}
	m.notes.add(c.OwnerID, NotifyCommentMention, c.ID, message)
	for _, target := range mentions {
		m.notes.add(strings.TrimSpace(target), NotifyCommentMention, c.ID, message)
	}
	return fb, nil
}

// syncTerms keeps a draft contract's headline terms equal to its working version.
func syncTerms(c *Contract, v *Version) {
	c.Value = v.Value
	c.Frequency = v.Frequency
	c.EffectiveDate = v.EffectiveDate
	c.EndDate = v.EndDate
}
