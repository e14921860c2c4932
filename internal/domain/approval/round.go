package approval

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoApprovers indicates an approval request without approvers.
	ErrNoApprovers = errors.New("at least one approver is required")
	// ErrStepNotFound indicates the step is not part of the active round.
	ErrStepNotFound = errors.New("approval step not found")
	// ErrStepDecided indicates the step already carries a decision.
	ErrStepDecided = errors.New("approval step already decided")
	// ErrWrongApprover indicates the actor is not the step's approver.
	ErrWrongApprover = errors.New("actor is not the approver for this step")
)

// NewRound creates one pending step per distinct approver for versionID.
func NewRound(contractID, versionID string, round int, approvers []string, now time.Time) ([]Step, error) {
	seen := make(map[string]bool, len(approvers))
	steps := make([]Step, 0, len(approvers))
	for _, approver := range approvers {
		approver = strings.TrimSpace(approver)
		if approver == "" || seen[approver] {
			continue
		}
		seen[approver] = true
		steps = append(steps, Step{
			ID:         uuid.NewString(),
			ContractID: contractID,
			VersionID:  versionID,
			Round:      round,
			ApproverID: approver,
			Status:     StatusPending,
			CreatedAt:  now,
		})
	}
	if len(steps) == 0 {
		return nil, ErrNoApprovers
	}
	return steps, nil
}

// Active filters out voided steps.
func Active(steps []Step) []Step {
	active := make([]Step, 0, len(steps))
	for _, s := range steps {
		if !s.Voided() {
			active = append(active, s)
		}
	}
	return active
}

// Summarize computes the round aggregate. The result depends only on the
// multiset of step statuses, never on their order.
func Summarize(steps []Step) Summary {
	var sum Summary
	for _, s := range Active(steps) {
		sum.Total++
		switch s.Status {
		case StatusApproved:
			sum.Approved++
		case StatusRejected:
			sum.Rejected++
		case StatusRequestedChanges:
			sum.RequestedChanges++
		default:
			sum.Pending++
		}
	}
	sum.FullyApproved = sum.Total > 0 && sum.Approved == sum.Total
	sum.HasRejection = sum.Rejected > 0
	return sum
}

// FullyApproved reports whether every active step is approved.
func FullyApproved(steps []Step) bool {
	return Summarize(steps).FullyApproved
}

// Decide records a decision on the active step stepID.
func Decide(steps []Step, stepID, actorID string, status Status, now time.Time) (Step, error) {
	for i := range steps {
		if steps[i].ID != stepID || steps[i].Voided() {
			continue
		}
		if actorID != "" && steps[i].ApproverID != actorID {
			return Step{}, ErrWrongApprover
		}
		if steps[i].Status != StatusPending {
			return Step{}, ErrStepDecided
		}
		decidedAt := now
		steps[i].Status = status
		steps[i].DecidedAt = &decidedAt
		if status == StatusApproved {
			steps[i].ApprovedAt = &decidedAt
		}
		return steps[i], nil
	}
	return Step{}, ErrStepNotFound
}

// Void marks every active step as voided at now.
func Void(steps []Step, now time.Time) {
	for i := range steps {
		if !steps[i].Voided() {
			voidedAt := now
			steps[i].VoidedAt = &voidedAt
		}
	}
}
