package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/clmcore/internal/diff"
	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/approval"
	"github.com/rpggio/clmcore/internal/domain/renewal"
	"github.com/rpggio/clmcore/internal/repository"
	"github.com/shopspring/decimal"
)

// Service is the single entry point for contract lifecycle changes.
type Service struct {
	store  Store
	cache  Cache
	policy Policy
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a lifecycle service. cache may be nil.
func NewService(store Store, cache Cache, policy Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cache:  cache,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// CreateRequest describes a new contract. The first version carries Content
// and the same terms.
type CreateRequest struct {
	Title          string          `json:"title"`
	OwnerID        string          `json:"owner_id"`
	CounterpartyID string          `json:"counterparty_id,omitempty"`
	RiskLevel      string          `json:"risk_level,omitempty"`
	Value          decimal.Decimal `json:"value"`
	Frequency      string          `json:"frequency,omitempty"`
	EffectiveDate  time.Time       `json:"effective_date"`
	EndDate        time.Time       `json:"end_date"`
	Content        string          `json:"content"`
	ActorID        string          `json:"-"`
}

// TransitionRequest asks for one action on one contract. A non-zero
// ExpectedRevision rejects the action with a conflict when the contract has
// changed since the caller read it.
type TransitionRequest struct {
	ContractID       string
	ActorID          string
	Action           Action
	ExpectedRevision int64
}

// Result is the outcome of a committed mutation.
type Result struct {
	Contract      *Contract            `json:"contract"`
	Notifications []NotificationIntent `json:"notifications"`
	// Successor is set when the operation created a successor contract.
	Successor *Contract `json:"successor,omitempty"`
	// Version is set by version operations.
	Version *Version `json:"version,omitempty"`
	// Feedback is set by AddRenewalFeedback.
	Feedback *renewal.Feedback `json:"feedback,omitempty"`
}

// CreateVersionRequest adds a version to a contract.
type CreateVersionRequest struct {
	ContractID string
	ActorID    string
	Content    string
	Terms      VersionTerms
}

// UpdateDraftRequest edits the working version of a DRAFT contract.
type UpdateDraftRequest struct {
	ContractID string
	VersionID  string
	ActorID    string
	Content    *string
	Terms      VersionTerms
}

// FeedbackRequest appends a note to a live renewal request.
type FeedbackRequest struct {
	ContractID string
	ActorID    string
	Body       string
	Mentions   []string
}

// Create stores a new DRAFT contract with version 1.
func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest) (*Contract, error) {
	if err := ValidateCreateInput(req); err != nil {
		return nil, err
	}
	now := s.now()
	id := uuid.NewString()
	author := req.ActorID
	if author == "" {
		author = req.OwnerID
	}
	c := &Contract{
		ID:             id,
		TenantID:       tenantID,
		Title:          strings.TrimSpace(req.Title),
		Status:         StatusDraft,
		RiskLevel:      req.RiskLevel,
		Value:          req.Value,
		Frequency:      req.Frequency,
		EffectiveDate:  renewal.Date(req.EffectiveDate),
		EndDate:        dateOrZero(req.EndDate),
		OwnerID:        req.OwnerID,
		CounterpartyID: req.CounterpartyID,
		ApprovalSteps:  []approval.Step{},
		CreatedAt:      now,
		ModifiedAt:     now,
		Revision:       1,
	}
	c.Versions = []Version{{
		ID:            uuid.NewString(),
		ContractID:    id,
		VersionNumber: 1,
		Content:       req.Content,
		Value:         c.Value,
		Frequency:     c.Frequency,
		EffectiveDate: c.EffectiveDate,
		EndDate:       c.EndDate,
		AuthorID:      author,
		CreatedAt:     now,
	}}

	err := s.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.Create(ctx, tenantID, c); err != nil {
			return s.storeError(OpCreate, err)
		}
		return tx.LogActivity(ctx, tenantID, &activity.ActivityEntry{
			ContractID:   c.ID,
			ActorID:      req.ActorID,
			ActivityType: activity.TypeContractCreated,
			Action:       string(OpCreate),
			ToStatus:     string(c.Status),
			Summary:      fmt.Sprintf("created contract %q", c.Title),
			CreatedAt:    now,
			Revision:     c.Revision,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("contract created", "tenant_id", tenantID, "contract_id", c.ID)
	return c.Clone(), nil
}

// Get returns the committed aggregate, reading through the cache.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Contract, error) {
	if strings.TrimSpace(id) == "" {
		return nil, validationError("", "contract id is required")
	}
	key := cacheKey(tenantID, id)
	var epoch uint64
	if s.cache != nil {
		if c, ok := s.cache.Get(key); ok {
			return c, nil
		}
		epoch = s.cache.Epoch()
	}
	c, err := s.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, s.storeError("", err)
	}
	if s.cache != nil {
		s.cache.PutIfCurrent(key, c, epoch)
	}
	return c, nil
}

// Transition validates and applies one action. Nothing is persisted unless
// the whole action succeeds.
func (s *Service) Transition(ctx context.Context, tenantID string, req TransitionRequest) (*Result, error) {
	if req.Action == nil {
		return nil, validationError("", "action is required")
	}
	return s.mutate(ctx, tenantID, req.ContractID, req.ActorID, req.ExpectedRevision, req.Action.Name(), activity.TypeTransition,
		func(m *machine, c *Contract, res *Result) error {
			return m.apply(c, req.Action)
		})
}

// CreateVersion appends a version. An in-flight approval round or signature
// is reset and the contract returns to IN_REVIEW.
func (s *Service) CreateVersion(ctx context.Context, tenantID string, req CreateVersionRequest) (*Result, error) {
	return s.mutate(ctx, tenantID, req.ContractID, req.ActorID, 0, OpCreateVersion, activity.TypeVersionCreated,
		func(m *machine, c *Contract, res *Result) error {
			v, err := m.createVersion(c, req.Content, req.Terms)
			if err != nil {
				return err
			}
			res.Version = v
			return nil
		})
}

// UpdateDraftVersion edits the latest unlocked version of a DRAFT contract.
func (s *Service) UpdateDraftVersion(ctx context.Context, tenantID string, req UpdateDraftRequest) (*Result, error) {
	if strings.TrimSpace(req.VersionID) == "" {
		return nil, validationError(OpUpdateDraftVersion, "version id is required")
	}
	return s.mutate(ctx, tenantID, req.ContractID, req.ActorID, 0, OpUpdateDraftVersion, activity.TypeVersionUpdated,
		func(m *machine, c *Contract, res *Result) error {
			v, err := m.updateDraftVersion(c, req.VersionID, req.Content, req.Terms)
			if err != nil {
				return err
			}
			res.Version = v
			return nil
		})
}

// AdvanceSigning records the next signature on a SENT_FOR_SIGNATURE
// contract. The counterparty signature moves it to FULLY_EXECUTED.
func (s *Service) AdvanceSigning(ctx context.Context, tenantID, contractID, actorID string) (*Result, error) {
	return s.mutate(ctx, tenantID, contractID, actorID, 0, OpAdvanceSigning, activity.TypeSigningProgress,
		func(m *machine, c *Contract, res *Result) error {
			return m.advanceSigning(c)
		})
}

// AddRenewalFeedback appends feedback to the live renewal request.
func (s *Service) AddRenewalFeedback(ctx context.Context, tenantID string, req FeedbackRequest) (*Result, error) {
	if strings.TrimSpace(req.ActorID) == "" {
		return nil, validationError(OpAddRenewalFeedback, "author is required")
	}
	return s.mutate(ctx, tenantID, req.ContractID, req.ActorID, 0, OpAddRenewalFeedback, activity.TypeRenewalFeedback,
		func(m *machine, c *Contract, res *Result) error {
			fb, err := m.addRenewalFeedback(c, req.Body, req.Mentions)
			if err != nil {
				return err
			}
			res.Feedback = &fb
			return nil
		})
}

// LifetimeValue sums the contract's value with every ancestor. A parent
// cycle or a dangling parent ends the walk.
func (s *Service) LifetimeValue(ctx context.Context, tenantID, id string) (*LifetimeValue, error) {
	c, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	out := &LifetimeValue{ContractID: c.ID}
	seen := map[string]bool{}
	values := []decimal.Decimal{}
	for c != nil && !seen[c.ID] {
		seen[c.ID] = true
		out.Chain = append(out.Chain, ChainLink{ContractID: c.ID, Status: c.Status, Value: c.Value})
		values = append(values, c.Value)
		if c.ParentContractID == nil {
			break
		}
		parent, err := s.Get(ctx, tenantID, *c.ParentContractID)
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("dangling parent contract", "contract_id", c.ID, "parent_id", *c.ParentContractID)
			break
		}
		if err != nil {
			return nil, err
		}
		c = parent
	}
	out.Total = renewal.LifetimeValue(values)
	return out, nil
}

// DiffVersions compares the content of two versions of a contract.
func (s *Service) DiffVersions(ctx context.Context, tenantID, id string, from, to int) ([]diff.Edit, error) {
	c, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	a := c.VersionByNumber(from)
	if a == nil {
		return nil, notFoundError("", "version %d does not exist", from)
	}
	b := c.VersionByNumber(to)
	if b == nil {
		return nil, notFoundError("", "version %d does not exist", to)
	}
	return diff.Lines(a.Content, b.Content), nil
}

type mutation func(m *machine, c *Contract, res *Result) error

// mutate loads the aggregate, applies fn to a private copy and persists the
// copy under the loaded revision. Any error discards every change.
func (s *Service) mutate(ctx context.Context, tenantID, contractID, actorID string, expectedRevision int64, op ActionName, kind activity.ActivityType, fn mutation) (*Result, error) {
	if strings.TrimSpace(contractID) == "" {
		return nil, validationError(op, "contract id is required")
	}

	var (
		res     *Result
		touched []string
	)
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		current, err := tx.Get(ctx, tenantID, contractID)
		if err != nil {
			return s.storeError(op, err)
		}
		if expectedRevision != 0 && expectedRevision != current.Revision {
			return conflictError(op, "contract is at revision %d, not %d; reload and retry", current.Revision, expectedRevision)
		}

		m := newMachine(s.policy, actorID, s.now())
		var parent *Contract
		if current.ParentContractID != nil {
			parent, err = tx.Get(ctx, tenantID, *current.ParentContractID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("loading parent contract: %w", err)
			}
			m.parent = parent.Clone()
		}

		updated := current.Clone()
		out := &Result{}
		if err := fn(m, updated, out); err != nil {
			return err
		}

		updated.Revision = current.Revision + 1
		updated.ModifiedAt = m.now
		if err := tx.Update(ctx, tenantID, updated, current.Revision); err != nil {
			return s.storeError(op, err)
		}
		touched = append(touched, updated.ID)

		entry := &activity.ActivityEntry{
			ContractID:   updated.ID,
			ActorID:      actorID,
			ActivityType: kind,
			Action:       string(op),
			FromStatus:   string(current.Status),
			ToStatus:     string(updated.Status),
			Summary:      summarize(op, current.Status, updated.Status),
			Details:      details(out, updated),
			CreatedAt:    m.now,
			Revision:     updated.Revision,
		}
		if err := tx.LogActivity(ctx, tenantID, entry); err != nil {
			return fmt.Errorf("logging activity: %w", err)
		}

		for _, created := range m.created {
			if err := tx.Create(ctx, tenantID, created); err != nil {
				return s.storeError(op, err)
			}
			touched = append(touched, created.ID)
			if err := tx.LogActivity(ctx, tenantID, &activity.ActivityEntry{
				ContractID:   created.ID,
				ActorID:      actorID,
				ActivityType: activity.TypeSuccessorCreated,
				Action:       string(op),
				ToStatus:     string(created.Status),
				Summary:      fmt.Sprintf("created as successor of %s", updated.ID),
				CreatedAt:    m.now,
				Revision:     created.Revision,
			}); err != nil {
				return fmt.Errorf("logging activity: %w", err)
			}
			out.Successor = created.Clone()
		}

		if m.parentTouched {
			next := m.parent
			next.Revision = parent.Revision + 1
			next.ModifiedAt = m.now
			if err := tx.Update(ctx, tenantID, next, parent.Revision); err != nil {
				return s.storeError(op, err)
			}
			touched = append(touched, next.ID)
			if err := tx.LogActivity(ctx, tenantID, &activity.ActivityEntry{
				ContractID:   next.ID,
				ActorID:      actorID,
				ActivityType: activity.TypeTransition,
				Action:       string(op),
				FromStatus:   string(parent.Status),
				ToStatus:     string(next.Status),
				Summary:      fmt.Sprintf("renewal settled by successor %s", updated.ID),
				CreatedAt:    m.now,
				Revision:     next.Revision,
			}); err != nil {
				return fmt.Errorf("logging activity: %w", err)
			}
		}

		out.Contract = updated.Clone()
		out.Notifications = m.notes.intents
		if out.Notifications == nil {
			out.Notifications = []NotificationIntent{}
		}
		res = out
		return nil
	})
	if err != nil {
		if Kind(err) == nil {
			s.logger.Error("contract operation failed", "op", op, "contract_id", contractID, "error", err)
		}
		return nil, err
	}

	s.invalidate(tenantID, touched...)
	s.logger.Info("contract operation committed",
		"op", op,
		"tenant_id", tenantID,
		"contract_id", contractID,
		"status", res.Contract.Status,
		"revision", res.Contract.Revision,
		"notifications", len(res.Notifications),
	)
	return res, nil
}

func (s *Service) invalidate(tenantID string, ids ...string) {
	if s.cache == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cacheKey(tenantID, id))
	}
	s.cache.Invalidate(keys...)
}

// storeError maps repository errors onto lifecycle error kinds.
func (s *Service) storeError(op ActionName, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFoundError(op, "contract not found")
	case errors.Is(err, repository.ErrConflict):
		return conflictError(op, "contract was modified concurrently; reload and retry")
	case Kind(err) != nil:
		return err
	default:
		return fmt.Errorf("%s: %w", strings.ToLower(string(op)), err)
	}
}

func cacheKey(tenantID, id string) string {
	return tenantID + "/" + id
}

func summarize(op ActionName, from, to Status) string {
	if from == to {
		return fmt.Sprintf("%s (status %s)", op, to)
	}
	return fmt.Sprintf("%s: %s -> %s", op, from, to)
}

func details(res *Result, c *Contract) string {
	d := map[string]any{}
	if res.Version != nil {
		d["version_id"] = res.Version.ID
		d["version_number"] = res.Version.VersionNumber
	}
	if res.Feedback != nil {
		d["feedback_id"] = res.Feedback.ID
	}
	if c.Renewal != nil {
		d["renewal_status"] = c.Renewal.Status
		d["renewal_mode"] = c.Renewal.Mode
	}
	if c.SigningStatus != nil {
		d["signing_status"] = *c.SigningStatus
	}
	if len(d) == 0 {
		return ""
	}
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}

func dateOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return renewal.Date(t)
}
