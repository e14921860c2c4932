package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/clmcore/internal/domain/approval"
	"github.com/rpggio/clmcore/internal/domain/contract"
	"github.com/rpggio/clmcore/internal/domain/renewal"
	"github.com/rpggio/clmcore/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newAggregate(id string) *contract.Contract {
	now := time.Now()
	start := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)
	return &contract.Contract{
		ID:            id,
		Title:         "Master Services Agreement",
		Status:        contract.StatusDraft,
		RiskLevel:     "medium",
		Value:         decimal.RequireFromString("100000.50"),
		Frequency:     "annual",
		EffectiveDate: start,
		EndDate:       end,
		OwnerID:       "alice",
		Versions: []contract.Version{{
			ID:            id + "-v1",
			ContractID:    id,
			VersionNumber: 1,
			Content:       "clause one\nclause two",
			Value:         decimal.RequireFromString("100000.50"),
			EffectiveDate: start,
			EndDate:       end,
			AuthorID:      "alice",
			CreatedAt:     now,
		}},
		ApprovalSteps: []approval.Step{},
		CreatedAt:     now,
		ModifiedAt:    now,
		Revision:      1,
	}
}

func create(t *testing.T, store *ContractStore, tenantID string, c *contract.Contract) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(tx contract.Tx) error {
		return tx.Create(context.Background(), tenantID, c)
	})
	require.NoError(t, err)
}

func update(store *ContractStore, tenantID string, c *contract.Contract, expected int64) error {
	return store.WithinTx(context.Background(), func(tx contract.Tx) error {
		return tx.Update(context.Background(), tenantID, c, expected)
	})
}

func TestContractStore_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	store := NewContractStore(db)
	ctx := context.Background()

	create(t, store, "tenant1", newAggregate("c1"))

	got, err := store.Get(ctx, "tenant1", "c1")
	require.NoError(t, err)
	require.Equal(t, "tenant1", got.TenantID)
	require.Equal(t, contract.StatusDraft, got.Status)
	require.True(t, got.Value.Equal(decimal.RequireFromString("100000.5")))
	require.Equal(t, "2023-01-15", got.EffectiveDate.Format("2006-01-02"))
	require.Equal(t, "2024-01-14", got.EndDate.Format("2006-01-02"))
	require.Nil(t, got.SigningStatus)
	require.Nil(t, got.Renewal)
	require.Len(t, got.Versions, 1)
	require.Equal(t, "clause one\nclause two", got.Versions[0].Content)
	require.False(t, got.Versions[0].Locked)
	require.Empty(t, got.ApprovalSteps)

	_, err = store.Get(ctx, "tenant2", "c1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestContractStore_UpdatePersistsChildren(t *testing.T) {
	db := NewTestDB(t)
	store := NewContractStore(db)
	ctx := context.Background()
	now := time.Now()

	c := newAggregate("c1")
	create(t, store, "tenant1", c)

	steps, err := approval.NewRound("c1", "c1-v1", 1, []string{"bob", "carol"}, now)
	require.NoError(t, err)
	c.ApprovalRound = 1
	c.ApprovalSteps = steps
	c.Versions[0].Locked = true
	c.ReviewVersionID = &c.Versions[0].ID
	c.Status = contract.StatusPendingApproval
	c.Revision = 2
	require.NoError(t, update(store, "tenant1", c, 1))

	got, err := store.Get(ctx, "tenant1", "c1")
	require.NoError(t, err)
	require.Equal(t, int64(2), got.Revision)
	require.True(t, got.Versions[0].Locked)
	require.Equal(t, "c1-v1", *got.ReviewVersionID)
	require.Len(t, got.ApprovalSteps, 2)
	require.Equal(t, "bob", got.ApprovalSteps[0].ApproverID)
	require.Equal(t, "carol", got.ApprovalSteps[1].ApproverID)

	_, err = approval.Decide(got.ApprovalSteps, got.ApprovalSteps[0].ID, "bob", approval.StatusApproved, now)
	require.NoError(t, err)
	got.Revision = 3
	require.NoError(t, update(store, "tenant1", got, 2))

	again, err := store.Get(ctx, "tenant1", "c1")
	require.NoError(t, err)
	require.Equal(t, approval.StatusApproved, again.ApprovalSteps[0].Status)
	require.NotNil(t, again.ApprovalSteps[0].ApprovedAt)
	require.Equal(t, approval.StatusPending, again.ApprovalSteps[1].Status)

	// A new round hides the previous one but keeps its rows.
	round2, err := approval.NewRound("c1", "c1-v1", 2, []string{"dave"}, now)
	require.NoError(t, err)
	again.ApprovalRound = 2
	again.ApprovalSteps = round2
	again.Revision = 4
	require.NoError(t, update(store, "tenant1", again, 3))

	latest, err := store.Get(ctx, "tenant1", "c1")
	require.NoError(t, err)
	require.Len(t, latest.ApprovalSteps, 1)
	require.Equal(t, "dave", latest.ApprovalSteps[0].ApproverID)

	var total int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM approval_steps WHERE contract_id = 'c1'`).Scan(&total))
	require.Equal(t, 3, total)
}

func TestContractStore_RenewalRoundTrip(t *testing.T) {
	db := NewTestDB(t)
	store := NewContractStore(db)
	ctx := context.Background()
	now := time.Now()

	c := newAggregate("c1")
	c.Status = contract.StatusActive
	create(t, store, "tenant1", c)

	owner := "renewals"
	req, err := renewal.Start(renewal.StartRequest{
		ContractID:       "c1",
		EndDate:          c.EndDate,
		OwnerID:          &owner,
		TermMonths:       12,
		NoticePeriodDays: 30,
		UpliftPercent:    decimal.RequireFromString("2.5"),
	}, now)
	require.NoError(t, err)
	_, err = req.AddFeedback("bob", "vendor asked for a discount", now)
	require.NoError(t, err)
	c.Renewal = req
	c.Revision = 2
	require.NoError(t, update(store, "tenant1", c, 1))

	got, err := store.Get(ctx, "tenant1", "c1")
	require.NoError(t, err)
	require.NotNil(t, got.Renewal)
	require.Equal(t, renewal.StatusDecisionNeeded, got.Renewal.Status)
	require.Equal(t, renewal.ModePending, got.Renewal.Mode)
	require.Equal(t, "renewals", *got.Renewal.OwnerID)
	require.Equal(t, "2023-12-15", got.Renewal.NoticeDeadline.Format("2006-01-02"))
	require.True(t, got.Renewal.UpliftPercent.Equal(decimal.RequireFromString("2.5")))
	require.Len(t, got.Renewal.Feedback, 1)
	require.Equal(t, "vendor asked for a discount", got.Renewal.Feedback[0].Body)

	// A second live renewal is rejected by the store.
	second, err := renewal.Start(renewal.StartRequest{ContractID: "c1", EndDate: c.EndDate, TermMonths: 12}, now)
	require.NoError(t, err)
	got.Renewal = second
	got.Revision = 3
	require.ErrorIs(t, update(store, "tenant1", got, 2), repository.ErrConflict)
}

func TestContractStore_StaleRevisionConflicts(t *testing.T) {
	db := NewTestDB(t)
	store := NewContractStore(db)

	c := newAggregate("c1")
	create(t, store, "tenant1", c)

	c.Status = contract.StatusInReview
	c.Revision = 2
	require.NoError(t, update(store, "tenant1", c, 1))

	c.Status = contract.StatusArchived
	c.Revision = 2
	require.ErrorIs(t, update(store, "tenant1", c, 1), repository.ErrConflict)

	missing := newAggregate("nope")
	require.ErrorIs(t, update(store, "tenant1", missing, 1), repository.ErrNotFound)
}

func TestContractStore_RollbackOnError(t *testing.T) {
	db := NewTestDB(t)
	store := NewContractStore(db)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx contract.Tx) error {
		if err := tx.Create(ctx, "tenant1", newAggregate("c1")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Get(ctx, "tenant1", "c1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestContractStore_SuccessorLinks(t *testing.T) {
	db := NewTestDB(t)
	store := NewContractStore(db)
	ctx := context.Background()
	now := time.Now()

	parent := newAggregate("c1")
	parent.Status = contract.StatusActive
	req, err := renewal.Start(renewal.StartRequest{ContractID: "c1", EndDate: parent.EndDate, TermMonths: 12}, now)
	require.NoError(t, err)
	parent.Renewal = req
	create(t, store, "tenant1", parent)

	// The renewal may reference a successor created later in the same transaction.
	child := newAggregate("c2")
	child.ParentContractID = &parent.ID
	err = store.WithinTx(ctx, func(tx contract.Tx) error {
		require.NoError(t, parent.Renewal.Decide(renewal.ModeNewContract, renewal.StatusInProgress, now))
		parent.Renewal.SuccessorContractID = &child.ID
		parent.Revision = 2
		if err := tx.Update(ctx, "tenant1", parent, 1); err != nil {
			return err
		}
		return tx.Create(ctx, "tenant1", child)
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "tenant1", "c2")
	require.NoError(t, err)
	require.Equal(t, "c1", *got.ParentContractID)

	p, err := store.Get(ctx, "tenant1", "c1")
	require.NoError(t, err)
	require.Equal(t, "c2", *p.Renewal.SuccessorContractID)
	require.Equal(t, renewal.StatusInProgress, p.Renewal.Status)
}
