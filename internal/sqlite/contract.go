package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/approval"
	"github.com/rpggio/clmcore/internal/domain/contract"
	"github.com/rpggio/clmcore/internal/domain/renewal"
	"github.com/rpggio/clmcore/internal/repository"
)

const dateLayout = "2006-01-02"

// ContractStore implements contract.Store for SQLite. An aggregate is
// written as one contracts row plus its versions, steps, renewal and
// feedback rows.
type ContractStore struct {
	db *DB
}

// NewContractStore creates a new ContractStore
func NewContractStore(db *DB) *ContractStore {
	return &ContractStore{db: db}
}

// Get loads a committed aggregate.
func (s *ContractStore) Get(ctx context.Context, tenantID, id string) (*contract.Contract, error) {
	return loadContract(ctx, s.db, tenantID, id)
}

// WithinTx runs fn in a single transaction.
func (s *ContractStore) WithinTx(ctx context.Context, fn func(tx contract.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&contractTx{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		if isUniqueViolation(err) || isForeignKeyViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type contractTx struct {
	q querier
}

func (t *contractTx) Get(ctx context.Context, tenantID, id string) (*contract.Contract, error) {
	return loadContract(ctx, t.q, tenantID, id)
}

func (t *contractTx) Create(ctx context.Context, tenantID string, c *contract.Contract) error {
	query := `
		INSERT INTO contracts (
			id, tenant_id, title, status, risk_level, value, frequency,
			effective_date, end_date, owner_id, counterparty_id, parent_contract_id,
			signing_status, review_version_id, approval_round,
			created_at, modified_at, revision
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := t.q.ExecContext(ctx, query,
		c.ID,
		tenantID,
		c.Title,
		c.Status,
		c.RiskLevel,
		c.Value,
		c.Frequency,
		formatDate(c.EffectiveDate),
		formatDate(c.EndDate),
		c.OwnerID,
		c.CounterpartyID,
		c.ParentContractID,
		c.SigningStatus,
		c.ReviewVersionID,
		c.ApprovalRound,
		c.CreatedAt,
		c.ModifiedAt,
		c.Revision,
	)
	if err != nil {
		return storageError(err, "failed to create contract")
	}
	c.TenantID = tenantID
	return t.saveChildren(ctx, c)
}

// Update writes c when the stored revision still equals expectedRevision.
func (t *contractTx) Update(ctx context.Context, tenantID string, c *contract.Contract, expectedRevision int64) error {
	query := `
		UPDATE contracts
		SET title = ?, status = ?, risk_level = ?, value = ?, frequency = ?,
		    effective_date = ?, end_date = ?, counterparty_id = ?,
		    signing_status = ?, review_version_id = ?, approval_round = ?,
		    modified_at = ?, revision = ?
		WHERE id = ? AND tenant_id = ? AND revision = ?
	`
	result, err := t.q.ExecContext(ctx, query,
		c.Title,
		c.Status,
		c.RiskLevel,
		c.Value,
		c.Frequency,
		formatDate(c.EffectiveDate),
		formatDate(c.EndDate),
		c.CounterpartyID,
		c.SigningStatus,
		c.ReviewVersionID,
		c.ApprovalRound,
		c.ModifiedAt,
		c.Revision,
		c.ID,
		tenantID,
		expectedRevision,
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM contracts WHERE id = ? AND tenant_id = ?)`
		if err := t.q.QueryRowContext(ctx, checkQuery, c.ID, tenantID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check contract existence: %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}

	return t.saveChildren(ctx, c)
}

func (t *contractTx) LogActivity(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error {
	return logActivity(ctx, t.q, tenantID, entry)
}

// saveChildren upserts the owned rows. Rows are never deleted, so earlier
// approval rounds and feedback stay on record.
func (t *contractTx) saveChildren(ctx context.Context, c *contract.Contract) error {
	for i := range c.Versions {
		v := &c.Versions[i]
		_, err := t.q.ExecContext(ctx, `
			INSERT INTO contract_versions (
				id, contract_id, version_number, content, value, frequency,
				effective_date, end_date, author_id, locked, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				content = excluded.content,
				value = excluded.value,
				frequency = excluded.frequency,
				effective_date = excluded.effective_date,
				end_date = excluded.end_date,
				author_id = excluded.author_id,
				locked = excluded.locked
		`,
			v.ID, c.ID, v.VersionNumber, v.Content, v.Value, v.Frequency,
			formatDate(v.EffectiveDate), formatDate(v.EndDate), v.AuthorID, v.Locked, v.CreatedAt,
		)
		if err != nil {
			return storageError(err, "failed to save version %d", v.VersionNumber)
		}
	}

	for _, step := range c.ApprovalSteps {
		_, err := t.q.ExecContext(ctx, `
			INSERT INTO approval_steps (
				id, contract_id, version_id, round, approver_id, status,
				approved_at, decided_at, voided_at, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				approved_at = excluded.approved_at,
				decided_at = excluded.decided_at,
				voided_at = excluded.voided_at
		`,
			step.ID, c.ID, step.VersionID, step.Round, step.ApproverID, step.Status,
			nullTime(step.ApprovedAt), nullTime(step.DecidedAt), nullTime(step.VoidedAt), step.CreatedAt,
		)
		if err != nil {
			return storageError(err, "failed to save approval step")
		}
	}

	if c.Renewal == nil {
		return nil
	}
	r := c.Renewal
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO renewal_requests (
			id, contract_id, status, mode, owner_id, notice_deadline,
			term_months, notice_period_days, uplift_percent, require_reexecution,
			termination_policy, successor_contract_id, created_at, modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			mode = excluded.mode,
			owner_id = excluded.owner_id,
			require_reexecution = excluded.require_reexecution,
			termination_policy = excluded.termination_policy,
			successor_contract_id = excluded.successor_contract_id,
			modified_at = excluded.modified_at
	`,
		r.ID, c.ID, r.Status, r.Mode, r.OwnerID, formatDate(r.NoticeDeadline),
		r.TermMonths, r.NoticePeriodDays, r.UpliftPercent, r.RequireReexecution,
		r.TerminationPolicy, r.SuccessorContractID, r.CreatedAt, r.ModifiedAt,
	)
	if err != nil {
		return storageError(err, "failed to save renewal request")
	}

	for _, fb := range r.Feedback {
		_, err := t.q.ExecContext(ctx, `
			INSERT INTO renewal_feedback (id, renewal_id, author_id, body, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, fb.ID, r.ID, fb.AuthorID, fb.Body, fb.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save renewal feedback: %w", err)
		}
	}
	return nil
}

func loadContract(ctx context.Context, q querier, tenantID, id string) (*contract.Contract, error) {
	query := `
		SELECT
			id, tenant_id, title, status, risk_level, value, frequency,
			effective_date, end_date, owner_id, counterparty_id, parent_contract_id,
			signing_status, review_version_id, approval_round,
			created_at, modified_at, revision
		FROM contracts
		WHERE id = ? AND tenant_id = ?
	`
	var (
		c             contract.Contract
		effectiveDate string
		endDate       string
		parentID      sql.NullString
		signing       sql.NullString
		reviewVersion sql.NullString
	)
	err := q.QueryRowContext(ctx, query, id, tenantID).Scan(
		&c.ID,
		&c.TenantID,
		&c.Title,
		&c.Status,
		&c.RiskLevel,
		&c.Value,
		&c.Frequency,
		&effectiveDate,
		&endDate,
		&c.OwnerID,
		&c.CounterpartyID,
		&parentID,
		&signing,
		&reviewVersion,
		&c.ApprovalRound,
		&c.CreatedAt,
		&c.ModifiedAt,
		&c.Revision,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}

	if c.EffectiveDate, err = parseDate(effectiveDate); err != nil {
		return nil, err
	}
	if c.EndDate, err = parseDate(endDate); err != nil {
		return nil, err
	}
	if parentID.Valid {
		c.ParentContractID = &parentID.String
	}
	if signing.Valid {
		s := contract.SigningStatus(signing.String)
		c.SigningStatus = &s
	}
	if reviewVersion.Valid {
		c.ReviewVersionID = &reviewVersion.String
	}

	if c.Versions, err = loadVersions(ctx, q, c.ID); err != nil {
		return nil, err
	}
	if c.ApprovalSteps, err = loadSteps(ctx, q, c.ID, c.ApprovalRound); err != nil {
		return nil, err
	}
	if c.Renewal, err = loadRenewal(ctx, q, c.ID); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadVersions(ctx context.Context, q querier, contractID string) ([]contract.Version, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, contract_id, version_number, content, value, frequency,
		       effective_date, end_date, author_id, locked, created_at
		FROM contract_versions
		WHERE contract_id = ?
		ORDER BY version_number
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	versions := []contract.Version{}
	for rows.Next() {
		var (
			v             contract.Version
			effectiveDate string
			endDate       string
		)
		if err := rows.Scan(
			&v.ID,
			&v.ContractID,
			&v.VersionNumber,
			&v.Content,
			&v.Value,
			&v.Frequency,
			&effectiveDate,
			&endDate,
			&v.AuthorID,
			&v.Locked,
			&v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		if v.EffectiveDate, err = parseDate(effectiveDate); err != nil {
			return nil, err
		}
		if v.EndDate, err = parseDate(endDate); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version rows: %w", err)
	}
	return versions, nil
}

// loadSteps returns the steps of one round in creation order.
func loadSteps(ctx context.Context, q querier, contractID string, round int) ([]approval.Step, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, contract_id, version_id, round, approver_id, status,
		       approved_at, decided_at, voided_at, created_at
		FROM approval_steps
		WHERE contract_id = ? AND round = ?
		ORDER BY rowid
	`, contractID, round)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval steps: %w", err)
	}
	defer rows.Close()

	steps := []approval.Step{}
	for rows.Next() {
		var (
			step                            approval.Step
			approvedAt, decidedAt, voidedAt sql.NullTime
		)
		if err := rows.Scan(
			&step.ID,
			&step.ContractID,
			&step.VersionID,
			&step.Round,
			&step.ApproverID,
			&step.Status,
			&approvedAt,
			&decidedAt,
			&voidedAt,
			&step.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan approval step: %w", err)
		}
		step.ApprovedAt = timePtr(approvedAt)
		step.DecidedAt = timePtr(decidedAt)
		step.VoidedAt = timePtr(voidedAt)
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating approval step rows: %w", err)
	}
	return steps, nil
}

// loadRenewal returns the live renewal request, or the most recent one.
func loadRenewal(ctx context.Context, q querier, contractID string) (*renewal.Request, error) {
	var (
		r              renewal.Request
		ownerID        sql.NullString
		successorID    sql.NullString
		noticeDeadline string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, contract_id, status, mode, owner_id, notice_deadline,
		       term_months, notice_period_days, uplift_percent, require_reexecution,
		       termination_policy, successor_contract_id, created_at, modified_at
		FROM renewal_requests
		WHERE contract_id = ?
		ORDER BY CASE WHEN status IN ('DECISION_NEEDED', 'IN_PROGRESS') THEN 0 ELSE 1 END, rowid DESC
		LIMIT 1
	`, contractID).Scan(
		&r.ID,
		&r.ContractID,
		&r.Status,
		&r.Mode,
		&ownerID,
		&noticeDeadline,
		&r.TermMonths,
		&r.NoticePeriodDays,
		&r.UpliftPercent,
		&r.RequireReexecution,
		&r.TerminationPolicy,
		&successorID,
		&r.CreatedAt,
		&r.ModifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get renewal request: %w", err)
	}
	if r.NoticeDeadline, err = parseDate(noticeDeadline); err != nil {
		return nil, err
	}
	if ownerID.Valid {
		r.OwnerID = &ownerID.String
	}
	if successorID.Valid {
		r.SuccessorContractID = &successorID.String
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, renewal_id, author_id, body, created_at
		FROM renewal_feedback
		WHERE renewal_id = ?
		ORDER BY rowid
	`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list renewal feedback: %w", err)
	}
	defer rows.Close()

	r.Feedback = []renewal.Feedback{}
	for rows.Next() {
		var fb renewal.Feedback
		if err := rows.Scan(&fb.ID, &fb.RenewalID, &fb.AuthorID, &fb.Body, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan renewal feedback: %w", err)
		}
		r.Feedback = append(r.Feedback, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback rows: %w", err)
	}
	return &r, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
