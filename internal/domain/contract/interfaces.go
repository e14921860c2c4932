package contract

import (
	"context"

	"github.com/rpggio/clmcore/internal/domain/activity"
)

// Tx is the unit of work a transition runs in. Reads and writes made
// through a Tx commit or roll back together.
type Tx interface {
	Get(ctx context.Context, tenantID, id string) (*Contract, error)
	Create(ctx context.Context, tenantID string, c *Contract) error
	// Update persists the aggregate when the stored revision still equals
	// expectedRevision, and fails with repository.ErrConflict otherwise.
	Update(ctx context.Context, tenantID string, c *Contract, expectedRevision int64) error
	LogActivity(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error
}

// Store provides contract persistence.
type Store interface {
	Get(ctx context.Context, tenantID, id string) (*Contract, error)
	// WithinTx runs fn in one transaction, committing only if fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Cache is a read-through cache of committed aggregates keyed by tenant and
// contract id.
type Cache interface {
	Get(key string) (*Contract, bool)
	// Epoch changes whenever Invalidate runs.
	Epoch() uint64
	// PutIfCurrent caches c unless an invalidation happened after epoch
	// was read.
	PutIfCurrent(key string, c *Contract, epoch uint64) bool
	Invalidate(keys ...string)
}
