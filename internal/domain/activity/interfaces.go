package activity

import "context"

// Repository reads the audit trail. Entries are appended by the contract
// store inside the transaction that commits each change.
type Repository interface {
	List(ctx context.Context, tenantID string, opts ListActivityOptions) ([]ActivityEntry, error)
}
