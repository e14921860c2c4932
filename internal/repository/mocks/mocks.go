package mocks

import (
	"context"

	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/domain/contract"
	"github.com/stretchr/testify/mock"
)

// ContractStore is a mock for contract.Store. WithinTx hands Tx to the
// callback and returns whatever the callback returns unless an error was
// configured.
type ContractStore struct {
	mock.Mock
	Tx *ContractTx
}

func (m *ContractStore) Get(ctx context.Context, tenantID, id string) (*contract.Contract, error) {
	args := m.Called(ctx, tenantID, id)
	if c, ok := args.Get(0).(*contract.Contract); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ContractStore) WithinTx(ctx context.Context, fn func(tx contract.Tx) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(m.Tx)
}

// ContractTx is a mock for contract.Tx.
type ContractTx struct {
	mock.Mock
}

func (m *ContractTx) Get(ctx context.Context, tenantID, id string) (*contract.Contract, error) {
	args := m.Called(ctx, tenantID, id)
	if c, ok := args.Get(0).(*contract.Contract); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ContractTx) Create(ctx context.Context, tenantID string, c *contract.Contract) error {
	args := m.Called(ctx, tenantID, c)
	return args.Error(0)
}

func (m *ContractTx) Update(ctx context.Context, tenantID string, c *contract.Contract, expectedRevision int64) error {
	args := m.Called(ctx, tenantID, c, expectedRevision)
	return args.Error(0)
}

func (m *ContractTx) LogActivity(ctx context.Context, tenantID string, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, tenantID, entry)
	return args.Error(0)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) List(ctx context.Context, tenantID string, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, tenantID, opts)
	if entries, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}
