package activity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/clmcore/internal/domain/activity"
	"github.com/rpggio/clmcore/internal/repository/mocks"
	"github.com/stretchr/testify/require"
)

func TestActivityService_DefaultsAndClamps(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	entry := activity.ActivityEntry{
		ContractID:   "c1",
		ActivityType: activity.TypeTransition,
		Action:       "IN_REVIEW",
		FromStatus:   "DRAFT",
		ToStatus:     "IN_REVIEW",
		Revision:     2,
	}
	repo.On("List", ctx, "tenant1", activity.ListActivityOptions{ContractID: "c1", Limit: activity.DefaultLimit}).
		Return([]activity.ActivityEntry{entry}, nil)
	repo.On("List", ctx, "tenant1", activity.ListActivityOptions{Limit: activity.MaxLimit, Offset: 10}).
		Return([]activity.ActivityEntry{}, nil)

	svc := activity.NewService(repo, nil)

	entries, err := svc.GetRecentActivity(ctx, "tenant1", activity.ListActivityOptions{ContractID: "c1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = svc.GetRecentActivity(ctx, "tenant1", activity.ListActivityOptions{Limit: 5000, Offset: 10})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestActivityService_RejectsBadQueries(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)
	ctx := context.Background()

	_, err := svc.GetRecentActivity(ctx, "tenant1", activity.ListActivityOptions{Limit: -1})
	require.ErrorIs(t, err, activity.ErrInvalidInput)

	_, err = svc.GetRecentActivity(ctx, "tenant1", activity.ListActivityOptions{Offset: -5})
	require.ErrorIs(t, err, activity.ErrInvalidInput)

	kind := activity.ActivityType("deleted")
	_, err = svc.GetRecentActivity(ctx, "tenant1", activity.ListActivityOptions{ActivityType: &kind})
	require.ErrorIs(t, err, activity.ErrInvalidInput)
}

func TestActivityService_WrapsStorageErrors(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	diskErr := errors.New("disk full")
	repo.On("List", ctx, "tenant1", activity.ListActivityOptions{Limit: activity.DefaultLimit}).Return(nil, diskErr)

	_, err := activity.NewService(repo, nil).GetRecentActivity(ctx, "tenant1", activity.ListActivityOptions{})
	require.ErrorIs(t, err, diskErr)
	require.NotErrorIs(t, err, activity.ErrInvalidInput)
}
