package activity

import (
	"context"
	"fmt"
	"log/slog"
)

// Service answers audit-trail queries.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// GetRecentActivity lists entries newest first. A zero limit means
// DefaultLimit and limits above MaxLimit are clamped.
func (s *Service) GetRecentActivity(ctx context.Context, tenantID string, opts ListActivityOptions) ([]ActivityEntry, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	entries, err := s.repo.List(ctx, tenantID, opts)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	s.logger.Debug("activity listed", "tenant_id", tenantID, "contract_id", opts.ContractID, "count", len(entries))
	return entries, nil
}
