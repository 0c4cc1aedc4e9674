package service

import (
	"context"

	"workshop_crm_backend/internal/deals/domain"
	"workshop_crm_backend/internal/deals/repository"

	"github.com/google/uuid"
)

// Dashboard returns the tenant's sales summary in one aggregate read.
func (s *Service) Dashboard(ctx context.Context, tenantID uuid.UUID) (repository.DashboardSummary, error) {
	summary, err := s.store.DashboardSummary(ctx, tenantID, domain.StageWon, domain.StageLost)
	if err != nil {
		s.log.WithContext(ctx).DatabaseError("deals.dashboard", err)
		return repository.DashboardSummary{}, err
	}
	return summary, nil
}
