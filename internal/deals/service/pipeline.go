package service

import (
	"context"
	"strings"

	"workshop_crm_backend/internal/deals/domain"
	"workshop_crm_backend/internal/deals/repository"
	"workshop_crm_backend/platform/metrics"

	"github.com/google/uuid"
)

// MoveInput describes a drag of a deal onto a stage column.
type MoveInput struct {
	StageID  uuid.UUID
	Position int
	// LossReason is required when the target is the Lost stage.
	LossReason string
}

type stageResolver func(ctx context.Context, q repository.Store) (repository.Stage, error)

func stageByID(id uuid.UUID) stageResolver {
	return func(ctx context.Context, q repository.Store) (repository.Stage, error) {
		return q.GetStage(ctx, id)
	}
}

func stageByName(name string) stageResolver {
	return func(ctx context.Context, q repository.Store) (repository.Stage, error) {
		return q.GetStageByName(ctx, name)
	}
}

// ListStages returns the pipeline columns in display order.
func (s *Service) ListStages(ctx context.Context) ([]repository.Stage, error) {
	return s.store.ListStages(ctx)
}

// RequiresLossReason reports whether entering the stage needs a loss reason.
func (s *Service) RequiresLossReason(ctx context.Context, stageID uuid.UUID) (bool, error) {
	stage, err := s.store.GetStage(ctx, stageID)
	if err != nil {
		return false, notFound(err, msgStageNotFound)
	}
	return domain.RequiresLossReason(stage.Name), nil
}

// MoveToStage places the deal at position in the target column and reflows
// both the destination and, when the stage changed, the source column.
func (s *Service) MoveToStage(ctx context.Context, tenantID, dealID uuid.UUID, in MoveInput) (repository.Deal, error) {
	if in.Position < 0 {
		return repository.Deal{}, domain.ErrNegativePosition
	}
	position := in.Position

	deal, err := s.transition(ctx, tenantID, dealID, stageByID(in.StageID), &position, in.LossReason)
	if err != nil {
		return repository.Deal{}, err
	}

	metrics.RecordDealTransition("move")
	s.publishChanged(ctx, tenantID, "moved")
	return deal, nil
}

// MarkAsWon moves the deal to the end of the Won column and notifies the
// tenant's business owners.
func (s *Service) MarkAsWon(ctx context.Context, tenantID, dealID uuid.UUID) (repository.Deal, error) {
	deal, err := s.transition(ctx, tenantID, dealID, stageByName(domain.StageWon), nil, "")
	if err != nil {
		return repository.Deal{}, err
	}

	metrics.RecordDealTransition(OutcomeWon)
	s.publishChanged(ctx, tenantID, "won")
	s.notifyOutcome(ctx, deal, OutcomeWon)
	return deal, nil
}

// MarkAsLost validates the reason, moves the deal to the end of the Lost
// column and notifies the tenant's business owners.
func (s *Service) MarkAsLost(ctx context.Context, tenantID, dealID uuid.UUID, lossReason string) (repository.Deal, error) {
	reason, err := domain.NormalizeLossReason(lossReason)
	if err != nil {
		return repository.Deal{}, err
	}

	deal, err := s.transition(ctx, tenantID, dealID, stageByName(domain.StageLost), nil, reason)
	if err != nil {
		return repository.Deal{}, err
	}

	metrics.RecordDealTransition(OutcomeLost)
	s.publishChanged(ctx, tenantID, "lost")
	s.notifyOutcome(ctx, deal, OutcomeLost)
	return deal, nil
}

// transition runs one stage move in a transaction. A nil position appends.
func (s *Service) transition(ctx context.Context, tenantID, dealID uuid.UUID, resolve stageResolver, position *int, lossReason string) (repository.Deal, error) {
	var updated repository.Deal

	err := s.store.WithinTx(ctx, func(q repository.Store) error {
		target, err := resolve(ctx, q)
		if err != nil {
			return notFound(err, msgStageNotFound)
		}

		deal, err := q.GetDeal(ctx, tenantID, dealID)
		if err != nil {
			return notFound(err, msgDealNotFound)
		}

		if err := q.LockStages(ctx, tenantID, deal.StageID, target.ID); err != nil {
			return err
		}

		// Re-read under lock: a concurrent move may have changed the column.
		current, err := q.GetDeal(ctx, tenantID, dealID)
		if err != nil {
			return notFound(err, msgDealNotFound)
		}
		if current.StageID != deal.StageID {
			if err := q.LockStages(ctx, tenantID, current.StageID); err != nil {
				return err
			}
		}
		deal = current

		reason, err := lossReasonFor(deal, target, lossReason)
		if err != nil {
			return err
		}

		sameStage := deal.StageID == target.ID
		destination, err := q.ListStageDealIDs(ctx, tenantID, target.ID)
		if err != nil {
			return err
		}
		var source []uuid.UUID
		if !sameStage {
			source, err = q.ListStageDealIDs(ctx, tenantID, deal.StageID)
			if err != nil {
				return err
			}
		}

		plan := domain.PlanMove(source, destination, deal.ID, sameStage, position)

		if err := q.SetDealStage(ctx, tenantID, deal.ID, target.ID, reason); err != nil {
			return notFound(err, msgDealNotFound)
		}
		if err := q.ApplyStageOrder(ctx, tenantID, target.ID, plan.Destination); err != nil {
			return err
		}
		if plan.StageChanged() {
			if err := q.ApplyStageOrder(ctx, tenantID, deal.StageID, plan.Source); err != nil {
				return err
			}
		}

		updated, err = q.GetDeal(ctx, tenantID, deal.ID)
		return err
	})
	if err != nil {
		return repository.Deal{}, err
	}
	return updated, nil
}

// lossReasonFor keeps loss_reason set exactly while the deal sits in Lost.
// Entering Lost needs a valid reason; moving inside Lost keeps the stored
// one unless a new reason is given.
func lossReasonFor(deal repository.Deal, target repository.Stage, given string) (*string, error) {
	if !domain.RequiresLossReason(target.Name) {
		return nil, nil
	}
	if deal.StageID == target.ID && strings.TrimSpace(given) == "" && deal.LossReason != nil {
		return deal.LossReason, nil
	}
	reason, err := domain.NormalizeLossReason(given)
	if err != nil {
		return nil, err
	}
	return &reason, nil
}

func (s *Service) notifyOutcome(ctx context.Context, deal repository.Deal, outcome string) {
	owners, err := s.store.ListActiveUsersByRole(ctx, deal.TenantID, repository.RoleBusinessOwner)
	if err != nil {
		s.log.WithContext(ctx).DatabaseError("deals.notify_outcome.list_owners", err)
		return
	}
	if len(owners) == 0 {
		return
	}

	payload := s.payloadFor(ctx, deal)
	payload.Outcome = outcome
	if deal.LossReason != nil {
		payload.LossReason = *deal.LossReason
	}

	for _, owner := range owners {
		s.notify(ctx, owner, KindDealOutcome, payload)
	}
}

// payloadFor fills the display fields shared by every deal notification.
func (s *Service) payloadFor(ctx context.Context, deal repository.Deal) NotificationPayload {
	payload := NotificationPayload{
		TenantID:       deal.TenantID,
		DealID:         deal.ID,
		DealTitle:      deal.Title,
		DealValueCents: deal.ValueCents,
	}
	if lead, err := s.store.GetLead(ctx, deal.TenantID, deal.LeadID); err == nil {
		payload.LeadName = lead.Name
	}
	if seller, err := s.store.GetActiveUser(ctx, deal.TenantID, deal.OwnerUserID); err == nil {
		payload.SalespersonName = seller.Name
	}
	return payload
}
