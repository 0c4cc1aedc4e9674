// Package service implements the pipeline engine and the assignment
// coordinator on top of the deals repository.
package service

import (
	"context"
	"errors"
	"log/slog"

	"workshop_crm_backend/internal/deals/repository"
	"workshop_crm_backend/internal/events"
	"workshop_crm_backend/platform/apperr"
	"workshop_crm_backend/platform/logger"
	"workshop_crm_backend/platform/phone"

	"github.com/google/uuid"
)

// NotificationKind names the notification templates the pipeline emits.
type NotificationKind string

const (
	KindDealOutcome  NotificationKind = "deal_outcome"
	KindLeadAssigned NotificationKind = "lead_assigned"
)

// Outcome values carried by deal outcome notifications.
const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
)

// NotificationPayload is the data a notification template renders.
type NotificationPayload struct {
	TenantID        uuid.UUID `json:"tenantId"`
	DealID          uuid.UUID `json:"dealId"`
	DealTitle       string    `json:"dealTitle"`
	DealValueCents  int64     `json:"dealValueCents"`
	LeadName        string    `json:"leadName"`
	SalespersonName string    `json:"salespersonName"`
	Outcome         string    `json:"outcome,omitempty"`
	LossReason      string    `json:"lossReason,omitempty"`
	AssignedByName  string    `json:"assignedByName,omitempty"`
}

// Notifier delivers one notification to one user.
type Notifier interface {
	Notify(ctx context.Context, recipient repository.User, kind NotificationKind, payload NotificationPayload) error
}

// BoardCache memoizes the tenant board.
type BoardCache interface {
	Get(ctx context.Context, tenantID uuid.UUID, load func(ctx context.Context) ([]repository.BoardCard, error)) ([]repository.BoardCard, error)
}

type Service struct {
	store    repository.TxStore
	notifier Notifier
	bus      events.Bus
	board    BoardCache
	phones   *phone.Normalizer
	log      *logger.Logger
}

// New creates the deals service. board may be nil, in which case the board
// is read from the store on every call.
func New(store repository.TxStore, notifier Notifier, bus events.Bus, board BoardCache, phones *phone.Normalizer, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		bus:      bus,
		board:    board,
		phones:   phones,
		log:      log,
	}
}

// publishChanged invalidates board views synchronously after a commit.
func (s *Service) publishChanged(ctx context.Context, tenantID uuid.UUID, reason string) {
	if s.bus == nil {
		return
	}
	err := s.bus.PublishSync(ctx, events.DealsChanged{
		BaseEvent: events.NewBaseEvent(),
		TenantID:  tenantID,
		Reason:    reason,
	})
	if err != nil {
		s.log.WithContext(ctx).Warn("board invalidation failed",
			slog.String("tenant_id", tenantID.String()),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) notify(ctx context.Context, recipient repository.User, kind NotificationKind, payload NotificationPayload) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, recipient, kind, payload); err != nil {
		s.log.WithContext(ctx).Error("notification dispatch failed",
			slog.String("kind", string(kind)),
			slog.String("recipient_id", recipient.ID.String()),
			slog.String("deal_id", payload.DealID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// notFound converts repository.ErrNotFound into a typed error and passes
// every other error through unchanged.
func notFound(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(message)
	}
	return err
}

const (
	msgDealNotFound  = "deal not found"
	msgLeadNotFound  = "lead not found"
	msgStageNotFound = "stage not found"
	msgUserNotFound  = "user not found"
)
