package notification

import (
	"context"
	"fmt"
	"log/slog"

	"workshop_crm_backend/internal/notification/outbox"
	"workshop_crm_backend/platform/logger"
	"workshop_crm_backend/platform/metrics"

	"github.com/google/uuid"
)

// Kind names a notification template.
type Kind string

const (
	KindDealOutcome  Kind = "deal_outcome"
	KindLeadAssigned Kind = "lead_assigned"
)

const outboxKindUserNotification = "user_notification"

const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
)

type Recipient struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}

// Message is one queued notification. It is stored as the outbox payload.
type Message struct {
	TenantID        uuid.UUID `json:"tenantId"`
	Recipient       Recipient `json:"recipient"`
	Kind            Kind      `json:"kind"`
	DealID          uuid.UUID `json:"dealId"`
	DealTitle       string    `json:"dealTitle"`
	DealValueCents  int64     `json:"dealValueCents"`
	LeadName        string    `json:"leadName"`
	SalespersonName string    `json:"salespersonName,omitempty"`
	Outcome         string    `json:"outcome,omitempty"`
	LossReason      string    `json:"lossReason,omitempty"`
	AssignedByName  string    `json:"assignedByName,omitempty"`
}

func (m Message) validate() error {
	if m.TenantID == uuid.Nil || m.Recipient.UserID == uuid.Nil {
		return fmt.Errorf("notification needs a tenant and a recipient")
	}
	switch m.Kind {
	case KindDealOutcome, KindLeadAssigned:
		return nil
	default:
		return fmt.Errorf("unsupported notification kind %q", m.Kind)
	}
}

// Notifier queues notifications in the outbox for asynchronous delivery.
type Notifier struct {
	outbox outbox.Store
	log    *logger.Logger
}

func NewNotifier(store outbox.Store, log *logger.Logger) *Notifier {
	return &Notifier{outbox: store, log: log}
}

// Enqueue stores the message and returns the outbox id.
func (n *Notifier) Enqueue(ctx context.Context, msg Message) (uuid.UUID, error) {
	if err := msg.validate(); err != nil {
		return uuid.Nil, err
	}
	id, err := n.outbox.Insert(ctx, outbox.InsertParams{
		TenantID: msg.TenantID,
		Kind:     outboxKindUserNotification,
		Template: string(msg.Kind),
		Payload:  msg,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue %s notification: %w", msg.Kind, err)
	}

	metrics.RecordNotificationQueued(string(msg.Kind))
	n.log.WithContext(ctx).Debug("notification queued",
		slog.String("outbox_id", id.String()),
		slog.String("kind", string(msg.Kind)),
		slog.String("recipient_id", msg.Recipient.UserID.String()),
	)
	return id, nil
}
