package adapters

import (
	"context"

	dealsrepo "workshop_crm_backend/internal/deals/repository"
	dealsvc "workshop_crm_backend/internal/deals/service"
	"workshop_crm_backend/internal/notification"

	"github.com/google/uuid"
)

// NotificationEnqueuer is the narrow interface for queueing a notification.
type NotificationEnqueuer interface {
	Enqueue(ctx context.Context, msg notification.Message) (uuid.UUID, error)
}

// DealsNotifier implements deals/service.Notifier on top of the
// notification outbox, so pipeline commits never wait on SMTP.
type DealsNotifier struct {
	queue NotificationEnqueuer
}

func NewDealsNotifier(queue NotificationEnqueuer) *DealsNotifier {
	return &DealsNotifier{queue: queue}
}

func (a *DealsNotifier) Notify(ctx context.Context, recipient dealsrepo.User, kind dealsvc.NotificationKind, payload dealsvc.NotificationPayload) error {
	_, err := a.queue.Enqueue(ctx, notification.Message{
		TenantID: payload.TenantID,
		Recipient: notification.Recipient{
			UserID: recipient.ID,
			Name:   recipient.Name,
			Email:  recipient.Email,
		},
		Kind:            notificationKind(kind),
		DealID:          payload.DealID,
		DealTitle:       payload.DealTitle,
		DealValueCents:  payload.DealValueCents,
		LeadName:        payload.LeadName,
		SalespersonName: payload.SalespersonName,
		Outcome:         payload.Outcome,
		LossReason:      payload.LossReason,
		AssignedByName:  payload.AssignedByName,
	})
	return err
}

func notificationKind(kind dealsvc.NotificationKind) notification.Kind {
	switch kind {
	case dealsvc.KindDealOutcome:
		return notification.KindDealOutcome
	case dealsvc.KindLeadAssigned:
		return notification.KindLeadAssigned
	default:
		return notification.Kind(kind)
	}
}

var _ dealsvc.Notifier = (*DealsNotifier)(nil)
