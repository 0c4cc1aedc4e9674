package scheduler

import (
	"context"
	"log/slog"
	"time"

	"workshop_crm_backend/internal/notification/outbox"
	"workshop_crm_backend/platform/logger"
)

const (
	dispatchBatchSize   = 50
	defaultPollInterval = 2 * time.Second
)

// NotificationOutboxDispatcher claims due outbox rows and enqueues one
// delivery task per row.
type NotificationOutboxDispatcher struct {
	store    outbox.Store
	queue    Enqueuer
	interval time.Duration
	log      *logger.Logger
}

func NewNotificationOutboxDispatcher(store outbox.Store, queue Enqueuer, interval time.Duration, log *logger.Logger) *NotificationOutboxDispatcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &NotificationOutboxDispatcher{store: store, queue: queue, interval: interval, log: log}
}

// Run polls until ctx is cancelled.
func (d *NotificationOutboxDispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.Warn("outbox claim failed", slog.String("error", err.Error()))
		}
	}
}

// DispatchOnce claims one batch and returns how many tasks were enqueued.
// Rows that cannot be enqueued go back to pending.
func (d *NotificationOutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	records, err := d.store.ClaimPending(ctx, dispatchBatchSize)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, rec := range records {
		task, err := NewNotificationOutboxDueTask(NotificationOutboxDuePayload{
			OutboxID: rec.ID.String(),
			TenantID: rec.TenantID.String(),
		})
		if err == nil {
			err = d.queue.Enqueue(ctx, task, rec.RunAt)
		}
		if err != nil {
			msg := err.Error()
			if markErr := d.store.MarkPending(ctx, rec.ID, &msg, time.Time{}); markErr != nil {
				d.log.Error("outbox release failed",
					slog.String("outbox_id", rec.ID.String()),
					slog.String("error", markErr.Error()),
				)
			}
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
