package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"workshop_crm_backend/platform/config"
	"workshop_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const defaultConcurrency = 10

// OutboxProcessor delivers one outbox record and records its outcome.
type OutboxProcessor interface {
	Process(ctx context.Context, outboxID uuid.UUID) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor OutboxProcessor
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, processor OutboxProcessor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server:    server,
		processor: processor,
		log:       log,
	}
	w.mux = w.routes()
	return w, nil
}

func (w *Worker) routes() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)
	return mux
}

// The outbox row owns the retry schedule, so asynq never retries.
func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return fmt.Errorf("decode outbox task: %v: %w", err, asynq.SkipRetry)
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return fmt.Errorf("invalid outbox id %q: %w", payload.OutboxID, asynq.SkipRetry)
	}

	if err := w.processor.Process(ctx, outboxID); err != nil {
		return fmt.Errorf("process outbox %s: %v: %w", outboxID, err, asynq.SkipRetry)
	}
	return nil
}

// Run processes tasks until ctx is cancelled, then drains in-flight work.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		w.log.Error("scheduler worker failed to start", slog.String("error", err.Error()))
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
