package sse

import (
	"context"
	"encoding/json"
	"log/slog"

	"workshop_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RelayChannel is the Redis channel that carries events between processes.
const RelayChannel = "crm:sse:events"

type relayEnvelope struct {
	UserID uuid.UUID `json:"userId"`
	Event  Event     `json:"event"`
}

// Relay forwards events over Redis pub/sub so a process without open
// streams (the scheduler) can reach browsers connected to the API.
type Relay struct {
	rdb redis.UniversalClient
	log *logger.Logger
}

func NewRelay(rdb redis.UniversalClient, log *logger.Logger) *Relay {
	return &Relay{rdb: rdb, log: log}
}

// Publish sends the event to every subscribed process. Failures are logged.
func (r *Relay) Publish(userID uuid.UUID, event Event) {
	data, err := json.Marshal(relayEnvelope{UserID: userID, Event: event})
	if err != nil {
		r.log.Warn("sse relay encode failed", slog.String("error", err.Error()))
		return
	}
	if err := r.rdb.Publish(context.Background(), RelayChannel, data).Err(); err != nil {
		r.log.Warn("sse relay publish failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Forward delivers relayed events to local streams until ctx is cancelled.
// ready, when non-nil, is closed once the subscription is active.
func (r *Relay) Forward(ctx context.Context, local *Service, ready chan<- struct{}) error {
	sub := r.rdb.Subscribe(ctx, RelayChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("sse relay decode failed", slog.String("error", err.Error()))
				continue
			}
			local.Publish(env.UserID, env.Event)
		}
	}
}
