// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"workshop_crm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// DealsChanged is published after any mutation that alters the pipeline board.
// Board caches subscribe to it.
type DealsChanged struct {
	BaseEvent
	TenantID uuid.UUID `json:"tenantId"`
	Reason   string    `json:"reason"`
}

func (e DealsChanged) EventName() string { return "deals.changed" }
