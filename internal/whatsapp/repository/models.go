package repository

import (
	"time"

	"github.com/google/uuid"
)

// Connection statuses stored in whatsapp_connections.status.
const (
	StatusConnected    = "Connected"
	StatusDisconnected = "Disconnected"
)

type Connection struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Status       string
	InstanceName string
	InstanceID   *string
	PhoneNumber  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c Connection) IsConnected() bool {
	return c.Status == StatusConnected
}

type Message struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	ConnectionID      uuid.UUID
	LeadID            uuid.UUID
	RemoteJID         string
	ExternalMessageID *string
	FromMe            bool
	Body              string
	MessageTimestamp  int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type CreateConnectionParams struct {
	TenantID     uuid.UUID
	InstanceName string
	InstanceID   *string
}

type UpsertMessageParams struct {
	TenantID          uuid.UUID
	ConnectionID      uuid.UUID
	LeadID            uuid.UUID
	RemoteJID         string
	ExternalMessageID *string
	FromMe            bool
	Body              string
	MessageTimestamp  int64
}
