// Package repository persists WhatsApp connections and messages.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ConnectionStore is the registry of per-tenant provider instances.
type ConnectionStore interface {
	GetConnection(ctx context.Context, tenantID uuid.UUID) (Connection, error)
	GetConnectionByInstanceName(ctx context.Context, instanceName string) (Connection, error)
	CreateConnection(ctx context.Context, p CreateConnectionParams) (Connection, error)
	SetConnectionStatus(ctx context.Context, tenantID uuid.UUID, status string, phoneNumber *string) (Connection, error)
	ClearConnection(ctx context.Context, tenantID uuid.UUID) (Connection, error)
}

// MessageStore holds conversation history keyed by provider message id.
type MessageStore interface {
	UpsertMessage(ctx context.Context, p UpsertMessageParams) (Message, bool, error)
	ListMessagesByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]Message, error)
}

type Store interface {
	ConnectionStore
	MessageStore
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
