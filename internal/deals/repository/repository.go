// Package repository is the Postgres persistence layer of the deals context:
// stages, tenant users, leads, deals and deal notes. Every query takes the
// tenant id explicitly.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs statements against a pool or an open transaction.
type Queries struct {
	db querier
}

type Repository struct {
	*Queries
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{Queries: &Queries{db: pool}, pool: pool}
}

// WithinTx runs fn in a transaction and commits when fn returns nil.
func (r *Repository) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LockStages takes transaction-scoped advisory locks on each (tenant, stage)
// column in a fixed order. Outside a transaction the locks are released
// immediately, so callers must use it from WithinTx.
func (q *Queries) LockStages(ctx context.Context, tenantID uuid.UUID, stageIDs ...uuid.UUID) error {
	keys := make([]string, 0, len(stageIDs))
	seen := make(map[uuid.UUID]struct{}, len(stageIDs))
	for _, id := range stageIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, stageLockKey(tenantID, id))
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("lock stage column: %w", err)
		}
	}
	return nil
}

func stageLockKey(tenantID, stageID uuid.UUID) string {
	return "deals:stage:" + tenantID.String() + ":" + stageID.String()
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
