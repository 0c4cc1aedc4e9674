// Package dbtest opens a migrated Postgres pool for repository tests. Tests
// using it are skipped unless CRM_TEST_DATABASE_URL is set.
package dbtest

import (
	"context"
	"os"
	"testing"

	"workshop_crm_backend/migrations"
	"workshop_crm_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const EnvDatabaseURL = "CRM_TEST_DATABASE_URL"

const migrationLockKey int64 = 7_301_001

// Open returns a pool on the migrated test database and closes it when the
// test ends.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		t.Skipf("%s not set", EnvDatabaseURL)
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(pool.Close)
	migrate(t, pool)
	return pool
}

// migrate holds a session advisory lock so package test binaries running in
// parallel do not race on the goose version table.
func migrate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		t.Fatalf("lock migrations: %v", err)
	}
	defer func() { _, _ = conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, migrationLockKey) }()

	if err := db.RunMigrations(ctx, pool, migrations.FS); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
}

// Tenant inserts a fresh tenant with one active user of the given role and
// removes the tenant's rows when the test ends.
func Tenant(t *testing.T, pool *pgxpool.Pool, role string) (tenantID, userID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	tenantID, userID = uuid.New(), uuid.New()
	if _, err := pool.Exec(ctx, `INSERT INTO tenants (id, name) VALUES ($1, $2)`, tenantID, "tenant "+tenantID.String()[:8]); err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO users (id, tenant_id, name, email, role) VALUES ($1, $2, $3, $4, $5)`,
		userID, tenantID, "User "+userID.String()[:8], userID.String()+"@crm.test", role,
	); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM tenants WHERE id = $1`, tenantID)
	})
	return tenantID, userID
}
