package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const connectionColumns = `id, tenant_id, status, instance_name, instance_id, phone_number, created_at, updated_at`

func scanConnection(row interface{ Scan(...any) error }) (Connection, error) {
	var c Connection
	err := row.Scan(&c.ID, &c.TenantID, &c.Status, &c.InstanceName, &c.InstanceID, &c.PhoneNumber, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *Repository) GetConnection(ctx context.Context, tenantID uuid.UUID) (Connection, error) {
	c, err := scanConnection(r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM whatsapp_connections WHERE tenant_id = $1`, tenantID))
	return c, mapNoRows(err)
}

// GetConnectionByInstanceName resolves the tenant of an inbound webhook.
func (r *Repository) GetConnectionByInstanceName(ctx context.Context, instanceName string) (Connection, error) {
	c, err := scanConnection(r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM whatsapp_connections WHERE instance_name = $1`, instanceName))
	return c, mapNoRows(err)
}

// CreateConnection inserts the tenant's connection in the Disconnected state.
// A second connection for the same tenant is ErrConflict.
func (r *Repository) CreateConnection(ctx context.Context, p CreateConnectionParams) (Connection, error) {
	c, err := scanConnection(r.pool.QueryRow(ctx, `
		INSERT INTO whatsapp_connections (tenant_id, status, instance_name, instance_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+connectionColumns,
		p.TenantID, StatusDisconnected, p.InstanceName, p.InstanceID))
	if err != nil {
		if isUniqueViolation(err) {
			return Connection{}, ErrConflict
		}
		return Connection{}, fmt.Errorf("insert whatsapp connection: %w", err)
	}
	return c, nil
}

// SetConnectionStatus updates the status. A nil phoneNumber keeps the stored one.
func (r *Repository) SetConnectionStatus(ctx context.Context, tenantID uuid.UUID, status string, phoneNumber *string) (Connection, error) {
	c, err := scanConnection(r.pool.QueryRow(ctx, `
		UPDATE whatsapp_connections
		SET status = $2, phone_number = COALESCE($3, phone_number), updated_at = now()
		WHERE tenant_id = $1
		RETURNING `+connectionColumns,
		tenantID, status, phoneNumber))
	return c, mapNoRows(err)
}

// ClearConnection marks the connection Disconnected and forgets the linked phone.
func (r *Repository) ClearConnection(ctx context.Context, tenantID uuid.UUID) (Connection, error) {
	c, err := scanConnection(r.pool.QueryRow(ctx, `
		UPDATE whatsapp_connections
		SET status = $2, phone_number = NULL, updated_at = now()
		WHERE tenant_id = $1
		RETURNING `+connectionColumns,
		tenantID, StatusDisconnected))
	return c, mapNoRows(err)
}
