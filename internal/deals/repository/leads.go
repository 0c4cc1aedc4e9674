package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const leadColumns = `id, tenant_id, owner_user_id, name, email, phone, phone_digits, created_at, updated_at`

func scanLead(row interface{ Scan(...any) error }) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.TenantID, &l.OwnerUserID, &l.Name, &l.Email, &l.Phone, &l.PhoneDigits, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (q *Queries) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (Lead, error) {
	lead, err := scanLead(q.db.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 AND tenant_id = $2`, leadID, tenantID))
	return lead, mapNoRows(err)
}

func (q *Queries) CreateLead(ctx context.Context, p CreateLeadParams) (Lead, error) {
	lead, err := scanLead(q.db.QueryRow(ctx, `
		INSERT INTO leads (tenant_id, owner_user_id, name, email, phone, phone_digits)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+leadColumns,
		p.TenantID, p.OwnerUserID, p.Name, p.Email, p.Phone, p.PhoneDigits))
	if err != nil {
		if isForeignKeyViolation(err) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

func (q *Queries) UpdateLeadOwner(ctx context.Context, tenantID, leadID, ownerID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE leads SET owner_user_id = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, leadID, tenantID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindLeadByPhoneDigits returns the oldest lead of the tenant whose canonical
// phone digits match.
func (q *Queries) FindLeadByPhoneDigits(ctx context.Context, tenantID uuid.UUID, digits string) (Lead, error) {
	lead, err := scanLead(q.db.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE tenant_id = $1 AND phone_digits = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, tenantID, digits))
	return lead, mapNoRows(err)
}

// FindLeadByEmail returns the oldest lead of the tenant with the email.
// Emails are stored lowercased.
func (q *Queries) FindLeadByEmail(ctx context.Context, tenantID uuid.UUID, email string) (Lead, error) {
	lead, err := scanLead(q.db.QueryRow(ctx, findLeadByEmailQuery, tenantID, email))
	return lead, mapNoRows(err)
}

const findLeadByEmailQuery = `
	SELECT ` + leadColumns + ` FROM leads
	WHERE tenant_id = $1 AND email = $2
	ORDER BY created_at ASC
	LIMIT 1
`
