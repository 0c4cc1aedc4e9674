package repository

import (
	"context"

	"github.com/google/uuid"
)

func (q *Queries) GetActiveUser(ctx context.Context, tenantID, userID uuid.UUID) (User, error) {
	var u User
	err := q.db.QueryRow(ctx, `
		SELECT id, tenant_id, name, email, role, is_active
		FROM users
		WHERE id = $1 AND tenant_id = $2 AND is_active
	`, userID, tenantID).Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.Role, &u.IsActive)
	return u, mapNoRows(err)
}

func (q *Queries) ListActiveUsersByRole(ctx context.Context, tenantID uuid.UUID, role string) ([]User, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, tenant_id, name, email, role, is_active
		FROM users
		WHERE tenant_id = $1 AND role = $2 AND is_active
		ORDER BY name ASC
	`, tenantID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.Role, &u.IsActive); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
