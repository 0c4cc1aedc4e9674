package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func (q *Queries) CreateNote(ctx context.Context, p CreateNoteParams) (DealNote, error) {
	var note DealNote
	err := q.db.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO deal_notes (tenant_id, deal_id, author_user_id, body)
			VALUES ($1, $2, $3, $4)
			RETURNING id, tenant_id, deal_id, author_user_id, body, created_at
		)
		SELECT inserted.id, inserted.tenant_id, inserted.deal_id, inserted.author_user_id, u.name, inserted.body, inserted.created_at
		FROM inserted
		JOIN users u ON u.id = inserted.author_user_id
	`, p.TenantID, p.DealID, p.AuthorUserID, p.Body).Scan(
		&note.ID,
		&note.TenantID,
		&note.DealID,
		&note.AuthorUserID,
		&note.AuthorName,
		&note.Body,
		&note.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return DealNote{}, ErrNotFound
		}
		return DealNote{}, fmt.Errorf("insert note: %w", err)
	}
	return note, nil
}

// ListNotes returns the deal's notes newest first.
func (q *Queries) ListNotes(ctx context.Context, tenantID, dealID uuid.UUID) ([]DealNote, error) {
	rows, err := q.db.Query(ctx, `
		SELECT n.id, n.tenant_id, n.deal_id, n.author_user_id, u.name, n.body, n.created_at
		FROM deal_notes n
		JOIN users u ON u.id = n.author_user_id
		WHERE n.deal_id = $1 AND n.tenant_id = $2
		ORDER BY n.created_at DESC, n.id DESC
	`, dealID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]DealNote, 0)
	for rows.Next() {
		var note DealNote
		if err := rows.Scan(
			&note.ID,
			&note.TenantID,
			&note.DealID,
			&note.AuthorUserID,
			&note.AuthorName,
			&note.Body,
			&note.CreatedAt,
		); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}
