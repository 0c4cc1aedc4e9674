package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const messageColumns = `id, tenant_id, connection_id, lead_id, remote_jid, external_message_id, from_me, body, message_timestamp, created_at, updated_at`

// upsertMessageQuery collapses replays of the same provider message into one
// row. A row owned by another tenant is never overwritten.
const upsertMessageQuery = `
	INSERT INTO whatsapp_messages
		(tenant_id, connection_id, lead_id, remote_jid, external_message_id, from_me, body, message_timestamp)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (external_message_id) DO UPDATE SET
		connection_id     = EXCLUDED.connection_id,
		lead_id           = EXCLUDED.lead_id,
		remote_jid        = EXCLUDED.remote_jid,
		from_me           = EXCLUDED.from_me,
		body              = EXCLUDED.body,
		message_timestamp = EXCLUDED.message_timestamp,
		updated_at        = now()
	WHERE whatsapp_messages.tenant_id = EXCLUDED.tenant_id
	RETURNING ` + messageColumns + `, (xmax = 0) AS inserted`

func scanMessage(row interface{ Scan(...any) error }, extra ...any) (Message, error) {
	var m Message
	dest := []any{&m.ID, &m.TenantID, &m.ConnectionID, &m.LeadID, &m.RemoteJID, &m.ExternalMessageID,
		&m.FromMe, &m.Body, &m.MessageTimestamp, &m.CreatedAt, &m.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	return m, err
}

// UpsertMessage inserts or refreshes a message by external id and reports
// whether a new row was created. ErrConflict means the id belongs to another
// tenant's row.
func (r *Repository) UpsertMessage(ctx context.Context, p UpsertMessageParams) (Message, bool, error) {
	var inserted bool
	m, err := scanMessage(r.pool.QueryRow(ctx, upsertMessageQuery,
		p.TenantID, p.ConnectionID, p.LeadID, p.RemoteJID, p.ExternalMessageID, p.FromMe, p.Body, p.MessageTimestamp,
	), &inserted)
	if err != nil {
		if mapNoRows(err) == ErrNotFound {
			return Message{}, false, ErrConflict
		}
		return Message{}, false, fmt.Errorf("upsert whatsapp message: %w", err)
	}
	return m, inserted, nil
}

// ListMessagesByLead returns the conversation oldest first.
func (r *Repository) ListMessagesByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM whatsapp_messages
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY message_timestamp ASC, created_at ASC
	`, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
