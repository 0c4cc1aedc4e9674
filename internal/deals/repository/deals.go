package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const dealColumns = `id, tenant_id, lead_id, owner_user_id, pipeline_stage_id, title, value_cents, sort_order, loss_reason, created_at, updated_at`

const listBoardQuery = `
		SELECT d.id, d.pipeline_stage_id, d.sort_order, d.title, d.value_cents,
		       l.id, l.name, u.id, u.name
		FROM deals d
		JOIN pipeline_stages s ON s.id = d.pipeline_stage_id
		JOIN leads l ON l.id = d.lead_id AND l.tenant_id = d.tenant_id
		JOIN users u ON u.id = d.owner_user_id
		WHERE d.tenant_id = $1
		ORDER BY s.sort_order ASC, d.sort_order ASC
	`

const applyStageOrderQuery = `
		UPDATE deals d
		SET sort_order = v.ord - 1, updated_at = now()
		FROM unnest($3::uuid[]) WITH ORDINALITY AS v(id, ord)
		WHERE d.id = v.id AND d.tenant_id = $1 AND d.pipeline_stage_id = $2
		  AND d.sort_order IS DISTINCT FROM v.ord - 1
	`

func scanDeal(row interface{ Scan(...any) error }) (Deal, error) {
	var d Deal
	err := row.Scan(&d.ID, &d.TenantID, &d.LeadID, &d.OwnerUserID, &d.StageID, &d.Title, &d.ValueCents, &d.SortOrder, &d.LossReason, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (q *Queries) GetDeal(ctx context.Context, tenantID, dealID uuid.UUID) (Deal, error) {
	deal, err := scanDeal(q.db.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = $1 AND tenant_id = $2`, dealID, tenantID))
	return deal, mapNoRows(err)
}

func (q *Queries) ListDealsByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]Deal, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+dealColumns+`
		FROM deals
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at ASC
	`, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deals := make([]Deal, 0)
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}

// ListBoard returns every deal of the tenant ordered by stage and position.
func (q *Queries) ListBoard(ctx context.Context, tenantID uuid.UUID) ([]BoardCard, error) {
	rows, err := q.db.Query(ctx, listBoardQuery, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := make([]BoardCard, 0)
	for rows.Next() {
		var c BoardCard
		if err := rows.Scan(&c.DealID, &c.StageID, &c.SortOrder, &c.Title, &c.ValueCents,
			&c.LeadID, &c.LeadName, &c.OwnerUserID, &c.OwnerName); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (q *Queries) CreateDeal(ctx context.Context, p CreateDealParams) (Deal, error) {
	deal, err := scanDeal(q.db.QueryRow(ctx, `
		INSERT INTO deals (tenant_id, lead_id, owner_user_id, pipeline_stage_id, title, value_cents, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+dealColumns,
		p.TenantID, p.LeadID, p.OwnerUserID, p.StageID, p.Title, p.ValueCents, p.SortOrder))
	if err != nil {
		if isForeignKeyViolation(err) {
			return Deal{}, ErrNotFound
		}
		return Deal{}, fmt.Errorf("insert deal: %w", err)
	}
	return deal, nil
}

func (q *Queries) UpdateDealDetails(ctx context.Context, tenantID, dealID uuid.UUID, title string, valueCents int64) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE deals SET title = $3, value_cents = $4, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, dealID, tenantID, title, valueCents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) UpdateDealOwner(ctx context.Context, tenantID, dealID, ownerID uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE deals SET owner_user_id = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, dealID, tenantID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDealOwnersByLead moves every deal of the lead to ownerID and returns
// the affected deal ids.
func (q *Queries) UpdateDealOwnersByLead(ctx context.Context, tenantID, leadID, ownerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `
		UPDATE deals SET owner_user_id = $3, updated_at = now()
		WHERE tenant_id = $1 AND lead_id = $2
		RETURNING id
	`, tenantID, leadID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetDealStage changes the stage and loss reason. The sort order is written
// separately by ApplyStageOrder.
func (q *Queries) SetDealStage(ctx context.Context, tenantID, dealID, stageID uuid.UUID, lossReason *string) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE deals SET pipeline_stage_id = $3, loss_reason = $4, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, dealID, tenantID, stageID, lossReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) ListStageDealIDs(ctx context.Context, tenantID, stageID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id FROM deals
		WHERE tenant_id = $1 AND pipeline_stage_id = $2
		ORDER BY sort_order ASC, updated_at DESC, id ASC
	`, tenantID, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ApplyStageOrder writes sort_order = index for each id of the column.
func (q *Queries) ApplyStageOrder(ctx context.Context, tenantID, stageID uuid.UUID, ordered []uuid.UUID) error {
	if len(ordered) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx, applyStageOrderQuery, tenantID, stageID, ordered)
	if err != nil {
		return fmt.Errorf("apply stage order: %w", err)
	}
	return nil
}
