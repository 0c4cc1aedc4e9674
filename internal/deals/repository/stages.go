package repository

import (
	"context"

	"github.com/google/uuid"
)

const stageColumns = `id, name, sort_order, is_terminal`

func (q *Queries) ListStages(ctx context.Context) ([]Stage, error) {
	rows, err := q.db.Query(ctx, `SELECT `+stageColumns+` FROM pipeline_stages ORDER BY sort_order ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]Stage, 0, 6)
	for rows.Next() {
		var s Stage
		if err := rows.Scan(&s.ID, &s.Name, &s.SortOrder, &s.IsTerminal); err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

func (q *Queries) GetStage(ctx context.Context, id uuid.UUID) (Stage, error) {
	var s Stage
	err := q.db.QueryRow(ctx, `SELECT `+stageColumns+` FROM pipeline_stages WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.SortOrder, &s.IsTerminal)
	return s, mapNoRows(err)
}

func (q *Queries) GetStageByName(ctx context.Context, name string) (Stage, error) {
	var s Stage
	err := q.db.QueryRow(ctx, `SELECT `+stageColumns+` FROM pipeline_stages WHERE name = $1`, name).
		Scan(&s.ID, &s.Name, &s.SortOrder, &s.IsTerminal)
	return s, mapNoRows(err)
}
