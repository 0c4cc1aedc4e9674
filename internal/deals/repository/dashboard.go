package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DashboardSummary is the business owner's sales overview for one tenant.
type DashboardSummary struct {
	TotalLeads     int
	ActiveDeals    int
	WonDealsValue  int64
	WonDealsCount  int
	LostDealsCount int
}

// Active deals sit in any non-terminal stage. The subselect keeps tenants
// with leads but no deals at one row.
const dashboardSummaryQuery = `
	SELECT
		(SELECT count(*) FROM leads WHERE tenant_id = $1),
		count(d.id) FILTER (WHERE NOT s.is_terminal),
		COALESCE(sum(d.value_cents) FILTER (WHERE s.name = $2), 0),
		count(d.id) FILTER (WHERE s.name = $2),
		count(d.id) FILTER (WHERE s.name = $3)
	FROM deals d
	JOIN pipeline_stages s ON s.id = d.pipeline_stage_id
	WHERE d.tenant_id = $1
`

func (q *Queries) DashboardSummary(ctx context.Context, tenantID uuid.UUID, wonStage, lostStage string) (DashboardSummary, error) {
	var out DashboardSummary
	err := q.db.QueryRow(ctx, dashboardSummaryQuery, tenantID, wonStage, lostStage).
		Scan(&out.TotalLeads, &out.ActiveDeals, &out.WonDealsValue, &out.WonDealsCount, &out.LostDealsCount)
	if err != nil {
		return DashboardSummary{}, fmt.Errorf("dashboard summary: %w", err)
	}
	return out, nil
}
