package service

import (
	"context"
	"fmt"
	"io"
	"testing"

	"workshop_crm_backend/internal/authz"
	"workshop_crm_backend/internal/deals/domain"
	"workshop_crm_backend/internal/deals/repository"
	"workshop_crm_backend/platform/db/dbtest"
	"workshop_crm_backend/platform/logger"
	"workshop_crm_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type pgFixture struct {
	ctx    context.Context
	pool   *pgxpool.Pool
	repo   *repository.Repository
	svc    *Service
	tenant uuid.UUID
	owner  uuid.UUID
}

func newPGFixture(t *testing.T) *pgFixture {
	t.Helper()
	pool := dbtest.Open(t)
	tenant, owner := dbtest.Tenant(t, pool, authz.RoleBusinessOwner)
	repo := repository.New(pool)
	return &pgFixture{
		ctx:    context.Background(),
		pool:   pool,
		repo:   repo,
		svc:    New(repo, nil, nil, nil, phone.NewNormalizer("BR"), logger.NewWithWriter("test", io.Discard)),
		tenant: tenant,
		owner:  owner,
	}
}

func (f *pgFixture) stage(t *testing.T, name string) uuid.UUID {
	t.Helper()
	s, err := f.repo.GetStageByName(f.ctx, name)
	require.NoError(t, err)
	return s.ID
}

func (f *pgFixture) sortOrders(t *testing.T, stageID uuid.UUID) []int {
	t.Helper()
	rows, err := f.pool.Query(f.ctx,
		`SELECT sort_order FROM deals WHERE tenant_id = $1 AND pipeline_stage_id = $2 ORDER BY sort_order`,
		f.tenant, stageID)
	require.NoError(t, err)
	defer rows.Close()
	out := make([]int, 0)
	for rows.Next() {
		var n int
		require.NoError(t, rows.Scan(&n))
		out = append(out, n)
	}
	require.NoError(t, rows.Err())
	return out
}

func dense(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// seedConcurrently opens n deals in parallel, all appended to New Lead.
func (f *pgFixture) seedConcurrently(t *testing.T, n int) []repository.Deal {
	t.Helper()
	deals := make([]repository.Deal, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			_, d, err := f.svc.CreateLeadWithDeal(f.ctx, f.tenant, f.owner,
				LeadInput{Name: fmt.Sprintf("Cliente %d", i), Email: fmt.Sprintf("cliente%d-%s@obra.test", i, f.tenant)},
				DealInput{Title: fmt.Sprintf("Obra %d", i), Value: "100"})
			deals[i] = d
			return err
		})
	}
	require.NoError(t, g.Wait())
	return deals
}

func TestPostgresConcurrentMovesKeepColumnsDense(t *testing.T) {
	f := newPGFixture(t)
	newLead := f.stage(t, domain.StageNewLead)
	contacted := f.stage(t, domain.StageContacted)
	won := f.stage(t, domain.StageWon)

	deals := f.seedConcurrently(t, 10)
	assert.Equal(t, dense(10), f.sortOrders(t, newLead))

	var g errgroup.Group
	for i, d := range deals[:6] {
		d := d
		if i%2 == 0 {
			g.Go(func() error {
				_, err := f.svc.MoveToStage(f.ctx, f.tenant, d.ID, MoveInput{StageID: contacted, Position: 0})
				return err
			})
			continue
		}
		g.Go(func() error {
			_, err := f.svc.MarkAsWon(f.ctx, f.tenant, d.ID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, dense(4), f.sortOrders(t, newLead))
	assert.Equal(t, dense(3), f.sortOrders(t, contacted))
	assert.Equal(t, dense(3), f.sortOrders(t, won))
}

func TestPostgresDashboardSummary(t *testing.T) {
	f := newPGFixture(t)
	deals := f.seedConcurrently(t, 4)

	_, err := f.svc.MarkAsWon(f.ctx, f.tenant, deals[0].ID)
	require.NoError(t, err)
	_, err = f.svc.MarkAsLost(f.ctx, f.tenant, deals[1].ID, "Orçamento alto")
	require.NoError(t, err)

	other, otherOwner := dbtest.Tenant(t, f.pool, authz.RoleBusinessOwner)
	_, _, err = f.svc.CreateLeadWithDeal(f.ctx, other, otherOwner, LeadInput{Name: "Outro"}, DealInput{Title: "Fachada", Value: "900"})
	require.NoError(t, err)

	got, err := f.svc.Dashboard(f.ctx, f.tenant)
	require.NoError(t, err)
	assert.Equal(t, repository.DashboardSummary{
		TotalLeads:     4,
		ActiveDeals:    2,
		WonDealsValue:  10000,
		WonDealsCount:  1,
		LostDealsCount: 1,
	}, got)

	lead, err := f.svc.FindLeadByEmail(f.ctx, f.tenant, fmt.Sprintf("CLIENTE2-%s@obra.test", f.tenant))
	require.NoError(t, err)
	assert.Equal(t, deals[2].LeadID, lead.ID)
}
