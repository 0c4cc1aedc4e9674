package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"workshop_crm_backend/internal/authz"
	"workshop_crm_backend/internal/deals/domain"
	"workshop_crm_backend/internal/deals/repository"
	"workshop_crm_backend/internal/deals/service"
	"workshop_crm_backend/internal/deals/transport"
	"workshop_crm_backend/platform/httpkit"
	"workshop_crm_backend/platform/logger"
	"workshop_crm_backend/platform/phone"
	"workshop_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore serves the reads the handler paths under test reach. Any other
// call panics through the nil embedded interface.
type stubStore struct {
	repository.TxStore
	stages  []repository.Stage
	deals   map[uuid.UUID]repository.Deal
	leads   []repository.Lead
	summary repository.DashboardSummary
}

func (s *stubStore) ListStages(ctx context.Context) ([]repository.Stage, error) {
	return s.stages, nil
}

func (s *stubStore) GetDeal(ctx context.Context, tenantID, dealID uuid.UUID) (repository.Deal, error) {
	d, ok := s.deals[dealID]
	if !ok || d.TenantID != tenantID {
		return repository.Deal{}, repository.ErrNotFound
	}
	return d, nil
}

func (s *stubStore) ListBoard(ctx context.Context, tenantID uuid.UUID) ([]repository.BoardCard, error) {
	cards := make([]repository.BoardCard, 0)
	for _, d := range s.deals {
		if d.TenantID == tenantID {
			cards = append(cards, repository.BoardCard{DealID: d.ID, StageID: d.StageID, OwnerUserID: d.OwnerUserID, ValueCents: d.ValueCents})
		}
	}
	return cards, nil
}

func (s *stubStore) FindLeadByEmail(ctx context.Context, tenantID uuid.UUID, email string) (repository.Lead, error) {
	for _, l := range s.leads {
		if l.TenantID == tenantID && l.Email != nil && *l.Email == email {
			return l, nil
		}
	}
	return repository.Lead{}, repository.ErrNotFound
}

func (s *stubStore) DashboardSummary(ctx context.Context, tenantID uuid.UUID, wonStage, lostStage string) (repository.DashboardSummary, error) {
	if wonStage != domain.StageWon || lostStage != domain.StageLost {
		return repository.DashboardSummary{}, nil
	}
	return s.summary, nil
}

type env struct {
	engine   *gin.Engine
	tenant   uuid.UUID
	owner    uuid.UUID
	seller   uuid.UUID
	myDeal   repository.Deal
	yourDeal repository.Deal
	myLead   repository.Lead
	yourLead repository.Lead
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := &env{tenant: uuid.New(), owner: uuid.New(), seller: uuid.New()}
	stage := repository.Stage{ID: uuid.New(), Name: domain.StageNewLead}
	lost := repository.Stage{ID: uuid.New(), Name: domain.StageLost, SortOrder: 5, IsTerminal: true}
	e.myDeal = repository.Deal{ID: uuid.New(), TenantID: e.tenant, OwnerUserID: e.seller, StageID: stage.ID, ValueCents: 1000}
	e.yourDeal = repository.Deal{ID: uuid.New(), TenantID: e.tenant, OwnerUserID: uuid.New(), StageID: stage.ID, ValueCents: 2500}

	mine, yours := "marta@obra.com.br", "jorge@obra.com.br"
	e.myLead = repository.Lead{ID: uuid.New(), TenantID: e.tenant, OwnerUserID: e.seller, Name: "Marta", Email: &mine}
	e.yourLead = repository.Lead{ID: uuid.New(), TenantID: e.tenant, OwnerUserID: e.owner, Name: "Jorge", Email: &yours}

	store := &stubStore{
		stages: []repository.Stage{stage, lost},
		deals:  map[uuid.UUID]repository.Deal{e.myDeal.ID: e.myDeal, e.yourDeal.ID: e.yourDeal},
		leads:  []repository.Lead{e.myLead, e.yourLead},
		summary: repository.DashboardSummary{
			TotalLeads: 4, ActiveDeals: 2, WonDealsValue: 1234550, WonDealsCount: 3, LostDealsCount: 1,
		},
	}
	svc := service.New(store, nil, nil, nil, phone.NewNormalizer("BR"), logger.NewWithWriter("test", io.Discard))
	h := New(svc, validator.New(), authz.NewPolicy())

	e.engine = gin.New()
	group := e.engine.Group("/api/v1", func(c *gin.Context) {
		userID, err := uuid.Parse(c.GetHeader("X-Test-User"))
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Set(httpkit.ContextTenantIDKey, e.tenant)
		c.Set(httpkit.ContextRolesKey, []string{c.GetHeader("X-Test-Role")})
		c.Next()
	})
	h.RegisterRoutes(group)
	return e
}

func (e *env) do(method, path, body string, user uuid.UUID, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user.String())
	req.Header.Set("X-Test-Role", role)
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func TestStagesExposeLossReasonRequirement(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/api/v1/stages", "", e.seller, authz.RoleSalesperson)
	require.Equal(t, http.StatusOK, rec.Code)

	var stages []transport.StageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stages))
	require.Len(t, stages, 2)
	assert.False(t, stages[0].RequiresLossReason)
	assert.True(t, stages[1].RequiresLossReason)
}

func TestSalespersonCannotTouchAnotherOwnersDeal(t *testing.T) {
	e := newEnv(t)
	path := "/api/v1/deals/" + e.yourDeal.ID.String() + "/lost"

	rec := e.do(http.MethodPost, path, `{"lossReason":"preço"}`, e.seller, authz.RoleSalesperson)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMarkLostRejectsShortReason(t *testing.T) {
	e := newEnv(t)
	path := "/api/v1/deals/" + e.myDeal.ID.String() + "/lost"

	rec := e.do(http.MethodPost, path, `{"lossReason":""}`, e.seller, authz.RoleSalesperson)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation failed")

	rec = e.do(http.MethodPost, path, `{"lossReason":" x "}`, e.seller, authz.RoleSalesperson)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "loss reason")
}

func TestMoveRejectsNegativePosition(t *testing.T) {
	e := newEnv(t)
	body := `{"stageId":"` + uuid.NewString() + `","position":-2}`

	rec := e.do(http.MethodPost, "/api/v1/deals/"+e.myDeal.ID.String()+"/move", body, e.owner, authz.RoleBusinessOwner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownDealIsNotFoundAndBadIDIsBadRequest(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/api/v1/deals/"+uuid.NewString(), "", e.owner, authz.RoleBusinessOwner)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodGet, "/api/v1/deals/not-a-uuid", "", e.owner, authz.RoleBusinessOwner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSalespersonCannotAssign(t *testing.T) {
	e := newEnv(t)
	body := `{"userId":"` + e.seller.String() + `"}`

	rec := e.do(http.MethodPut, "/api/v1/leads/"+uuid.NewString()+"/owner", body, e.seller, authz.RoleSalesperson)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodPut, "/api/v1/deals/"+e.myDeal.ID.String()+"/owner", body, e.seller, authz.RoleSalesperson)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBoardIsFilteredForSalesperson(t *testing.T) {
	e := newEnv(t)

	read := func(user uuid.UUID, role string) []transport.BoardColumnResponse {
		rec := e.do(http.MethodGet, "/api/v1/board?ownerId="+uuid.NewString(), "", user, role)
		require.Equal(t, http.StatusOK, rec.Code)
		var cols []transport.BoardColumnResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cols))
		return cols
	}

	cols := read(e.seller, authz.RoleSalesperson)
	require.Len(t, cols, 2)
	require.Len(t, cols[0].Cards, 1)
	assert.Equal(t, e.myDeal.ID, cols[0].Cards[0].DealID)
	assert.Equal(t, int64(1000), cols[0].TotalValueCents)

	cols = read(e.owner, authz.RoleBusinessOwner)
	assert.Empty(t, cols[0].Cards)

	rec := e.do(http.MethodGet, "/api/v1/board", "", e.owner, authz.RoleBusinessOwner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), e.yourDeal.ID.String())
}

func TestDashboardIsOnlyForBusinessOwners(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/api/v1/dashboard", "", e.seller, authz.RoleSalesperson)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodGet, "/api/v1/dashboard", "", e.owner, authz.RoleBusinessOwner)
	require.Equal(t, http.StatusOK, rec.Code)
	var got transport.DashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, transport.DashboardResponse{
		TotalLeads:         4,
		ActiveDeals:        2,
		WonDealsValue:      "12345.50",
		WonDealsValueCents: 1234550,
		WonDealsCount:      3,
		LostDealsCount:     1,
	}, got)
}

func TestFindLeadByEmail(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/api/v1/leads?email=Marta@Obra.com.br", "", e.seller, authz.RoleSalesperson)
	require.Equal(t, http.StatusOK, rec.Code)
	var lead transport.LeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lead))
	assert.Equal(t, e.myLead.ID, lead.ID)

	rec = e.do(http.MethodGet, "/api/v1/leads?email=jorge@obra.com.br", "", e.seller, authz.RoleSalesperson)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(http.MethodGet, "/api/v1/leads?email=jorge@obra.com.br", "", e.owner, authz.RoleBusinessOwner)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodGet, "/api/v1/leads?email=ninguem@obra.com.br", "", e.owner, authz.RoleBusinessOwner)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(http.MethodGet, "/api/v1/leads?email=not-an-email", "", e.owner, authz.RoleBusinessOwner)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body httpkit.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body.Error)
	assert.NotNil(t, body.Details)
}
