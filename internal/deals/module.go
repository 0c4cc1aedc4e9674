// Package deals provides the pipeline bounded context: leads, deals, the
// kanban board and deal notes.
package deals

import (
	"workshop_crm_backend/internal/authz"
	"workshop_crm_backend/internal/deals/cache"
	"workshop_crm_backend/internal/deals/handler"
	"workshop_crm_backend/internal/deals/repository"
	"workshop_crm_backend/internal/deals/service"
	"workshop_crm_backend/internal/events"
	apphttp "workshop_crm_backend/internal/http"
	"workshop_crm_backend/platform/logger"
	"workshop_crm_backend/platform/phone"
	"workshop_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the deals bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule wires the deals module. board may be nil when Redis is not
// configured; the board is then read straight from Postgres.
func NewModule(
	pool *pgxpool.Pool,
	eventBus events.Bus,
	notifier service.Notifier,
	board *cache.Board,
	phones *phone.Normalizer,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)

	var boardCache service.BoardCache
	if board != nil {
		board.Subscribe(eventBus)
		boardCache = board
	}

	svc := service.New(repo, notifier, eventBus, boardCache, phones, log)
	h := handler.New(svc, val, authz.NewPolicy())

	return &Module{handler: h, service: svc, repo: repo}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "deals"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for adapters that need direct reads.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts pipeline routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
