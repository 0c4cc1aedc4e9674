package handler

import (
	"context"
	"net/http"

	"workshop_crm_backend/internal/authz"
	"workshop_crm_backend/internal/deals/repository"
	"workshop_crm_backend/internal/deals/service"
	"workshop_crm_backend/internal/deals/transport"
	"workshop_crm_backend/platform/apperr"
	"workshop_crm_backend/platform/httpkit"
	"workshop_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler serves the pipeline board, deals, leads and notes.
type Handler struct {
	svc    *service.Service
	val    *validator.Validator
	policy authz.Policy
}

func New(svc *service.Service, val *validator.Validator, policy authz.Policy) *Handler {
	return &Handler{svc: svc, val: val, policy: policy}
}

// RegisterRoutes registers pipeline routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stages", h.ListStages)
	rg.GET("/board", h.Board)
	rg.GET("/salespersons", h.ListSalespersons)
	rg.GET("/dashboard", httpkit.RequireRole(authz.RoleBusinessOwner), h.Dashboard)

	rg.GET("/leads", h.FindLead)
	rg.POST("/leads", h.CreateLead)
	rg.POST("/leads/:id/deals", h.CreateDeal)
	rg.PUT("/leads/:id/owner", h.AssignLead)

	rg.GET("/deals/:id", h.GetDeal)
	rg.PATCH("/deals/:id", h.UpdateDeal)
	rg.POST("/deals/:id/move", h.MoveDeal)
	rg.POST("/deals/:id/won", h.MarkWon)
	rg.POST("/deals/:id/lost", h.MarkLost)
	rg.PUT("/deals/:id/owner", h.ReassignDeal)
	rg.GET("/deals/:id/notes", h.ListNotes)
	rg.POST("/deals/:id/notes", h.AddNote)
}

func (h *Handler) ListStages(c *gin.Context) {
	stages, err := h.svc.ListStages(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.StageResponse, len(stages))
	for i, s := range stages {
		out[i] = toStage(s)
	}
	httpkit.OK(c, out)
}

// Board returns the kanban columns. Salespersons only see their own deals.
func (h *Handler) Board(c *gin.Context) {
	var query transport.BoardQuery
	if !h.bindQuery(c, &query) {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var ownerID *uuid.UUID
	if query.OwnerUserID != "" {
		id := uuid.MustParse(query.OwnerUserID)
		ownerID = &id
	}
	if !h.policy.Allow(actor, authz.ViewFullBoard, authz.Resource{}) {
		ownerID = &actor.UserID
	}

	columns, err := h.svc.Board(c.Request.Context(), actor.TenantID, ownerID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toBoard(columns))
}

func (h *Handler) ListSalespersons(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok || !h.authorize(c, actor, authz.ViewSalespeople, authz.Resource{}) {
		return
	}
	users, err := h.svc.ListSalespersons(c.Request.Context(), actor.TenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.UserResponse, len(users))
	for i, u := range users {
		out[i] = toUser(u)
	}
	httpkit.OK(c, out)
}

// Dashboard returns the tenant-wide pipeline summary.
func (h *Handler) Dashboard(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	summary, err := h.svc.Dashboard(c.Request.Context(), actor.TenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toDashboard(summary))
}

// FindLead looks a lead up by email. Salespersons only find their own leads.
func (h *Handler) FindLead(c *gin.Context) {
	var query transport.LeadSearchQuery
	if !h.bindQuery(c, &query) {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	lead, err := h.svc.FindLeadByEmail(c.Request.Context(), actor.TenantID, query.Email)
	if httpkit.HandleError(c, err) {
		return
	}
	if !h.authorize(c, actor, authz.ViewDeal, authz.Owned(lead.OwnerUserID)) {
		return
	}
	httpkit.OK(c, toLead(lead))
}

func (h *Handler) CreateLead(c *gin.Context) {
	var req transport.CreateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}
	actor, ok := h.actor(c)
	if !ok || !h.authorize(c, actor, authz.CreateLead, authz.Resource{}) {
		return
	}
	ownerID, ok := h.ownerFor(c, actor, req.OwnerUserID)
	if !ok {
		return
	}

	lead, deal, err := h.svc.CreateLeadWithDeal(c.Request.Context(), actor.TenantID, ownerID,
		service.LeadInput{Name: req.Name, Email: req.Email, Phone: req.Phone},
		service.DealInput{Title: req.Deal.Title, Value: string(req.Deal.Value)},
	)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.CreateLeadResponse{Lead: toLead(lead), Deal: toDeal(deal)})
}

func (h *Handler) CreateDeal(c *gin.Context) {
	leadID, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.CreateDealRequest
	if !h.bindJSON(c, &req) {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	lead, err := h.svc.GetLead(c.Request.Context(), actor.TenantID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	if !h.authorize(c, actor, authz.UpdateDeal, authz.Owned(lead.OwnerUserID)) {
		return
	}
	ownerID, ok := h.ownerFor(c, actor, req.OwnerUserID)
	if !ok {
		return
	}

	deal, err := h.svc.CreateDealForExistingLead(c.Request.Context(), actor.TenantID, leadID, ownerID,
		service.DealInput{Title: req.Title, Value: string(req.Value)})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toDeal(deal))
}

func (h *Handler) AssignLead(c *gin.Context) {
	leadID, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.AssignOwnerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	actor, ok := h.actor(c)
	if !ok || !h.authorize(c, actor, authz.AssignLead, authz.Resource{}) {
		return
	}

	lead, err := h.svc.AssignLeadTo(c.Request.Context(), actor.TenantID, leadID, req.UserID, actor.UserID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toLead(lead))
}

func (h *Handler) GetDeal(c *gin.Context) {
	actor, deal, ok := h.loadDeal(c, authz.ViewDeal)
	if !ok {
		return
	}
	detail, err := h.svc.GetDealDetail(c.Request.Context(), actor.TenantID, deal.ID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toDetail(detail))
}

func (h *Handler) UpdateDeal(c *gin.Context) {
	var req transport.UpdateDealRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.mutateDeal(c, authz.UpdateDeal, func(ctx context.Context, tenantID, dealID uuid.UUID) (repository.Deal, error) {
		return h.svc.UpdateDeal(ctx, tenantID, dealID, service.DealInput{Title: req.Title, Value: string(req.Value)})
	})
}

func (h *Handler) MoveDeal(c *gin.Context) {
	var req transport.MoveDealRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.mutateDeal(c, authz.UpdateDeal, func(ctx context.Context, tenantID, dealID uuid.UUID) (repository.Deal, error) {
		return h.svc.MoveToStage(ctx, tenantID, dealID, service.MoveInput{
			StageID:    req.StageID,
			Position:   req.Position,
			LossReason: req.LossReason,
		})
	})
}

func (h *Handler) MarkWon(c *gin.Context) {
	h.mutateDeal(c, authz.UpdateDeal, h.svc.MarkAsWon)
}

func (h *Handler) MarkLost(c *gin.Context) {
	var req transport.MarkLostRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.mutateDeal(c, authz.UpdateDeal, func(ctx context.Context, tenantID, dealID uuid.UUID) (repository.Deal, error) {
		return h.svc.MarkAsLost(ctx, tenantID, dealID, req.LossReason)
	})
}

func (h *Handler) ReassignDeal(c *gin.Context) {
	var req transport.AssignOwnerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	h.mutateDeal(c, authz.ReassignDeal, func(ctx context.Context, tenantID, dealID uuid.UUID) (repository.Deal, error) {
		return h.svc.ReassignDeal(ctx, tenantID, dealID, req.UserID, actor.UserID)
	})
}

func (h *Handler) ListNotes(c *gin.Context) {
	actor, deal, ok := h.loadDeal(c, authz.ViewDeal)
	if !ok {
		return
	}
	notes, err := h.svc.ListNotes(c.Request.Context(), actor.TenantID, deal.ID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toNotes(notes))
}

func (h *Handler) AddNote(c *gin.Context) {
	var req transport.CreateNoteRequest
	if !h.bindJSON(c, &req) {
		return
	}
	actor, deal, ok := h.loadDeal(c, authz.AddNote)
	if !ok {
		return
	}
	note, err := h.svc.AddNote(c.Request.Context(), actor.TenantID, deal.ID, actor.UserID, req.Body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toNotes([]repository.DealNote{note})[0])
}

type dealMutation func(ctx context.Context, tenantID, dealID uuid.UUID) (repository.Deal, error)

func (h *Handler) mutateDeal(c *gin.Context, action authz.Action, mutate dealMutation) {
	actor, deal, ok := h.loadDeal(c, action)
	if !ok {
		return
	}
	updated, err := mutate(c.Request.Context(), actor.TenantID, deal.ID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toDeal(updated))
}

// loadDeal resolves :id within the caller's tenant and checks action on it.
func (h *Handler) loadDeal(c *gin.Context, action authz.Action) (authz.Actor, repository.Deal, bool) {
	dealID, ok := parseID(c)
	if !ok {
		return authz.Actor{}, repository.Deal{}, false
	}
	actor, ok := h.actor(c)
	if !ok {
		return authz.Actor{}, repository.Deal{}, false
	}
	deal, err := h.svc.GetDeal(c.Request.Context(), actor.TenantID, dealID)
	if httpkit.HandleError(c, err) {
		return authz.Actor{}, repository.Deal{}, false
	}
	if !h.authorize(c, actor, action, authz.Owned(deal.OwnerUserID)) {
		return authz.Actor{}, repository.Deal{}, false
	}
	return actor, deal, true
}

// ownerFor picks the owner of a new record. Only business owners may hand a
// new record to somebody else.
func (h *Handler) ownerFor(c *gin.Context, actor authz.Actor, requested *uuid.UUID) (uuid.UUID, bool) {
	if requested == nil || *requested == uuid.Nil || *requested == actor.UserID {
		return actor.UserID, true
	}
	if !h.authorize(c, actor, authz.AssignLead, authz.Resource{}) {
		return uuid.Nil, false
	}
	return *requested, true
}

func (h *Handler) actor(c *gin.Context) (authz.Actor, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return authz.Actor{}, false
	}
	return authz.ActorFrom(identity), true
}

func (h *Handler) authorize(c *gin.Context, actor authz.Actor, action authz.Action, res authz.Resource) bool {
	return !httpkit.HandleError(c, h.policy.Authorize(actor, action, res))
}

func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return false
	}
	return h.validate(c, req)
}

func (h *Handler) bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return false
	}
	return h.validate(c, req)
}

func (h *Handler) validate(c *gin.Context, req interface{}) bool {
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(validator.FieldErrors(err)))
		return false
	}
	return true
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return uuid.Nil, false
	}
	return id, true
}
