package handler

import (
	"net/http"

	"workshop_crm_backend/internal/authz"
	"workshop_crm_backend/internal/whatsapp/repository"
	"workshop_crm_backend/internal/whatsapp/service"
	"workshop_crm_backend/internal/whatsapp/transport"
	"workshop_crm_backend/platform/httpkit"
	"workshop_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the WhatsApp settings page and deal conversations.
type Handler struct {
	svc    *service.Service
	val    *validator.Validator
	policy authz.Policy
}

func New(svc *service.Service, val *validator.Validator, policy authz.Policy) *Handler {
	return &Handler{svc: svc, val: val, policy: policy}
}

// RegisterRoutes mounts the settings and conversation routes. outbound runs
// in front of the routes that call the provider.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, outbound ...gin.HandlerFunc) {
	settings := rg.Group("/whatsapp/connection")
	settings.GET("", h.GetConnection)
	settings.POST("/connect", h.Connect)
	settings.POST("/status", h.CheckStatus)
	settings.POST("/disconnect", h.Disconnect)

	rg.GET("/deals/:id/messages", h.ListMessages)
	withOutbound := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, outbound...), handler)
	}
	rg.POST("/deals/:id/messages", withOutbound(h.SendMessage)...)
	rg.POST("/deals/:id/messages/sync", withOutbound(h.SyncMessages)...)
}

func (h *Handler) GetConnection(c *gin.Context) {
	h.manage(c, func(tenantID uuid.UUID) (any, error) {
		conn, err := h.svc.GetConnection(c.Request.Context(), tenantID)
		return toConnection(conn), err
	})
}

func (h *Handler) Connect(c *gin.Context) {
	h.manage(c, func(tenantID uuid.UUID) (any, error) {
		res, err := h.svc.Connect(c.Request.Context(), tenantID)
		if err != nil {
			return nil, err
		}
		out := transport.ConnectResponse{Connection: toConnection(res.Connection)}
		if res.QRCode != nil {
			out.QRCode = &transport.QRCodeResponse{Image: res.QRCode.Image, PairingCode: res.QRCode.PairingCode}
		}
		return out, nil
	})
}

func (h *Handler) CheckStatus(c *gin.Context) {
	h.manage(c, func(tenantID uuid.UUID) (any, error) {
		conn, err := h.svc.CheckStatus(c.Request.Context(), tenantID)
		return toConnection(conn), err
	})
}

func (h *Handler) Disconnect(c *gin.Context) {
	h.manage(c, func(tenantID uuid.UUID) (any, error) {
		conn, err := h.svc.Disconnect(c.Request.Context(), tenantID)
		return toConnection(conn), err
	})
}

func (h *Handler) ListMessages(c *gin.Context) {
	actor, deal, ok := h.loadDeal(c)
	if !ok {
		return
	}
	msgs, err := h.svc.ListConversation(c.Request.Context(), actor.TenantID, deal)
	if httpkit.HandleError(c, err) {
		return
	}
	out := make([]transport.MessageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = toMessage(m)
	}
	httpkit.OK(c, out)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req transport.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", validator.FieldErrors(err))
		return
	}
	actor, deal, ok := h.loadDeal(c)
	if !ok {
		return
	}
	msg, err := h.svc.SendMessage(c.Request.Context(), actor.TenantID, deal, req.Text)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, toMessage(msg))
}

func (h *Handler) SyncMessages(c *gin.Context) {
	actor, deal, ok := h.loadDeal(c)
	if !ok {
		return
	}
	res, err := h.svc.SyncConversation(c.Request.Context(), actor.TenantID, deal)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.SyncResponse{Fetched: res.Fetched, Stored: res.Stored, Updated: res.Updated, Dropped: res.Dropped})
}

// manage runs a settings operation for business owners only.
func (h *Handler) manage(c *gin.Context, op func(tenantID uuid.UUID) (any, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.policy.Authorize(actor, authz.ManageWhatsApp, authz.Resource{})) {
		return
	}
	out, err := op(actor.TenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, out)
}

func (h *Handler) loadDeal(c *gin.Context) (authz.Actor, service.DealLead, bool) {
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return authz.Actor{}, service.DealLead{}, false
	}
	actor, ok := h.actor(c)
	if !ok {
		return authz.Actor{}, service.DealLead{}, false
	}
	deal, err := h.svc.ResolveDeal(c.Request.Context(), actor.TenantID, dealID)
	if httpkit.HandleError(c, err) {
		return authz.Actor{}, service.DealLead{}, false
	}
	if httpkit.HandleError(c, h.policy.Authorize(actor, authz.MessageLead, authz.Owned(deal.OwnerUserID))) {
		return authz.Actor{}, service.DealLead{}, false
	}
	return actor, deal, true
}

func (h *Handler) actor(c *gin.Context) (authz.Actor, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return authz.Actor{}, false
	}
	return authz.ActorFrom(identity), true
}

func toConnection(conn repository.Connection) transport.ConnectionResponse {
	return transport.ConnectionResponse{
		Status:       conn.Status,
		InstanceName: conn.InstanceName,
		PhoneNumber:  conn.PhoneNumber,
		Connected:    conn.IsConnected(),
	}
}

func toMessage(m repository.Message) transport.MessageResponse {
	return transport.MessageResponse{
		ID:        m.ID.String(),
		MessageID: m.ExternalMessageID,
		FromMe:    m.FromMe,
		Text:      m.Body,
		Timestamp: m.MessageTimestamp,
	}
}
