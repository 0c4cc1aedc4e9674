// Package handler exposes the notification inbox over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"workshop_crm_backend/internal/notification/inapp"
	"workshop_crm_backend/internal/notification/sse"
	"workshop_crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxListLimit = 50

type HTTPHandler struct {
	svc    *inapp.Service
	stream *sse.Service
}

func NewHTTPHandler(svc *inapp.Service, stream *sse.Service) *HTTPHandler {
	return &HTTPHandler{svc: svc, stream: stream}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread", h.CountUnread)
	rg.PATCH("/:id/read", h.MarkRead)
	rg.PATCH("/read-all", h.MarkAllRead)
}

// RegisterStream mounts the SSE stream behind auth, which must accept the
// token as a query parameter for browser EventSource clients.
func (h *HTTPHandler) RegisterStream(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	if h.stream == nil {
		return
	}
	rg.GET("/stream", auth, h.stream.Handler(streamIdentity))
}

func streamIdentity(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	id := httpkit.GetIdentity(c)
	if !id.IsAuthenticated() {
		return uuid.Nil, uuid.Nil, false
	}
	return id.UserID(), id.TenantID(), true
}

func (h *HTTPHandler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	limit = min(limit, maxListLimit)

	items, total, err := h.svc.List(c.Request.Context(), identity.TenantID(), identity.UserID(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"items": items,
		"total": total,
		"page":  page,
	})
}

func (h *HTTPHandler) CountUnread(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	count, err := h.svc.CountUnread(c.Request.Context(), identity.TenantID(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"count": count})
}

func (h *HTTPHandler) MarkRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), identity.TenantID(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.svc.MarkAllRead(c.Request.Context(), identity.TenantID(), identity.UserID()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}
