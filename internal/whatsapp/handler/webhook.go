package handler

import (
	"crypto/subtle"
	"io"
	"net/http"

	"workshop_crm_backend/internal/whatsapp/service"

	"github.com/gin-gonic/gin"
)

// SecretHeader carries the shared secret configured on the provider webhook.
const SecretHeader = "x-webhook-secret"

const maxWebhookBody = 1 << 20

// SecretMiddleware rejects callbacks without the shared secret. An empty
// secret accepts every caller.
func SecretMiddleware(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := []byte(c.GetHeader(SecretHeader))
		if subtle.ConstantTimeCompare(got, expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// WebhookHandler receives provider callbacks. It answers 200 for every
// authenticated request, whatever the payload.
type WebhookHandler struct {
	svc *service.Service
}

func NewWebhookHandler(svc *service.Service) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err == nil {
		h.svc.HandleWebhook(c.Request.Context(), body)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
