// Package whatsapp provides the WhatsApp bounded context: the per-tenant
// provider connection, the inbound webhook and deal conversations.
package whatsapp

import (
	"workshop_crm_backend/internal/authz"
	apphttp "workshop_crm_backend/internal/http"
	"workshop_crm_backend/internal/whatsapp/gateway"
	"workshop_crm_backend/internal/whatsapp/handler"
	"workshop_crm_backend/internal/whatsapp/repository"
	"workshop_crm_backend/internal/whatsapp/service"
	"workshop_crm_backend/platform/config"
	"workshop_crm_backend/platform/httpkit"
	"workshop_crm_backend/platform/logger"
	"workshop_crm_backend/platform/phone"
	"workshop_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"
)

// Config is what the module reads from the application configuration.
type Config interface {
	config.EvolutionConfig
	config.WebhookConfig
	config.MessagingConfig
}

type Module struct {
	handler *handler.Handler
	webhook *handler.WebhookHandler
	service *service.Service
	limiter *httpkit.IPRateLimiter
	secret  string
}

// NewModule wires the module. Without a provider base URL the gateway is
// left out and only webhook ingestion and conversation reads work.
func NewModule(pool *pgxpool.Pool, cfg Config, leads service.LeadDirectory, phones *phone.Normalizer, val *validator.Validator, log *logger.Logger) *Module {
	var gw service.Gateway
	if cfg.IsEvolutionEnabled() {
		gw = gateway.NewClient(cfg, log)
	} else {
		log.Warn("EVOLUTION_API_BASE_URL not set; whatsapp sending and pairing are disabled")
	}
	if cfg.GetEvolutionWebhookSecret() == "" {
		log.Warn("EVOLUTION_WEBHOOK_SECRET not set; the whatsapp webhook accepts unsigned callbacks")
	}

	svc := service.New(repository.New(pool), gw, leads, phones, log)
	return &Module{
		handler: handler.New(svc, val, authz.NewPolicy()),
		webhook: handler.NewWebhookHandler(svc),
		service: svc,
		limiter: httpkit.NewIPRateLimiter(rate.Limit(cfg.GetWhatsAppSendRateLimit()), cfg.GetWhatsAppSendRateBurst(), log),
		secret:  cfg.GetEvolutionWebhookSecret(),
	}
}

func (m *Module) Name() string {
	return "whatsapp"
}

func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the public webhook on V1 and everything else on the
// protected group. The webhook is not rate limited: the provider delivers for
// every tenant from one address and must always get 200 past the secret.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/webhook/whatsapp", handler.SecretMiddleware(m.secret), m.webhook.Receive)
	m.handler.RegisterRoutes(ctx.Protected, m.limiter.RateLimit())
}

var _ apphttp.Module = (*Module)(nil)
