// Package notification queues and delivers user notifications: transactional
// email through the outbox and the in-app inbox with its live stream.
package notification

import (
	"context"
	"log/slog"

	"workshop_crm_backend/internal/email"
	"workshop_crm_backend/internal/events"
	apphttp "workshop_crm_backend/internal/http"
	"workshop_crm_backend/internal/notification/handler"
	"workshop_crm_backend/internal/notification/inapp"
	"workshop_crm_backend/internal/notification/outbox"
	"workshop_crm_backend/internal/notification/sse"
	"workshop_crm_backend/platform/config"
	"workshop_crm_backend/platform/httpkit"
	"workshop_crm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	outbox    outbox.Store
	notifier  *Notifier
	processor *Processor
	inApp     *inapp.Service
	stream    *sse.Service
	handler   *handler.HTTPHandler
	log       *logger.Logger
}

// New wires the module on top of Postgres.
func New(pool *pgxpool.Pool, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	return NewWithStores(outbox.New(pool), inapp.NewRepository(pool), sender, cfg, log)
}

// NewWithStores wires the module on explicit stores.
func NewWithStores(box outbox.Store, inbox inapp.Store, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	stream := sse.New(log)
	inApp := inapp.NewService(inbox, stream, log)
	return &Module{
		outbox:    box,
		notifier:  NewNotifier(box, log),
		processor: NewProcessor(box, sender, inApp, cfg.GetAppBaseURL(), log),
		inApp:     inApp,
		stream:    stream,
		handler:   handler.NewHTTPHandler(inApp, stream),
		log:       log,
	}
}

func (m *Module) Name() string { return "notification" }

func (m *Module) Notifier() *Notifier { return m.notifier }

func (m *Module) Processor() *Processor { return m.processor }

func (m *Module) Outbox() outbox.Store { return m.outbox }

func (m *Module) Stream() *sse.Service { return m.stream }

// SetPublisher routes in-app pushes elsewhere, e.g. through the Redis relay
// when this process serves no streams.
func (m *Module) SetPublisher(p inapp.Publisher) { m.inApp.SetPublisher(p) }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/notifications"))
	m.handler.RegisterStream(ctx.V1.Group("/notifications"), httpkit.AuthRequiredWithQueryToken(ctx.Config))
}

// RegisterHandlers forwards board changes to every connected tenant member.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.DealsChanged{}.EventName(), events.HandlerFunc(m.handleDealsChanged))
}

func (m *Module) handleDealsChanged(_ context.Context, event events.Event) error {
	changed, ok := event.(events.DealsChanged)
	if !ok {
		m.log.Warn("unexpected event payload", slog.String("event", event.EventName()))
		return nil
	}
	m.stream.PublishToTenant(changed.TenantID, sse.Event{
		Type:    sse.EventBoardChanged,
		Message: changed.Reason,
	})
	return nil
}

// Close ends every open stream.
func (m *Module) Close() {
	m.stream.Close()
}

var _ apphttp.Module = (*Module)(nil)
