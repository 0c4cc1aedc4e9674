package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"workshop_crm_backend/internal/email"
	"workshop_crm_backend/internal/notification/inapp"
	"workshop_crm_backend/internal/notification/outbox"
	"workshop_crm_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	MaxDeliveryAttempts = 5

	retryBaseDelay = 30 * time.Second
	retryMaxDelay  = 30 * time.Minute

	boardPath        = "/kanban"
	resourceTypeDeal = "deal"
)

// ErrPermanent marks a record that will never be delivered.
var ErrPermanent = errors.New("permanent notification failure")

// Processor delivers one outbox record: an email when the recipient has an
// address, plus an in-app notification on the first attempt.
type Processor struct {
	outbox outbox.Store
	sender email.Sender
	inApp  *inapp.Service
	appURL string
	log    *logger.Logger
	now    func() time.Time
}

func NewProcessor(store outbox.Store, sender email.Sender, inApp *inapp.Service, appBaseURL string, log *logger.Logger) *Processor {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Processor{
		outbox: store,
		sender: sender,
		inApp:  inApp,
		appURL: strings.TrimRight(appBaseURL, "/"),
		log:    log,
		now:    time.Now,
	}
}

// Process delivers the record. A returned error means the record was put
// back for a later retry or marked failed; either way the caller should not
// retry on its own.
func (p *Processor) Process(ctx context.Context, outboxID uuid.UUID) error {
	log := p.log.WithContext(ctx).With(slog.String("outbox_id", outboxID.String()))

	rec, err := p.outbox.GetByID(ctx, outboxID)
	if errors.Is(err, outbox.ErrNotFound) {
		log.Warn("outbox record vanished; skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load outbox record: %w", err)
	}
	if rec.Status == outbox.StatusSucceeded || rec.Status == outbox.StatusFailed {
		log.Debug("outbox record already final; skipping", slog.String("status", string(rec.Status)))
		return nil
	}
	if err := p.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return fmt.Errorf("mark outbox processing: %w", err)
	}

	deliverErr := p.deliver(ctx, rec)
	if deliverErr == nil {
		if err := p.outbox.MarkSucceeded(ctx, rec.ID); err != nil {
			return fmt.Errorf("mark outbox succeeded: %w", err)
		}
		log.Info("notification delivered", slog.String("template", rec.Template))
		return nil
	}

	attempt := rec.Attempts + 1
	if errors.Is(deliverErr, ErrPermanent) || attempt >= MaxDeliveryAttempts {
		if err := p.outbox.MarkFailed(ctx, rec.ID, deliverErr.Error()); err != nil {
			log.Error("mark outbox failed", slog.String("error", err.Error()))
			return errors.Join(deliverErr, fmt.Errorf("mark outbox failed: %w", err))
		}
		log.Warn("notification failed permanently",
			slog.String("template", rec.Template),
			slog.Int("attempt", attempt),
			slog.String("error", deliverErr.Error()),
		)
		return deliverErr
	}

	retryAt := p.now().UTC().Add(retryDelay(attempt))
	lastErr := deliverErr.Error()
	if err := p.outbox.MarkPending(ctx, rec.ID, &lastErr, retryAt); err != nil {
		log.Error("notification retry scheduling failed", slog.String("error", err.Error()))
		if failErr := p.outbox.MarkFailed(ctx, rec.ID, lastErr); failErr != nil {
			log.Error("mark outbox failed", slog.String("error", failErr.Error()))
			return errors.Join(deliverErr, fmt.Errorf("mark outbox failed: %w", failErr))
		}
		return deliverErr
	}
	log.Warn("notification delivery failed; retry scheduled",
		slog.String("template", rec.Template),
		slog.Int("attempt", attempt),
		slog.Time("retry_at", retryAt),
		slog.String("error", lastErr),
	)
	return deliverErr
}

func retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := retryBaseDelay << (attempt - 1)
	if delay > retryMaxDelay {
		return retryMaxDelay
	}
	return delay
}

func (p *Processor) deliver(ctx context.Context, rec outbox.Record) error {
	var msg Message
	if err := json.Unmarshal(rec.Payload, &msg); err != nil {
		return fmt.Errorf("%w: invalid payload: %v", ErrPermanent, err)
	}
	if err := msg.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	// Email is the only retried channel.
	if rec.Attempts == 0 {
		p.sendInApp(ctx, msg)
	}
	if msg.Recipient.Email == "" {
		return nil
	}

	boardURL := p.appURL + boardPath
	switch msg.Kind {
	case KindDealOutcome:
		return p.sender.SendDealOutcomeEmail(ctx, msg.Recipient.Email, email.DealOutcomeEmail{
			DealTitle:       msg.DealTitle,
			Won:             msg.Outcome == OutcomeWon,
			LeadName:        msg.LeadName,
			SalespersonName: msg.SalespersonName,
			ValueCents:      msg.DealValueCents,
			LossReason:      msg.LossReason,
			BoardURL:        boardURL,
		})
	case KindLeadAssigned:
		return p.sender.SendLeadAssignedEmail(ctx, msg.Recipient.Email, email.LeadAssignedEmail{
			LeadName:       msg.LeadName,
			DealTitle:      msg.DealTitle,
			AssignedByName: msg.AssignedByName,
			BoardURL:       boardURL,
		})
	}
	return nil
}

func (p *Processor) sendInApp(ctx context.Context, msg Message) {
	if p.inApp == nil {
		return
	}
	title, content, category := inAppText(msg)
	dealID := msg.DealID
	_, err := p.inApp.Send(ctx, inapp.SendParams{
		TenantID:     msg.TenantID,
		UserID:       msg.Recipient.UserID,
		Title:        title,
		Content:      content,
		ResourceID:   &dealID,
		ResourceType: resourceTypeDeal,
		Category:     category,
	})
	if err != nil {
		p.log.WithContext(ctx).Warn("in-app notification dropped",
			slog.String("recipient_id", msg.Recipient.UserID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func inAppText(msg Message) (title, content, category string) {
	if msg.Kind == KindLeadAssigned {
		content = fmt.Sprintf("%s atribuiu o lead %s (%s) a você.", fallback(msg.AssignedByName, "Alguém"), msg.LeadName, msg.DealTitle)
		return "Novo lead atribuído", content, "info"
	}
	if msg.Outcome == OutcomeWon {
		content = fmt.Sprintf("%s ganhou %s (%s).", fallback(msg.SalespersonName, "A equipe"), msg.DealTitle, email.FormatBRL(msg.DealValueCents))
		return "Negócio ganho", content, "success"
	}
	content = fmt.Sprintf("%s perdeu %s.", fallback(msg.SalespersonName, "A equipe"), msg.DealTitle)
	if msg.LossReason != "" {
		content += " Motivo: " + msg.LossReason
	}
	return "Negócio perdido", content, "warning"
}

func fallback(value, alt string) string {
	if strings.TrimSpace(value) == "" {
		return alt
	}
	return value
}
