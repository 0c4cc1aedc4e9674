package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"workshop_crm_backend/internal/whatsapp/repository"
	"workshop_crm_backend/platform/apperr"
	"workshop_crm_backend/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const syncConcurrency = 4

// SyncResult counts what a history pull did.
type SyncResult struct {
	Fetched int
	Stored  int
	Updated int
	Dropped int
}

// connected returns the tenant connection when it is usable for messaging.
// ok is false when the tenant never connected or is disconnected.
func (s *Service) connected(ctx context.Context, tenantID uuid.UUID) (repository.Connection, bool, error) {
	conn, err := s.store.GetConnection(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Connection{}, false, nil
	}
	if err != nil {
		return repository.Connection{}, false, err
	}
	return conn, conn.IsConnected(), nil
}

// ListConversation returns the lead's messages oldest first. It is empty when
// the lead has no phone or the tenant is not connected.
func (s *Service) ListConversation(ctx context.Context, tenantID uuid.UUID, deal DealLead) ([]repository.Message, error) {
	if deal.Lead.PhoneDigits == "" {
		return []repository.Message{}, nil
	}
	_, ok, err := s.connected(ctx, tenantID)
	if err != nil || !ok {
		return []repository.Message{}, err
	}
	return s.store.ListMessagesByLead(ctx, tenantID, deal.Lead.ID)
}

// SendMessage sends text to the deal's lead and stores the outbound message
// right away. A later echo webhook with the same provider id updates this row.
func (s *Service) SendMessage(ctx context.Context, tenantID uuid.UUID, deal DealLead, text string) (repository.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return repository.Message{}, apperr.Validation("message text is required")
	}
	if deal.Lead.PhoneDigits == "" {
		return repository.Message{}, apperr.Validation("lead has no phone number")
	}
	gw, err := s.gateway()
	if err != nil {
		return repository.Message{}, err
	}
	conn, ok, err := s.connected(ctx, tenantID)
	if err != nil {
		return repository.Message{}, err
	}
	if !ok {
		return repository.Message{}, apperr.Validation(msgNotConnected)
	}

	sent, err := gw.SendText(ctx, conn.InstanceName, deal.Lead.PhoneDigits, text)
	if err != nil {
		return repository.Message{}, err
	}

	params := repository.UpsertMessageParams{
		TenantID:         tenantID,
		ConnectionID:     conn.ID,
		LeadID:           deal.Lead.ID,
		RemoteJID:        phone.JIDFromDigits(deal.Lead.PhoneDigits),
		FromMe:           true,
		Body:             text,
		MessageTimestamp: s.now().Unix(),
	}
	if sent.ID != "" {
		id := sent.ID
		params.ExternalMessageID = &id
	}
	msg, _, err := s.store.UpsertMessage(ctx, params)
	if err != nil {
		s.log.WithContext(ctx).Error("outbound message not stored",
			slog.String("tenant_id", tenantID.String()),
			slog.String("lead_id", deal.Lead.ID.String()),
			slog.String("error", err.Error()),
		)
		return repository.Message{}, err
	}
	return msg, nil
}

// SyncConversation pulls the lead's history from the provider and runs every
// item through the webhook ingestion pipeline.
func (s *Service) SyncConversation(ctx context.Context, tenantID uuid.UUID, deal DealLead) (SyncResult, error) {
	if deal.Lead.PhoneDigits == "" {
		return SyncResult{}, apperr.Validation("lead has no phone number")
	}
	gw, err := s.gateway()
	if err != nil {
		return SyncResult{}, err
	}
	conn, ok, err := s.connected(ctx, tenantID)
	if err != nil {
		return SyncResult{}, err
	}
	if !ok {
		return SyncResult{}, apperr.Validation(msgNotConnected)
	}

	raws, err := gw.FetchMessages(ctx, conn.InstanceName, deal.Lead.PhoneDigits)
	if err != nil {
		return SyncResult{}, err
	}

	var (
		mu     sync.Mutex
		result = SyncResult{Fetched: len(raws)}
	)
	lead := deal.Lead
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for _, raw := range raws {
		g.Go(func() error {
			outcome := s.ingestRaw(gctx, conn, raw, &lead)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case OutcomeStored:
				result.Stored++
			case OutcomeDeduplicated:
				result.Updated++
			default:
				result.Dropped++
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Service) ingestRaw(ctx context.Context, conn repository.Connection, raw json.RawMessage, lead *Lead) string {
	var msg providerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return OutcomeMalformed
	}
	return s.ingest(ctx, conn, msg, lead)
}
