package service

import (
	"context"
	"encoding/json"
	"errors"

	"workshop_crm_backend/internal/whatsapp/repository"
	"workshop_crm_backend/platform/apperr"
	"workshop_crm_backend/platform/metrics"
	"workshop_crm_backend/platform/phone"
)

// Webhook outcomes, recorded in logs and metrics.
const (
	OutcomeMalformed       = "malformed"
	OutcomeIgnored         = "ignored"
	OutcomeUnknownInstance = "unknown_instance"
	OutcomeStatusUpdated   = "status_updated"
	OutcomeStored          = "stored"
	OutcomeDeduplicated    = "deduplicated"
	OutcomeMissingKey      = "dropped_missing_key"
	OutcomeGroup           = "dropped_group"
	OutcomeInvalidJID      = "dropped_invalid_jid"
	OutcomeUnknownLead     = "dropped_unknown_lead"
	OutcomeNoText          = "dropped_no_text"
	OutcomeForeignID       = "dropped_foreign_id"
	OutcomeFailed          = "failed"
)

// HandleWebhook processes one provider callback and returns the outcome of
// its last message. It never fails: the provider must always see success so
// it does not retry.
func (s *Service) HandleWebhook(ctx context.Context, body []byte) string {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return s.recordWebhook(ctx, "", "", OutcomeMalformed)
	}
	event := NormalizeEventName(env.Event)
	if event != EventConnectionUpdate && event != EventMessagesUpsert {
		return s.recordWebhook(ctx, event, env.Instance, OutcomeIgnored)
	}
	if env.Instance == "" {
		return s.recordWebhook(ctx, event, "", OutcomeUnknownInstance)
	}

	conn, err := s.store.GetConnectionByInstanceName(ctx, env.Instance)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.WithContext(ctx).DatabaseError("whatsapp.connection_by_instance", err)
			return s.recordWebhook(ctx, event, env.Instance, OutcomeFailed)
		}
		return s.recordWebhook(ctx, event, env.Instance, OutcomeUnknownInstance)
	}

	if event == EventConnectionUpdate {
		return s.recordWebhook(ctx, event, env.Instance, s.applyConnectionUpdate(ctx, conn, env.Data))
	}

	msgs, err := decodeMessages(env.Data)
	if err != nil {
		return s.recordWebhook(ctx, event, env.Instance, OutcomeMalformed)
	}
	if len(msgs) == 0 {
		return s.recordWebhook(ctx, event, env.Instance, OutcomeMissingKey)
	}
	outcome := OutcomeIgnored
	for _, msg := range msgs {
		outcome = s.ingest(ctx, conn, msg, nil)
		s.recordWebhook(ctx, event, env.Instance, outcome)
	}
	return outcome
}

func (s *Service) applyConnectionUpdate(ctx context.Context, conn repository.Connection, data json.RawMessage) string {
	var update connectionUpdate
	if len(data) > 0 {
		if err := json.Unmarshal(data, &update); err != nil {
			return OutcomeMalformed
		}
	}

	status := statusFromState(update.State)
	var phoneNumber *string
	if status == repository.StatusConnected {
		if digits, ok := phone.PhoneFromJID(update.WUID); ok {
			phoneNumber = &digits
		}
	}
	if _, err := s.store.SetConnectionStatus(ctx, conn.TenantID, status, phoneNumber); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return OutcomeUnknownInstance
		}
		s.log.WithContext(ctx).DatabaseError("whatsapp.set_status", err)
		return OutcomeFailed
	}
	return OutcomeStatusUpdated
}

// ingest runs one provider message through the storage pipeline. When lead is
// set the message must belong to that lead's phone.
func (s *Service) ingest(ctx context.Context, conn repository.Connection, msg providerMessage, lead *Lead) string {
	if msg.Key.RemoteJID == "" || msg.Key.ID == "" {
		return OutcomeMissingKey
	}
	if phone.IsGroupJID(msg.Key.RemoteJID) {
		return OutcomeGroup
	}
	bare, ok := phone.PhoneFromJID(msg.Key.RemoteJID)
	if !ok {
		return OutcomeInvalidJID
	}

	target, outcome := s.matchLead(ctx, conn, bare, lead)
	if outcome != "" {
		return outcome
	}

	body, ok := msg.text()
	if !ok {
		return OutcomeNoText
	}
	ts := int64(msg.MessageTimestamp)
	if ts <= 0 {
		ts = s.now().Unix()
	}

	externalID := msg.Key.ID
	_, inserted, err := s.store.UpsertMessage(ctx, repository.UpsertMessageParams{
		TenantID:          conn.TenantID,
		ConnectionID:      conn.ID,
		LeadID:            target.ID,
		RemoteJID:         msg.Key.RemoteJID,
		ExternalMessageID: &externalID,
		FromMe:            msg.Key.FromMe,
		Body:              body,
		MessageTimestamp:  ts,
	})
	switch {
	case errors.Is(err, repository.ErrConflict):
		return OutcomeForeignID
	case err != nil:
		s.log.WithContext(ctx).DatabaseError("whatsapp.upsert_message", err)
		return OutcomeFailed
	case inserted:
		return OutcomeStored
	default:
		return OutcomeDeduplicated
	}
}

func (s *Service) matchLead(ctx context.Context, conn repository.Connection, bare string, lead *Lead) (Lead, string) {
	if lead != nil {
		if s.phones.CanonicalDigits(bare) != lead.PhoneDigits {
			return Lead{}, OutcomeUnknownLead
		}
		return *lead, ""
	}
	found, err := s.leads.FindLeadByPhone(ctx, conn.TenantID, bare)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			s.log.WithContext(ctx).DatabaseError("whatsapp.find_lead", err)
			return Lead{}, OutcomeFailed
		}
		return Lead{}, OutcomeUnknownLead
	}
	return found, ""
}

func (s *Service) recordWebhook(ctx context.Context, event, instance, outcome string) string {
	if event == "" {
		event = "unknown"
	}
	metrics.RecordWebhookEvent(event, outcome)
	if s.log != nil {
		s.log.WithContext(ctx).WebhookEvent(event, instance, outcome)
	}
	return outcome
}
