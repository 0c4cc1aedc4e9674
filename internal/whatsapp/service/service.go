// Package service keeps each tenant's WhatsApp connection in sync with the
// provider and ingests the conversation history of its leads.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"workshop_crm_backend/internal/whatsapp/gateway"
	"workshop_crm_backend/internal/whatsapp/repository"
	"workshop_crm_backend/platform/apperr"
	"workshop_crm_backend/platform/logger"
	"workshop_crm_backend/platform/phone"

	"github.com/google/uuid"
)

// Gateway is the outbound provider API.
type Gateway interface {
	CreateInstance(ctx context.Context, instanceName string) (gateway.Instance, error)
	GetQRCode(ctx context.Context, instanceName string) (gateway.QRCode, error)
	GetConnectionState(ctx context.Context, instanceName string) (string, error)
	Disconnect(ctx context.Context, instanceName string) error
	FetchMessages(ctx context.Context, instanceName, phoneNumber string) ([]json.RawMessage, error)
	SendText(ctx context.Context, instanceName, phoneNumber, text string) (gateway.SendResult, error)
}

// Lead is the part of a CRM lead the messaging flows need.
type Lead struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	OwnerUserID uuid.UUID
	Name        string
	PhoneDigits string
}

// DealLead is a deal resolved to its lead, with the deal owner for
// authorization.
type DealLead struct {
	DealID      uuid.UUID
	OwnerUserID uuid.UUID
	Lead        Lead
}

// LeadDirectory looks leads up in the CRM. Misses are apperr NotFound.
type LeadDirectory interface {
	FindLeadByPhone(ctx context.Context, tenantID uuid.UUID, phoneNumber string) (Lead, error)
	DealLead(ctx context.Context, tenantID, dealID uuid.UUID) (DealLead, error)
}

const (
	msgNotConfigured = "whatsapp is not configured"
	msgNoConnection  = "whatsapp connection not found"
	msgNotConnected  = "whatsapp is not connected"
)

type Service struct {
	store  repository.Store
	gw     Gateway
	leads  LeadDirectory
	phones *phone.Normalizer
	log    *logger.Logger
	now    func() time.Time
}

// New creates the service. gw may be nil when the provider is not configured;
// webhook ingestion and the conversation view keep working without it.
func New(store repository.Store, gw Gateway, leads LeadDirectory, phones *phone.Normalizer, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		gw:     gw,
		leads:  leads,
		phones: phones,
		log:    log,
		now:    time.Now,
	}
}

// InstanceName is the provider instance owned by a tenant.
func InstanceName(tenantID uuid.UUID) string {
	return "tenant-" + tenantID.String()
}

func (s *Service) gateway() (Gateway, error) {
	if s.gw == nil {
		return nil, apperr.Validation(msgNotConfigured)
	}
	return s.gw, nil
}

func (s *Service) ResolveDeal(ctx context.Context, tenantID, dealID uuid.UUID) (DealLead, error) {
	return s.leads.DealLead(ctx, tenantID, dealID)
}

func connectionNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(msgNoConnection)
	}
	return err
}
