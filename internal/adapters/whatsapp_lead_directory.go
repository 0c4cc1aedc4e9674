package adapters

import (
	"context"

	dealsrepo "workshop_crm_backend/internal/deals/repository"
	whatsappsvc "workshop_crm_backend/internal/whatsapp/service"

	"github.com/google/uuid"
)

// DealReader is the narrow slice of the deals service the WhatsApp module needs.
type DealReader interface {
	FindLeadByPhone(ctx context.Context, tenantID uuid.UUID, rawPhone string) (dealsrepo.Lead, error)
	GetDeal(ctx context.Context, tenantID, dealID uuid.UUID) (dealsrepo.Deal, error)
	GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (dealsrepo.Lead, error)
}

// WhatsAppLeadDirectory implements whatsapp/service.LeadDirectory. Misses
// surface as the deals service's NotFound errors.
type WhatsAppLeadDirectory struct {
	deals DealReader
}

func NewWhatsAppLeadDirectory(deals DealReader) *WhatsAppLeadDirectory {
	return &WhatsAppLeadDirectory{deals: deals}
}

func (a *WhatsAppLeadDirectory) FindLeadByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (whatsappsvc.Lead, error) {
	lead, err := a.deals.FindLeadByPhone(ctx, tenantID, phone)
	if err != nil {
		return whatsappsvc.Lead{}, err
	}
	return toWhatsAppLead(lead), nil
}

func (a *WhatsAppLeadDirectory) DealLead(ctx context.Context, tenantID, dealID uuid.UUID) (whatsappsvc.DealLead, error) {
	deal, err := a.deals.GetDeal(ctx, tenantID, dealID)
	if err != nil {
		return whatsappsvc.DealLead{}, err
	}
	lead, err := a.deals.GetLead(ctx, tenantID, deal.LeadID)
	if err != nil {
		return whatsappsvc.DealLead{}, err
	}
	return whatsappsvc.DealLead{
		DealID:      deal.ID,
		OwnerUserID: deal.OwnerUserID,
		Lead:        toWhatsAppLead(lead),
	}, nil
}

func toWhatsAppLead(lead dealsrepo.Lead) whatsappsvc.Lead {
	out := whatsappsvc.Lead{
		ID:          lead.ID,
		TenantID:    lead.TenantID,
		OwnerUserID: lead.OwnerUserID,
		Name:        lead.Name,
	}
	if lead.PhoneDigits != nil {
		out.PhoneDigits = *lead.PhoneDigits
	}
	return out
}

var _ whatsappsvc.LeadDirectory = (*WhatsAppLeadDirectory)(nil)
