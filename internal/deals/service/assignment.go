package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"workshop_crm_backend/internal/deals/domain"
	"workshop_crm_backend/internal/deals/repository"
	"workshop_crm_backend/platform/apperr"

	"github.com/google/uuid"
)

// LeadInput carries the fields of a new lead.
type LeadInput struct {
	Name  string
	Email string
	Phone string
}

// DealInput carries the fields of a new deal. Value is a decimal string.
type DealInput struct {
	Title string
	Value string
}

type validDeal struct {
	title      string
	valueCents int64
}

func validateDealInput(in DealInput) (validDeal, error) {
	title := strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(title) < 2 {
		return validDeal{}, domain.ErrTitleTooShort
	}
	cents, err := domain.ParseValue(in.Value)
	if err != nil {
		return validDeal{}, err
	}
	return validDeal{title: title, valueCents: cents}, nil
}

// CreateLeadWithDeal creates the lead and its first deal in one transaction.
// The deal enters the initial stage at position 0 and siblings shift down.
func (s *Service) CreateLeadWithDeal(ctx context.Context, tenantID, ownerID uuid.UUID, lead LeadInput, deal DealInput) (repository.Lead, repository.Deal, error) {
	name := strings.TrimSpace(lead.Name)
	if name == "" {
		return repository.Lead{}, repository.Deal{}, apperr.Validation("lead name is required")
	}
	valid, err := validateDealInput(deal)
	if err != nil {
		return repository.Lead{}, repository.Deal{}, err
	}

	params := repository.CreateLeadParams{
		TenantID:    tenantID,
		OwnerUserID: ownerID,
		Name:        name,
		Email:       optional(strings.ToLower(strings.TrimSpace(lead.Email))),
		Phone:       optional(s.phones.NormalizeE164(lead.Phone)),
	}
	if params.Phone != nil {
		params.PhoneDigits = optional(s.phones.CanonicalDigits(*params.Phone))
	}

	var (
		createdLead repository.Lead
		createdDeal repository.Deal
	)
	err = s.store.WithinTx(ctx, func(q repository.Store) error {
		if _, err := q.GetActiveUser(ctx, tenantID, ownerID); err != nil {
			return notFound(err, msgUserNotFound)
		}

		var err error
		createdLead, err = q.CreateLead(ctx, params)
		if err != nil {
			return notFound(err, msgUserNotFound)
		}

		createdDeal, err = insertInitialDeal(ctx, q, tenantID, createdLead.ID, ownerID, valid)
		return err
	})
	if err != nil {
		return repository.Lead{}, repository.Deal{}, err
	}

	s.publishChanged(ctx, tenantID, "created")
	return createdLead, createdDeal, nil
}

// CreateDealForExistingLead adds a new deal to a lead of the same tenant.
func (s *Service) CreateDealForExistingLead(ctx context.Context, tenantID, leadID, ownerID uuid.UUID, deal DealInput) (repository.Deal, error) {
	valid, err := validateDealInput(deal)
	if err != nil {
		return repository.Deal{}, err
	}

	var created repository.Deal
	err = s.store.WithinTx(ctx, func(q repository.Store) error {
		if _, err := q.GetLead(ctx, tenantID, leadID); err != nil {
			return notFound(err, msgLeadNotFound)
		}
		if _, err := q.GetActiveUser(ctx, tenantID, ownerID); err != nil {
			return notFound(err, msgUserNotFound)
		}

		var err error
		created, err = insertInitialDeal(ctx, q, tenantID, leadID, ownerID, valid)
		return err
	})
	if err != nil {
		return repository.Deal{}, err
	}

	s.publishChanged(ctx, tenantID, "created")
	return created, nil
}

// insertInitialDeal puts a deal at the head of the initial stage column and
// shifts the existing deals of that column down by one.
func insertInitialDeal(ctx context.Context, q repository.Store, tenantID, leadID, ownerID uuid.UUID, valid validDeal) (repository.Deal, error) {
	stage, err := q.GetStageByName(ctx, domain.InitialStage)
	if err != nil {
		return repository.Deal{}, notFound(err, msgStageNotFound)
	}
	if err := q.LockStages(ctx, tenantID, stage.ID); err != nil {
		return repository.Deal{}, err
	}

	existing, err := q.ListStageDealIDs(ctx, tenantID, stage.ID)
	if err != nil {
		return repository.Deal{}, err
	}

	deal, err := q.CreateDeal(ctx, repository.CreateDealParams{
		TenantID:    tenantID,
		LeadID:      leadID,
		OwnerUserID: ownerID,
		StageID:     stage.ID,
		Title:       valid.title,
		ValueCents:  valid.valueCents,
		SortOrder:   0,
	})
	if err != nil {
		return repository.Deal{}, notFound(err, msgLeadNotFound)
	}

	order, _ := domain.Insert(existing, deal.ID, 0)
	if err := q.ApplyStageOrder(ctx, tenantID, stage.ID, order); err != nil {
		return repository.Deal{}, err
	}
	return deal, nil
}

// AssignLeadTo moves the lead and every one of its deals to newOwner. Unless
// the actor assigns to themself, newOwner gets one notification per deal.
func (s *Service) AssignLeadTo(ctx context.Context, tenantID, leadID, newOwnerID, actorID uuid.UUID) (repository.Lead, error) {
	var (
		lead     repository.Lead
		newOwner repository.User
		dealIDs  []uuid.UUID
	)
	err := s.store.WithinTx(ctx, func(q repository.Store) error {
		var err error
		newOwner, err = q.GetActiveUser(ctx, tenantID, newOwnerID)
		if err != nil {
			return notFound(err, msgUserNotFound)
		}
		if err := q.UpdateLeadOwner(ctx, tenantID, leadID, newOwnerID); err != nil {
			return notFound(err, msgLeadNotFound)
		}
		dealIDs, err = q.UpdateDealOwnersByLead(ctx, tenantID, leadID, newOwnerID)
		if err != nil {
			return err
		}
		lead, err = q.GetLead(ctx, tenantID, leadID)
		return notFound(err, msgLeadNotFound)
	})
	if err != nil {
		return repository.Lead{}, err
	}

	s.publishChanged(ctx, tenantID, "lead_assigned")

	if newOwnerID == actorID {
		return lead, nil
	}
	assignedBy := s.userName(ctx, tenantID, actorID)
	for _, dealID := range dealIDs {
		deal, err := s.store.GetDeal(ctx, tenantID, dealID)
		if err != nil {
			s.log.WithContext(ctx).DatabaseError("deals.assign_lead.load_deal", err)
			continue
		}
		payload := s.payloadFor(ctx, deal)
		payload.AssignedByName = assignedBy
		s.notify(ctx, newOwner, KindLeadAssigned, payload)
	}
	return lead, nil
}

// ReassignDeal changes only the deal owner; the lead keeps its owner.
func (s *Service) ReassignDeal(ctx context.Context, tenantID, dealID, newOwnerID, actorID uuid.UUID) (repository.Deal, error) {
	newOwner, err := s.store.GetActiveUser(ctx, tenantID, newOwnerID)
	if err != nil {
		return repository.Deal{}, notFound(err, msgUserNotFound)
	}
	if err := s.store.UpdateDealOwner(ctx, tenantID, dealID, newOwnerID); err != nil {
		return repository.Deal{}, notFound(err, msgDealNotFound)
	}
	deal, err := s.store.GetDeal(ctx, tenantID, dealID)
	if err != nil {
		return repository.Deal{}, notFound(err, msgDealNotFound)
	}

	s.publishChanged(ctx, tenantID, "deal_reassigned")

	if newOwnerID != actorID {
		payload := s.payloadFor(ctx, deal)
		payload.AssignedByName = s.userName(ctx, tenantID, actorID)
		s.notify(ctx, newOwner, KindLeadAssigned, payload)
	}
	return deal, nil
}

func (s *Service) userName(ctx context.Context, tenantID, userID uuid.UUID) string {
	user, err := s.store.GetActiveUser(ctx, tenantID, userID)
	if err != nil {
		return ""
	}
	return user.Name
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
