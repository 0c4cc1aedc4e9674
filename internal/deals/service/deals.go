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

// DealDetail is the deal page: the deal with its lead, owner, stage and notes.
type DealDetail struct {
	Deal  repository.Deal
	Lead  repository.Lead
	Owner repository.User
	Stage repository.Stage
	Notes []repository.DealNote
}

// BoardColumn is one stage with its deals in sort order.
type BoardColumn struct {
	Stage repository.Stage
	Cards []repository.BoardCard
}

func (s *Service) GetDeal(ctx context.Context, tenantID, dealID uuid.UUID) (repository.Deal, error) {
	deal, err := s.store.GetDeal(ctx, tenantID, dealID)
	if err != nil {
		return repository.Deal{}, notFound(err, msgDealNotFound)
	}
	return deal, nil
}

// GetLead returns a lead of the tenant. Used by other modules through adapters.
func (s *Service) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error) {
	lead, err := s.store.GetLead(ctx, tenantID, leadID)
	if err != nil {
		return repository.Lead{}, notFound(err, msgLeadNotFound)
	}
	return lead, nil
}

func (s *Service) GetDealDetail(ctx context.Context, tenantID, dealID uuid.UUID) (DealDetail, error) {
	deal, err := s.GetDeal(ctx, tenantID, dealID)
	if err != nil {
		return DealDetail{}, err
	}
	lead, err := s.store.GetLead(ctx, tenantID, deal.LeadID)
	if err != nil {
		return DealDetail{}, notFound(err, msgLeadNotFound)
	}
	stage, err := s.store.GetStage(ctx, deal.StageID)
	if err != nil {
		return DealDetail{}, notFound(err, msgStageNotFound)
	}
	notes, err := s.store.ListNotes(ctx, tenantID, deal.ID)
	if err != nil {
		return DealDetail{}, err
	}

	detail := DealDetail{Deal: deal, Lead: lead, Stage: stage, Notes: notes}
	if owner, err := s.store.GetActiveUser(ctx, tenantID, deal.OwnerUserID); err == nil {
		detail.Owner = owner
	}
	return detail, nil
}

// UpdateDeal edits title and value.
func (s *Service) UpdateDeal(ctx context.Context, tenantID, dealID uuid.UUID, in DealInput) (repository.Deal, error) {
	valid, err := validateDealInput(in)
	if err != nil {
		return repository.Deal{}, err
	}
	if err := s.store.UpdateDealDetails(ctx, tenantID, dealID, valid.title, valid.valueCents); err != nil {
		return repository.Deal{}, notFound(err, msgDealNotFound)
	}

	s.publishChanged(ctx, tenantID, "updated")
	return s.GetDeal(ctx, tenantID, dealID)
}

// Board returns every stage with its deals. When ownerID is set only that
// user's deals are included.
func (s *Service) Board(ctx context.Context, tenantID uuid.UUID, ownerID *uuid.UUID) ([]BoardColumn, error) {
	stages, err := s.store.ListStages(ctx)
	if err != nil {
		return nil, err
	}

	load := func(ctx context.Context) ([]repository.BoardCard, error) {
		return s.store.ListBoard(ctx, tenantID)
	}
	var cards []repository.BoardCard
	if s.board != nil {
		cards, err = s.board.Get(ctx, tenantID, load)
	} else {
		cards, err = load(ctx)
	}
	if err != nil {
		return nil, err
	}

	columns := make([]BoardColumn, len(stages))
	index := make(map[uuid.UUID]int, len(stages))
	for i, stage := range stages {
		columns[i] = BoardColumn{Stage: stage, Cards: make([]repository.BoardCard, 0)}
		index[stage.ID] = i
	}
	for _, card := range cards {
		if ownerID != nil && card.OwnerUserID != *ownerID {
			continue
		}
		if i, ok := index[card.StageID]; ok {
			columns[i].Cards = append(columns[i].Cards, card)
		}
	}
	return columns, nil
}

// ListSalespersons returns the active salespersons a deal can be given to.
func (s *Service) ListSalespersons(ctx context.Context, tenantID uuid.UUID) ([]repository.User, error) {
	return s.store.ListActiveUsersByRole(ctx, tenantID, repository.RoleSalesperson)
}

// AddNote appends a note to the deal.
func (s *Service) AddNote(ctx context.Context, tenantID, dealID, authorID uuid.UUID, body string) (repository.DealNote, error) {
	trimmed := strings.TrimSpace(body)
	if utf8.RuneCountInString(trimmed) < 2 {
		return repository.DealNote{}, domain.ErrNoteTooShort
	}
	if _, err := s.GetDeal(ctx, tenantID, dealID); err != nil {
		return repository.DealNote{}, err
	}

	note, err := s.store.CreateNote(ctx, repository.CreateNoteParams{
		TenantID:     tenantID,
		DealID:       dealID,
		AuthorUserID: authorID,
		Body:         trimmed,
	})
	if err != nil {
		return repository.DealNote{}, notFound(err, msgUserNotFound)
	}
	return note, nil
}

// ListNotes returns the deal's notes newest first.
func (s *Service) ListNotes(ctx context.Context, tenantID, dealID uuid.UUID) ([]repository.DealNote, error) {
	if _, err := s.GetDeal(ctx, tenantID, dealID); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, tenantID, dealID)
}

// FindLeadByPhone matches a phone number in any format against the canonical
// digits stored on the tenant's leads.
func (s *Service) FindLeadByPhone(ctx context.Context, tenantID uuid.UUID, rawPhone string) (repository.Lead, error) {
	digits := s.phones.CanonicalDigits(rawPhone)
	if digits == "" {
		return repository.Lead{}, apperr.NotFound(msgLeadNotFound)
	}
	lead, err := s.store.FindLeadByPhoneDigits(ctx, tenantID, digits)
	if err != nil {
		return repository.Lead{}, notFound(err, msgLeadNotFound)
	}
	return lead, nil
}

// FindLeadByEmail looks up an existing lead of the tenant before a new deal
// is opened for it. Matching ignores case and surrounding spaces.
func (s *Service) FindLeadByEmail(ctx context.Context, tenantID uuid.UUID, email string) (repository.Lead, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return repository.Lead{}, apperr.Validation("email is required")
	}
	lead, err := s.store.FindLeadByEmail(ctx, tenantID, email)
	if err != nil {
		return repository.Lead{}, notFound(err, msgLeadNotFound)
	}
	return lead, nil
}
