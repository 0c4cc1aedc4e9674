package handler

import (
	"workshop_crm_backend/internal/deals/domain"
	"workshop_crm_backend/internal/deals/repository"
	"workshop_crm_backend/internal/deals/service"
	"workshop_crm_backend/internal/deals/transport"

	"github.com/google/uuid"
)

func toStage(s repository.Stage) transport.StageResponse {
	return transport.StageResponse{
		ID:                 s.ID,
		Name:               s.Name,
		SortOrder:          s.SortOrder,
		IsTerminal:         s.IsTerminal,
		RequiresLossReason: domain.RequiresLossReason(s.Name),
	}
}

func toLead(l repository.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:          l.ID,
		OwnerUserID: l.OwnerUserID,
		Name:        l.Name,
		Email:       l.Email,
		Phone:       l.Phone,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

func toDeal(d repository.Deal) transport.DealResponse {
	return transport.DealResponse{
		ID:          d.ID,
		LeadID:      d.LeadID,
		OwnerUserID: d.OwnerUserID,
		StageID:     d.StageID,
		Title:       d.Title,
		Value:       domain.FormatDecimal(d.ValueCents),
		ValueCents:  d.ValueCents,
		SortOrder:   d.SortOrder,
		LossReason:  d.LossReason,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func toDashboard(d repository.DashboardSummary) transport.DashboardResponse {
	return transport.DashboardResponse{
		TotalLeads:         d.TotalLeads,
		ActiveDeals:        d.ActiveDeals,
		WonDealsValue:      domain.FormatDecimal(d.WonDealsValue),
		WonDealsValueCents: d.WonDealsValue,
		WonDealsCount:      d.WonDealsCount,
		LostDealsCount:     d.LostDealsCount,
	}
}

func toUser(u repository.User) transport.UserResponse {
	return transport.UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func toNotes(notes []repository.DealNote) []transport.NoteResponse {
	out := make([]transport.NoteResponse, len(notes))
	for i, n := range notes {
		out[i] = transport.NoteResponse{
			ID:           n.ID,
			AuthorUserID: n.AuthorUserID,
			AuthorName:   n.AuthorName,
			Body:         n.Body,
			CreatedAt:    n.CreatedAt,
		}
	}
	return out
}

func toBoard(columns []service.BoardColumn) []transport.BoardColumnResponse {
	out := make([]transport.BoardColumnResponse, len(columns))
	for i, col := range columns {
		cards := make([]transport.BoardCardResponse, len(col.Cards))
		var total int64
		for j, c := range col.Cards {
			total += c.ValueCents
			cards[j] = transport.BoardCardResponse{
				DealID:     c.DealID,
				Title:      c.Title,
				Value:      domain.FormatDecimal(c.ValueCents),
				ValueCents: c.ValueCents,
				SortOrder:  c.SortOrder,
				LeadID:     c.LeadID,
				LeadName:   c.LeadName,
				OwnerID:    c.OwnerUserID,
				OwnerName:  c.OwnerName,
			}
		}
		out[i] = transport.BoardColumnResponse{Stage: toStage(col.Stage), Cards: cards, TotalValueCents: total}
	}
	return out
}

func toDetail(d service.DealDetail) transport.DealDetailResponse {
	resp := transport.DealDetailResponse{
		Deal:  toDeal(d.Deal),
		Lead:  toLead(d.Lead),
		Stage: toStage(d.Stage),
		Notes: toNotes(d.Notes),
	}
	if d.Owner.ID != uuid.Nil {
		owner := toUser(d.Owner)
		resp.Owner = &owner
	}
	return resp
}
