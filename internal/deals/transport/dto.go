package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Amount accepts a JSON string ("1234,56") or a JSON number (1234.56).
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value must be a number or a decimal string")
	}
	*a = Amount(n.String())
	return nil
}

type DealFields struct {
	Title string `json:"title" validate:"required,notblank,max=200"`
	Value Amount `json:"value" validate:"required"`
}

type CreateLeadRequest struct {
	Name        string     `json:"name" validate:"required,notblank,max=200"`
	Email       string     `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone       string     `json:"phone,omitempty" validate:"omitempty,max=40"`
	OwnerUserID *uuid.UUID `json:"ownerUserId,omitempty"`
	Deal        DealFields `json:"deal" validate:"required"`
}

type CreateDealRequest struct {
	OwnerUserID *uuid.UUID `json:"ownerUserId,omitempty"`
	DealFields
}

type UpdateDealRequest struct {
	DealFields
}

type MoveDealRequest struct {
	StageID    uuid.UUID `json:"stageId" validate:"required"`
	Position   int       `json:"position"`
	LossReason string    `json:"lossReason,omitempty" validate:"max=500"`
}

type MarkLostRequest struct {
	LossReason string `json:"lossReason" validate:"required,max=500"`
}

type AssignOwnerRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
}

type CreateNoteRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

type BoardQuery struct {
	OwnerUserID string `form:"ownerId" validate:"omitempty,uuid"`
}

type LeadSearchQuery struct {
	Email string `form:"email" validate:"required,email,max=254"`
}

type StageResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	SortOrder          int       `json:"sortOrder"`
	IsTerminal         bool      `json:"isTerminal"`
	RequiresLossReason bool      `json:"requiresLossReason"`
}

type LeadResponse struct {
	ID          uuid.UUID `json:"id"`
	OwnerUserID uuid.UUID `json:"ownerUserId"`
	Name        string    `json:"name"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type DealResponse struct {
	ID          uuid.UUID `json:"id"`
	LeadID      uuid.UUID `json:"leadId"`
	OwnerUserID uuid.UUID `json:"ownerUserId"`
	StageID     uuid.UUID `json:"stageId"`
	Title       string    `json:"title"`
	Value       string    `json:"value"`
	ValueCents  int64     `json:"valueCents"`
	SortOrder   int       `json:"sortOrder"`
	LossReason  *string   `json:"lossReason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateLeadResponse struct {
	Lead LeadResponse `json:"lead"`
	Deal DealResponse `json:"deal"`
}

type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

type NoteResponse struct {
	ID           uuid.UUID `json:"id"`
	AuthorUserID uuid.UUID `json:"authorUserId"`
	AuthorName   string    `json:"authorName"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"createdAt"`
}

type BoardCardResponse struct {
	DealID     uuid.UUID `json:"dealId"`
	Title      string    `json:"title"`
	Value      string    `json:"value"`
	ValueCents int64     `json:"valueCents"`
	SortOrder  int       `json:"sortOrder"`
	LeadID     uuid.UUID `json:"leadId"`
	LeadName   string    `json:"leadName"`
	OwnerID    uuid.UUID `json:"ownerUserId"`
	OwnerName  string    `json:"ownerName"`
}

type BoardColumnResponse struct {
	Stage           StageResponse       `json:"stage"`
	Cards           []BoardCardResponse `json:"cards"`
	TotalValueCents int64               `json:"totalValueCents"`
}

type DealDetailResponse struct {
	Deal  DealResponse   `json:"deal"`
	Lead  LeadResponse   `json:"lead"`
	Owner *UserResponse  `json:"owner,omitempty"`
	Stage StageResponse  `json:"stage"`
	Notes []NoteResponse `json:"notes"`
}

type DashboardResponse struct {
	TotalLeads         int    `json:"totalLeads"`
	ActiveDeals        int    `json:"activeDeals"`
	WonDealsValue      string `json:"wonDealsValue"`
	WonDealsValueCents int64  `json:"wonDealsValueCents"`
	WonDealsCount      int    `json:"wonDealsCount"`
	LostDealsCount     int    `json:"lostDealsCount"`
}
