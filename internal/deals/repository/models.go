package repository

import (
	"time"

	"github.com/google/uuid"
)

// User roles stored in users.role.
const (
	RoleBusinessOwner = "business_owner"
	RoleSalesperson   = "salesperson"
)

type Stage struct {
	ID         uuid.UUID
	Name       string
	SortOrder  int
	IsTerminal bool
}

type User struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Name     string
	Email    string
	Role     string
	IsActive bool
}

type Lead struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	OwnerUserID uuid.UUID
	Name        string
	Email       *string
	Phone       *string
	PhoneDigits *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Deal struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	LeadID      uuid.UUID
	OwnerUserID uuid.UUID
	StageID     uuid.UUID
	Title       string
	ValueCents  int64
	SortOrder   int
	LossReason  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type DealNote struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	DealID       uuid.UUID
	AuthorUserID uuid.UUID
	AuthorName   string
	Body         string
	CreatedAt    time.Time
}

// BoardCard is one deal row on the pipeline board with display fields joined in.
type BoardCard struct {
	DealID      uuid.UUID `json:"dealId"`
	StageID     uuid.UUID `json:"stageId"`
	SortOrder   int       `json:"sortOrder"`
	Title       string    `json:"title"`
	ValueCents  int64     `json:"valueCents"`
	LeadID      uuid.UUID `json:"leadId"`
	LeadName    string    `json:"leadName"`
	OwnerUserID uuid.UUID `json:"ownerUserId"`
	OwnerName   string    `json:"ownerName"`
}

type CreateLeadParams struct {
	TenantID    uuid.UUID
	OwnerUserID uuid.UUID
	Name        string
	Email       *string
	Phone       *string
	PhoneDigits *string
}

type CreateDealParams struct {
	TenantID    uuid.UUID
	LeadID      uuid.UUID
	OwnerUserID uuid.UUID
	StageID     uuid.UUID
	Title       string
	ValueCents  int64
	SortOrder   int
}

type CreateNoteParams struct {
	TenantID     uuid.UUID
	DealID       uuid.UUID
	AuthorUserID uuid.UUID
	Body         string
}
