package repository

import (
	"context"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces
// =====================================

// StageReader reads the fixed pipeline stage set.
type StageReader interface {
	ListStages(ctx context.Context) ([]Stage, error)
	GetStage(ctx context.Context, id uuid.UUID) (Stage, error)
	GetStageByName(ctx context.Context, name string) (Stage, error)
}

// UserReader reads tenant users.
type UserReader interface {
	GetActiveUser(ctx context.Context, tenantID, userID uuid.UUID) (User, error)
	ListActiveUsersByRole(ctx context.Context, tenantID uuid.UUID, role string) ([]User, error)
}

// LeadStore reads and writes leads.
type LeadStore interface {
	GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (Lead, error)
	CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error)
	UpdateLeadOwner(ctx context.Context, tenantID, leadID, ownerID uuid.UUID) error
	FindLeadByPhoneDigits(ctx context.Context, tenantID uuid.UUID, digits string) (Lead, error)
	FindLeadByEmail(ctx context.Context, tenantID uuid.UUID, email string) (Lead, error)
}

// DealReader reads deals.
type DealReader interface {
	GetDeal(ctx context.Context, tenantID, dealID uuid.UUID) (Deal, error)
	ListDealsByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]Deal, error)
	ListBoard(ctx context.Context, tenantID uuid.UUID) ([]BoardCard, error)
}

// DealWriter writes deals. Sort-order writes must run under LockStages.
type DealWriter interface {
	CreateDeal(ctx context.Context, params CreateDealParams) (Deal, error)
	UpdateDealDetails(ctx context.Context, tenantID, dealID uuid.UUID, title string, valueCents int64) error
	UpdateDealOwner(ctx context.Context, tenantID, dealID, ownerID uuid.UUID) error
	UpdateDealOwnersByLead(ctx context.Context, tenantID, leadID, ownerID uuid.UUID) ([]uuid.UUID, error)
	SetDealStage(ctx context.Context, tenantID, dealID, stageID uuid.UUID, lossReason *string) error
}

// StageOrdering serializes and rewrites the sort order of stage columns.
type StageOrdering interface {
	LockStages(ctx context.Context, tenantID uuid.UUID, stageIDs ...uuid.UUID) error
	ListStageDealIDs(ctx context.Context, tenantID, stageID uuid.UUID) ([]uuid.UUID, error)
	ApplyStageOrder(ctx context.Context, tenantID, stageID uuid.UUID, ordered []uuid.UUID) error
}

// DashboardReader aggregates the tenant's sales figures.
type DashboardReader interface {
	DashboardSummary(ctx context.Context, tenantID uuid.UUID, wonStage, lostStage string) (DashboardSummary, error)
}

// NoteStore manages deal notes.
type NoteStore interface {
	CreateNote(ctx context.Context, params CreateNoteParams) (DealNote, error)
	ListNotes(ctx context.Context, tenantID, dealID uuid.UUID) ([]DealNote, error)
}

// Store is the full set of operations usable inside or outside a transaction.
type Store interface {
	StageReader
	UserReader
	LeadStore
	DealReader
	DealWriter
	StageOrdering
	NoteStore
	DashboardReader
}

// TxStore can run a function inside one database transaction.
type TxStore interface {
	Store
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

var (
	_ TxStore = (*Repository)(nil)
	_ Store   = (*Queries)(nil)
)
