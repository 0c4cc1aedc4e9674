// Package authz decides which CRM actions a user may perform.
package authz

import (
	"workshop_crm_backend/platform/apperr"
	"workshop_crm_backend/platform/httpkit"

	"github.com/google/uuid"
)

// Roles carried in the access token.
const (
	RoleBusinessOwner = "business_owner"
	RoleSalesperson   = "salesperson"
)

type Action string

const (
	ViewDeal        Action = "deal.view"
	UpdateDeal      Action = "deal.update"
	AddNote         Action = "deal.note"
	CreateLead      Action = "lead.create"
	AssignLead      Action = "lead.assign"
	ReassignDeal    Action = "deal.reassign"
	ViewFullBoard   Action = "board.view_all"
	MessageLead     Action = "conversation.message"
	ManageWhatsApp  Action = "whatsapp.manage"
	ViewSalespeople Action = "users.salespersons"
)

// Actor is the authenticated user performing an action.
type Actor struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Roles    []string
}

// ActorFrom builds an Actor from the request identity.
func ActorFrom(id httpkit.Identity) Actor {
	return Actor{UserID: id.UserID(), TenantID: id.TenantID(), Roles: id.Roles()}
}

func (a Actor) IsBusinessOwner() bool {
	for _, r := range a.Roles {
		if r == RoleBusinessOwner {
			return true
		}
	}
	return false
}

// Resource describes the object acted on. A zero OwnerUserID means the
// action is not tied to a specific record.
type Resource struct {
	OwnerUserID uuid.UUID
}

// Owned returns a resource owned by userID.
func Owned(userID uuid.UUID) Resource {
	return Resource{OwnerUserID: userID}
}

// Policy holds the role rules. Business owners may do everything in their
// tenant; salespersons work on the deals they own.
type Policy struct{}

func NewPolicy() Policy { return Policy{} }

// Allow reports whether actor may perform action on res.
func (Policy) Allow(actor Actor, action Action, res Resource) bool {
	if actor.IsBusinessOwner() {
		return true
	}

	switch action {
	case ViewDeal, UpdateDeal, AddNote, MessageLead:
		return res.OwnerUserID != uuid.Nil && res.OwnerUserID == actor.UserID
	case CreateLead, ViewSalespeople:
		return true
	default:
		return false
	}
}

// Authorize is Allow returning a Forbidden error on denial.
func (p Policy) Authorize(actor Actor, action Action, res Resource) error {
	if p.Allow(actor, action, res) {
		return nil
	}
	return apperr.Forbidden("you are not allowed to perform this action")
}
