package domain

import "workshop_crm_backend/platform/apperr"

var (
	ErrLossReasonRequired = apperr.Validation("loss reason must have at least 2 characters")
	ErrNegativePosition   = apperr.Validation("target position must not be negative")
	ErrInvalidValue       = apperr.Validation("value must be a number greater than zero")
	ErrTitleTooShort      = apperr.Validation("title must have at least 2 characters")
	ErrNoteTooShort       = apperr.Validation("note must have at least 2 characters")
)
