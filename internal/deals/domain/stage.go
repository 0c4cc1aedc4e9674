package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	StageNewLead     = "New Lead"
	StageContacted   = "Contacted"
	StageProposal    = "Proposal"
	StageNegotiation = "Negotiation"
	StageWon         = "Won"
	StageLost        = "Lost"

	// InitialStage is where every new deal starts.
	InitialStage = StageNewLead

	// MinLossReasonLength is the minimum trimmed length of a loss reason.
	MinLossReasonLength = 2
)

// RequiresLossReason reports whether entering the named stage needs a reason.
func RequiresLossReason(stageName string) bool {
	return stageName == StageLost
}

// NormalizeLossReason trims the reason and enforces the minimum length.
func NormalizeLossReason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if utf8.RuneCountInString(trimmed) < MinLossReasonLength {
		return "", ErrLossReasonRequired
	}
	return trimmed, nil
}
