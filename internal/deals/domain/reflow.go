// Package domain holds the pure pipeline rules: stage semantics, the
// sort-order reflow planner and deal value parsing.
package domain

import "github.com/google/uuid"

// Insert places dealID at position within a stage column and returns the new
// dense order together with the position actually used. The deal is removed
// from ids first, so moving inside the same column works. Positions past the
// end append; negative positions are clamped to zero.
func Insert(ids []uuid.UUID, dealID uuid.UUID, position int) ([]uuid.UUID, int) {
	rest := Remove(ids, dealID)
	if position < 0 {
		position = 0
	}
	if position > len(rest) {
		position = len(rest)
	}

	out := make([]uuid.UUID, 0, len(rest)+1)
	out = append(out, rest[:position]...)
	out = append(out, dealID)
	out = append(out, rest[position:]...)
	return out, position
}

// Remove returns ids without dealID, keeping relative order.
func Remove(ids []uuid.UUID, dealID uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != dealID {
			out = append(out, id)
		}
	}
	return out
}

// Move is the reflow plan for one stage transition.
type Move struct {
	// Destination is the full dense order of the target stage.
	Destination []uuid.UUID
	// Source is the compacted order of the origin stage. Nil when the deal
	// stays in the same stage.
	Source []uuid.UUID
	// Position is the final sort_order of the moved deal.
	Position int
}

// StageChanged reports whether the plan touches two columns.
func (m Move) StageChanged() bool {
	return m.Source != nil
}

// PlanMove computes both column orders for moving dealID. source and
// destination are the current orders read under lock; when sameStage is true
// only destination is used. A nil position appends at the end.
func PlanMove(source, destination []uuid.UUID, dealID uuid.UUID, sameStage bool, position *int) Move {
	target := len(Remove(destination, dealID))
	if position != nil {
		target = *position
	}

	dest, pos := Insert(destination, dealID, target)
	if sameStage {
		return Move{Destination: dest, Position: pos}
	}
	return Move{
		Destination: dest,
		Source:      Remove(source, dealID),
		Position:    pos,
	}
}
