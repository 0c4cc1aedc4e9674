package domain

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func indexOf(order []uuid.UUID, id uuid.UUID) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestPlanMoveAcrossStagesShiftsDestinationAndCompactsSource(t *testing.T) {
	a := ids(4)
	b := ids(3)
	moved := a[1]
	pos := 1

	plan := PlanMove(a, b, moved, false, &pos)

	if !plan.StageChanged() {
		t.Fatal("expected a two-column plan")
	}
	wantSource := []uuid.UUID{a[0], a[2], a[3]}
	for i, id := range wantSource {
		if plan.Source[i] != id {
			t.Fatalf("source[%d]: expected %s, got %s", i, id, plan.Source[i])
		}
	}
	wantDest := []uuid.UUID{b[0], moved, b[1], b[2]}
	for i, id := range wantDest {
		if plan.Destination[i] != id {
			t.Fatalf("destination[%d]: expected %s, got %s", i, id, plan.Destination[i])
		}
	}
	if plan.Position != 1 {
		t.Fatalf("expected position 1, got %d", plan.Position)
	}
}

func TestPlanMoveOutOfRangeAppends(t *testing.T) {
	b := ids(2)
	moved := uuid.New()
	pos := 42

	plan := PlanMove([]uuid.UUID{moved}, b, moved, false, &pos)

	if plan.Position != 2 || plan.Destination[2] != moved {
		t.Fatalf("expected append at 2, got position %d", plan.Position)
	}
	if len(plan.Source) != 0 {
		t.Fatalf("expected empty source column, got %d", len(plan.Source))
	}
}

func TestPlanMoveNilPositionAppends(t *testing.T) {
	b := ids(3)
	moved := uuid.New()

	plan := PlanMove(nil, b, moved, false, nil)
	if plan.Position != 3 || indexOf(plan.Destination, moved) != 3 {
		t.Fatalf("expected deal at end, got %d", plan.Position)
	}
}

func TestPlanMoveSameStageKeepsColumnDense(t *testing.T) {
	col := ids(5)
	moved := col[0]
	pos := 3

	plan := PlanMove(col, col, moved, true, &pos)

	if plan.StageChanged() {
		t.Fatal("same-stage move must not produce a source column")
	}
	if len(plan.Destination) != 5 {
		t.Fatalf("expected 5 deals, got %d", len(plan.Destination))
	}
	if indexOf(plan.Destination, moved) != 3 {
		t.Fatalf("expected moved deal at 3, got %d", indexOf(plan.Destination, moved))
	}
}

func TestPlanMoveSameStageSamePositionIsStable(t *testing.T) {
	col := ids(4)
	pos := 2

	plan := PlanMove(col, col, col[2], true, &pos)
	for i := range col {
		if plan.Destination[i] != col[i] {
			t.Fatalf("expected unchanged order at %d", i)
		}
	}
}

// Random moves over a small board must keep every column a permutation of
// 0..n-1 with no deal lost or duplicated.
func TestRandomMovesPreserveDensity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const stages = 4
	board := make([][]uuid.UUID, stages)
	location := map[uuid.UUID]int{}
	for s := range board {
		board[s] = ids(3)
		for _, id := range board[s] {
			location[id] = s
		}
	}
	all := make([]uuid.UUID, 0, len(location))
	for id := range location {
		all = append(all, id)
	}

	for step := 0; step < 500; step++ {
		deal := all[rng.Intn(len(all))]
		from := location[deal]
		to := rng.Intn(stages)
		pos := rng.Intn(len(board[to]) + 3)

		plan := PlanMove(board[from], board[to], deal, from == to, &pos)
		board[to] = plan.Destination
		if plan.StageChanged() {
			board[from] = plan.Source
		}
		location[deal] = to

		seen := map[uuid.UUID]bool{}
		for s := range board {
			for _, id := range board[s] {
				if seen[id] {
					t.Fatalf("step %d: deal %s appears twice", step, id)
				}
				seen[id] = true
				if location[id] != s {
					t.Fatalf("step %d: deal %s in wrong column", step, id)
				}
			}
		}
		if len(seen) != len(all) {
			t.Fatalf("step %d: expected %d deals, found %d", step, len(all), len(seen))
		}
	}
}
