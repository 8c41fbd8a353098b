package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"familyboard/internal/board"
	"familyboard/internal/config"
	"familyboard/internal/store"
)

// MustOpenStore opens the board store for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// SeedStages inserts stages named names at positions 0..n-1 for familyID and
// returns them in position order. Stage ids are "<familyID>-s<position>".
func SeedStages(t testing.TB, st *store.Store, familyID string, names ...string) []board.Stage {
	t.Helper()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stages := make([]board.Stage, 0, len(names))
	for i, name := range names {
		stage := board.Stage{
			ID:        fmt.Sprintf("%s-s%d", familyID, i),
			FamilyID:  familyID,
			Name:      name,
			Position:  i,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := st.InsertStage(context.Background(), stage); err != nil {
			t.Fatalf("insert stage %s: %v", name, err)
		}
		stages = append(stages, stage)
	}
	return stages
}

// SeedAssignment inserts an assignment for orderID in stageID together with
// its initial history entry.
func SeedAssignment(t testing.TB, st *store.Store, familyID, orderID, stageID string, createdAt time.Time) board.Assignment {
	t.Helper()

	a := board.Assignment{
		OrderID:     orderID,
		FamilyID:    familyID,
		StageID:     stageID,
		LastUpdated: createdAt,
		Order: board.OrderSnapshot{
			ID:           orderID,
			Customer:     "Customer " + orderID,
			Total:        board.Money{AmountCents: 2500, Currency: "USD"},
			CreatedAt:    createdAt,
			SourceStatus: "open",
		},
	}
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		if err := tx.InsertAssignment(context.Background(), a); err != nil {
			return err
		}
		return tx.InsertHistory(context.Background(), &board.HistoryEntry{
			OrderID:   orderID,
			ToStageID: stageID,
			ChangedBy: board.OrderSourceActor,
			ChangedAt: createdAt,
		})
	})
	if err != nil {
		t.Fatalf("seed assignment %s: %v", orderID, err)
	}
	return a
}

// FixedClock returns a clock func that reports now and advances by step on
// every call.
func FixedClock(now time.Time, step time.Duration) func() time.Time {
	current := now
	return func() time.Time {
		out := current
		current = current.Add(step)
		return out
	}
}
