package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"familyboard/internal/board"
	"familyboard/internal/config"
	"familyboard/internal/store"
	"familyboard/internal/testsupport"
)

func openStore(t *testing.T) (*store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenStore(t, cfg), cfg
}

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	st, cfg := openStore(t)
	ctx := context.Background()

	health, err := st.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.Healthy() {
		t.Fatalf("expected healthy database, got %+v", health)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestStageRoundTripAndUniquePosition(t *testing.T) {
	st, _ := openStore(t)
	ctx := context.Background()
	stages := testsupport.SeedStages(t, st, "fam", "New", "Making")

	got, err := st.ListStages(ctx, "fam")
	if err != nil {
		t.Fatalf("ListStages: %v", err)
	}
	if len(got) != 2 || got[0].Name != "New" || got[1].Position != 1 {
		t.Fatalf("unexpected stages: %+v", got)
	}

	dup := stages[1]
	dup.ID = "fam-dup"
	if err := st.InsertStage(ctx, dup); err == nil {
		t.Fatal("expected duplicate position to be rejected")
	}

	missing, err := st.GetStage(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil stage for unknown id, got %+v err=%v", missing, err)
	}

	other, err := st.ListStages(ctx, "other")
	if err != nil || len(other) != 0 {
		t.Fatalf("expected other family to be empty, got %+v err=%v", other, err)
	}
}

func TestAssignmentSnapshotRoundTrip(t *testing.T) {
	st, _ := openStore(t)
	ctx := context.Background()
	stages := testsupport.SeedStages(t, st, "fam", "New")
	created := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	a := board.Assignment{
		OrderID:     "o-1",
		FamilyID:    "fam",
		StageID:     stages[0].ID,
		AssignedTo:  "sam",
		Priority:    board.PriorityRush,
		Notes:       "gift wrap",
		LastUpdated: created,
		Order: board.OrderSnapshot{
			ID:        "o-1",
			Customer:  "Ada",
			Total:     board.Money{AmountCents: 4200, Currency: "USD"},
			LineItems: []board.LineItem{{Title: "Mug", Variant: "Blue", Quantity: 2}},
			CreatedAt: created,
			Tags:      []string{"wholesale"},
			Metadata:  map[string]string{"channel": "etsy"},
		},
	}
	if err := st.InsertAssignment(ctx, a); err != nil {
		t.Fatalf("InsertAssignment: %v", err)
	}

	got, err := st.GetAssignment(ctx, "o-1")
	if err != nil || got == nil {
		t.Fatalf("GetAssignment: %+v err=%v", got, err)
	}
	if got.AssignedTo != "sam" || got.Priority != board.PriorityRush || got.Notes != "gift wrap" {
		t.Fatalf("unexpected workflow fields: %+v", got)
	}
	if !got.LastUpdated.Equal(created) || !got.Order.CreatedAt.Equal(created) {
		t.Fatalf("unexpected timestamps: %+v", got)
	}
	if len(got.Order.LineItems) != 1 || got.Order.LineItems[0].Quantity != 2 || got.Order.Metadata["channel"] != "etsy" {
		t.Fatalf("unexpected order snapshot: %+v", got.Order)
	}

	closed := got.Order
	closed.Closed = true
	if err := st.UpdateOrderSnapshot(ctx, closed); err != nil {
		t.Fatalf("UpdateOrderSnapshot: %v", err)
	}
	open, err := st.ListOpenAssignments(ctx, "fam")
	if err != nil {
		t.Fatalf("ListOpenAssignments: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected closed order to be excluded, got %d", len(open))
	}

	a.OrderID = "ghost"
	if err := st.UpdateAssignment(ctx, a); !errors.Is(err, board.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestHistoryIsAppendOnlyAndOrdered(t *testing.T) {
	st, _ := openStore(t)
	ctx := context.Background()
	stages := testsupport.SeedStages(t, st, "fam", "New", "Making")
	created := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	testsupport.SeedAssignment(t, st, "fam", "o-1", stages[0].ID, created)

	move := &board.HistoryEntry{
		OrderID:     "o-1",
		FromStageID: stages[0].ID,
		ToStageID:   stages[1].ID,
		ChangedBy:   "sam",
		ChangedAt:   created.Add(time.Hour),
	}
	if err := st.InsertHistory(ctx, move); err != nil {
		t.Fatalf("InsertHistory: %v", err)
	}
	if move.ID == 0 {
		t.Fatal("expected history id to be assigned")
	}

	entries, err := st.ListHistory(ctx, "o-1")
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].IsInitial() || entries[1].FromStageID != stages[0].ID {
		t.Fatalf("unexpected order: %+v", entries)
	}

	err = st.WithTx(ctx, func(tx *store.Tx) error {
		return tx.InsertHistory(ctx, &board.HistoryEntry{OrderID: "missing", ToStageID: stages[0].ID, ChangedBy: "x", ChangedAt: created})
	})
	if err == nil {
		t.Fatal("expected history for unknown order to violate the foreign key")
	}
	if count, err := st.CountHistory(ctx, "o-1"); err != nil || count != 2 {
		t.Fatalf("expected 2 entries after failed tx, got %d err=%v", count, err)
	}
}

func TestCountStageAssignments(t *testing.T) {
	st, _ := openStore(t)
	ctx := context.Background()
	stages := testsupport.SeedStages(t, st, "fam", "New", "Making")
	created := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	testsupport.SeedAssignment(t, st, "fam", "o-1", stages[1].ID, created)

	count, err := st.CountStageAssignments(ctx, stages[1].ID)
	if err != nil || count != 1 {
		t.Fatalf("expected 1 assignment, got %d err=%v", count, err)
	}
	if err := st.DeleteStage(ctx, stages[1].ID); err == nil {
		t.Fatal("expected foreign key to block deleting a referenced stage")
	}
	if err := st.DeleteStage(ctx, stages[0].ID); err != nil {
		t.Fatalf("DeleteStage: %v", err)
	}
}
