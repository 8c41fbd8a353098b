package batch_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"familyboard/internal/assignments"
	"familyboard/internal/batch"
	"familyboard/internal/board"
	"familyboard/internal/stages"
	"familyboard/internal/store"
	"familyboard/internal/testsupport"
	"familyboard/internal/transition"
)

var baseTime = time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)

// failingUpdater lets the first n updates through to the real service.
type failingUpdater struct {
	next  batch.Updater
	allow int
	calls int
}

func (f *failingUpdater) Update(ctx context.Context, req assignments.UpdateRequest) (board.Assignment, error) {
	f.calls++
	if f.calls > f.allow {
		return board.Assignment{}, fmt.Errorf("write assignment: %w", board.ErrNetworkFailure)
	}
	return f.next.Update(ctx, req)
}

type fixture struct {
	svc    *assignments.Service
	store  *store.Store
	stages []board.Stage
	ids    []string
}

func newFixture(t *testing.T, orders int) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedStages(t, st, "fam", "New", "Making")
	engine := transition.New(st, transition.WithClock(testsupport.FixedClock(baseTime.Add(time.Hour), time.Second)))
	svc := assignments.New(st, engine, stages.New(st, engine, nil), assignments.Options{})
	ids := make([]string, 0, orders)
	for i := 0; i < orders; i++ {
		id := fmt.Sprintf("o-%d", i+1)
		testsupport.SeedAssignment(t, st, "fam", id, seeded[0].ID, baseTime.Add(time.Duration(i)*time.Minute))
		ids = append(ids, id)
	}
	return fixture{svc: svc, store: st, stages: seeded, ids: ids}
}

func rush() *board.Priority {
	p := board.PriorityRush
	return &p
}

func TestBulkUpdateStopsAfterFailureLeavingEarlierItemsApplied(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	updater := &failingUpdater{next: f.svc, allow: 3}
	mutator := batch.New(f.store, updater, nil, nil)

	applied, err := mutator.BulkUpdate(ctx, batch.Request{
		Actor:    "sam",
		FamilyID: "fam",
		OrderIDs: f.ids,
		Patch:    board.Patch{Priority: rush()},
	})
	if err == nil {
		t.Fatal("expected aggregate failure")
	}
	var batchErr *board.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchError, got %T", err)
	}
	if batchErr.Applied != 3 || batchErr.Total != 5 || applied != 3 {
		t.Fatalf("unexpected batch error: %+v applied=%d", batchErr, applied)
	}
	if board.KindOf(err) != board.KindNetworkFailure {
		t.Fatalf("expected network failure kind, got %s", board.KindOf(err))
	}

	view, err := f.svc.GetBoard(ctx, "fam", board.Filters{})
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	rushCount := 0
	for _, a := range view.Assignments {
		if a.IsRush() {
			rushCount++
		}
	}
	if rushCount != 3 {
		t.Fatalf("expected exactly 3 rush orders, got %d", rushCount)
	}
}

func TestBulkStageMoveWritesOneHistoryEntryPerOrder(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	mutator := batch.New(f.store, f.svc, nil, nil)
	target := f.stages[1].ID

	applied, err := mutator.BulkUpdate(ctx, batch.Request{
		Actor:    "sam",
		FamilyID: "fam",
		OrderIDs: append([]string{"o-1"}, f.ids...),
		Patch:    board.Patch{StageID: &target},
	})
	if err != nil {
		t.Fatalf("BulkUpdate: %v", err)
	}
	if applied != 3 {
		t.Fatalf("expected duplicates collapsed to 3, got %d", applied)
	}
	for _, id := range f.ids {
		count, _ := f.store.CountHistory(ctx, id)
		if count != 2 {
			t.Fatalf("expected 2 history entries for %s, got %d", id, count)
		}
	}
}

func TestBulkUpdateValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	mutator := batch.New(f.store, f.svc, nil, nil)
	foreign := testsupport.SeedStages(t, f.store, "other", "Elsewhere")
	notes := "x"

	cases := []struct {
		name string
		req  batch.Request
		want error
	}{
		{"empty ids", batch.Request{FamilyID: "fam", OrderIDs: []string{" "}, Patch: board.Patch{Priority: rush()}}, board.ErrInvalidInput},
		{"empty patch", batch.Request{FamilyID: "fam", OrderIDs: f.ids}, board.ErrInvalidInput},
		{"notes", batch.Request{FamilyID: "fam", OrderIDs: f.ids, Patch: board.Patch{Notes: &notes}}, board.ErrInvalidInput},
		{"foreign stage", batch.Request{FamilyID: "fam", OrderIDs: f.ids, Patch: board.Patch{StageID: &foreign[0].ID}}, board.ErrInvalidStage},
		{"unknown order", batch.Request{FamilyID: "fam", OrderIDs: append(f.ids, "o-404"), Patch: board.Patch{Priority: rush()}}, board.ErrOrderNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := mutator.BulkUpdate(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	for _, id := range f.ids {
		a, _ := f.store.GetAssignment(ctx, id)
		if a.Priority != board.PriorityNormal {
			t.Fatalf("expected %s untouched, got priority %s", id, a.Priority)
		}
	}
}
