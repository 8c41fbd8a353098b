package assignments_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"familyboard/internal/assignments"
	"familyboard/internal/board"
	"familyboard/internal/stages"
	"familyboard/internal/store"
	"familyboard/internal/testsupport"
	"familyboard/internal/transition"
)

var baseTime = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *assignments.Service
	store  *store.Store
	stages []board.Stage
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedStages(t, st, "fam", "New", "Making", "Packed")
	engine := transition.New(st, transition.WithClock(testsupport.FixedClock(baseTime.Add(time.Hour), time.Minute)))
	registry := stages.New(st, engine, nil)
	svc := assignments.New(st, engine, registry, assignments.Options{DefaultStages: cfg.Board.DefaultStages})
	return fixture{svc: svc, store: st, stages: seeded}
}

func ptr[T any](v T) *T { return &v }

func TestNotesOnlyUpdateRefreshesLastUpdatedWithoutHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.SeedAssignment(t, f.store, "fam", "o-1", f.stages[1].ID, baseTime)

	updated, err := f.svc.Update(ctx, assignments.UpdateRequest{
		Actor:    "sam",
		FamilyID: "fam",
		OrderID:  "o-1",
		Patch:    board.Patch{StageID: ptr(f.stages[1].ID), Notes: ptr("glaze tomorrow")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Notes != "glaze tomorrow" || !updated.LastUpdated.After(baseTime) {
		t.Fatalf("unexpected assignment: %+v", updated)
	}
	stored, _ := f.store.GetAssignment(ctx, "o-1")
	if !stored.LastUpdated.Equal(updated.LastUpdated) {
		t.Fatalf("expected persisted lastUpdated %s, got %s", updated.LastUpdated, stored.LastUpdated)
	}
	if count, _ := f.store.CountHistory(ctx, "o-1"); count != 1 {
		t.Fatalf("expected no new history entry, got %d entries", count)
	}
}

func TestUnchangedPatchIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.SeedAssignment(t, f.store, "fam", "o-1", f.stages[0].ID, baseTime)

	_, err := f.svc.Update(ctx, assignments.UpdateRequest{
		FamilyID: "fam",
		OrderID:  "o-1",
		Patch:    board.Patch{StageID: ptr(f.stages[0].ID), Priority: ptr(board.PriorityNormal), AssignedTo: ptr(" ")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	stored, _ := f.store.GetAssignment(ctx, "o-1")
	if !stored.LastUpdated.Equal(baseTime) {
		t.Fatalf("expected lastUpdated untouched, got %s", stored.LastUpdated)
	}
}

func TestUpdateStageAndPriorityTogether(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.SeedAssignment(t, f.store, "fam", "o-1", f.stages[1].ID, baseTime)

	updated, err := f.svc.Update(ctx, assignments.UpdateRequest{
		Actor:    "sam",
		FamilyID: "fam",
		OrderID:  "o-1",
		Patch:    board.Patch{StageID: ptr(f.stages[2].ID), Priority: ptr(board.PriorityRush), AssignedTo: ptr("jo")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.StageID != f.stages[2].ID || updated.Priority != board.PriorityRush || updated.AssignedTo != "jo" {
		t.Fatalf("unexpected assignment: %+v", updated)
	}
	history, _ := f.store.ListHistory(ctx, "o-1")
	if len(history) != 2 || history[1].ToStageID != f.stages[2].ID || history[1].ChangedBy != "sam" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestUpdateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.SeedAssignment(t, f.store, "fam", "o-1", f.stages[0].ID, baseTime)
	foreign := testsupport.SeedStages(t, f.store, "other", "Elsewhere")

	cases := []struct {
		name  string
		order string
		patch board.Patch
		want  error
	}{
		{"empty patch", "o-1", board.Patch{}, board.ErrInvalidInput},
		{"priority out of range", "o-1", board.Patch{Priority: ptr(board.Priority(5))}, board.ErrInvalidInput},
		{"foreign stage", "o-1", board.Patch{StageID: ptr(foreign[0].ID)}, board.ErrInvalidStage},
		{"unknown order", "o-404", board.Patch{Notes: ptr("x")}, board.ErrOrderNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, assignments.UpdateRequest{FamilyID: "fam", OrderID: tc.order, Patch: tc.patch})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestGetBoardFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := 24 * time.Hour
	_, err := f.svc.Observe(ctx, "fam", []board.OrderSnapshot{
		{ID: "o-1", CreatedAt: baseTime, Tags: []string{"Wholesale"}, Metadata: map[string]string{"channel": "Etsy"}},
		{ID: "o-2", CreatedAt: baseTime.Add(day), Tags: []string{"retail"}, Metadata: map[string]string{"channel": "Market"}},
		{ID: "o-3", CreatedAt: baseTime.Add(2 * day), Tags: []string{"wholesale"}},
		{ID: "o-4", CreatedAt: baseTime, Closed: true},
	})
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}

	cases := []struct {
		name    string
		filters board.Filters
		want    []string
	}{
		{"no filters hides closed", board.Filters{}, []string{"o-1", "o-2", "o-3"}},
		{"inclusive date range", board.Filters{From: baseTime.Add(day), To: baseTime.Add(2 * day)}, []string{"o-2", "o-3"}},
		{"case folded tag", board.Filters{Tags: []string{"WHOLESALE"}}, []string{"o-1", "o-3"}},
		{"metadata substring", board.Filters{Tags: []string{"ets"}}, []string{"o-1"}},
		{"terms are and-ed", board.Filters{Tags: []string{"wholesale", "etsy"}}, []string{"o-1"}},
		{"no match", board.Filters{Tags: []string{"gift"}}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.svc.GetBoard(ctx, "fam", tc.filters)
			if err != nil {
				t.Fatalf("GetBoard: %v", err)
			}
			if len(got.Stages) != 3 {
				t.Fatalf("expected all stages, got %d", len(got.Stages))
			}
			if len(got.Assignments) != len(tc.want) {
				t.Fatalf("expected %v, got %+v", tc.want, got.Assignments)
			}
			for i, id := range tc.want {
				if got.Assignments[i].OrderID != id {
					t.Fatalf("expected %v, got %s at %d", tc.want, got.Assignments[i].OrderID, i)
				}
			}
		})
	}
}

func TestObserveMapsSourceStatusAndRefreshesSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	packed := f.stages[2]
	packed.ExternalStatus = "Fulfilled"
	if err := f.store.UpdateStage(ctx, packed); err != nil {
		t.Fatalf("UpdateStage: %v", err)
	}

	res, err := f.svc.Observe(ctx, "fam", []board.OrderSnapshot{
		{ID: "o-1", SourceStatus: "fulfilled", Customer: "Ada"},
		{ID: "o-2", SourceStatus: "open"},
	})
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if res.Created != 2 || res.Refreshed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	detail, err := f.svc.Get(ctx, "fam", "o-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if detail.Assignment.StageID != packed.ID || detail.ExternalStatus != "Fulfilled" {
		t.Fatalf("expected mapped stage, got %+v", detail)
	}
	second, _ := f.svc.Get(ctx, "fam", "o-2")
	if second.Assignment.StageID != f.stages[0].ID {
		t.Fatalf("expected lowest stage for unmapped status, got %s", second.Assignment.StageID)
	}
	history, _ := f.store.ListHistory(ctx, "o-1")
	if len(history) != 1 || !history[0].IsInitial() || history[0].ChangedBy != board.OrderSourceActor {
		t.Fatalf("unexpected initial history: %+v", history)
	}

	before := detail.Assignment.LastUpdated
	res, err = f.svc.Observe(ctx, "fam", []board.OrderSnapshot{{ID: "o-1", SourceStatus: "open", Customer: "Ada L."}})
	if err != nil || res.Refreshed != 1 {
		t.Fatalf("refresh: %+v err=%v", res, err)
	}
	again, _ := f.svc.Get(ctx, "fam", "o-1")
	if again.Assignment.Order.Customer != "Ada L." {
		t.Fatalf("expected snapshot refresh, got %+v", again.Assignment.Order)
	}
	if again.Assignment.StageID != packed.ID || !again.Assignment.LastUpdated.Equal(before) {
		t.Fatalf("re-observation must not move or stamp the order: %+v", again.Assignment)
	}

	if _, err := f.svc.Get(ctx, "other", "o-1"); !errors.Is(err, board.ErrOrderNotFound) {
		t.Fatalf("expected foreign family lookup to fail, got %v", err)
	}
	if _, err := f.svc.Observe(ctx, "other", []board.OrderSnapshot{{ID: "o-1"}}); !errors.Is(err, board.ErrInvalidInput) {
		t.Fatalf("expected cross-family observation to fail, got %v", err)
	}
}

func TestObserveSeedsDefaultStages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Observe(ctx, "fresh", []board.OrderSnapshot{{ID: "n-1"}}); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	got, err := f.svc.GetBoard(ctx, "fresh", board.Filters{})
	if err != nil {
		t.Fatalf("GetBoard: %v", err)
	}
	if len(got.Stages) != 4 || got.Stages[0].Name != "New" {
		t.Fatalf("expected default stages, got %+v", got.Stages)
	}
	if len(got.Assignments) != 1 || got.Assignments[0].StageID != got.Stages[0].ID {
		t.Fatalf("expected order in first stage, got %+v", got.Assignments)
	}
}
