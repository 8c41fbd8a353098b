// Package stages manages the ordered per-family pipeline definition.
//
// Positions within a family are always the contiguous range 0..n-1. Every
// write that moves more than one stage parks the affected rows on negative
// positions first, so the (family_id, position) unique index never sees a
// collision mid-transaction.
package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"familyboard/internal/board"
	"familyboard/internal/logging"
	"familyboard/internal/metrics"
	"familyboard/internal/store"
	"familyboard/internal/transition"
)

// Input carries the editable fields of a new stage.
type Input struct {
	Name           string
	Color          string
	ExternalStatus string
	Hidden         bool
}

// Registry reads and edits the stages of a family.
type Registry struct {
	store  *store.Store
	engine *transition.Engine
	logger *slog.Logger
	newID  func() string
}

// New constructs a registry. The engine moves orders off a stage that is
// deleted with a reassignment target and supplies the clock.
func New(st *store.Store, engine *transition.Engine, logger *slog.Logger) *Registry {
	return &Registry{
		store:  st,
		engine: engine,
		logger: logging.NewComponentLogger(logger, "stages"),
		newID:  uuid.NewString,
	}
}

// List returns every stage of the family in position order, hidden included.
func (r *Registry) List(ctx context.Context, familyID string) ([]board.Stage, error) {
	stages, err := r.store.ListStages(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if stages == nil {
		stages = []board.Stage{}
	}
	return stages, nil
}

// Create appends a stage at the end of the pipeline.
func (r *Registry) Create(ctx context.Context, familyID string, in Input) (board.Stage, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return board.Stage{}, err
	}
	var created board.Stage
	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		existing, err := tx.ListStages(ctx, familyID)
		if err != nil {
			return err
		}
		now := r.engine.Now()
		created = board.Stage{
			ID:             r.newID(),
			FamilyID:       familyID,
			Name:           name,
			Color:          strings.TrimSpace(in.Color),
			Position:       len(existing),
			ExternalStatus: strings.TrimSpace(in.ExternalStatus),
			Hidden:         in.Hidden,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.InsertStage(ctx, created)
	})
	if err != nil {
		return board.Stage{}, err
	}
	logging.WithContext(ctx, r.logger).Info("stage created",
		logging.StageID(created.ID),
		logging.String("name", created.Name),
		logging.Int("position", created.Position),
	)
	return created, nil
}

// Save replaces the family pipeline with desired in one transaction. Entries
// with an id edit that stage; entries without one are created. Every
// existing stage must be present, and the submitted positions must be a
// permutation of 0..len(desired)-1.
func (r *Registry) Save(ctx context.Context, familyID string, desired []board.Stage) ([]board.Stage, error) {
	if len(desired) == 0 {
		return nil, board.InvalidInputf("stage list must not be empty")
	}
	positions := make([]int, len(desired))
	for i, stage := range desired {
		positions[i] = stage.Position
	}
	if err := validatePositions(positions); err != nil {
		return nil, err
	}

	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		existing, err := tx.ListStages(ctx, familyID)
		if err != nil {
			return err
		}
		byID := make(map[string]board.Stage, len(existing))
		for _, stage := range existing {
			byID[stage.ID] = stage
		}

		seen := make(map[string]struct{}, len(desired))
		now := r.engine.Now()
		updates := make([]board.Stage, 0, len(desired))
		inserts := make([]board.Stage, 0)
		for _, want := range desired {
			name, err := cleanName(want.Name)
			if err != nil {
				return err
			}
			if want.ID == "" {
				inserts = append(inserts, board.Stage{
					ID:             r.newID(),
					FamilyID:       familyID,
					Name:           name,
					Color:          strings.TrimSpace(want.Color),
					Position:       want.Position,
					ExternalStatus: strings.TrimSpace(want.ExternalStatus),
					Hidden:         want.Hidden,
					CreatedAt:      now,
					UpdatedAt:      now,
				})
				continue
			}
			current, ok := byID[want.ID]
			if !ok {
				return fmt.Errorf("stage %s: %w", want.ID, board.ErrInvalidStage)
			}
			if _, dup := seen[want.ID]; dup {
				return board.InvalidInputf("stage %s listed twice", want.ID)
			}
			seen[want.ID] = struct{}{}
			current.Name = name
			current.Color = strings.TrimSpace(want.Color)
			current.Position = want.Position
			current.ExternalStatus = strings.TrimSpace(want.ExternalStatus)
			current.Hidden = want.Hidden
			current.UpdatedAt = now
			updates = append(updates, current)
		}
		for _, stage := range existing {
			if _, ok := seen[stage.ID]; !ok {
				return board.InvalidInputf("stage %s missing from list; delete it explicitly", stage.ID)
			}
		}

		if err := park(ctx, tx, existing); err != nil {
			return err
		}
		for _, stage := range updates {
			if err := tx.UpdateStage(ctx, stage); err != nil {
				return err
			}
		}
		for _, stage := range inserts {
			if err := tx.InsertStage(ctx, stage); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, r.logger).Info("stages saved", logging.Int("count", len(desired)))
	return r.List(ctx, familyID)
}

// Reorder applies a full reassignment of positions. Every stage of the family
// must be listed exactly once and the positions must be 0..n-1.
func (r *Registry) Reorder(ctx context.Context, familyID string, positions map[string]int) ([]board.Stage, error) {
	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		existing, err := tx.ListStages(ctx, familyID)
		if err != nil {
			return err
		}
		if len(positions) != len(existing) {
			return fmt.Errorf("expected %d positions, got %d: %w", len(existing), len(positions), board.ErrInvalidPosition)
		}
		values := make([]int, 0, len(positions))
		for _, stage := range existing {
			pos, ok := positions[stage.ID]
			if !ok {
				return fmt.Errorf("stage %s has no position: %w", stage.ID, board.ErrInvalidPosition)
			}
			values = append(values, pos)
		}
		if err := validatePositions(values); err != nil {
			return err
		}

		if err := park(ctx, tx, existing); err != nil {
			return err
		}
		now := r.engine.Now()
		for _, stage := range existing {
			stage.Position = positions[stage.ID]
			stage.UpdatedAt = now
			if err := tx.UpdateStage(ctx, stage); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.List(ctx, familyID)
}

// Move places one stage at newPosition and shifts the others to keep the
// range contiguous.
func (r *Registry) Move(ctx context.Context, familyID, stageID string, newPosition int) ([]board.Stage, error) {
	existing, err := r.store.ListStages(ctx, familyID)
	if err != nil {
		return nil, err
	}
	index := -1
	for i, stage := range existing {
		if stage.ID == stageID {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("stage %s: %w", stageID, board.ErrInvalidStage)
	}
	if newPosition < 0 || newPosition >= len(existing) {
		return nil, fmt.Errorf("position %d outside 0..%d: %w", newPosition, len(existing)-1, board.ErrInvalidPosition)
	}

	order := make([]string, 0, len(existing))
	for i, stage := range existing {
		if i != index {
			order = append(order, stage.ID)
		}
	}
	order = append(order[:newPosition], append([]string{stageID}, order[newPosition:]...)...)

	positions := make(map[string]int, len(order))
	for i, id := range order {
		positions[id] = i
	}
	return r.Reorder(ctx, familyID, positions)
}

// SetHidden toggles the visibility of a stage. Assignments are not touched.
func (r *Registry) SetHidden(ctx context.Context, familyID, stageID string, hidden bool) (board.Stage, error) {
	var updated board.Stage
	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		stage, err := tx.GetStage(ctx, stageID)
		if err != nil {
			return err
		}
		if stage == nil || stage.FamilyID != familyID {
			return fmt.Errorf("stage %s: %w", stageID, board.ErrInvalidStage)
		}
		updated = *stage
		if updated.Hidden == hidden {
			return nil
		}
		updated.Hidden = hidden
		updated.UpdatedAt = r.engine.Now()
		return tx.UpdateStage(ctx, updated)
	})
	if err != nil {
		return board.Stage{}, err
	}
	return updated, nil
}

// Delete removes a stage. While assignments reference it the delete fails
// with ErrStageInUse unless reassignTo names another stage of the family, in
// which case each referencing order is moved there with its own history entry
// before the stage is removed. It returns the number of orders moved.
func (r *Registry) Delete(ctx context.Context, actor, familyID, stageID, reassignTo string) (int, error) {
	var moved []transition.Result
	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		moved = moved[:0]
		if err := transition.CheckStage(ctx, tx, familyID, stageID); err != nil {
			return err
		}
		if reassignTo == stageID {
			return board.InvalidInputf("cannot reassign orders to the stage being deleted")
		}
		referencing, err := tx.ListStageAssignments(ctx, stageID)
		if err != nil {
			return err
		}
		if len(referencing) > 0 && reassignTo == "" {
			return fmt.Errorf("stage %s has %d orders: %w", stageID, len(referencing), board.ErrStageInUse)
		}
		if reassignTo != "" {
			if err := transition.CheckStage(ctx, tx, familyID, reassignTo); err != nil {
				return err
			}
		}
		for _, a := range referencing {
			res, err := r.engine.Apply(ctx, tx, transition.Request{
				Actor:     actor,
				FamilyID:  familyID,
				OrderID:   a.OrderID,
				ToStageID: reassignTo,
				Notes:     "stage deleted",
				Source:    metrics.SourceReassign,
			})
			if err != nil {
				return err
			}
			moved = append(moved, res)
		}
		if err := tx.DeleteStage(ctx, stageID); err != nil {
			return err
		}
		return compact(ctx, tx, familyID)
	})
	if err != nil {
		return 0, err
	}
	for _, res := range moved {
		r.engine.Committed(ctx, res)
	}
	logging.WithContext(ctx, r.logger).Info("stage deleted",
		logging.StageID(stageID),
		logging.Int("reassigned", len(moved)),
	)
	return len(moved), nil
}

// SeedDefaults creates the named stages for a family that has none.
func (r *Registry) SeedDefaults(ctx context.Context, familyID string, names []string) ([]board.Stage, error) {
	var stages []board.Stage
	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		stages, err = r.Ensure(ctx, tx, familyID, names)
		return err
	})
	return stages, err
}

// Ensure returns the family stages inside tx, seeding names first when the
// family has none.
func (r *Registry) Ensure(ctx context.Context, tx *store.Tx, familyID string, names []string) ([]board.Stage, error) {
	existing, err := tx.ListStages(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}
	now := r.engine.Now()
	for _, raw := range names {
		name, err := cleanName(raw)
		if err != nil {
			continue
		}
		stage := board.Stage{
			ID:        r.newID(),
			FamilyID:  familyID,
			Name:      name,
			Position:  len(existing),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertStage(ctx, stage); err != nil {
			return nil, err
		}
		existing = append(existing, stage)
	}
	if len(existing) > 0 {
		logging.WithContext(ctx, r.logger).Info("seeded default stages",
			logging.FamilyID(familyID),
			logging.Int("count", len(existing)),
		)
	}
	return existing, nil
}

func cleanName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", board.InvalidInputf("stage name must not be blank")
	}
	return trimmed, nil
}

// validatePositions requires values to be a permutation of 0..len-1.
func validatePositions(values []int) error {
	seen := make([]bool, len(values))
	for _, pos := range values {
		if pos < 0 || pos >= len(values) {
			return fmt.Errorf("position %d outside 0..%d: %w", pos, len(values)-1, board.ErrInvalidPosition)
		}
		if seen[pos] {
			return fmt.Errorf("position %d used twice: %w", pos, board.ErrInvalidPosition)
		}
		seen[pos] = true
	}
	return nil
}

func park(ctx context.Context, tx *store.Tx, stages []board.Stage) error {
	for i, stage := range stages {
		if err := tx.SetStagePosition(ctx, stage.ID, -(i + 1)); err != nil {
			return err
		}
	}
	return nil
}

// compact closes the gap left by a deleted stage. Stages are visited in
// position order, so each target slot is already free.
func compact(ctx context.Context, tx *store.Tx, familyID string) error {
	remaining, err := tx.ListStages(ctx, familyID)
	if err != nil {
		return err
	}
	for i, stage := range remaining {
		if stage.Position == i {
			continue
		}
		if err := tx.SetStagePosition(ctx, stage.ID, i); err != nil {
			return err
		}
	}
	return nil
}
