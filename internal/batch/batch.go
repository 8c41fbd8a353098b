// Package batch applies one patch to a multi-selected set of orders.
//
// A bulk update is validated as a whole before any write, then applied one
// order at a time, each in its own transaction with its own history entry.
// The set is not atomic: the first item failure stops the run and is
// reported as a single *board.BatchError, leaving earlier items applied.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"familyboard/internal/assignments"
	"familyboard/internal/board"
	"familyboard/internal/logging"
	"familyboard/internal/metrics"
	"familyboard/internal/transition"
)

// Updater applies a single-order edit.
type Updater interface {
	Update(ctx context.Context, req assignments.UpdateRequest) (board.Assignment, error)
}

// Lookup resolves the stages and orders the pre-flight validation checks.
type Lookup interface {
	transition.StageGetter
	GetAssignments(ctx context.Context, orderIDs []string) (map[string]board.Assignment, error)
}

// Request is one bulk update.
type Request struct {
	Actor    string
	FamilyID string
	OrderIDs []string
	Patch    board.Patch
}

// Mutator runs bulk updates.
type Mutator struct {
	lookup  Lookup
	updater Updater
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New constructs a bulk mutator.
func New(lookup Lookup, updater Updater, m *metrics.Metrics, logger *slog.Logger) *Mutator {
	return &Mutator{
		lookup:  lookup,
		updater: updater,
		metrics: m,
		logger:  logging.NewComponentLogger(logger, "batch"),
	}
}

// BulkUpdate applies req.Patch to every listed order and returns how many
// were updated.
func (m *Mutator) BulkUpdate(ctx context.Context, req Request) (int, error) {
	ids := dedupe(req.OrderIDs)
	if err := m.validate(ctx, req, ids); err != nil {
		m.metrics.RecordBatch(string(board.KindOf(err)))
		return 0, err
	}

	logger := logging.WithContext(ctx, m.logger)
	for i, id := range ids {
		_, err := m.updater.Update(ctx, assignments.UpdateRequest{
			Actor:    req.Actor,
			FamilyID: req.FamilyID,
			OrderID:  id,
			Patch:    req.Patch,
			Source:   metrics.SourceBulk,
		})
		if err != nil {
			batchErr := &board.BatchError{Applied: i, Total: len(ids), OrderID: id, Err: err}
			m.metrics.RecordBatch(string(batchErr.ErrorKind()))
			logging.WarnWithContext(logger, "bulk update stopped", "bulk_update_failed",
				logging.OrderID(id),
				logging.Int("applied", i),
				logging.Int("total", len(ids)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "reload the board to see which orders changed"),
			)
			return i, batchErr
		}
	}

	m.metrics.RecordBatch("ok")
	logger.Info("bulk update applied", logging.Int("total", len(ids)))
	return len(ids), nil
}

func (m *Mutator) validate(ctx context.Context, req Request, ids []string) error {
	if len(ids) == 0 {
		return board.InvalidInputf("order ids must not be empty")
	}
	if req.Patch.Notes != nil {
		return board.InvalidInputf("notes cannot be bulk edited")
	}
	if req.Patch.IsEmpty() {
		return board.InvalidInputf("patch sets no field")
	}
	if err := req.Patch.Validate(); err != nil {
		return err
	}
	if req.Patch.StageID != nil {
		if err := transition.CheckStage(ctx, m.lookup, req.FamilyID, *req.Patch.StageID); err != nil {
			return err
		}
	}
	found, err := m.lookup.GetAssignments(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		a, ok := found[id]
		if !ok || a.FamilyID != req.FamilyID {
			return fmt.Errorf("order %s: %w", id, board.ErrOrderNotFound)
		}
	}
	return nil
}

// dedupe drops blank and repeated ids, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
