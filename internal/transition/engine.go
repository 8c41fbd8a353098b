// Package transition moves orders between the stages of a family pipeline
// and records every accepted move in the append-only stage history.
//
// Any stage may follow any other; the only constraints are that the target
// stage exists in the same family as the order and that a move to the
// current stage is a no-op. History writes and the assignment update always
// share one transaction.
package transition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"familyboard/internal/board"
	"familyboard/internal/logging"
	"familyboard/internal/metrics"
	"familyboard/internal/store"
)

// Request describes one stage move.
type Request struct {
	Actor     string
	FamilyID  string
	OrderID   string
	ToStageID string
	Notes     string
	// Source labels the transition for metrics. Defaults to metrics.SourceMove.
	Source string
}

// Result reports the outcome of an Apply or Move.
type Result struct {
	Assignment board.Assignment
	Entry      *board.HistoryEntry
	Changed    bool
	Source     string
}

// Engine validates and persists stage transitions.
type Engine struct {
	store   *store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for history and lastUpdated stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMetrics records accepted transitions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New constructs an engine backed by st.
func New(st *store.Store, opts ...Option) *Engine {
	e := &Engine{store: st, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "transition")
	return e
}

// Now returns the engine clock reading in UTC.
func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

// Apply performs the transition inside tx. Validation happens before any
// write, so a rejected move leaves the transaction untouched. Callers that
// commit successfully should pass the result to Committed.
func (e *Engine) Apply(ctx context.Context, tx *store.Tx, req Request) (Result, error) {
	current, err := loadAssignment(ctx, tx, req.FamilyID, req.OrderID)
	if err != nil {
		return Result{}, err
	}
	if err := CheckStage(ctx, tx, req.FamilyID, req.ToStageID); err != nil {
		return Result{}, err
	}

	source := req.Source
	if source == "" {
		source = metrics.SourceMove
	}
	if current.StageID == req.ToStageID {
		return Result{Assignment: current, Source: source}, nil
	}

	now := e.Now()
	entry := &board.HistoryEntry{
		OrderID:     current.OrderID,
		FromStageID: current.StageID,
		ToStageID:   req.ToStageID,
		ChangedBy:   req.Actor,
		Notes:       req.Notes,
		ChangedAt:   now,
	}
	if err := tx.InsertHistory(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("record transition of %s: %w", current.OrderID, err)
	}

	next := current
	next.StageID = req.ToStageID
	next.LastUpdated = now
	if err := tx.UpdateAssignment(ctx, next); err != nil {
		return Result{}, fmt.Errorf("move %s: %w", current.OrderID, err)
	}
	return Result{Assignment: next, Entry: entry, Changed: true, Source: source}, nil
}

// Committed records metrics and logs for a transition whose transaction has
// committed. Unchanged results are ignored.
func (e *Engine) Committed(ctx context.Context, res Result) {
	if !res.Changed || res.Entry == nil {
		return
	}
	e.metrics.RecordTransition(res.Source)
	logging.WithContext(ctx, e.logger).Info("order moved",
		logging.OrderID(res.Entry.OrderID),
		logging.String("from_stage_id", res.Entry.FromStageID),
		logging.StageID(res.Entry.ToStageID),
		logging.String("changed_by", res.Entry.ChangedBy),
		logging.String(logging.FieldEventType, "stage_transition"),
	)
}

// History returns the stage history of an order, oldest first.
func (e *Engine) History(ctx context.Context, familyID, orderID string) ([]board.HistoryEntry, error) {
	a, err := e.store.GetAssignment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.FamilyID != familyID {
		return nil, fmt.Errorf("order %s: %w", orderID, board.ErrOrderNotFound)
	}
	entries, err := e.store.ListHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []board.HistoryEntry{}
	}
	return entries, nil
}

func loadAssignment(ctx context.Context, tx *store.Tx, familyID, orderID string) (board.Assignment, error) {
	a, err := tx.GetAssignment(ctx, orderID)
	if err != nil {
		return board.Assignment{}, err
	}
	if a == nil || a.FamilyID != familyID {
		return board.Assignment{}, fmt.Errorf("order %s: %w", orderID, board.ErrOrderNotFound)
	}
	return *a, nil
}

// StageGetter resolves stages by id. Both *store.Store and *store.Tx satisfy it.
type StageGetter interface {
	GetStage(ctx context.Context, id string) (*board.Stage, error)
}

// CheckStage verifies that stageID belongs to familyID.
func CheckStage(ctx context.Context, q StageGetter, familyID, stageID string) error {
	stage, err := q.GetStage(ctx, stageID)
	if err != nil {
		return err
	}
	if stage == nil || stage.FamilyID != familyID {
		return fmt.Errorf("stage %s: %w", stageID, board.ErrInvalidStage)
	}
	return nil
}
