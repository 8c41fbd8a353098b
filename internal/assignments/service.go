// Package assignments owns the workflow state of every tracked order: the
// filtered board read, single-order edits, and the ingestion boundary where
// orders from the Order Source are first observed.
package assignments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"familyboard/internal/board"
	"familyboard/internal/logging"
	"familyboard/internal/metrics"
	"familyboard/internal/stages"
	"familyboard/internal/store"
	"familyboard/internal/transition"
)

// Options configures a Service.
type Options struct {
	// DefaultStages seeds the pipeline of a family observed without stages.
	DefaultStages []string
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Service reads and mutates assignments.
type Service struct {
	store         *store.Store
	engine        *transition.Engine
	registry      *stages.Registry
	metrics       *metrics.Metrics
	logger        *slog.Logger
	defaultStages []string
}

// New constructs the assignment service.
func New(st *store.Store, engine *transition.Engine, registry *stages.Registry, opts Options) *Service {
	return &Service{
		store:         st,
		engine:        engine,
		registry:      registry,
		metrics:       opts.Metrics,
		logger:        logging.NewComponentLogger(opts.Logger, "assignments"),
		defaultStages: append([]string(nil), opts.DefaultStages...),
	}
}

// Detail is a single assignment together with the outward status mapped from
// its stage.
type Detail struct {
	Assignment     board.Assignment
	ExternalStatus string
}

// UpdateRequest is a partial edit of one assignment.
type UpdateRequest struct {
	Actor    string
	FamilyID string
	OrderID  string
	Patch    board.Patch
	// Source labels a resulting stage change for metrics. Defaults to
	// metrics.SourceEdit.
	Source string
}

// ObserveResult counts the outcome of an ingestion call.
type ObserveResult struct {
	Created   int
	Refreshed int
}

// GetBoard returns every stage of the family, hidden included, together with
// the open assignments that pass filters.
func (s *Service) GetBoard(ctx context.Context, familyID string, filters board.Filters) (board.Board, error) {
	stageList, err := s.registry.List(ctx, familyID)
	if err != nil {
		return board.Board{}, err
	}
	open, err := s.store.ListOpenAssignments(ctx, familyID)
	if err != nil {
		return board.Board{}, err
	}
	return board.Board{Stages: stageList, Assignments: applyFilters(open, filters)}, nil
}

// Get returns one assignment of the family.
func (s *Service) Get(ctx context.Context, familyID, orderID string) (Detail, error) {
	a, err := s.store.GetAssignment(ctx, orderID)
	if err != nil {
		return Detail{}, err
	}
	if a == nil || a.FamilyID != familyID {
		return Detail{}, fmt.Errorf("order %s: %w", orderID, board.ErrOrderNotFound)
	}
	detail := Detail{Assignment: *a}
	stage, err := s.store.GetStage(ctx, a.StageID)
	if err != nil {
		return Detail{}, err
	}
	if stage != nil {
		detail.ExternalStatus = stage.ExternalStatus
	}
	return detail, nil
}

// Update applies a partial edit in one transaction. A stage change goes
// through the transition engine; lastUpdated is refreshed only when some
// field actually changes.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (board.Assignment, error) {
	if req.Patch.IsEmpty() {
		return board.Assignment{}, board.InvalidInputf("patch sets no field")
	}
	if err := req.Patch.Validate(); err != nil {
		return board.Assignment{}, err
	}
	source := req.Source
	if source == "" {
		source = metrics.SourceEdit
	}

	var (
		updated board.Assignment
		moved   transition.Result
	)
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		current, err := tx.GetAssignment(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if current == nil || current.FamilyID != req.FamilyID {
			return fmt.Errorf("order %s: %w", req.OrderID, board.ErrOrderNotFound)
		}
		if req.Patch.StageID != nil {
			if err := transition.CheckStage(ctx, tx, req.FamilyID, *req.Patch.StageID); err != nil {
				return err
			}
		}

		next := *current
		moved = transition.Result{}
		if req.Patch.ChangesStage(next) {
			notes := ""
			if req.Patch.Notes != nil {
				notes = *req.Patch.Notes
			}
			moved, err = s.engine.Apply(ctx, tx, transition.Request{
				Actor:     req.Actor,
				FamilyID:  req.FamilyID,
				OrderID:   req.OrderID,
				ToStageID: *req.Patch.StageID,
				Notes:     notes,
				Source:    source,
			})
			if err != nil {
				return err
			}
			next = moved.Assignment
		}

		next, changed := req.Patch.ApplyTo(next)
		if changed {
			next.LastUpdated = s.engine.Now()
			if err := tx.UpdateAssignment(ctx, next); err != nil {
				return err
			}
		}
		updated = next
		return nil
	})
	if err != nil {
		return board.Assignment{}, err
	}
	s.engine.Committed(ctx, moved)
	return updated, nil
}

// Observe ingests order snapshots. Unseen orders get an assignment in the
// stage mapped from their source status (the first stage when none maps) and
// an initial history entry; known orders only have their snapshot refreshed.
func (s *Service) Observe(ctx context.Context, familyID string, orders []board.OrderSnapshot) (ObserveResult, error) {
	if len(orders) == 0 {
		return ObserveResult{}, board.InvalidInputf("no orders supplied")
	}
	for _, order := range orders {
		if strings.TrimSpace(order.ID) == "" {
			return ObserveResult{}, board.InvalidInputf("order id must not be blank")
		}
	}

	var result ObserveResult
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		result = ObserveResult{}
		stageList, err := s.registry.Ensure(ctx, tx, familyID, s.defaultStages)
		if err != nil {
			return err
		}
		if len(stageList) == 0 {
			return board.InvalidInputf("family %s has no stages; configure board.default_stages", familyID)
		}

		for _, order := range orders {
			existing, err := tx.GetAssignment(ctx, order.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.FamilyID != familyID {
					return board.InvalidInputf("order %s belongs to another family", order.ID)
				}
				if err := tx.UpdateOrderSnapshot(ctx, order); err != nil {
					return err
				}
				result.Refreshed++
				continue
			}

			now := s.engine.Now()
			initial := initialStage(stageList, order.SourceStatus)
			a := board.Assignment{
				OrderID:     order.ID,
				FamilyID:    familyID,
				StageID:     initial.ID,
				LastUpdated: now,
				Order:       order,
			}
			if err := tx.InsertAssignment(ctx, a); err != nil {
				return err
			}
			if err := tx.InsertHistory(ctx, &board.HistoryEntry{
				OrderID:   order.ID,
				ToStageID: initial.ID,
				ChangedBy: board.OrderSourceActor,
				ChangedAt: now,
			}); err != nil {
				return err
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return ObserveResult{}, err
	}

	s.metrics.RecordObserved(result.Created, result.Refreshed)
	logging.WithContext(ctx, s.logger).Info("orders observed",
		logging.Int("created", result.Created),
		logging.Int("refreshed", result.Refreshed),
		logging.String(logging.FieldEventType, "orders_observed"),
	)
	return result, nil
}

func initialStage(stageList []board.Stage, sourceStatus string) board.Stage {
	status := strings.TrimSpace(sourceStatus)
	if status != "" {
		for _, stage := range stageList {
			if stage.ExternalStatus != "" && strings.EqualFold(stage.ExternalStatus, status) {
				return stage
			}
		}
	}
	return stageList[0]
}

func applyFilters(list []board.Assignment, filters board.Filters) []board.Assignment {
	out := make([]board.Assignment, 0, len(list))
	if filters.IsZero() {
		return append(out, list...)
	}

	fold := cases.Fold()
	terms := make([]string, 0, len(filters.Tags))
	for _, tag := range filters.Tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			terms = append(terms, fold.String(trimmed))
		}
	}

	for _, a := range list {
		created := a.Order.CreatedAt
		if !filters.From.IsZero() && created.Before(filters.From) {
			continue
		}
		if !filters.To.IsZero() && created.After(filters.To) {
			continue
		}
		if !matchesAll(fold, a.Order, terms) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// matchesAll requires every term to appear in at least one tag or metadata
// value of the order.
func matchesAll(fold cases.Caser, order board.OrderSnapshot, terms []string) bool {
	for _, term := range terms {
		if !matchesTerm(fold, order, term) {
			return false
		}
	}
	return true
}

func matchesTerm(fold cases.Caser, order board.OrderSnapshot, term string) bool {
	for _, tag := range order.Tags {
		if strings.Contains(fold.String(tag), term) {
			return true
		}
	}
	for _, value := range order.Metadata {
		if strings.Contains(fold.String(value), term) {
			return true
		}
	}
	return false
}
