// Package syncctl keeps a client-side copy of the family board in step with
// the server.
//
// Mutations are applied to the local snapshot before the server call returns
// and are marked pending until it does. A failed call discards every local
// speculation and reloads the whole board; there is no per-field undo. A
// fixed-interval poll reloads the board independently of user actions.
package syncctl

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"familyboard/internal/board"
	"familyboard/internal/logging"
)

// Backend is the subset of the board API the controller drives.
type Backend interface {
	GetBoard(ctx context.Context, filters board.Filters) (board.Board, error)
	UpdateAssignment(ctx context.Context, orderID string, patch board.Patch) error
	BulkUpdate(ctx context.Context, orderIDs []string, patch board.Patch) error
}

// Snapshot is an immutable view of the board. Pending counts the in-flight
// mutations per order. Stale is set when the last reload failed.
type Snapshot struct {
	Board     board.Board
	FetchedAt time.Time
	Pending   map[string]int
	Stale     bool
}

// IsPending reports whether orderID has a mutation in flight.
func (s Snapshot) IsPending(orderID string) bool {
	return s.Pending[orderID] > 0
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Board = s.Board.Clone()
	out.Pending = make(map[string]int, len(s.Pending))
	for id, n := range s.Pending {
		out.Pending[id] = n
	}
	return out
}

// Options configures a Controller.
type Options struct {
	// Interval is the poll cadence of Run. Defaults to 15 seconds.
	Interval time.Duration
	Filters  board.Filters
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Controller is safe for concurrent use. Overlapping mutations of one order
// are not serialized; the last response to land wins.
type Controller struct {
	backend  Backend
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu            sync.Mutex
	filters       board.Filters
	authoritative *Snapshot
	current       atomic.Pointer[Snapshot]

	subsMu sync.Mutex
	nextID int
	subs   map[int]chan Snapshot
}

// New constructs a controller. Nothing is fetched until Resync or Run.
func New(backend Backend, opts Options) *Controller {
	interval := opts.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	c := &Controller{
		backend:  backend,
		interval: interval,
		logger:   logging.NewComponentLogger(opts.Logger, "syncctl"),
		now:      clock,
		filters:  opts.Filters,
		subs:     make(map[int]chan Snapshot),
	}
	c.current.Store(&Snapshot{Pending: map[string]int{}, Stale: true})
	return c
}

// Current returns the latest published snapshot.
func (c *Controller) Current() Snapshot {
	return *c.current.Load()
}

// Subscribe returns a channel that receives every published snapshot. A slow
// subscriber only ever sees the latest one. The returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.subsMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
			close(ch)
		})
	}
}

// publish derives a new snapshot from the current one. Callers hold c.mu.
func (c *Controller) publish(fn func(*Snapshot)) Snapshot {
	next := c.current.Load().clone()
	fn(&next)
	c.current.Store(&next)
	c.broadcast(next)
	return next
}

func (c *Controller) broadcast(snap Snapshot) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Resync reloads the board. On failure the current snapshot is kept and
// marked stale.
func (c *Controller) Resync(ctx context.Context) error {
	c.mu.Lock()
	filters := c.filters
	c.mu.Unlock()

	fetched, err := c.backend.GetBoard(ctx, filters)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.publish(func(s *Snapshot) { s.Stale = true })
		return err
	}
	snap := c.publish(func(s *Snapshot) {
		s.Board = fetched
		s.FetchedAt = c.now()
		s.Stale = false
	})
	c.authoritative = &snap
	return nil
}

// Run reloads the board immediately and then on every interval until ctx
// ends.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.poll(ctx)
		}
	}
}

func (c *Controller) poll(ctx context.Context) {
	if err := c.Resync(ctx); err != nil && ctx.Err() == nil {
		logging.WarnWithContext(c.logger, "board reload failed", "board_reload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the server url and network"),
		)
	}
}

// Move proposes moving orderID to toStageID.
func (c *Controller) Move(ctx context.Context, orderID, toStageID string) error {
	return c.Edit(ctx, orderID, board.Patch{StageID: &toStageID})
}

// Edit applies patch to one order.
func (c *Controller) Edit(ctx context.Context, orderID string, patch board.Patch) error {
	if strings.TrimSpace(orderID) == "" {
		return board.InvalidInputf("order id must not be blank")
	}
	if patch.IsEmpty() {
		return board.InvalidInputf("patch sets no field")
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	ids := []string{orderID}
	return c.mutate(ctx, ids, patch, func() error {
		return c.backend.UpdateAssignment(ctx, orderID, patch)
	})
}

// Bulk applies patch to every listed order.
func (c *Controller) Bulk(ctx context.Context, orderIDs []string, patch board.Patch) error {
	ids := uniqueIDs(orderIDs)
	if len(ids) == 0 {
		return board.InvalidInputf("order ids must not be empty")
	}
	if patch.Notes != nil {
		return board.InvalidInputf("notes cannot be bulk updated")
	}
	if patch.IsEmpty() {
		return board.InvalidInputf("patch sets no field")
	}
	if err := patch.Validate(); err != nil {
		return err
	}
	return c.mutate(ctx, ids, patch, func() error {
		return c.backend.BulkUpdate(ctx, ids, patch)
	})
}

func (c *Controller) mutate(ctx context.Context, ids []string, patch board.Patch, call func() error) error {
	c.mu.Lock()
	c.publish(func(s *Snapshot) {
		applyPatch(&s.Board, ids, patch, c.now())
		for _, id := range ids {
			s.Pending[id]++
		}
	})
	c.mu.Unlock()

	err := call()

	c.mu.Lock()
	if err == nil {
		c.publish(func(s *Snapshot) { clearPending(s, ids) })
		c.mu.Unlock()
		return nil
	}
	c.discard(ids)
	c.mu.Unlock()

	logger := logging.WithContext(ctx, c.logger)
	if errors.Is(err, board.ErrUnauthorized) {
		logging.WarnWithContext(logger, "mutation rejected", "mutation_unauthorized",
			logging.Int("orders", len(ids)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "refresh the board token"),
		)
		return err
	}
	logger.Info("mutation failed; reloading board",
		logging.Int("orders", len(ids)),
		logging.Error(err),
	)
	if resyncErr := c.Resync(ctx); resyncErr != nil {
		logging.WarnWithContext(logger, "board reload after failed mutation failed", "board_reload_failed",
			logging.Error(resyncErr),
		)
	}
	return err
}

// discard replaces the board with the last fetched one. Callers hold c.mu.
func (c *Controller) discard(ids []string) {
	c.publish(func(s *Snapshot) {
		clearPending(s, ids)
		if c.authoritative == nil {
			s.Board = board.Board{}
			s.FetchedAt = time.Time{}
			s.Stale = true
			return
		}
		s.Board = c.authoritative.Board.Clone()
		s.FetchedAt = c.authoritative.FetchedAt
	})
}

func clearPending(s *Snapshot, ids []string) {
	for _, id := range ids {
		if s.Pending[id] <= 1 {
			delete(s.Pending, id)
			continue
		}
		s.Pending[id]--
	}
}

// applyPatch mirrors the server edit semantics on a local board: a changed
// field refreshes lastUpdated, an unchanged one is a no-op.
func applyPatch(b *board.Board, ids []string, patch board.Patch, now time.Time) {
	targets := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		targets[id] = struct{}{}
	}
	for i, a := range b.Assignments {
		if _, ok := targets[a.OrderID]; !ok {
			continue
		}
		moved := patch.ChangesStage(a)
		updated, changed := patch.ApplyTo(a)
		if moved {
			updated.StageID = *patch.StageID
		}
		if moved || changed {
			updated.LastUpdated = now
			b.Assignments[i] = updated
		}
	}
}

func uniqueIDs(ids []string) []string {
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
