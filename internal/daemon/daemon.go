package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"familyboard/internal/config"
	"familyboard/internal/logging"
)

// LockFile is the name of the single-instance lock inside the data directory.
const LockFile = "board.lock"

const shutdownTimeout = 5 * time.Second

// Daemon owns the HTTP server lifecycle and enforces single-instance execution.
type Daemon struct {
	bind   string
	logger *slog.Logger
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	readyOnce sync.Once
	ready     chan struct{}
	addr      atomic.Value
}

// New constructs a daemon serving deps on the configured bind address.
func New(cfg *config.Config, deps Services, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("daemon requires paths.api_bind")
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	lockPath := filepath.Join(cfg.Paths.DataDir, LockFile)
	return &Daemon{
		bind:     bind,
		logger:   logger,
		api:      newAPIServer(cfg, deps, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		ready:    make(chan struct{}),
	}, nil
}

// Handler exposes the router, mainly for tests that drive it through httptest.
func (d *Daemon) Handler() http.Handler {
	return d.api.router
}

// Ready is closed once the listener is bound.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Addr returns the bound listener address, or "" before Ready.
func (d *Daemon) Addr() string {
	value, _ := d.addr.Load().(string)
	return value
}

// LockPath returns the single-instance lock location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Run acquires the instance lock and serves until ctx ends or the server
// fails. A clean shutdown returns nil.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another board daemon instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	listener, err := net.Listen("tcp", d.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	d.addr.Store(listener.Addr().String())
	d.readyOnce.Do(func() { close(d.ready) })

	server := d.api.httpServer()
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		return nil
	})

	d.logger.Info("board daemon started",
		logging.String("address", listener.Addr().String()),
		logging.String("lock", d.lockPath),
	)
	err = group.Wait()
	d.logger.Info("board daemon stopped")
	return err
}
