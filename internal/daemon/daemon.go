package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gofrs/flock"

	"crabmigrate/internal/assets"
	"crabmigrate/internal/config"
	"crabmigrate/internal/discovery"
	"crabmigrate/internal/documents"
	"crabmigrate/internal/ledger"
	"crabmigrate/internal/linking"
	"crabmigrate/internal/logging"
	"crabmigrate/internal/rewrite"
)

// Daemon coordinates the stores and the HTTP API and enforces
// single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	ledger    *ledger.Store
	assets    *assets.Store
	documents *documents.Store
	discovery *discovery.Service
	rewriter  *rewrite.Rewriter

	lockPath string
	lock     *flock.Flock

	server *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	DatabasePath string
	LockFilePath string
	APIAddress   string
}

// New constructs a daemon with initialized stores and the linking hook
// attached.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	ledgerStore, err := ledger.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	assetStore, err := assets.Open(cfg)
	if err != nil {
		_ = ledgerStore.Close()
		return nil, fmt.Errorf("open asset catalog: %w", err)
	}
	documentStore, err := documents.Open(cfg)
	if err != nil {
		_ = ledgerStore.Close()
		_ = assetStore.Close()
		return nil, fmt.Errorf("open document store: %w", err)
	}

	linking.NewLinker(cfg, assetStore, ledgerStore, logger).Attach()

	lockPath := cfg.LockFilePath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "daemon"),
		ledger:    ledgerStore,
		assets:    assetStore,
		documents: documentStore,
		discovery: discovery.NewService(cfg, assetStore, ledgerStore, logger),
		rewriter:  rewrite.NewRewriter(documentStore, ledgerStore, assetStore, logger),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock and brings up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another instance holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.InfoContext(ctx, "daemon started",
		logging.String("database", d.cfg.DatabasePath()),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts the API down, releases the lock, and closes the stores.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.server.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release lock", logging.Error(err))
	}
	_ = d.documents.Close()
	_ = d.assets.Close()
	_ = d.ledger.Close()
	d.logger.Info("daemon stopped")
}

// Handler exposes the HTTP API mux, mainly for tests.
func (d *Daemon) Handler() http.Handler {
	return d.server.Handler()
}

// Status reports runtime information for the status command.
func (d *Daemon) Status() Status {
	addr := ""
	if d.server != nil {
		addr = d.server.Address()
	}
	return Status{
		Running:      d.running.Load(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		APIAddress:   addr,
	}
}
