/*
scheduler.go - Automated projection scheduler

PURPOSE:
  Periodically extends every active instrument's projection forward so
  scheduled statements and payments stay ahead of the calendar without
  anyone pressing a button.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Each pass is a generate-forward run (never a replace): existing chains
    and user edits are untouched, only gaps are filled
  - At most one pass per calendar day actually does work; the rest are
    cheap no-op checks

USAGE:
  scheduler := NewProjectionScheduler(eng, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Generate/Regenerate endpoints (manual runs)
  - engine: RunAll
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hearth/debt-engine/engine"
	"github.com/hearth/debt-engine/ledger"
)

// ProjectionScheduler keeps projections extended in the background.
type ProjectionScheduler struct {
	Engine        *engine.Engine
	CheckInterval time.Duration
	Enabled       bool

	log     *slog.Logger
	ticker  *time.Ticker
	stop    chan struct{}
	stopped bool
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun ledger.Date
}

// NewProjectionScheduler creates a scheduler with the default hourly check.
func NewProjectionScheduler(eng *engine.Engine, log *slog.Logger) *ProjectionScheduler {
	if log == nil {
		log = slog.Default()
	}
	return &ProjectionScheduler{
		Engine:        eng,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (ps *ProjectionScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.log.Info("projection scheduler disabled, not starting")
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)
	go ps.run()

	ps.log.Info("projection scheduler started", "interval", ps.CheckInterval)
}

// Stop stops the scheduler and waits for any in-flight pass to finish.
// Safe to call more than once. The wait happens outside the mutex because
// an in-flight pass takes it to record its run date.
func (ps *ProjectionScheduler) Stop() {
	ps.mu.Lock()
	if ps.ticker == nil || ps.stopped {
		ps.mu.Unlock()
		return
	}
	ps.stopped = true
	ps.ticker.Stop()
	close(ps.stop)
	ps.mu.Unlock()

	ps.wg.Wait()
	ps.log.Info("projection scheduler stopped")
}

func (ps *ProjectionScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.checkAndProcess()

	for {
		select {
		case <-ps.ticker.C:
			ps.checkAndProcess()
		case <-ps.stop:
			return
		}
	}
}

func (ps *ProjectionScheduler) checkAndProcess() {
	today := ledger.Today()

	ps.mu.Lock()
	alreadyRan := ps.lastRun.Equal(today)
	ps.mu.Unlock()
	if alreadyRan {
		return
	}

	batch, err := ps.Engine.RunAll(context.Background(), engine.Options{})
	if err != nil {
		ps.log.Warn("scheduled projection pass failed", "err", err)
		return
	}

	ps.mu.Lock()
	ps.lastRun = today
	ps.mu.Unlock()

	if batch.Created > 0 || batch.Deleted > 0 || len(batch.Failures) > 0 {
		ps.log.Info("scheduled projection pass completed",
			"processed", batch.Processed,
			"created", batch.Created,
			"deleted", batch.Deleted,
			"failures", len(batch.Failures))
	}
}

// RunNow triggers an immediate pass (for testing/admin), ignoring the
// once-per-day guard.
func (ps *ProjectionScheduler) RunNow() {
	ps.mu.Lock()
	ps.lastRun = ledger.Date{}
	ps.mu.Unlock()
	ps.checkAndProcess()
}
