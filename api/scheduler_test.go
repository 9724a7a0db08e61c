package api_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hearth/debt-engine/api"
	"github.com/hearth/debt-engine/banksync"
	"github.com/hearth/debt-engine/engine"
	"github.com/hearth/debt-engine/store/memory"
)

func newTestScheduler(t *testing.T) *api.ProjectionScheduler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(memory.New(), banksync.New(log), log)
	ps := api.NewProjectionScheduler(eng, log)
	ps.CheckInterval = 10 * time.Millisecond
	return ps
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	// Shutdown paths can reach Stop from more than one caller.
	ps := newTestScheduler(t)
	ps.Start()
	ps.Stop()
	assert.NotPanics(t, func() { ps.Stop() })
}

func TestScheduler_StopBeforeStartIsNoOp(t *testing.T) {
	ps := newTestScheduler(t)
	assert.NotPanics(t, func() { ps.Stop() })
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	ps := newTestScheduler(t)
	ps.Enabled = false
	ps.Start()
	assert.NotPanics(t, func() { ps.Stop() })
}
