// Package daemon repeats an audit on a fixed interval until stopped.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
)

// AuditFunc runs one audit.
type AuditFunc func(ctx context.Context) error

// Config holds daemon configuration.
type Config struct {
	Interval time.Duration
}

// Daemon runs an audit immediately and then once per interval. A failed
// audit is logged and the loop carries on.
type Daemon struct {
	interval  time.Duration
	audit     AuditFunc
	startTime time.Time

	runs     atomic.Int64
	failures atomic.Int64

	mu      sync.RWMutex
	lastErr error
	lastRun time.Time
}

// New creates a daemon.
func New(cfg Config, audit AuditFunc) (*Daemon, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive (got %s)", cfg.Interval)
	}
	if audit == nil {
		return nil, errors.New("audit func is required")
	}
	return &Daemon{
		interval:  cfg.Interval,
		audit:     audit,
		startTime: time.Now(),
	}, nil
}

// Start runs the audit loop until ctx is done.
func (d *Daemon) Start(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

// Run starts the loop in a run group next to a signal handler, so SIGINT
// or SIGTERM stop it cleanly.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group
	g.Add(func() error {
		return d.Start(ctx)
	}, func(error) {
		cancel()
	})
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	err := g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Daemon) runOnce(ctx context.Context) {
	d.runs.Add(1)
	err := d.audit(ctx)

	d.mu.Lock()
	d.lastErr = err
	d.lastRun = time.Now()
	d.mu.Unlock()

	if err != nil {
		d.failures.Add(1)
		log.Error().Err(err).Msg("audit failed")
	}
}

// Health returns daemon health status.
func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	h := HealthStatus{
		Status:   "healthy",
		Uptime:   int64(time.Since(d.startTime).Seconds()),
		Runs:     d.runs.Load(),
		Failures: d.failures.Load(),
		LastRun:  d.lastRun,
	}
	if d.lastErr != nil {
		h.Status = "degraded"
		h.LastError = d.lastErr.Error()
	}
	return h
}

// HealthStatus represents daemon health.
type HealthStatus struct {
	Status    string
	Uptime    int64
	Runs      int64
	Failures  int64
	LastRun   time.Time
	LastError string
}
