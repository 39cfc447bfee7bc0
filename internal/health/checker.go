// Package health monitors ledger store connectivity for readiness probes.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds health check configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// StoreProber is the minimal store surface the checker needs.
type StoreProber interface {
	Ping(ctx context.Context) error
	CountAll(ctx context.Context) (int64, error)
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(success bool)

// Snapshot is the cached readiness state served by /readyz.
type Snapshot struct {
	Ready       bool
	TotalEvents int64
	CheckedAt   time.Time
}

// Checker periodically probes the ledger store and caches the result, so
// readiness probes never block on a slow or unreachable database.
type Checker struct {
	store     StoreProber
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger

	mu        sync.Mutex
	failCount int
	snap      Snapshot
}

// New creates a Checker and runs one immediate probe so the first /readyz
// answer is never a zero value.
func New(store StoreProber, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 15 * time.Second
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}

	c := &Checker{store: store, cfg: cfg, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout)
	c.Check(ctx)
	cancel()

	return c
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start runs the probe loop until stop is closed. The channel is dedicated
// to the checker: sharing the process signal channel would race the main
// goroutine for the single delivered signal and could swallow shutdown.
func (c *Checker) Start(stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ProbeTimeout)
			c.Check(ctx)
			cancel()
		case <-stop:
			return
		}
	}
}

// Check probes the store once and updates the cached snapshot. Readiness
// degrades only after FailThreshold consecutive failures, and a single
// success restores it.
func (c *Checker) Check(ctx context.Context) {
	now := time.Now().UTC()

	err := c.store.Ping(ctx)
	var total int64
	if err == nil {
		total, err = c.store.CountAll(ctx)
	}
	success := err == nil

	if c.onMetrics != nil {
		c.onMetrics(success)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prevReady := c.snap.Ready
	if success {
		c.failCount = 0
		c.snap = Snapshot{Ready: true, TotalEvents: total, CheckedAt: now}
		if !prevReady {
			c.logger.Info("store reachable", zap.Int64("total_events", total))
		}
		return
	}

	c.failCount++
	c.snap.CheckedAt = now
	if c.failCount >= c.cfg.FailThreshold && c.snap.Ready {
		c.snap.Ready = false
		c.logger.Warn("store unreachable, degrading readiness",
			zap.Int("fail_count", c.failCount),
			zap.Error(err),
		)
	} else {
		c.logger.Warn("store probe failed",
			zap.Int("fail_count", c.failCount),
			zap.Error(err),
		)
	}
}

// Snapshot returns the last cached probe result.
func (c *Checker) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}
