package health_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/veriledger/veriledger/internal/health"
)

// fakeStore is a scriptable StoreProber.
type fakeStore struct {
	err   error
	total int64
}

func (f *fakeStore) Ping(context.Context) error { return f.err }

func (f *fakeStore) CountAll(context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.total, nil
}

func TestChecker_readyAfterSuccessfulProbe(t *testing.T) {
	store := &fakeStore{total: 42}
	c := health.New(store, health.Config{}, zap.NewNop())

	snap := c.Snapshot()
	if !snap.Ready {
		t.Error("expected ready after successful probe")
	}
	if snap.TotalEvents != 42 {
		t.Errorf("total events = %d, want 42", snap.TotalEvents)
	}
	if snap.CheckedAt.IsZero() {
		t.Error("expected CheckedAt to be set")
	}
}

func TestChecker_degradesAtThreshold(t *testing.T) {
	store := &fakeStore{total: 7}
	c := health.New(store, health.Config{FailThreshold: 3}, zap.NewNop())

	store.err = errors.New("connection refused")

	// Below the threshold the cached ready state survives.
	c.Check(context.Background())
	c.Check(context.Background())
	if snap := c.Snapshot(); !snap.Ready {
		t.Error("readiness degraded before fail threshold")
	}

	c.Check(context.Background())
	if snap := c.Snapshot(); snap.Ready {
		t.Error("readiness not degraded at fail threshold")
	}
}

func TestChecker_singleSuccessRestores(t *testing.T) {
	store := &fakeStore{err: errors.New("down"), total: 3}
	c := health.New(store, health.Config{FailThreshold: 1}, zap.NewNop())

	if snap := c.Snapshot(); snap.Ready {
		t.Fatal("expected not ready while store is down")
	}

	store.err = nil
	c.Check(context.Background())

	snap := c.Snapshot()
	if !snap.Ready {
		t.Error("expected ready after recovery")
	}
	if snap.TotalEvents != 3 {
		t.Errorf("total events = %d, want 3", snap.TotalEvents)
	}
}

func TestChecker_startStopsOnDedicatedChannel(t *testing.T) {
	store := &fakeStore{}
	c := health.New(store, health.Config{CheckInterval: 5 * time.Millisecond}, zap.NewNop())

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		c.Start(stop)
		close(done)
	}()

	// Closing the stop channel must end the loop; it carries no value, so
	// the checker can never consume a process signal meant for main.
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after stop channel was closed")
	}
}

func TestChecker_metricsCallback(t *testing.T) {
	store := &fakeStore{}
	c := health.New(store, health.Config{}, zap.NewNop())

	var results []bool
	c.SetMetricsRecord(func(success bool) { results = append(results, success) })

	c.Check(context.Background())
	store.err = errors.New("down")
	c.Check(context.Background())

	if len(results) != 2 || !results[0] || results[1] {
		t.Errorf("metrics callback results = %v, want [true false]", results)
	}
}
