package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestIntervalSchedulerRunsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	var runs atomic.Int32
	fired := make(chan struct{}, 16)
	s := NewIntervalScheduler(5 * time.Millisecond)
	if err := s.Start(context.Background(), func(time.Time) {
		runs.Add(1)
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for range 2 {
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not fire")
		}
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != after {
		t.Fatal("job fired after Stop")
	}
}

func TestIntervalSchedulerStopsOnContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(time.Hour)
	started := make(chan struct{})
	if err := s.Start(ctx, func(time.Time) { close(started) }); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	cancel()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
