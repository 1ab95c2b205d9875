package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeService struct {
	name     string
	startErr error
	stopped  atomic.Bool
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	<-ctx.Done()
	return nil
}

func (s *fakeService) Stop(context.Context) error {
	s.stopped.Store(true)
	return nil
}

func TestRunnerStopsAllServicesOnFailure(t *testing.T) {
	failing := &fakeService{name: "failing", startErr: errors.New("bind failed")}
	healthy := &fakeService{name: "healthy"}
	runner := NewRunner(failing, healthy)

	var order []string
	runner.OnStop(func(context.Context) { order = append(order, "first") })
	runner.OnStop(func(context.Context) { order = append(order, "second") })

	err := runner.Run(context.Background(), time.Second, nil)
	if err == nil || err.Error() != "bind failed" {
		t.Fatalf("expected start error, got %v", err)
	}
	if !failing.stopped.Load() || !healthy.stopped.Load() {
		t.Fatalf("expected every service to be stopped")
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("unexpected stop hook order: %v", order)
	}
}

func TestRunnerCancelIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(&fakeService{name: "a"})
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if err := runner.Run(ctx, time.Second, nil); err != nil {
		t.Fatalf("cancel should stop cleanly, got %v", err)
	}
	if err := NewRunner().Run(context.Background(), time.Second, nil); err == nil {
		t.Fatalf("expected error for empty runner")
	}
}

func TestReconcileServiceRunsUntilCanceled(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	svc := NewReconcileService(func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("start returned error: %v", err)
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := svc.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls < 2 {
		t.Fatalf("expected repeated reconcile runs, got %d", calls)
	}
}

func TestNormalizeOptionsDefaults(t *testing.T) {
	opts := normalizeOptions(Options{Mode: "unknown"})
	if opts.Mode != ModeAll || opts.Logger == nil || opts.ShutdownTimeout <= 0 {
		t.Fatalf("unexpected normalized options: %+v", opts)
	}
}
