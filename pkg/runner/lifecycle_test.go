package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLifecycleRunnerDrainsOnStop(t *testing.T) {
	var drained, started, stopped atomic.Bool
	r := NewLifecycleRunner(DrainerFunc(func() error {
		drained.Store(true)
		return nil
	}), Hooks{
		OnStart: func() { started.Store(true) },
		OnStop:  func() { stopped.Store(true) },
	}, time.Second)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for r.State() != StateRunning && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.State() != StateRunning {
		t.Fatalf("state = %v, want running", r.State())
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	if !started.Load() || !drained.Load() || !stopped.Load() {
		t.Fatalf("hooks: started=%v drained=%v stopped=%v", started.Load(), drained.Load(), stopped.Load())
	}
	if r.State() != StateStopped {
		t.Fatalf("state = %v, want stopped", r.State())
	}
}

func TestLifecycleRunnerDrainTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	r := NewLifecycleRunner(DrainerFunc(func() error {
		<-block
		return nil
	}), Hooks{}, 20*time.Millisecond)

	go func() { _ = r.Run(context.Background()) }()
	deadline := time.Now().Add(time.Second)
	for r.State() != StateRunning && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := r.Stop(); err == nil || err.Error() != "drain timeout" {
		t.Fatalf("Stop error = %v, want drain timeout", err)
	}
}

func TestLifecycleRunnerRejectsSecondRun(t *testing.T) {
	r := NewLifecycleRunner(nil, Hooks{}, time.Second)
	go func() { _ = r.Run(context.Background()) }()
	deadline := time.Now().Add(time.Second)
	for r.State() != StateRunning && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("second Run should fail")
	}
	_ = r.Stop()
}
