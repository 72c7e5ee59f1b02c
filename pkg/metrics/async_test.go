package metrics

import "testing"

func TestAsyncObserverDrainsOnClose(t *testing.T) {
	mem := NewMemoryObserver()
	a := NewAsyncObserver(mem, 16)
	for i := 0; i < 10; i++ {
		a.RecordEvent(Event(EventFrameOut, nil))
	}
	a.Close()
	if n := mem.Count(EventFrameOut); n != 10 {
		t.Fatalf("drained events = %d, want 10", n)
	}
	// Records after close are no-ops, not panics.
	a.RecordEvent(Event(EventFrameOut, nil))
	a.Close()
}

func TestAsyncObserverCountsOverflow(t *testing.T) {
	block := make(chan struct{})
	a := NewAsyncObserver(observerFunc(func(MetricsEvent) { <-block }), 1)
	// First event occupies the worker, second fills the buffer, the
	// rest overflow.
	for i := 0; i < 5; i++ {
		a.RecordEvent(Event(EventBargeIn, nil))
	}
	if a.Dropped() == 0 {
		t.Fatal("expected overflow drops")
	}
	close(block)
	a.Close()
}

type observerFunc func(MetricsEvent)

func (f observerFunc) RecordEvent(ev MetricsEvent) { f(ev) }
