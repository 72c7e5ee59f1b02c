package metrics

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// AsyncObserver decouples the call path from observer work. Session
// goroutines must never block on metrics, so events go through a
// bounded queue and overflow is dropped and counted instead of
// backpressuring a live call.
type AsyncObserver struct {
	inner   Observer
	ch      chan MetricsEvent
	dropped int64
	warned  atomic.Bool
	closed  atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func NewAsyncObserver(inner Observer, buffer int) *AsyncObserver {
	if buffer <= 0 {
		buffer = 256
	}
	a := &AsyncObserver{
		inner: inner,
		ch:    make(chan MetricsEvent, buffer),
		done:  make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *AsyncObserver) RecordEvent(ev MetricsEvent) {
	if a == nil || a.closed.Load() {
		return
	}
	select {
	case a.ch <- ev:
	default:
		atomic.AddInt64(&a.dropped, 1)
		if a.warned.CompareAndSwap(false, true) {
			slog.Warn("metrics_queue_full", slog.String("dropped_event", ev.Name))
		}
	}
}

// Dropped reports how many events overflowed the queue.
func (a *AsyncObserver) Dropped() int64 {
	return atomic.LoadInt64(&a.dropped)
}

// Close drains queued events into the inner observer before returning,
// so call records flushed at shutdown keep their final counters.
func (a *AsyncObserver) Close() {
	if a == nil {
		return
	}
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.ch)
		<-a.done
		if n := a.Dropped(); n > 0 {
			slog.Info("metrics_events_dropped", slog.Int64("count", n))
		}
	})
}

func (a *AsyncObserver) loop() {
	defer close(a.done)
	for ev := range a.ch {
		a.inner.RecordEvent(ev)
	}
}
