package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wicara-ai/wicara/pkg/frames"
)

// Transport is an in-memory transport for tests and local runs. It
// implements transports.Transport without any network dependency and
// can echo mark controls back the way a media stream would.
type Transport struct {
	recvCh   chan frames.Frame
	sentCh   chan frames.Frame
	closed   atomic.Bool
	echoMark atomic.Bool
	mu       sync.Mutex
	sent     []frames.Frame
}

func New() *Transport {
	return &Transport{
		recvCh: make(chan frames.Frame, 256),
		sentCh: make(chan frames.Frame, 256),
	}
}

func (t *Transport) Name() string { return "mock" }

// EchoMarks makes the transport bounce outbound mark controls back on
// the receive channel, simulating the far end confirming playback.
func (t *Transport) EchoMarks(v bool) {
	t.echoMark.Store(v)
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		<-ctx.Done()
		_ = t.Stop()
	}()
	return nil
}

func (t *Transport) Stop() error {
	if t.closed.CompareAndSwap(false, true) {
		t.mu.Lock()
		close(t.recvCh)
		close(t.sentCh)
		t.mu.Unlock()
	}
	return nil
}

func (t *Transport) Recv() <-chan frames.Frame { return t.recvCh }

func (t *Transport) Send(f frames.Frame) error {
	if t.closed.Load() {
		return nil
	}
	t.mu.Lock()
	t.sent = append(t.sent, f)
	t.mu.Unlock()
	select {
	case t.sentCh <- f:
	default:
	}
	if t.echoMark.Load() && f.Kind() == frames.KindControl {
		if cf, ok := f.(frames.ControlFrame); ok && cf.Code() == frames.ControlMark {
			t.Push(cf)
		}
	}
	return nil
}

// Push injects an inbound frame into the transport.
func (t *Transport) Push(f frames.Frame) {
	if t.closed.Load() {
		return
	}
	select {
	case t.recvCh <- f:
	default:
	}
}

// Sent exposes outbound frames as a channel for inspection.
func (t *Transport) Sent() <-chan frames.Frame { return t.sentCh }

// SentFrames returns a snapshot of everything sent so far.
func (t *Transport) SentFrames() []frames.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]frames.Frame, len(t.sent))
	copy(out, t.sent)
	return out
}
