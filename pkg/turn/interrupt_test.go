package turn

import (
	"sync"
	"testing"

	"github.com/wicara-ai/wicara/pkg/frames"
)

type captureEmitter struct {
	mu     sync.Mutex
	frames []frames.Frame
}

func (c *captureEmitter) Emit(frame frames.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *captureEmitter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newTestInterrupter(emitter InterruptEmitter) *Interrupter {
	return NewInterrupter("stream-1", frames.NewPTSGen(), emitter)
}

func TestTripWhileCalmIsNoop(t *testing.T) {
	emitter := &captureEmitter{}
	i := newTestInterrupter(emitter)

	if i.Trip("speech") {
		t.Fatal("trip reported true while calm")
	}
	if emitter.Count() != 0 {
		t.Fatalf("emitted %d frames, want 0", emitter.Count())
	}
}

func TestTripEmitsSingleClear(t *testing.T) {
	emitter := &captureEmitter{}
	i := newTestInterrupter(emitter)

	i.Arm()
	if !i.AgentSpeaking() {
		t.Fatal("expected agent speaking after arm")
	}
	if !i.Trip("interim transcript") {
		t.Fatal("expected first trip to fire")
	}
	if i.Trip("another transcript") {
		t.Fatal("second trip should be a no-op")
	}
	if i.Trip("speech start") {
		t.Fatal("third trip should be a no-op")
	}
	if emitter.Count() != 1 {
		t.Fatalf("emitted %d clear frames, want 1", emitter.Count())
	}
	cf, ok := emitter.frames[0].(frames.ControlFrame)
	if !ok {
		t.Fatalf("emitted %T, want ControlFrame", emitter.frames[0])
	}
	if cf.Code() != frames.ControlClear {
		t.Fatalf("code = %s, want %s", cf.Code(), frames.ControlClear)
	}
	if i.AgentSpeaking() {
		t.Fatal("agent still marked speaking after trip")
	}
	if !i.Aborted() {
		t.Fatal("expected aborted after trip")
	}
}

func TestTripConcurrentOnlyOneWins(t *testing.T) {
	emitter := &captureEmitter{}
	i := newTestInterrupter(emitter)
	i.Arm()

	var wg sync.WaitGroup
	wins := make(chan bool, 16)
	for n := 0; n < 16; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- i.Trip("racing speech")
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("%d trips won, want exactly 1", won)
	}
	if emitter.Count() != 1 {
		t.Fatalf("emitted %d clear frames, want 1", emitter.Count())
	}
}

func TestSettleRearmsForNextReply(t *testing.T) {
	emitter := &captureEmitter{}
	i := newTestInterrupter(emitter)

	i.Arm()
	i.Trip("speech")
	i.Settle()
	if i.Aborted() {
		t.Fatal("still aborted after settle")
	}

	i.Arm()
	if !i.Trip("speech again") {
		t.Fatal("expected trip to fire on new armed window")
	}
	if emitter.Count() != 2 {
		t.Fatalf("emitted %d clear frames, want 2", emitter.Count())
	}
}
