package turn

import (
	"sync/atomic"

	"github.com/wicara-ai/wicara/pkg/frames"
)

// InterruptEmitter delivers control frames to the transport.
type InterruptEmitter interface {
	Emit(frame frames.Frame) error
}

// Interrupt controller states.
const (
	calm int32 = iota
	armed
	tripped
)

// Interrupter arbitrates barge-in for one call. It is armed while the
// agent is speaking; caller speech then trips it, which tells the
// transport to clear queued playback. Trip is idempotent: exactly one
// clear goes out per armed window no matter how many speech events
// race in, and tripping while calm is a no-op.
//
// The state word is atomic because Trip runs on the recognizer
// delivery goroutine while the outbound framer polls Aborted.
type Interrupter struct {
	state    atomic.Int32
	streamID string
	pts      *frames.PTSGen
	emitter  InterruptEmitter
}

func NewInterrupter(streamID string, pts *frames.PTSGen, emitter InterruptEmitter) *Interrupter {
	return &Interrupter{streamID: streamID, pts: pts, emitter: emitter}
}

// Arm marks the agent as speaking. Any previous trip is cleared.
func (i *Interrupter) Arm() {
	i.state.Store(armed)
}

// Settle returns the controller to calm once playback has finished or
// the aborted reply has been torn down.
func (i *Interrupter) Settle() {
	i.state.Store(calm)
}

// Trip fires on caller speech. It reports true only for the call that
// actually transitioned armed to tripped; that caller emits the single
// clear control frame.
func (i *Interrupter) Trip(reason string) bool {
	if !i.state.CompareAndSwap(armed, tripped) {
		return false
	}
	if i.emitter != nil {
		meta := map[string]string{frames.MetaReason: reason}
		_ = i.emitter.Emit(frames.NewControlFrame(i.streamID, i.pts.Next(i.streamID), frames.ControlClear, meta))
	}
	return true
}

// AgentSpeaking reports whether reply audio may still be flowing.
func (i *Interrupter) AgentSpeaking() bool {
	return i.state.Load() == armed
}

// Aborted reports whether the current reply was interrupted. The
// outbound framer checks this before every frame.
func (i *Interrupter) Aborted() bool {
	return i.state.Load() == tripped
}
