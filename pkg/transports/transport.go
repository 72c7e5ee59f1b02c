package transports

import (
	"context"

	"github.com/wicara-ai/wicara/pkg/frames"
)

// Transport is the vendor-agnostic I/O boundary for audio and control
// frames. Implementations own their network lifecycle.
//
// Inbound, a transport delivers caller audio frames, system frames for
// call lifecycle (call_start, call_end) and mark control frames when
// the far end confirms playback. Outbound it accepts audio frames,
// clear controls to drop queued playback, and mark controls to request
// a playback confirmation.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Recv() <-chan frames.Frame
	Send(frames.Frame) error
}

// OutboundDialer lets a transport place outbound calls.
type OutboundDialer interface {
	Dial(ctx context.Context, to, from, url string) (callSID string, err error)
}

// CallEnder lets a transport hang up an active call from our side.
type CallEnder interface {
	Hangup(ctx context.Context, callSID string) error
}

// ReadyReporter exposes readiness metadata such as webhook URLs, used
// for informational logging only.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
