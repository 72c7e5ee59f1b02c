package tts

import "context"

// Synthesizer is the contract for any speech synthesis vendor. One
// call per reply: the full payload comes back in whatever container
// the vendor emits and is normalized downstream.
type Synthesizer interface {
	// Name returns the adapter name for logging and metrics.
	Name() string
	// Synthesize renders text to audio and returns the raw vendor
	// payload.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config is vendor-agnostic synthesis configuration.
type Config struct {
	StreamID string
	CallSID  string
	Voice    string
	Language string
}
