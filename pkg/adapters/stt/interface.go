package stt

import (
	"context"

	"github.com/wicara-ai/wicara/pkg/frames"
)

// StreamingSTT is the contract for any speech recognition vendor.
//
// Implementations deliver results on the Results channel: text frames
// carrying interim and final transcripts, and control frames for
// voice-activity events (speech_start, utterance_end).
type StreamingSTT interface {
	// Name returns the adapter name for logging and metrics.
	Name() string
	// Start opens the recognizer connection.
	Start(ctx context.Context) error
	// Close shuts the connection down. Results is closed afterwards.
	Close() error
	// SendAudio forwards caller audio to the recognizer.
	SendAudio(frame frames.AudioFrame) error
	// Results is the recognizer event stream.
	Results() <-chan frames.Frame
}

// Config is vendor-agnostic recognizer configuration.
type Config struct {
	StreamID   string
	CallSID    string
	TraceID    string
	SampleRate int
	Encoding   string
	Language   string
	Interim    bool
}
