package records

import (
	"context"
	"time"
)

// Utterance is one line of the call transcript.
type Utterance struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// CallRecord summarizes a finished call.
type CallRecord struct {
	CallSID    string
	StreamID   string
	AgentID    string
	FromNumber string
	StartedAt  time.Time
	EndedAt    time.Time
	EndReason  string
	Transcript []Utterance
}

// Sink persists call records. Writes happen after the call has ended
// and never block the media path.
type Sink interface {
	SaveCall(ctx context.Context, rec CallRecord) error
	Close() error
}

// NoopSink discards records.
type NoopSink struct{}

func (NoopSink) SaveCall(context.Context, CallRecord) error { return nil }
func (NoopSink) Close() error                               { return nil }
