package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wicara-ai/wicara/pkg/adapters/stt"
	"github.com/wicara-ai/wicara/pkg/frames"
)

type STTConfig struct {
	StreamID          string
	CallSID           string
	TraceID           string
	Transcript        string
	InterimTranscript string
	EmitInterim       bool
	EmitVAD           bool
	EmitUtteranceEnd  bool
}

// StreamingSTT replays a scripted recognition sequence the first time
// audio arrives. Useful for exercising the session loop without a
// vendor connection.
type StreamingSTT struct {
	cfg     STTConfig
	out     chan frames.Frame
	cancel  context.CancelFunc
	mu      sync.Mutex
	started bool
	emitted bool
}

func NewSTT(cfg STTConfig) *StreamingSTT {
	if cfg.Transcript == "" {
		cfg.Transcript = "mock transcript"
	}
	return &StreamingSTT{cfg: cfg, out: make(chan frames.Frame, 16)}
}

func (s *StreamingSTT) Name() string { return "mock_stt" }

func (s *StreamingSTT) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, s.cancel = context.WithCancel(ctx)
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *StreamingSTT) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.out != nil {
		close(s.out)
		s.out = nil
	}
	s.started = false
	return nil
}

func (s *StreamingSTT) SendAudio(frame frames.AudioFrame) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.New("not started")
	}
	if s.emitted {
		s.mu.Unlock()
		return nil
	}
	s.emitted = true
	out := s.out
	s.mu.Unlock()

	if s.cfg.EmitVAD {
		out <- frames.NewControlFrame(s.cfg.StreamID, time.Now().UnixNano(), frames.ControlSpeechStart,
			s.meta(map[string]string{frames.MetaReason: "speech_started"}))
	}
	if s.cfg.EmitInterim {
		interim := s.cfg.InterimTranscript
		if interim == "" {
			interim = s.cfg.Transcript
		}
		out <- frames.NewTextFrame(s.cfg.StreamID, time.Now().UnixNano(), interim,
			s.meta(map[string]string{frames.MetaIsFinal: "false"}))
	}
	out <- frames.NewTextFrame(s.cfg.StreamID, time.Now().UnixNano(), s.cfg.Transcript,
		s.meta(map[string]string{frames.MetaIsFinal: "true"}))
	if s.cfg.EmitUtteranceEnd {
		out <- frames.NewControlFrame(s.cfg.StreamID, time.Now().UnixNano(), frames.ControlUtteranceEnd,
			s.meta(map[string]string{frames.MetaReason: "utterance_end"}))
	}
	return nil
}

func (s *StreamingSTT) Results() <-chan frames.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

func (s *StreamingSTT) meta(extra map[string]string) map[string]string {
	meta := map[string]string{
		frames.MetaStreamID: s.cfg.StreamID,
		frames.MetaCallSID:  s.cfg.CallSID,
		frames.MetaSource:   "stt",
	}
	if s.cfg.TraceID != "" {
		meta[frames.MetaTraceID] = s.cfg.TraceID
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
