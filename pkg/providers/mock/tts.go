package mock

import (
	"context"
	"sync"

	"github.com/wicara-ai/wicara/pkg/adapters/tts"
)

type TTSConfig struct {
	// Payload is returned for every synthesis call. Defaults to a
	// short headerless PCM blob.
	Payload []byte
	// Err, when set, fails every call.
	Err error
	// Delay blocks synthesis until the context is done, simulating a
	// slow vendor.
	Block bool
}

// Synthesizer returns a canned payload and records what it was asked
// to speak.
type Synthesizer struct {
	cfg   TTSConfig
	mu    sync.Mutex
	texts []string
}

func NewTTS(cfg TTSConfig) *Synthesizer {
	if cfg.Payload == nil && cfg.Err == nil {
		cfg.Payload = make([]byte, 640)
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.cfg.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.cfg.Err != nil {
		return nil, s.cfg.Err
	}
	return s.cfg.Payload, nil
}

// Texts returns everything synthesized so far.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
