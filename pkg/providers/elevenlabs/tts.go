package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wicara-ai/wicara/pkg/adapters/tts"
	"github.com/wicara-ai/wicara/pkg/logging"
	"github.com/wicara-ai/wicara/pkg/resilience"
)

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	BaseURL      string
	StreamID     string
	CallSID      string
}

// Synthesizer renders a reply through the ElevenLabs HTTP endpoint.
// The response body is an MP3 stream unless OutputFormat says
// otherwise; the caller normalizes it downstream.
type Synthesizer struct {
	cfg    Config
	client *http.Client
	retry  resilience.RetryPolicy
	logger *slog.Logger
}

func New(cfg Config) *Synthesizer {
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_turbo_v2_5"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "mp3_22050_32"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	return &Synthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		retry:  resilience.NewRetryPolicy(2, 200*time.Millisecond),
		logger: logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
	}
}

func (s *Synthesizer) Name() string { return "elevenlabs_tts" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.cfg.APIKey == "" || s.cfg.VoiceID == "" {
		return nil, errors.New("missing elevenlabs config")
	}

	var audio []byte
	err := s.retry.Do(ctx, func() error {
		var aerr error
		audio, aerr = s.synthesizeOnce(ctx, text)
		return aerr
	})
	return audio, err
}

func (s *Synthesizer) synthesizeOnce(ctx context.Context, text string) ([]byte, error) {
	payload := map[string]any{
		"text":     text,
		"model_id": s.cfg.ModelID,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.8,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=%s",
		s.cfg.BaseURL, s.cfg.VoiceID, s.cfg.OutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.cfg.APIKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("elevenlabs_request_failed",
			slog.String("stream_id", s.cfg.StreamID),
			slog.String("error", err.Error()))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(resp.Body)
		s.logger.Error("elevenlabs_rate_limited",
			slog.String("stream_id", s.cfg.StreamID),
			slog.String("status", resp.Status))
		return nil, resilience.RateLimitError{Vendor: "elevenlabs", Message: string(msg)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("elevenlabs synthesis failed: %s: %s", resp.Status, string(msg))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("synthesis_complete",
		slog.String("stream_id", s.cfg.StreamID),
		slog.Int("bytes", len(audio)),
		slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return audio, nil
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
