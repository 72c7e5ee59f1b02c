package metrics

import "time"

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Event stamps a new event with the current time.
func Event(name string, tags map[string]string) MetricsEvent {
	return MetricsEvent{Name: name, Time: time.Now(), Tags: tags}
}

// Event names emitted by the session engine.
const (
	EventAudioIn       = "stt_audio_in"
	EventSTTFinal      = "stt_final"
	EventLLMDone       = "llm_done"
	EventTTSFirstAudio = "tts_first_audio"
	EventBargeIn       = "barge_in"
	EventFrameOut      = "frame_out"
	EventReplyComplete = "reply_complete"
	EventCodecFallback = "codec_fallback"
	EventSilenceTimer  = "silence_timer_fired"
	EventRateLimit     = "rate_limited"
	EventBreakerDenied = "breaker_denied"
)
