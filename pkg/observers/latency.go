package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/wicara-ai/wicara/pkg/frames"
	"github.com/wicara-ai/wicara/pkg/metrics"
)

// LatencyObserver tracks per-call turn latency from first inbound audio
// through final transcript, reply generation and first outbound audio.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*trace
	log    *slog.Logger
}

type trace struct {
	audioIn  time.Time
	sttFinal time.Time
	llmDone  time.Time
	ttsFirst time.Time
	traceID  string
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*trace),
		log:    log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	callID := ""
	if ev.Tags != nil {
		callID = ev.Tags[frames.MetaCallSID]
	}
	if callID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.traces[callID]
	if t == nil {
		t = &trace{}
		o.traces[callID] = t
	}
	switch ev.Name {
	case metrics.EventAudioIn:
		if t.audioIn.IsZero() {
			t.audioIn = ev.Time
		}
		if t.traceID == "" && ev.Tags != nil {
			t.traceID = ev.Tags[frames.MetaTraceID]
		}
	case metrics.EventSTTFinal:
		// A new utterance restarts the measurement window.
		t.sttFinal = ev.Time
		t.llmDone = time.Time{}
		t.ttsFirst = time.Time{}
	case metrics.EventLLMDone:
		if t.llmDone.IsZero() {
			t.llmDone = ev.Time
		}
	case metrics.EventTTSFirstAudio:
		if t.ttsFirst.IsZero() {
			t.ttsFirst = ev.Time
		}
		o.logTurnLocked(callID, t)
	}
}

func (o *LatencyObserver) logTurnLocked(callID string, t *trace) {
	o.log.Info("latency",
		"call_id", callID,
		"trace_id", t.traceID,
		"stt_ms", durationMs(t.audioIn, t.sttFinal),
		"llm_ms", durationMs(t.sttFinal, t.llmDone),
		"tts_first_audio_ms", durationMs(t.llmDone, t.ttsFirst),
		"ttfb_ms", durationMs(t.sttFinal, t.ttsFirst),
	)
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}
