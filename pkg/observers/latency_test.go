package observers

import (
	"testing"
	"time"

	"github.com/wicara-ai/wicara/pkg/frames"
	"github.com/wicara-ai/wicara/pkg/metrics"
)

func TestLatencyObserverBuildsTrace(t *testing.T) {
	obs := NewLatencyObserver(nil)
	base := time.Now()
	tags := map[string]string{frames.MetaCallSID: "CA123"}

	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventAudioIn, Time: base, Tags: tags})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventSTTFinal, Time: base.Add(300 * time.Millisecond), Tags: tags})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventLLMDone, Time: base.Add(800 * time.Millisecond), Tags: tags})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventTTSFirstAudio, Time: base.Add(1100 * time.Millisecond), Tags: tags})

	tr := obs.traces["CA123"]
	if tr == nil {
		t.Fatal("expected trace for call")
	}
	if got := durationMs(tr.sttFinal, tr.ttsFirst); got != 800 {
		t.Fatalf("ttfb = %d, want 800", got)
	}
}

func TestLatencyObserverIgnoresUntaggedEvents(t *testing.T) {
	obs := NewLatencyObserver(nil)
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventAudioIn, Time: time.Now()})
	if len(obs.traces) != 0 {
		t.Fatalf("expected no traces, got %d", len(obs.traces))
	}
}

func TestLatencyObserverResetsWindowOnNewFinal(t *testing.T) {
	obs := NewLatencyObserver(nil)
	base := time.Now()
	tags := map[string]string{frames.MetaCallSID: "CA456"}

	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventSTTFinal, Time: base, Tags: tags})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventTTSFirstAudio, Time: base.Add(time.Second), Tags: tags})
	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventSTTFinal, Time: base.Add(5 * time.Second), Tags: tags})

	tr := obs.traces["CA456"]
	if !tr.ttsFirst.IsZero() {
		t.Fatal("expected tts mark cleared after new final transcript")
	}
}
