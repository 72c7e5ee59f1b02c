package observers

import (
	"log/slog"

	"github.com/wicara-ai/wicara/pkg/metrics"
)

// LoggerObserver writes each metrics event as a structured log line.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	attrs := make([]any, 0, 2+len(ev.Tags)*2)
	attrs = append(attrs, "event", ev.Name)
	for k, v := range ev.Tags {
		attrs = append(attrs, k, v)
	}
	o.log.Debug("metric", attrs...)
}

// MultiObserver fans events out to every child observer.
type MultiObserver struct {
	children []metrics.Observer
}

func NewMultiObserver(children ...metrics.Observer) *MultiObserver {
	return &MultiObserver{children: children}
}

func (o *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, c := range o.children {
		c.RecordEvent(ev)
	}
}
