package tts

import (
	"context"
	"time"

	"github.com/wicara-ai/wicara/pkg/metrics"
	"github.com/wicara-ai/wicara/pkg/resilience"
)

// BreakerSynthesizer wraps a Synthesizer with rate-limit circuit
// breaking. When the vendor repeatedly rate-limits us the breaker
// opens and synthesis fails fast instead of queueing work the vendor
// will reject anyway.
type BreakerSynthesizer struct {
	inner   Synthesizer
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
}

func NewBreakerSynthesizer(inner Synthesizer, breaker *resilience.CircuitBreaker) *BreakerSynthesizer {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(inner.Name(), 3, 30*time.Second)
	}
	return &BreakerSynthesizer{inner: inner, breaker: breaker, obs: metrics.NoopObserver{}}
}

func (b *BreakerSynthesizer) Name() string { return b.inner.Name() }

// SetObserver enables metrics emission for breaker events.
func (b *BreakerSynthesizer) SetObserver(obs metrics.Observer) {
	if obs != nil {
		b.obs = obs
	}
}

func (b *BreakerSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !b.breaker.Allow() {
		b.obs.RecordEvent(metrics.Event(metrics.EventBreakerDenied, nil))
		return nil, resilience.RateLimitError{Vendor: b.Name(), Message: "degraded"}
	}
	out, err := b.inner.Synthesize(ctx, text)
	if err != nil {
		if resilience.IsRateLimit(err) {
			b.obs.RecordEvent(metrics.Event(metrics.EventRateLimit, nil))
		}
		b.breaker.OnError(err)
		return nil, err
	}
	b.breaker.OnSuccess()
	return out, nil
}

var _ Synthesizer = (*BreakerSynthesizer)(nil)
