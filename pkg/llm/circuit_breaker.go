package llm

import (
	"context"
	"time"

	"github.com/wicara-ai/wicara/pkg/metrics"
	"github.com/wicara-ai/wicara/pkg/resilience"
)

// BreakerGenerator wraps a Generator with rate-limit circuit breaking.
type BreakerGenerator struct {
	inner   Generator
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
}

func NewBreakerGenerator(inner Generator, breaker *resilience.CircuitBreaker) *BreakerGenerator {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(inner.Name(), 3, 30*time.Second)
	}
	return &BreakerGenerator{inner: inner, breaker: breaker, obs: metrics.NoopObserver{}}
}

func (g *BreakerGenerator) Name() string { return g.inner.Name() }

// SetObserver enables metrics emission for breaker events.
func (g *BreakerGenerator) SetObserver(obs metrics.Observer) {
	if obs != nil {
		g.obs = obs
	}
}

func (g *BreakerGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	if !g.breaker.Allow() {
		g.obs.RecordEvent(metrics.Event(metrics.EventBreakerDenied, nil))
		return Response{}, resilience.RateLimitError{Vendor: g.Name(), Message: "degraded"}
	}
	resp, err := g.inner.Generate(ctx, req)
	if err != nil {
		if resilience.IsRateLimit(err) {
			g.obs.RecordEvent(metrics.Event(metrics.EventRateLimit, nil))
		}
		g.breaker.OnError(err)
		return Response{}, err
	}
	g.breaker.OnSuccess()
	return resp, nil
}

var _ Generator = (*BreakerGenerator)(nil)
