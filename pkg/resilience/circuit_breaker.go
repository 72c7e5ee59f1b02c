package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wicara-ai/wicara/pkg/errorsx"
	"github.com/wicara-ai/wicara/pkg/logging"
)

// RateLimitError is a vendor 429. The breaker counts only these;
// ordinary failures stay with the retry layer.
type RateLimitError struct {
	Vendor  string
	Message string
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Vendor + ": " + e.Message
	}
	return e.Vendor + ": rate limited"
}

// IsRateLimit reports whether err is a vendor rate limit, either as a
// RateLimitError or carrying the tts_rate_limit reason code.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	return errorsx.HasReason(err, errorsx.ReasonTTSRateLimit)
}

// CircuitBreaker sheds requests to a vendor after repeated rate
// limits, so a live call fails over fast instead of stalling behind a
// vendor in backoff.
type CircuitBreaker struct {
	vendor string
	log    *slog.Logger

	mu        sync.Mutex
	failures  int
	threshold int
	openUntil time.Time
	cooldown  time.Duration
}

func NewCircuitBreaker(vendor string, threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		vendor: vendor,
		log: logging.NewComponentLogger(slog.Default(), "breaker").With(
			slog.String("vendor", vendor)),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !time.Now().Before(c.openUntil)
}

func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	wasOpen := !c.openUntil.IsZero()
	c.failures = 0
	c.openUntil = time.Time{}
	c.mu.Unlock()
	if wasOpen {
		c.log.Info("vendor_breaker_closed")
	}
}

func (c *CircuitBreaker) OnError(err error) {
	if !IsRateLimit(err) {
		return
	}
	c.mu.Lock()
	c.failures++
	now := time.Now()
	opened := false
	if c.failures >= c.threshold {
		opened = !now.Before(c.openUntil)
		c.openUntil = now.Add(c.cooldown)
	}
	failures := c.failures
	c.mu.Unlock()
	if opened {
		c.log.Warn("vendor_breaker_open",
			slog.Int("failures", failures),
			slog.Duration("cooldown", c.cooldown))
	}
}
