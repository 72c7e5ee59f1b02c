package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wicara-ai/wicara/pkg/errorsx"
)

func TestBreakerOpensOnRateLimits(t *testing.T) {
	cb := NewCircuitBreaker("elevenlabs", 2, time.Minute)
	if !cb.Allow() {
		t.Fatal("new breaker should allow")
	}
	cb.OnError(RateLimitError{Vendor: "elevenlabs"})
	if !cb.Allow() {
		t.Fatal("one rate limit should not open the breaker")
	}
	cb.OnError(RateLimitError{Vendor: "elevenlabs"})
	if cb.Allow() {
		t.Fatal("breaker should open at the threshold")
	}
	cb.OnSuccess()
	if !cb.Allow() {
		t.Fatal("breaker should close on success")
	}
}

func TestBreakerIgnoresPlainErrors(t *testing.T) {
	cb := NewCircuitBreaker("openai", 1, time.Minute)
	cb.OnError(errors.New("timeout"))
	cb.OnError(errors.New("timeout"))
	if !cb.Allow() {
		t.Fatal("plain errors must not open the breaker")
	}
}

func TestIsRateLimitRecognizesReasonCode(t *testing.T) {
	err := errorsx.New("vendor throttled", errorsx.ReasonTTSRateLimit)
	if !IsRateLimit(err) {
		t.Fatal("expected reason-coded rate limit to count")
	}
	if IsRateLimit(errors.New("timeout")) {
		t.Fatal("plain error is not a rate limit")
	}
}

func TestRetryPolicyRetriesTransient(t *testing.T) {
	p := NewRetryPolicy(2, time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicySkipsRateLimits(t *testing.T) {
	p := NewRetryPolicy(3, time.Millisecond)
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return RateLimitError{Vendor: "elevenlabs"}
	})
	if !IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (rate limits go to the breaker)", calls)
	}
}

func TestRetryPolicyStopsOnCancel(t *testing.T) {
	p := NewRetryPolicy(5, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error after cancel")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 after cancel", calls)
	}
}
