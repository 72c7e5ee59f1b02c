package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	resp, err := Retry(context.Background(), RetryConfig{
		MaxAttempts: 3,
		Sleep:       func(time.Duration) {},
	}, func(context.Context) (Response, error) {
		attempts++
		if attempts < 2 {
			return Response{}, errors.New("transient")
		}
		return Response{Text: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if resp.Text != "ok" || attempts != 2 {
		t.Fatalf("text=%q attempts=%d", resp.Text, attempts)
	}
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, RetryConfig{Sleep: func(time.Duration) {}}, func(context.Context) (Response, error) {
		t.Fatal("fn called with canceled context")
		return Response{}, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetryDoesNotRetryTerminalErrors(t *testing.T) {
	attempts := 0
	terminal := errors.New("bad request")
	_, err := Retry(context.Background(), RetryConfig{
		MaxAttempts: 5,
		Sleep:       func(time.Duration) {},
		IsRetryable: func(err error) bool { return !errors.Is(err, terminal) },
	}, func(context.Context) (Response, error) {
		attempts++
		return Response{}, terminal
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}
