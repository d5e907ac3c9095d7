package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func retryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     10 * time.Millisecond,
		Multiplier:  2,
	}
}

func unavailable() error {
	return &Error{Provider: "mock", Kind: KindUnavailable, Err: errors.New("down")}
}

func TestRetry(t *testing.T) {
	ok := MockResponse{Content: json.RawMessage(`{"ok":true}`)}
	tests := []struct {
		name      string
		script    []MockResponse
		wantErr   ErrorKind
		wantOK    bool
		wantCalls int
	}{
		{"first attempt", []MockResponse{ok}, 0, true, 1},
		{"transient then success", []MockResponse{{Err: unavailable()}, ok}, 0, true, 2},
		{"plain error treated as transient", []MockResponse{{Err: errors.New("reset")}, ok}, 0, true, 2},
		{"all attempts fail", []MockResponse{{Err: unavailable()}, {Err: unavailable()}, {Err: unavailable()}}, KindUnavailable, false, 3},
		{"truncation not retried", []MockResponse{{Err: &Error{Kind: KindTruncated}}, ok}, KindTruncated, false, 1},
		{"invalid response retried once", []MockResponse{
			{Err: &Error{Kind: KindInvalidResponse}},
			{Err: &Error{Kind: KindInvalidResponse}},
			ok,
		}, KindInvalidResponse, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider(tt.script...)
			resp, err := WithRetry(mock, retryConfig()).Generate(context.Background(), Request{})

			if tt.wantOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if string(resp.Content) != `{"ok":true}` {
					t.Errorf("content = %s", resp.Content)
				}
			} else if !IsKind(err, tt.wantErr) {
				t.Fatalf("got %v, want kind %s", err, tt.wantErr)
			}
			if mock.CallCount() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", mock.CallCount(), tt.wantCalls)
			}
		})
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: unavailable()}, MockResponse{Err: unavailable()})
	cfg := retryConfig()
	cfg.InitialWait = time.Hour
	cfg.MaxWait = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := WithRetry(mock, cfg).Generate(ctx, Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("calls = %d, want 1", mock.CallCount())
	}
}

func TestRetry_RateLimitUsesRetryAfter(t *testing.T) {
	r := &RetryProvider{config: retryConfig()}
	err := &Error{Kind: KindRateLimited, RetryAfter: 42 * time.Millisecond}
	if d := r.delay(0, err); d != 42*time.Millisecond {
		t.Errorf("delay = %s, want 42ms", d)
	}
}

func TestRetry_BackoffCapped(t *testing.T) {
	r := &RetryProvider{config: retryConfig()}
	for attempt := range 10 {
		d := r.delay(attempt, unavailable())
		if d < 0 || d > 12*time.Millisecond {
			t.Errorf("attempt %d: delay %s outside [0, MaxWait+20%%]", attempt, d)
		}
	}
}

func TestRetry_ModelIDDelegates(t *testing.T) {
	if got := WithRetry(NewMockProvider(), retryConfig()).ModelID(); got != "mock" {
		t.Errorf("ModelID = %q, want mock", got)
	}
}

type blockingProvider struct{}

func (blockingProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingProvider) ModelID() string { return "blocking" }

func TestWithTimeout(t *testing.T) {
	p := WithTimeout(blockingProvider{}, 5*time.Millisecond)
	_, err := p.Generate(context.Background(), Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	mock := NewMockProvider()
	if WithTimeout(mock, 0) != Provider(mock) {
		t.Error("zero timeout should return the provider unchanged")
	}
}
