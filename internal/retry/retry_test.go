package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetry_SuccessFirstAttempt(t *testing.T) {
	result, err := WithRetry(context.Background(), DefaultOptions("test"), func(attempt int) (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Errorf("expected 'ok', got %q", result)
	}
}

func TestWithRetry_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	opts := Options{MaxAttempts: 5, Delay: time.Millisecond, Name: "push"}
	result, err := WithRetry(context.Background(), opts, func(attempt int) (string, error) {
		calls++
		if calls < 3 {
			return "", Retry()
		}
		return "pushed", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "pushed" {
		t.Errorf("expected 'pushed', got %q", result)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestWithRetry_NonRetriableFailsImmediately(t *testing.T) {
	calls := 0
	wantErr := errors.New("permanent failure")
	_, err := WithRetry(context.Background(), DefaultOptions("test"), func(attempt int) (string, error) {
		calls++
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wantErr, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 attempt for a non-retriable error, got %d", calls)
	}
}

func TestWithRetry_ExhaustsMaxAttempts(t *testing.T) {
	calls := 0
	opts := Options{MaxAttempts: 3, Name: "push"}
	_, err := WithRetry(context.Background(), opts, func(attempt int) (string, error) {
		calls++
		return "", Retry()
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}
