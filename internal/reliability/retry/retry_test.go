package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errConflict = errors.New("conflict")

func TestDoRetriesMatchingErrors(t *testing.T) {
	calls := 0
	cfg := ConflictConfig(func(err error) bool { return errors.Is(err, errConflict) })
	got, err := Do(context.Background(), cfg, nil, "update", func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errConflict
		}
		return 42, nil
	})
	if err != nil || got != 42 || calls != 3 {
		t.Fatalf("got=%d err=%v calls=%d", got, err, calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	other := errors.New("denied")
	cfg := ConflictConfig(func(err error) bool { return errors.Is(err, errConflict) })
	_, err := Do(context.Background(), cfg, nil, "update", func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, other
	})
	if !errors.Is(err, other) || calls != 1 {
		t.Fatalf("expected one call and passthrough, err=%v calls=%d", err, calls)
	}
}

func TestDoGivesUp(t *testing.T) {
	cfg := &Config{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
	_, err := Do(context.Background(), cfg, nil, "flaky", func(ctx context.Context) (int, error) {
		return 0, errConflict
	})
	if !errors.Is(err, errConflict) {
		t.Fatalf("expected wrapped last error, got %v", err)
	}
}

func TestDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Do(ctx, DefaultConfig(), nil, "cancelled", func(ctx context.Context) (int, error) {
		t.Fatal("fn must not run after cancellation")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCalculateBackoffCaps(t *testing.T) {
	cfg := &Config{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, BackoffMultiplier: 2}
	if got := calculateBackoff(5, cfg); got != 3*time.Second {
		t.Fatalf("expected cap, got %s", got)
	}
}
