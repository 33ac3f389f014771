package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerTripsAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(2, 1, time.Minute)
	now := time.Unix(0, 0)
	cb.now = func() time.Time { return now }

	var transitions []string
	cb.SetStateChangeCallback(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	boom := errors.New("boom")
	_ = cb.Execute(func() error { return boom }, nil)
	if cb.GetState() != StateClosed {
		t.Fatalf("one failure should not trip")
	}
	_ = cb.Execute(func() error { return boom }, nil)
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open after threshold")
	}
	if err := cb.Execute(func() error { return nil }, nil); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := cb.Execute(func() error { return nil }, nil); err != nil {
		t.Fatalf("probe should run, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed after successful probe, got %s", cb.GetState())
	}
	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}
}

func TestBreakerIgnoresNonFailures(t *testing.T) {
	cb := NewCircuitBreaker(1, 1, time.Minute)
	notFound := errors.New("not found")
	err := cb.Execute(func() error { return notFound }, func(err error) bool { return !errors.Is(err, notFound) })
	if !errors.Is(err, notFound) {
		t.Fatalf("expected error passthrough, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("ignored errors must not trip the breaker")
	}
}
