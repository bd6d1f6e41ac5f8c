package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "db", MaxFailures: 3, Timeout: time.Minute})

	fail := func() error { return errors.New("boom") }
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	err := cb.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreakerClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("svc"))

	_ = cb.Execute(func() error { return errors.New("one") })
	_ = cb.Execute(func() error { return nil })

	if cb.State() != StateClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
	if cb.Failures() != 0 {
		t.Errorf("expected failure count reset, got %d", cb.Failures())
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "svc",
		MaxFailures: 1,
		Timeout:     10 * time.Millisecond,
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	time.Sleep(15 * time.Millisecond)

	// First call in half-open succeeds, closing the circuit.
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected half-open call allowed, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after recovery, got %s", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "svc",
		MaxFailures: 1,
		Timeout:     10 * time.Millisecond,
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	time.Sleep(15 * time.Millisecond)

	_ = cb.Execute(func() error { return errors.New("still down") })
	if cb.State() != StateOpen {
		t.Errorf("expected reopened circuit, got %s", cb.State())
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "svc", MaxFailures: 1, Timeout: time.Minute})

	_ = cb.Execute(func() error { return errors.New("boom") })
	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after reset, got %s", cb.State())
	}
}

func TestCircuitBreakerStateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "svc",
		MaxFailures: 1,
		Timeout:     time.Minute,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(func() error { return errors.New("boom") })

	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Errorf("expected closed->open transition, got %v", transitions)
	}
}
