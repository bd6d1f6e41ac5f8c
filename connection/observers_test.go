package connection

import (
	"context"
	"testing"
)

func TestCountingObserver(t *testing.T) {
	o := NewCountingObserver()
	ctx := context.Background()

	_ = o.OnConnectionEvent(ctx, NewEvent(EventCreated, "db", "a"))
	_ = o.OnConnectionEvent(ctx, NewEvent(EventCreated, "db", "b"))
	_ = o.OnConnectionEvent(ctx, NewEvent(EventClosed, "db", "a"))

	if got := o.Count("db", "a", EventCreated); got != 1 {
		t.Errorf("expected 1 created for db/a, got %d", got)
	}
	if got := o.Total(EventCreated); got != 2 {
		t.Errorf("expected 2 created total, got %d", got)
	}
	if got := o.Total(EventClosed); got != 1 {
		t.Errorf("expected 1 closed total, got %d", got)
	}
	if got := o.Total(EventError); got != 0 {
		t.Errorf("expected no errors, got %d", got)
	}
}

func TestHealthObserverTracksLifecycle(t *testing.T) {
	o := NewHealthObserver()
	ctx := context.Background()

	if _, tracked := o.Healthy("db", "a"); tracked {
		t.Error("untouched key must not be tracked")
	}

	_ = o.OnConnectionEvent(ctx, NewEvent(EventCreated, "db", "a"))
	if up, tracked := o.Healthy("db", "a"); !tracked || !up {
		t.Errorf("expected up after created, got up=%v tracked=%v", up, tracked)
	}

	_ = o.OnConnectionEvent(ctx, NewErrorEvent("db", "a", context.DeadlineExceeded))
	if up, tracked := o.Healthy("db", "a"); !tracked || up {
		t.Errorf("expected down after error, got up=%v tracked=%v", up, tracked)
	}

	_ = o.OnConnectionEvent(ctx, NewEvent(EventClosed, "db", "a"))
	if _, tracked := o.Healthy("db", "a"); tracked {
		t.Error("closed key must be dropped")
	}
}

func TestLoggingObserverNeverFails(t *testing.T) {
	o := NewLoggingObserver(nil)
	ctx := context.Background()

	for _, e := range []Event{
		NewEvent(EventCreated, "db", "a"),
		NewEvent(EventClosed, "db", "a"),
		NewErrorEvent("db", "a", context.Canceled),
	} {
		if err := o.OnConnectionEvent(ctx, e); err != nil {
			t.Errorf("logging observer must not fail, got %v", err)
		}
	}
}

func TestRegistryServiceTypesSorted(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeProvider{serviceType: "winrm"})
	reg.Register(&fakeProvider{serviceType: "database"})
	reg.Register(&fakeProvider{serviceType: "imix"})

	got := reg.ServiceTypes()
	want := []string{"database", "imix", "winrm"}
	if len(got) != len(want) {
		t.Fatalf("expected %d service types, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
