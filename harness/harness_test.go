package harness

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/skillsenselab/harnesskit/config"
	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/observability"
	"github.com/skillsenselab/harnesskit/testutil"
)

func testConfig(services map[string]config.ServiceConfig) *config.Config {
	cfg := &config.Config{
		Name:     "harness-test",
		Services: services,
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestStartRegistersEnabledServices(t *testing.T) {
	cfg := testConfig(map[string]config.ServiceConfig{
		"sim": {Enable: true, Connections: []config.ConnectionConfig{
			{Name: "a", Enable: true, Settings: map[string]any{"host": "10.0.0.1"}},
			{Name: "b", Enable: false},
		}},
		"off": {Enable: false, Connections: []config.ConnectionConfig{
			{Name: "x", Enable: true},
		}},
	})

	h, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var gotDefaults map[string]connection.Settings
	h.RegisterFactory("sim", func(defaults map[string]connection.Settings) connection.Provider {
		gotDefaults = defaults
		return testutil.NewFakeProvider("sim")
	})

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if !h.Manager().Ready() {
		t.Error("manager must be ready after Start")
	}
	if _, ok := h.Manager().Provider("sim"); !ok {
		t.Error("enabled service must have a provider")
	}
	if _, ok := h.Manager().Provider("off"); ok {
		t.Error("disabled service must not have a provider")
	}

	// Only enabled connections feed the provider defaults.
	if len(gotDefaults) != 1 {
		t.Fatalf("expected 1 default, got %d", len(gotDefaults))
	}
	if gotDefaults["a"].String("host", "") != "10.0.0.1" {
		t.Errorf("settings must pass through, got %v", gotDefaults["a"])
	}
}

func TestConnectAllCreatesEnabledConnections(t *testing.T) {
	cfg := testConfig(map[string]config.ServiceConfig{
		"sim": {Enable: true, Connections: []config.ConnectionConfig{
			{Name: "a", Enable: true},
			{Name: "b", Enable: true},
			{Name: "c", Enable: false},
		}},
	})

	provider := testutil.NewFakeProvider("sim")
	h, _ := New(cfg)
	h.RegisterFactory("sim", func(defaults map[string]connection.Settings) connection.Provider {
		return provider
	})
	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := h.ConnectAll(ctx); err != nil {
		t.Fatalf("ConnectAll failed: %v", err)
	}
	if got := h.Manager().Pool().Len(); got != 2 {
		t.Errorf("expected 2 pooled connections, got %d", got)
	}
	if got := provider.Calls(); got != 2 {
		t.Errorf("expected 2 provider calls, got %d", got)
	}
	if got := h.Counts().Total(connection.EventCreated); got != 2 {
		t.Errorf("expected 2 created events, got %d", got)
	}
}

func TestConnectAllCollectsFailures(t *testing.T) {
	cfg := testConfig(map[string]config.ServiceConfig{
		"sim": {Enable: true, Connections: []config.ConnectionConfig{
			{Name: "good", Enable: true},
			{Name: "bad", Enable: true},
		}},
	})

	provider := testutil.NewFakeProvider("sim")
	provider.FailFor = "bad"
	h, _ := New(cfg)
	h.RegisterFactory("sim", func(defaults map[string]connection.Settings) connection.Provider {
		return provider
	})
	ctx := context.Background()
	_ = h.Start(ctx)

	err := h.ConnectAll(ctx)
	if !errors.HasCode(err, errors.ErrCodeCreationFailed) {
		t.Errorf("expected CREATION_FAILED, got %v", err)
	}
	// The good connection still came up.
	if got := h.Manager().Pool().Len(); got != 1 {
		t.Errorf("expected 1 pooled connection, got %d", got)
	}
}

func TestStopShutsDownProvidersAndPool(t *testing.T) {
	cfg := testConfig(map[string]config.ServiceConfig{
		"sim": {Enable: true, Connections: []config.ConnectionConfig{
			{Name: "a", Enable: true},
		}},
	})

	provider := testutil.NewFakeProvider("sim")
	h, _ := New(cfg)
	h.RegisterFactory("sim", func(defaults map[string]connection.Settings) connection.Provider {
		return provider
	})
	ctx := context.Background()
	_ = h.Start(ctx)
	_ = h.ConnectAll(ctx)

	if err := h.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if h.Manager().Pool().Len() != 0 {
		t.Error("pool must be empty after Stop")
	}
	if h.Manager().Ready() {
		t.Error("manager must not be ready after Stop")
	}
	if provider.Shutdowns() != 1 {
		t.Errorf("closeable provider must be shut down once, got %d", provider.Shutdowns())
	}
	created := provider.Created()
	if len(created) != 1 || created[0].Closes() != 1 {
		t.Error("pooled connection must be closed exactly once")
	}
	if got := h.Counts().Total(connection.EventClosed); got != 1 {
		t.Errorf("expected 1 closed event, got %d", got)
	}
}

func TestHealthSummary(t *testing.T) {
	cfg := testConfig(map[string]config.ServiceConfig{
		"sim": {Enable: true, Connections: []config.ConnectionConfig{
			{Name: "a", Enable: true},
		}},
	})

	h, _ := New(cfg)
	h.RegisterFactory("sim", func(defaults map[string]connection.Settings) connection.Provider {
		return testutil.NewFakeProvider("sim")
	})
	ctx := context.Background()
	_ = h.Start(ctx)
	_ = h.ConnectAll(ctx)

	sh := h.Health(ctx)
	if sh.Status != observability.HealthStatusUp {
		t.Errorf("expected overall up, got %s", sh.Status)
	}
	if len(sh.Components) != 1 || sh.Components[0].Name != "sim/a" {
		t.Errorf("unexpected components %+v", sh.Components)
	}
}

func TestEventRecorderSeesLifecycle(t *testing.T) {
	cfg := testConfig(map[string]config.ServiceConfig{
		"sim": {Enable: true, Connections: []config.ConnectionConfig{
			{Name: "a", Enable: true},
		}},
	})

	h, _ := New(cfg)
	h.RegisterFactory("sim", func(defaults map[string]connection.Settings) connection.Provider {
		return testutil.NewFakeProvider("sim")
	})
	rec := &testutil.EventRecorder{}
	h.Manager().AttachObserver(rec)

	ctx := context.Background()
	_ = h.Start(ctx)
	_ = h.ConnectAll(ctx)
	_ = h.Stop(ctx)

	if got := rec.CountByType(connection.EventCreated); got != 1 {
		t.Errorf("expected 1 created event, got %d", got)
	}
	if got := rec.CountByType(connection.EventClosed); got != 1 {
		t.Errorf("expected 1 closed event, got %d", got)
	}
}

func TestLifecycleProducesSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := testConfig(map[string]config.ServiceConfig{
		"sim": {Enable: true, Connections: []config.ConnectionConfig{
			{Name: "a", Enable: true},
		}},
	})

	h, _ := New(cfg)
	h.RegisterFactory("sim", func(defaults map[string]connection.Settings) connection.Provider {
		return testutil.NewFakeProvider("sim")
	})
	ctx := context.Background()
	_ = h.Start(ctx)
	_ = h.ConnectAll(ctx)
	_ = h.Stop(ctx)

	names := make(map[string]int)
	for _, span := range exporter.GetSpans() {
		names[span.Name]++
	}
	if names[observability.SpanConnectionCreate] != 1 {
		t.Errorf("expected 1 %s span, got %d", observability.SpanConnectionCreate, names[observability.SpanConnectionCreate])
	}
	if names[observability.SpanConnectionClose] != 1 {
		t.Errorf("expected 1 %s span, got %d", observability.SpanConnectionClose, names[observability.SpanConnectionClose])
	}
}

func TestUnknownServiceTypeSkipped(t *testing.T) {
	cfg := testConfig(map[string]config.ServiceConfig{
		"mystery": {Enable: true, Connections: []config.ConnectionConfig{
			{Name: "a", Enable: true},
		}},
	})

	h, _ := New(cfg)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start must tolerate unknown service types: %v", err)
	}
	if _, ok := h.Manager().Provider("mystery"); ok {
		t.Error("unknown service type must not be registered")
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil config")
	}
}
