package harness

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/skillsenselab/harnesskit/config"
	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/database"
	"github.com/skillsenselab/harnesskit/dbserver"
	"github.com/skillsenselab/harnesskit/imix"
	"github.com/skillsenselab/harnesskit/logger"
	"github.com/skillsenselab/harnesskit/observability"
	"github.com/skillsenselab/harnesskit/remotecmd"
	"github.com/skillsenselab/harnesskit/sshexec"
	"github.com/skillsenselab/harnesskit/version"
)

// ProviderFactory builds a provider from per-connection-id default settings.
type ProviderFactory func(defaults map[string]connection.Settings) connection.Provider

// builtinFactories maps service types to their provider constructors.
var builtinFactories = map[string]ProviderFactory{
	remotecmd.ServiceType: func(d map[string]connection.Settings) connection.Provider { return remotecmd.NewProvider(d) },
	sshexec.ServiceType:   func(d map[string]connection.Settings) connection.Provider { return sshexec.NewProvider(d) },
	database.ServiceType:  func(d map[string]connection.Settings) connection.Provider { return database.NewProvider(d) },
	imix.ServiceType:      func(d map[string]connection.Settings) connection.Provider { return imix.NewProvider(d) },
	dbserver.ClientServiceType: func(d map[string]connection.Settings) connection.Provider {
		return dbserver.NewClientProvider(d)
	},
}

// Harness owns the assembled connection stack.
type Harness struct {
	cfg     *config.Config
	log     *logger.Logger
	manager *connection.Manager

	counts *connection.CountingObserver
	health *connection.HealthObserver

	factories map[string]ProviderFactory

	mu      sync.Mutex
	started bool
	mp      *sdkmetric.MeterProvider
	tp      *sdktrace.TracerProvider
}

// New builds a harness from configuration. The logger is initialized as a
// side effect so every component logs through the configured sink.
func New(cfg *config.Config) (*Harness, error) {
	if cfg == nil {
		return nil, fmt.Errorf("harness: configuration is required")
	}
	logger.Init(cfg.Logging)

	h := &Harness{
		cfg:       cfg,
		log:       logger.WithComponent("harness"),
		manager:   connection.NewManager(connection.NewRegistry()),
		counts:    connection.NewCountingObserver(),
		health:    connection.NewHealthObserver(),
		factories: builtinFactories,
	}

	h.manager.AttachObserver(connection.NewLoggingObserver(nil))
	h.manager.AttachObserver(h.counts)
	h.manager.AttachObserver(h.health)
	return h, nil
}

// Manager returns the connection manager for direct use.
func (h *Harness) Manager() *connection.Manager { return h.manager }

// Counts returns the event counting observer.
func (h *Harness) Counts() *connection.CountingObserver { return h.counts }

// RegisterFactory overrides or adds the provider factory for a service
// type. Must be called before Start.
func (h *Harness) RegisterFactory(serviceType string, factory ProviderFactory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	merged := make(map[string]ProviderFactory, len(h.factories)+1)
	for st, f := range h.factories {
		merged[st] = f
	}
	merged[serviceType] = factory
	h.factories = merged
}

// Start initializes observability when enabled, registers a provider for
// every enabled service block, and marks the manager ready.
func (h *Harness) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = true
	h.mu.Unlock()

	if err := h.initObservability(ctx); err != nil {
		return err
	}

	for serviceType, svc := range h.cfg.Services {
		if !svc.Enable {
			h.log.Debug("service disabled, skipping", logger.Fields(logger.FieldServiceType, serviceType))
			continue
		}
		factory, ok := h.factories[serviceType]
		if !ok {
			h.log.Warn("no provider factory for service type", logger.Fields(logger.FieldServiceType, serviceType))
			continue
		}

		defaults := make(map[string]connection.Settings)
		for _, cc := range h.cfg.EnabledConnections(serviceType) {
			defaults[cc.Name] = connection.Settings(cc.Settings)
		}
		h.manager.RegisterProvider(factory(defaults))
	}

	if err := h.manager.Initialize(ctx); err != nil {
		return err
	}

	h.log.Info("harness started", logger.Fields(
		"name", h.cfg.Name,
		"version", version.Version,
		"providers", h.manager.Registry().Len(),
	))
	return nil
}

// ConnectAll creates every enabled connection from configuration. Creation
// failures are logged and collected; the first error is returned after all
// connections were attempted.
func (h *Harness) ConnectAll(ctx context.Context) error {
	var firstErr error
	for serviceType := range h.cfg.Services {
		if _, ok := h.manager.Provider(serviceType); !ok {
			continue
		}
		for _, cc := range h.cfg.EnabledConnections(serviceType) {
			spanCtx, span := observability.StartSpan(ctx, observability.SpanConnectionCreate,
				trace.WithAttributes(
					attribute.String("service_type", serviceType),
					attribute.String("connection_id", cc.Name),
				))
			_, err := h.manager.CreateConnection(spanCtx, serviceType, cc.Name, nil)
			if err != nil {
				span.RecordError(err)
				h.log.Error("connection failed", logger.ErrorFields("connect", err), logger.ConnFields(serviceType, cc.Name))
				if firstErr == nil {
					firstErr = err
				}
			}
			span.End()
		}
	}
	return firstErr
}

// Stop closes all connections, shuts providers down, and flushes the
// observability pipelines.
func (h *Harness) Stop(ctx context.Context) error {
	spanCtx, span := observability.StartSpan(ctx, observability.SpanConnectionClose,
		trace.WithAttributes(attribute.Int("connections", h.manager.Pool().Len())))
	err := h.manager.Shutdown(spanCtx)
	if err != nil {
		span.RecordError(err)
	}
	span.End()

	for _, serviceType := range h.manager.Registry().ServiceTypes() {
		provider, ok := h.manager.Provider(serviceType)
		if !ok {
			continue
		}
		if closer, ok := provider.(connection.Closeable); ok {
			if cerr := closer.Shutdown(ctx); cerr != nil {
				h.log.Error("provider shutdown failed", logger.ErrorFields("shutdown", cerr), logger.Fields(logger.FieldServiceType, serviceType))
				if err == nil {
					err = cerr
				}
			}
		}
	}

	h.mu.Lock()
	mp, tp := h.mp, h.tp
	h.mp, h.tp = nil, nil
	h.started = false
	h.mu.Unlock()

	if mp != nil {
		_ = mp.Shutdown(ctx)
	}
	if tp != nil {
		_ = tp.Shutdown(ctx)
	}

	h.log.Info("harness stopped")
	return err
}

// Health summarizes the state of every pooled connection.
func (h *Harness) Health(ctx context.Context) *observability.ServiceHealth {
	sh := observability.NewServiceHealth(h.cfg.Name, version.Version)
	for _, key := range h.manager.Pool().Keys() {
		up, err := h.manager.Healthy(ctx, key.ServiceType, key.ConnectionID)
		switch {
		case err != nil:
			sh.AddComponent(observability.ConnectionDown(key.String(), err.Error()))
		case !up:
			sh.AddComponent(observability.ConnectionDown(key.String(), ""))
		default:
			sh.AddComponent(observability.ConnectionUp(key.String()))
		}
	}
	return sh
}

func (h *Harness) initObservability(ctx context.Context) error {
	obs := h.cfg.Observability

	if obs.Metrics.Enable {
		mcfg := observability.DefaultMeterConfig(h.cfg.Name)
		mcfg.Endpoint = obs.Metrics.Endpoint
		mcfg.Insecure = obs.Metrics.Insecure
		mcfg.Interval = obs.Metrics.Interval
		mp, err := observability.InitMeter(ctx, mcfg)
		if err != nil {
			return err
		}
		h.mu.Lock()
		h.mp = mp
		h.mu.Unlock()

		metricsObs, err := observability.NewMetricsObserver(nil)
		if err != nil {
			return err
		}
		h.manager.AttachObserver(metricsObs)
	}

	if obs.Tracing.Enable {
		tcfg := observability.DefaultTracerConfig(h.cfg.Name)
		tcfg.Endpoint = obs.Tracing.Endpoint
		tcfg.Insecure = obs.Tracing.Insecure
		tcfg.SampleRate = obs.Tracing.Sample
		tp, err := observability.InitTracer(ctx, tcfg)
		if err != nil {
			return err
		}
		h.mu.Lock()
		h.tp = tp
		h.mu.Unlock()
	}
	return nil
}
