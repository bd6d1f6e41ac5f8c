package remotecmd

import (
	"context"
	"fmt"
	"time"

	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/httpclient"
	"github.com/skillsenselab/harnesskit/logger"
	"github.com/skillsenselab/harnesskit/resilience"
)

// ServiceType is the service type tag for REST command connections.
const ServiceType = "remotecmd"

// Settings keys understood by the provider.
const (
	SettingBaseURL = "base_url"
	SettingToken   = "token"
	SettingTimeout = "timeout_seconds"
)

// Provider creates REST command connections. Endpoint settings come either
// from the per-call settings map or from the provider's configured defaults
// keyed by connection id.
type Provider struct {
	defaults map[string]connection.Settings
	log      *logger.Logger
}

// NewProvider creates a provider. The defaults map holds per-connection-id
// settings from configuration and may be nil.
func NewProvider(defaults map[string]connection.Settings) *Provider {
	return &Provider{
		defaults: defaults,
		log:      logger.WithComponent("remotecmd.provider"),
	}
}

func (p *Provider) ServiceType() string { return ServiceType }

// CreateConnection builds a client for the endpoint and verifies its health
// endpoint before handing the connection out.
func (p *Provider) CreateConnection(ctx context.Context, connectionID string, settings connection.Settings) (connection.Connection, error) {
	if settings == nil {
		settings = p.defaults[connectionID]
	}
	baseURL := settings.String(SettingBaseURL, "")
	if baseURL == "" {
		return nil, errors.InvalidInput(SettingBaseURL, "remotecmd connection requires a base_url")
	}

	cfg := httpclient.Config{
		BaseURL: baseURL,
		Timeout: time.Duration(settings.Int(SettingTimeout, 30)) * time.Second,
		Retry:   &retryDefaults,
	}
	if token := settings.String(SettingToken, ""); token != "" {
		cfg.Auth = &httpclient.AuthConfig{BearerToken: token}
	}

	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, err
	}

	conn := &Conn{
		id:     connectionID,
		client: client,
		log:    p.log.WithFields(logger.ConnFields(ServiceType, connectionID)),
	}
	if !conn.Healthy(ctx) {
		return nil, errors.ConnectionFailed(baseURL, fmt.Errorf("health check failed"))
	}
	conn.setConnected(true)

	p.log.Info("remote command endpoint connected", logger.Fields(
		logger.FieldConnectionID, connectionID,
		"base_url", baseURL,
	))
	return conn, nil
}

var retryDefaults = resilience.RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	BackoffFactor:  2.0,
}
