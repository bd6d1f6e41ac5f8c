package imix

import (
	"context"
	"time"

	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/logger"
)

// ServiceType is the service type tag for IMIX simulator connections.
const ServiceType = "imix"

// Settings keys understood by the provider.
const (
	SettingURL              = "url"
	SettingToken            = "token"
	SettingBufferSize       = "buffer_size"
	SettingWriteTimeout     = "write_timeout_seconds"
	SettingPingInterval     = "ping_interval_seconds"
	SettingPingTimeout      = "ping_timeout_seconds"
	SettingHandshakeTimeout = "handshake_timeout_seconds"
)

// Provider creates IMIX simulator connections. Endpoint settings come either
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
		log:      logger.WithComponent("imix.provider"),
	}
}

func (p *Provider) ServiceType() string { return ServiceType }

// CreateConnection dials the simulator and sends the logon message.
func (p *Provider) CreateConnection(ctx context.Context, connectionID string, settings connection.Settings) (connection.Connection, error) {
	if settings == nil {
		settings = p.defaults[connectionID]
	}

	url := settings.String(SettingURL, "")
	if url == "" {
		return nil, errors.InvalidInput(SettingURL, "imix connection requires a url")
	}

	opts := options{
		url:              url,
		token:            settings.String(SettingToken, ""),
		bufferSize:       settings.Int(SettingBufferSize, 256),
		writeTimeout:     time.Duration(settings.Int(SettingWriteTimeout, 5)) * time.Second,
		pingInterval:     time.Duration(settings.Int(SettingPingInterval, 30)) * time.Second,
		pingTimeout:      time.Duration(settings.Int(SettingPingTimeout, 90)) * time.Second,
		handshakeTimeout: time.Duration(settings.Int(SettingHandshakeTimeout, 10)) * time.Second,
	}

	conn := newConn(connectionID, opts, p.log)
	if err := conn.connect(ctx); err != nil {
		p.log.Error("imix dial failed", logger.ErrorFields("dial", err), logger.ConnFields(ServiceType, connectionID))
		return nil, errors.ConnectionFailed(url, err)
	}
	if err := conn.logon(); err != nil {
		_ = conn.Close(ctx)
		return nil, errors.ConnectionFailed(url, err)
	}

	p.log.Info("imix session established", logger.Fields(
		logger.FieldConnectionID, connectionID,
		"url", url,
	))
	return conn, nil
}
