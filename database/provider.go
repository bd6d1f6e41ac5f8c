package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/logger"
)

// ServiceType is the service type tag for PostgreSQL connections.
const ServiceType = "database"

// Settings keys understood by the provider.
const (
	SettingHost     = "host"
	SettingPort     = "port"
	SettingName     = "name"
	SettingUser     = "user"
	SettingPassword = "password"
	SettingSSLMode  = "ssl_mode"
	SettingMinConns = "min_conns"
	SettingMaxConns = "max_conns"
)

// Provider creates pooled PostgreSQL connections. Endpoint settings come
// either from the per-call settings map or from the provider's configured
// defaults keyed by connection id.
type Provider struct {
	defaults map[string]connection.Settings
	log      *logger.Logger
}

// NewProvider creates a provider. The defaults map holds per-connection-id
// settings from configuration and may be nil.
func NewProvider(defaults map[string]connection.Settings) *Provider {
	return &Provider{
		defaults: defaults,
		log:      logger.WithComponent("database.provider"),
	}
}

func (p *Provider) ServiceType() string { return ServiceType }

// CreateConnection builds a pgx pool for the endpoint and pings it before
// handing the connection out.
func (p *Provider) CreateConnection(ctx context.Context, connectionID string, settings connection.Settings) (connection.Connection, error) {
	if settings == nil {
		settings = p.defaults[connectionID]
	}

	cfg := DBConfig{
		Host:     settings.String(SettingHost, ""),
		Port:     settings.Int(SettingPort, 5432),
		Name:     settings.String(SettingName, ""),
		User:     settings.String(SettingUser, ""),
		Password: settings.String(SettingPassword, ""),
		SSLMode:  settings.String(SettingSSLMode, ""),
		MinConns: settings.Int(SettingMinConns, 1),
		MaxConns: settings.Int(SettingMaxConns, 4),
	}
	if cfg.Host == "" {
		return nil, errors.InvalidInput(SettingHost, "database connection requires a host")
	}
	if cfg.Name == "" {
		return nil, errors.InvalidInput(SettingName, "database connection requires a database name")
	}

	pool, err := connectPool(ctx, cfg)
	if err != nil {
		p.log.Error("database connect failed", logger.ErrorFields("connect", err), logger.ConnFields(ServiceType, connectionID))
		return nil, errors.ConnectionFailed(cfg.Host, err)
	}

	p.log.Info("database connected", logger.Fields(
		logger.FieldConnectionID, connectionID,
		"host", cfg.Host,
		"database", cfg.Name,
	))
	return newConn(connectionID, pool, p.log), nil
}

// connectPool creates and pings a single pgx pool.
func connectPool(ctx context.Context, cfg DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
