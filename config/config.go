package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skillsenselab/harnesskit/logger"
)

// Config is the root harness configuration.
type Config struct {
	// Name identifies the harness instance in logs and summaries.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`

	Logging       logger.Config       `yaml:"logging" mapstructure:"logging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`

	// Services maps a service type (e.g. "remote_command", "database",
	// "imix") to its connection configuration block.
	Services map[string]ServiceConfig `yaml:"services" mapstructure:"services" validate:"dive"`
}

// ServiceConfig configures one service type.
type ServiceConfig struct {
	Enable      bool               `yaml:"enable" mapstructure:"enable"`
	Connections []ConnectionConfig `yaml:"connections" mapstructure:"connections" validate:"dive"`
}

// ConnectionConfig configures a single named connection of a service.
// Provider-specific keys (host, port, credentials, ...) land in Settings.
type ConnectionConfig struct {
	Name     string         `yaml:"name" mapstructure:"name" validate:"required"`
	Enable   bool           `yaml:"enable" mapstructure:"enable"`
	Settings map[string]any `yaml:",inline" mapstructure:",remain"`
}

// ObservabilityConfig configures metrics and tracing export.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// MetricsConfig configures the OTLP metric exporter.
type MetricsConfig struct {
	Enable   bool          `yaml:"enable" mapstructure:"enable"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure bool          `yaml:"insecure" mapstructure:"insecure"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enable   bool    `yaml:"enable" mapstructure:"enable"`
	Endpoint string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure bool    `yaml:"insecure" mapstructure:"insecure"`
	Sample   float64 `yaml:"sample" mapstructure:"sample"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "harness"
	}
	c.Logging.ApplyDefaults()
	if c.Observability.Metrics.Endpoint == "" {
		c.Observability.Metrics.Endpoint = "localhost:4318"
	}
	if c.Observability.Metrics.Interval <= 0 {
		c.Observability.Metrics.Interval = 15 * time.Second
	}
	if c.Observability.Tracing.Endpoint == "" {
		c.Observability.Tracing.Endpoint = "localhost:4318"
	}
	if c.Observability.Tracing.Sample <= 0 {
		c.Observability.Tracing.Sample = 1.0
	}
}

var validate = validator.New()

// Validate checks structural constraints and that connection names within a
// service block are unique.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	for serviceType, svc := range c.Services {
		seen := make(map[string]bool, len(svc.Connections))
		for _, conn := range svc.Connections {
			if seen[conn.Name] {
				return fmt.Errorf("services.%s: duplicate connection name %q", serviceType, conn.Name)
			}
			seen[conn.Name] = true
		}
	}
	return nil
}

// EnabledConnections returns the enabled connections of a service block, or
// nil when the service itself is disabled or absent.
func (c *Config) EnabledConnections(serviceType string) []ConnectionConfig {
	svc, ok := c.Services[serviceType]
	if !ok || !svc.Enable {
		return nil
	}
	var enabled []ConnectionConfig
	for _, conn := range svc.Connections {
		if conn.Enable {
			enabled = append(enabled, conn)
		}
	}
	return enabled
}
