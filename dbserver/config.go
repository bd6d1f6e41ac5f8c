package dbserver

import (
	"fmt"
	"time"

	"github.com/skillsenselab/harnesskit/database"
)

// Config configures the database gateway server.
type Config struct {
	// Host is the listen address. Defaults to 0.0.0.0.
	Host string `yaml:"host" mapstructure:"host"`
	// Port is the listen port. Defaults to 8085.
	Port int `yaml:"port" mapstructure:"port"`

	// ReadTimeout and WriteTimeout bound request handling.
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`

	// JWTSecret signs and validates access tokens.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	// TokenTTL bounds issued token lifetime. Defaults to 1h.
	TokenTTL time.Duration `yaml:"token_ttl" mapstructure:"token_ttl"`

	// Users maps usernames to passwords accepted by the token endpoint.
	Users map[string]string `yaml:"users" mapstructure:"users"`

	// Database is the PostgreSQL endpoint the gateway fronts.
	Database database.DBConfig `yaml:"database" mapstructure:"database"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8085
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("dbserver: jwt_secret is required")
	}
	if len(c.Users) == 0 {
		return fmt.Errorf("dbserver: at least one user is required")
	}
	return nil
}
