package dbserver

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/httpclient"
	"github.com/skillsenselab/harnesskit/logger"
)

// ClientServiceType is the service type tag for REST database gateway
// connections.
const ClientServiceType = "dbgateway"

// Client settings keys understood by the provider.
const (
	SettingBaseURL  = "base_url"
	SettingUsername = "username"
	SettingPassword = "password"
	SettingTimeout  = "timeout_seconds"
)

// ClientProvider creates connections to a remote database gateway. It
// authenticates against the gateway's token endpoint on creation.
type ClientProvider struct {
	defaults map[string]connection.Settings
	log      *logger.Logger
}

// NewClientProvider creates a provider. The defaults map holds
// per-connection-id settings from configuration and may be nil.
func NewClientProvider(defaults map[string]connection.Settings) *ClientProvider {
	return &ClientProvider{
		defaults: defaults,
		log:      logger.WithComponent("dbserver.client"),
	}
}

func (p *ClientProvider) ServiceType() string { return ClientServiceType }

// CreateConnection authenticates against the gateway and returns a client
// holding the issued token.
func (p *ClientProvider) CreateConnection(ctx context.Context, connectionID string, settings connection.Settings) (connection.Connection, error) {
	if settings == nil {
		settings = p.defaults[connectionID]
	}

	baseURL := settings.String(SettingBaseURL, "")
	if baseURL == "" {
		return nil, errors.InvalidInput(SettingBaseURL, "dbgateway connection requires a base_url")
	}

	hc, err := httpclient.New(httpclient.Config{
		BaseURL: baseURL,
		Timeout: time.Duration(settings.Int(SettingTimeout, 30)) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	client := &Client{
		id:     connectionID,
		http:   hc,
		log:    p.log.WithFields(logger.ConnFields(ClientServiceType, connectionID)),
		apiURL: baseURL,
	}

	username := settings.String(SettingUsername, "")
	password := settings.String(SettingPassword, "")
	if err := client.authenticate(ctx, username, password); err != nil {
		return nil, err
	}
	client.connected.Store(true)

	p.log.Info("database gateway connected", logger.Fields(
		logger.FieldConnectionID, connectionID,
		"base_url", baseURL,
	))
	return client, nil
}

// Client is an authenticated connection to a remote database gateway.
type Client struct {
	id        string
	apiURL    string
	http      *httpclient.Client
	log       *logger.Logger
	token     atomic.Value
	connected atomic.Bool
}

func (c *Client) ID() string          { return c.id }
func (c *Client) ServiceType() string { return ClientServiceType }
func (c *Client) IsConnected() bool   { return c.connected.Load() }

// Close marks the connection closed.
func (c *Client) Close(ctx context.Context) error {
	c.connected.Store(false)
	return nil
}

// Healthy probes the gateway's health route.
func (c *Client) Healthy(ctx context.Context) bool {
	resp, err := c.http.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil && resp.StatusCode == http.StatusOK
}

func (c *Client) authenticate(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.InvalidInput("credentials", "dbgateway connection requires a username and password")
	}

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/token",
		Body:   map[string]string{"username": username, "password": password},
	})
	if err != nil {
		return errors.ConnectionFailed(c.apiURL, err)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := resp.DecodeJSON(&out); err != nil {
		return err
	}
	if out.Token == "" {
		return errors.Unauthorized("gateway returned no token")
	}
	c.token.Store(out.Token)
	return nil
}

func (c *Client) auth() *httpclient.AuthConfig {
	token, _ := c.token.Load().(string)
	return &httpclient.AuthConfig{BearerToken: token}
}

// Query runs a SELECT through the gateway.
func (c *Client) Query(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	if !c.IsConnected() {
		return nil, errors.NotConnected(ClientServiceType + "/" + c.id)
	}

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/query",
		Body:   queryRequest{SQL: sql, Args: args},
		Auth:   c.auth(),
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

// Exec runs a statement through the gateway and returns affected rows.
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if !c.IsConnected() {
		return 0, errors.NotConnected(ClientServiceType + "/" + c.id)
	}

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/execute",
		Body:   queryRequest{SQL: sql, Args: args},
		Auth:   c.auth(),
	})
	if err != nil {
		return 0, err
	}

	var out struct {
		RowsAffected int64 `json:"rows_affected"`
	}
	if err := resp.DecodeJSON(&out); err != nil {
		return 0, err
	}
	return out.RowsAffected, nil
}

var _ connection.Connection = (*Client)(nil)
var _ connection.HealthChecker = (*Client)(nil)
var _ connection.Provider = (*ClientProvider)(nil)
