package remotecmd

import (
	"context"
	"net/http"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/httpclient"
	"github.com/skillsenselab/harnesskit/logger"
	"github.com/skillsenselab/harnesskit/observability"
)

// Result is the outcome of one remote command execution.
type Result struct {
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Success reports whether the command exited cleanly.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Conn is a connection to one REST command endpoint.
type Conn struct {
	id        string
	client    *httpclient.Client
	log       *logger.Logger
	connected atomic.Bool
}

func (c *Conn) ID() string          { return c.id }
func (c *Conn) ServiceType() string { return ServiceType }
func (c *Conn) IsConnected() bool   { return c.connected.Load() }

func (c *Conn) setConnected(v bool) { c.connected.Store(v) }

// Close marks the connection closed. The underlying HTTP client keeps no
// persistent sockets worth tearing down.
func (c *Conn) Close(ctx context.Context) error {
	c.connected.Store(false)
	return nil
}

// Healthy probes the endpoint's health route.
func (c *Conn) Healthy(ctx context.Context) bool {
	resp, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil && resp.StatusCode == http.StatusOK
}

// Execute runs a named command on the remote endpoint.
func (c *Conn) Execute(ctx context.Context, command string, args map[string]any) (*Result, error) {
	if !c.IsConnected() {
		return nil, errors.NotConnected(ServiceType + "/" + c.id)
	}
	if command == "" {
		return nil, errors.InvalidInput("command", "command name is required")
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanCommandExecute,
		trace.WithAttributes(
			attribute.String("command", command),
			attribute.String("connection_id", c.id),
		))
	defer span.End()

	body := map[string]any{"command": command}
	if len(args) > 0 {
		body["args"] = args
	}

	resp, err := c.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/execute",
		Body:   body,
	})
	if err != nil {
		span.RecordError(err)
		c.log.Error("command execution failed", logger.ErrorFields(command, err))
		return nil, err
	}

	var result Result
	if err := resp.DecodeJSON(&result); err != nil {
		return nil, err
	}
	if result.Command == "" {
		result.Command = command
	}
	return &result, nil
}

// ListCommands returns the command names the endpoint exposes.
func (c *Conn) ListCommands(ctx context.Context) ([]string, error) {
	if !c.IsConnected() {
		return nil, errors.NotConnected(ServiceType + "/" + c.id)
	}

	resp, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/commands"})
	if err != nil {
		return nil, err
	}

	var out struct {
		Commands []string `json:"commands"`
	}
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, err
	}
	return out.Commands, nil
}

var _ connection.Connection = (*Conn)(nil)
var _ connection.HealthChecker = (*Conn)(nil)
