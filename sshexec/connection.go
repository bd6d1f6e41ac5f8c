package sshexec

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/ssh"

	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/logger"
	"github.com/skillsenselab/harnesskit/observability"
)

// sshClient is the subset of *ssh.Client the connection uses.
type sshClient interface {
	NewSession() (sshSession, error)
	Close() error
}

// sshSession is one remote exec session.
type sshSession interface {
	Run(command string, stdout, stderr io.Writer) error
	Signal(sig ssh.Signal) error
	Close() error
}

// realClient adapts *ssh.Client to sshClient.
type realClient struct {
	client *ssh.Client
}

func (r realClient) NewSession() (sshSession, error) {
	s, err := r.client.NewSession()
	if err != nil {
		return nil, err
	}
	return realSession{s}, nil
}

func (r realClient) Close() error { return r.client.Close() }

type realSession struct {
	session *ssh.Session
}

func (r realSession) Run(command string, stdout, stderr io.Writer) error {
	r.session.Stdout = stdout
	r.session.Stderr = stderr
	return r.session.Run(command)
}

func (r realSession) Signal(sig ssh.Signal) error { return r.session.Signal(sig) }
func (r realSession) Close() error                { return r.session.Close() }

// Result is the outcome of one remote command.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the command exited cleanly.
func (r Result) Success() bool { return r.ExitCode == 0 }

// Conn is an authenticated SSH connection to one host.
type Conn struct {
	id        string
	addr      string
	client    sshClient
	log       *logger.Logger
	connected atomic.Bool
}

func newConn(id, addr string, client sshClient, log *logger.Logger) *Conn {
	c := &Conn{
		id:     id,
		addr:   addr,
		client: client,
		log:    log.WithFields(logger.ConnFields(ServiceType, id)),
	}
	c.connected.Store(true)
	return c
}

func (c *Conn) ID() string          { return c.id }
func (c *Conn) ServiceType() string { return ServiceType }
func (c *Conn) IsConnected() bool   { return c.connected.Load() }

// Close tears down the SSH transport.
func (c *Conn) Close(ctx context.Context) error {
	if !c.connected.Swap(false) {
		return nil
	}
	return c.client.Close()
}

// Healthy verifies a session can still be opened on the transport.
func (c *Conn) Healthy(ctx context.Context) bool {
	if !c.IsConnected() {
		return false
	}
	session, err := c.client.NewSession()
	if err != nil {
		return false
	}
	_ = session.Close()
	return true
}

// Run executes a command on the remote host and captures its output. A
// non-zero exit is reported in the result, not as an error.
func (c *Conn) Run(ctx context.Context, command string) (*Result, error) {
	if !c.IsConnected() {
		return nil, errors.NotConnected(ServiceType + "/" + c.id)
	}
	if command == "" {
		return nil, errors.InvalidInput("command", "command is required")
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanCommandExecute,
		trace.WithAttributes(
			attribute.String("command", command),
			attribute.String("connection_id", c.id),
		))
	defer span.End()

	session, err := c.client.NewSession()
	if err != nil {
		span.RecordError(err)
		return nil, errors.ConnectionFailed(c.addr, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr strings.Builder
	result := &Result{Command: command}

	done := make(chan error, 1)
	go func() { done <- session.Run(command, &stdout, &stderr) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		span.RecordError(ctx.Err())
		return nil, errors.Timeout(command).WithCause(ctx.Err())
	case err = <-done:
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		var exitErr *ssh.ExitError
		if stderrors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		span.RecordError(err)
		c.log.Error("remote command failed", logger.ErrorFields(command, err))
		return nil, errors.ConnectionFailed(c.addr, err)
	}
	return result, nil
}

var _ connection.Connection = (*Conn)(nil)
var _ connection.HealthChecker = (*Conn)(nil)
