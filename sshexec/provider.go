package sshexec

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/skillsenselab/harnesskit/connection"
	"github.com/skillsenselab/harnesskit/errors"
	"github.com/skillsenselab/harnesskit/logger"
)

// ServiceType is the service type tag for SSH connections.
const ServiceType = "ssh"

// Settings keys understood by the provider.
const (
	SettingHost       = "host"
	SettingPort       = "port"
	SettingUser       = "user"
	SettingPassword   = "password"
	SettingPrivateKey = "private_key"
	SettingTimeout    = "timeout_seconds"
)

// Provider creates SSH connections. Host settings come either from the
// per-call settings map or from the provider's configured defaults keyed by
// connection id.
type Provider struct {
	defaults map[string]connection.Settings
	log      *logger.Logger

	// dial is swappable for tests.
	dial func(network, addr string, config *ssh.ClientConfig) (sshClient, error)
}

// NewProvider creates a provider. The defaults map holds per-connection-id
// settings from configuration and may be nil.
func NewProvider(defaults map[string]connection.Settings) *Provider {
	return &Provider{
		defaults: defaults,
		log:      logger.WithComponent("sshexec.provider"),
		dial: func(network, addr string, config *ssh.ClientConfig) (sshClient, error) {
			client, err := ssh.Dial(network, addr, config)
			if err != nil {
				return nil, err
			}
			return realClient{client: client}, nil
		},
	}
}

func (p *Provider) ServiceType() string { return ServiceType }

// CreateConnection dials the host and authenticates. Password auth and
// private key auth are both supported; a private key wins when both are set.
func (p *Provider) CreateConnection(ctx context.Context, connectionID string, settings connection.Settings) (connection.Connection, error) {
	if settings == nil {
		settings = p.defaults[connectionID]
	}

	host := settings.String(SettingHost, "")
	if host == "" {
		return nil, errors.InvalidInput(SettingHost, "ssh connection requires a host")
	}
	user := settings.String(SettingUser, "")
	if user == "" {
		return nil, errors.InvalidInput(SettingUser, "ssh connection requires a user")
	}

	auth, err := authMethods(settings)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         time.Duration(settings.Int(SettingTimeout, 15)) * time.Second,
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", settings.Int(SettingPort, 22)))
	client, err := p.dial("tcp", addr, cfg)
	if err != nil {
		p.log.Error("ssh dial failed", logger.ErrorFields("dial", err), logger.ConnFields(ServiceType, connectionID))
		return nil, errors.ConnectionFailed(addr, err)
	}

	p.log.Info("ssh host connected", logger.Fields(
		logger.FieldConnectionID, connectionID,
		"addr", addr,
		"user", user,
	))
	return newConn(connectionID, addr, client, p.log), nil
}

func authMethods(settings connection.Settings) ([]ssh.AuthMethod, error) {
	if key := settings.String(SettingPrivateKey, ""); key != "" {
		signer, err := ssh.ParsePrivateKey([]byte(key))
		if err != nil {
			return nil, errors.InvalidInput(SettingPrivateKey, "unparseable private key").WithCause(err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if password := settings.String(SettingPassword, ""); password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}
	return nil, errors.InvalidInput("auth", "ssh connection requires a password or private_key")
}
