package sshx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Client is an augmented SSH client.
type Client struct {
	*Options
	*ssh.Client

	address   string
	agentConn net.Conn
}

// NewClient creates a new SSH client based on an SSH configuration
// and connects to it. The handshake is bounded by the configured
// timeout and aborted if the context is canceled.
func NewClient(ctx context.Context, config *Config, options ...Option) (*Client, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	// Create a new client.
	client := &Client{
		Options: opts,
	}
	// Agent signers need the socket until the handshake is done.
	defer client.closeAgent()

	// Set default connection options.
	config.SetDefaults()
	if err := config.Verify(); err != nil {
		return nil, err
	}

	normalizedConfig, err := client.normalizeConfig(config)
	if err != nil {
		return nil, err
	}
	client.address = config.Address()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(client.Retries)),
		ctx,
	)
	operation := func() error {
		sshClient, err := client.dial(ctx, normalizedConfig)
		if err != nil {
			if IsAuthError(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		client.Client = sshClient
		return nil
	}
	notify := func(err error, next time.Duration) {
		client.Logger.Warn().Err(err).Dur("retry_in", next).Msg("Failed to connect")
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	return client, nil
}

// Address returns the address the client is connected to.
func (client *Client) Address() string {
	return client.address
}

// dial opens the network connection, either directly or through the
// proxy, and performs the SSH handshake on it.
func (client *Client) dial(ctx context.Context, config *ssh.ClientConfig) (*ssh.Client, error) {
	var netConn net.Conn
	var err error

	if client.Proxy != nil {
		// Create a TCP connection from the proxy host to the target.
		netConn, err = client.Proxy.Client.Dial("tcp", client.address)
	} else {
		dialer := &net.Dialer{Timeout: config.Timeout}
		netConn, err = dialer.DialContext(ctx, "tcp", client.address)
	}
	if err != nil {
		return nil, err
	}

	// The handshake itself has no timeout, so the deadline of the
	// underlying connection bounds it instead.
	if config.Timeout > 0 {
		_ = netConn.SetDeadline(time.Now().Add(config.Timeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = netConn.SetDeadline(time.Unix(1, 0))
	})

	targetConn, channel, req, err := ssh.NewClientConn(netConn, client.address, config)
	stop()
	if err != nil {
		_ = netConn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, err
	}
	_ = netConn.SetDeadline(time.Time{})

	return ssh.NewClient(targetConn, channel, req), nil
}

// normalizeConfig creates a new client config that is compatible with the standard library.
func (client *Client) normalizeConfig(config *Config) (*ssh.ClientConfig, error) {
	authMethods, err := client.authMethods(config)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := HostKeyCallback(config, client.Logger)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		User:            config.User,
		Timeout:         client.Timeout,
	}, nil
}

// authMethods configures the authentication methods, which may be a
// preloaded signer, a private key, an encrypted private key, a password
// or the keys of the SSH agent. Keys are always offered first.
func (client *Client) authMethods(config *Config) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if client.Signer != nil {
		methods = append(methods, ssh.PublicKeys(client.Signer))
	} else {
		signer, err := ParseKey(config)
		if err != nil {
			return nil, err
		}
		if signer != nil {
			methods = append(methods, ssh.PublicKeys(signer))
		}
	}

	if config.Password != "" {
		methods = append(methods, ssh.Password(config.Password))
		client.Logger.Warn().Msg("Using password authentication is insecure!")
		client.Logger.Warn().Msg("Please consider using public key authentication!")
	}

	if client.Agent {
		if signers := client.agentSigners(); len(signers) > 0 {
			methods = append(methods, ssh.PublicKeys(signers...))
		}
	}

	if len(methods) == 0 {
		return nil, errors.New("no authentication method specified")
	}

	return methods, nil
}

// ParseKey loads the private key of the configuration. A key that is
// specified directly takes precedence over a key file. It returns a nil
// signer if neither is configured.
func ParseKey(config *Config) (ssh.Signer, error) {
	key := config.Key
	if key == "" && config.KeyFile != "" {
		keyFile, err := homedir.Expand(config.KeyFile)
		if err != nil {
			return nil, err
		}

		keyBytes, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, err
		}
		key = string(keyBytes)
	}

	if key == "" {
		return nil, nil
	}

	// Use passphrase to decrypt the private key.
	if config.Passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase([]byte(key), []byte(config.Passphrase))
	}

	return ssh.ParsePrivateKey([]byte(key))
}

// agentSigners returns the signers of the agent listening on
// SSH_AUTH_SOCK, or nil if there is none. The agent connection stays
// open until closeAgent is called.
func (client *Client) agentSigners() []ssh.Signer {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	conn, err := net.DialTimeout("unix", socket, 500*time.Millisecond)
	if err != nil {
		return nil
	}

	signers, err := agent.NewClient(conn).Signers()
	if err != nil || len(signers) == 0 {
		_ = conn.Close()
		return nil
	}
	client.agentConn = conn

	return signers
}

// closeAgent closes the connection to the SSH agent, if any.
func (client *Client) closeAgent() {
	if client.agentConn != nil {
		_ = client.agentConn.Close()
		client.agentConn = nil
	}
}

// IsAuthError reports whether the error was caused by the remote host
// rejecting all offered credentials.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}

// IsTimeout reports whether the error was caused by an exceeded
// deadline while connecting.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return strings.Contains(err.Error(), "i/o timeout")
}
