package rexec

import (
	"context"
	"errors"
	"io"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nicklasfrahm/sshclient/pkg/keys"
	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

// State is the connection state of a client.
type State int

const (
	// Disconnected means that no connection is open.
	Disconnected State = iota
	// Connected means that the connection and its file
	// transfer channel are open.
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// KeyStatus is the outcome of loading and provisioning the key when
// the client was created. Skipped is set if the provisioner left the
// remote host untouched on purpose.
type KeyStatus struct {
	Key          *keys.Key
	Provisioned  bool
	Skipped      bool
	LoadErr      error
	ProvisionErr error
}

// Err returns the load and provisioning errors, if any.
func (s KeyStatus) Err() error {
	return errors.Join(s.LoadErr, s.ProvisionErr)
}

// Client executes commands on and transfers files to and from a single
// remote host. It lazily opens one connection, which is reused until
// Disconnect is called. A client must not be used concurrently.
type Client struct {
	*Options

	target     sshx.Config
	remotePath string
	keyStatus  KeyStatus
	key        *keys.Key

	conn    Conn
	channel FileChannel
	logger  zerolog.Logger
}

// New creates a client for the target and attempts to provision the
// configured key onto it. Failing to load or provision the key does not
// fail the construction; the outcome is available via KeyStatus.
func New(ctx context.Context, target sshx.Config, remotePath string, options ...Option) (*Client, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	target.SetDefaults()
	if err := target.Verify(); err != nil {
		return nil, err
	}

	if opts.Dialer == nil {
		opts.Dialer = &SSHDialer{
			Logger:  opts.Logger,
			Proxy:   opts.SSHProxy,
			Timeout: opts.Timeout,
			Retries: opts.Retries,
		}
	}

	if opts.Provisioner == nil {
		opts.Provisioner, err = keys.NewCopyIDProvisioner(keys.WithLogger(opts.Logger), keys.WithProxy(opts.SSHProxy))
		if err != nil {
			return nil, err
		}
	}

	client := &Client{
		Options:    opts,
		target:     target,
		remotePath: remotePath,
		logger:     opts.Logger.With().Str("host", target.Host).Logger(),
	}

	client.provisionKey(ctx)

	return client, nil
}

// provisionKey loads the key and provisions it onto the remote host.
// All failures are recorded and logged.
func (c *Client) provisionKey(ctx context.Context) {
	key, err := c.loadKey()
	if err != nil {
		c.keyStatus.LoadErr = err
		c.logger.Error().Err(err).Msg("Failed to load SSH key")
		return
	}
	c.key = key
	c.keyStatus.Key = key
	c.logger.Info().Str("key_file", key.Path).Str("fingerprint", key.Fingerprint()).Msg("Found SSH key")

	err = c.Provisioner.Provision(ctx, &c.target, key)
	if errors.Is(err, keys.ErrProvisionSkipped) {
		c.keyStatus.Skipped = true
		c.logger.Debug().Str("key_file", key.Path).Msg("Skipped provisioning of SSH key")
		return
	}
	if err != nil {
		var provisionErr *keys.ProvisionError
		if !errors.As(err, &provisionErr) {
			err = &keys.ProvisionError{Target: c.target.User + "@" + c.target.Address(), Err: err}
		}
		c.keyStatus.ProvisionErr = err
		c.logger.Warn().Err(err).Msg("Failed to provision SSH key")
		return
	}
	c.keyStatus.Provisioned = true
	c.logger.Info().Str("key_file", key.Path).Msg("Provisioned SSH key")
}

// loadKey loads the configured private key. An inline key takes
// precedence over a key file.
func (c *Client) loadKey() (*keys.Key, error) {
	if c.target.Key != "" {
		key, err := keys.Parse([]byte(c.target.Key), c.target.Passphrase)
		if err != nil {
			return nil, &keys.LoadError{Path: "<inline>", Err: err}
		}
		return key, nil
	}

	return keys.Load(c.target.KeyFile, c.target.Passphrase)
}

// KeyStatus returns the outcome of loading and provisioning the key.
func (c *Client) KeyStatus() KeyStatus {
	return c.keyStatus
}

// Target returns the connection configuration.
func (c *Client) Target() sshx.Config {
	return c.target
}

// RemotePath returns the default remote directory for transfers.
func (c *Client) RemotePath() string {
	return c.remotePath
}

// State returns the current connection state.
func (c *Client) State() State {
	if c.conn != nil {
		return Connected
	}
	return Disconnected
}

// Connect establishes the connection and its file transfer channel. It
// is a no-op if the client is already connected.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	// A key that failed to load at construction may have been fixed since.
	if c.key == nil {
		key, err := c.loadKey()
		if err != nil {
			return err
		}
		c.key = key
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	address := c.target.Address()
	logger := c.logger.With().Str("connection", uuid.NewString()).Logger()
	logger.Debug().Str("address", address).Str("user", c.target.User).Msg("Connecting")

	conn, err := c.Dialer.Dial(ctx, &c.target, c.key.Signer)
	if err != nil {
		return c.connectError(&logger, err)
	}

	channel, err := conn.OpenFileChannel(ctx)
	if err != nil {
		_ = conn.Close()
		return c.connectError(&logger, err)
	}

	c.conn = conn
	c.channel = channel
	c.logger = logger
	c.logger.Info().Str("address", address).Msg("Connected")

	return nil
}

// connectError classifies and logs a failure to connect.
func (c *Client) connectError(logger *zerolog.Logger, err error) error {
	address := c.target.Address()

	switch {
	case sshx.IsAuthError(err):
		logger.Error().Err(err).Msg("Authentication failed: did you remember to provision your SSH key?")
		return &AuthenticationError{User: c.target.User, Address: address, Err: err}
	case sshx.IsTimeout(err):
		logger.Error().Err(err).Dur("timeout", c.Timeout).Msg("Connection timed out")
		return &ConnectionTimeoutError{Address: address, Timeout: c.Timeout, Err: err}
	default:
		logger.Error().Err(err).Msg("Failed to connect")
		return &ConnectionError{Address: address, Err: err}
	}
}

// Disconnect closes the file transfer channel and then the connection.
// Both are closed even if closing the first fails, and the client is
// disconnected afterwards in any case.
func (c *Client) Disconnect() error {
	if c.conn == nil && c.channel == nil {
		return nil
	}

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !isClosed(err) {
			errs = append(errs, err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !isClosed(err) {
			errs = append(errs, err)
		}
	}

	c.channel = nil
	c.conn = nil
	c.logger.Info().Msg("Disconnected")
	c.logger = c.Logger.With().Str("host", c.target.Host).Logger()

	return errors.Join(errs...)
}

// isClosed reports whether the error stems from closing something that
// was closed already.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF)
}
