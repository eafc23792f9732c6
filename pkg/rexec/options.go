package rexec

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/nicklasfrahm/sshclient/pkg/keys"
	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

// Options contains the configuration for an operation.
type Options struct {
	Logger          *zerolog.Logger
	Dialer          Dialer
	Provisioner     keys.Provisioner
	SSHProxy        *sshx.Config
	Timeout         time.Duration
	CommandTimeout  time.Duration
	TransferTimeout time.Duration
	Retries         int
	LocalPath       string
	AbortOnFailure  bool
}

// Option applies a configuration option
// for the execution of an operation.
type Option func(options *Options) error

// Apply applies the option functions to the current set of options.
func (o *Options) Apply(options ...Option) (*Options, error) {
	for _, option := range options {
		if err := option(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// GetDefaultOptions returns the default options
// for all operations of this library.
func GetDefaultOptions() *Options {
	logger := zerolog.Nop()

	return &Options{
		SSHProxy:  nil,
		Timeout:   time.Second * 5,
		Logger:    &logger,
		LocalPath: ".",
	}
}

// WithLogger allows to use a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(options *Options) error {
		if logger != nil {
			options.Logger = logger
		}
		return nil
	}
}

// WithDialer replaces the SSH transport.
func WithDialer(dialer Dialer) Option {
	return func(options *Options) error {
		options.Dialer = dialer
		return nil
	}
}

// WithProvisioner configures how the public key is
// provisioned onto the remote host.
func WithProvisioner(provisioner keys.Provisioner) Option {
	return func(options *Options) error {
		options.Provisioner = provisioner
		return nil
	}
}

// WithSSHProxy configures an SSH bastion host.
func WithSSHProxy(sshProxy *sshx.Config) Option {
	return func(options *Options) error {
		options.SSHProxy = sshProxy
		return nil
	}
}

// WithTimeout bounds the connection handshake.
func WithTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		options.Timeout = timeout
		return nil
	}
}

// WithCommandTimeout bounds every single remote command.
// A zero timeout waits indefinitely.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		options.CommandTimeout = timeout
		return nil
	}
}

// WithTransferTimeout bounds every single file transfer.
// A zero timeout waits indefinitely.
func WithTransferTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		options.TransferTimeout = timeout
		return nil
	}
}

// WithRetries sets how often a failed dial is retried.
func WithRetries(retries int) Option {
	return func(options *Options) error {
		options.Retries = retries
		return nil
	}
}

// WithLocalPath sets the directory downloads are written to.
func WithLocalPath(localPath string) Option {
	return func(options *Options) error {
		options.LocalPath = localPath
		return nil
	}
}

// WithAbortOnFailure skips the remaining commands of a
// sequence once a command failed.
func WithAbortOnFailure(abort bool) Option {
	return func(options *Options) error {
		options.AbortOnFailure = abort
		return nil
	}
}
