package keys

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

// Options contains the configuration for an operation.
type Options struct {
	Logger  *zerolog.Logger
	Timeout time.Duration
	Agent   bool
	Binary  string
	Proxy   *sshx.Config
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
		Logger:  &logger,
		Timeout: time.Second * 30,
		Agent:   true,
		Binary:  "ssh-copy-id",
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

// WithTimeout bounds how long provisioning may take.
func WithTimeout(timeout time.Duration) Option {
	return func(options *Options) error {
		options.Timeout = timeout
		return nil
	}
}

// WithAgent controls whether the SSH agent may be used to authenticate
// the side channel.
func WithAgent(enabled bool) Option {
	return func(options *Options) error {
		options.Agent = enabled
		return nil
	}
}

// WithBinary overrides the key copy utility. The value is split like a
// shell would, so it may carry extra arguments.
func WithBinary(binary string) Option {
	return func(options *Options) error {
		options.Binary = binary
		return nil
	}
}

// WithProxy routes the SSH side channel through a bastion host.
func WithProxy(proxy *sshx.Config) Option {
	return func(options *Options) error {
		options.Proxy = proxy
		return nil
	}
}
