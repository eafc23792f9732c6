package engine

import (
	"github.com/rs/zerolog"

	"github.com/nicklasfrahm/sshclient/pkg/keys"
	"github.com/nicklasfrahm/sshclient/pkg/rexec"
)

// Options contains the configuration for an operation.
type Options struct {
	Logger *zerolog.Logger
	// Dialer replaces the SSH transport if set.
	Dialer rexec.Dialer
	// Provisioner replaces the provisioner selected by the
	// configuration if set.
	Provisioner keys.Provisioner
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
		Logger: &logger,
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
func WithDialer(dialer rexec.Dialer) Option {
	return func(options *Options) error {
		options.Dialer = dialer
		return nil
	}
}

// WithProvisioner replaces the configured provisioner.
func WithProvisioner(provisioner keys.Provisioner) Option {
	return func(options *Options) error {
		options.Provisioner = provisioner
		return nil
	}
}
