package ops

import (
	"github.com/rs/zerolog"

	"github.com/nicklasfrahm/sshclient/pkg/engine"
)

const (
	// Program is used to configure the name of the configuration file.
	Program = "sshclient"
	// DefaultConfigPath is the playbook that is read if it exists.
	DefaultConfigPath = Program + ".yml"
)

// Options contains the configuration for an operation.
type Options struct {
	ConfigPath string
	EnvFile    string
	Logger     *zerolog.Logger
	// Overrides take precedence over the playbook and the environment.
	Overrides engine.Config
	// EngineOptions are passed to the engine.
	EngineOptions []engine.Option

	configPathSet bool
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
		ConfigPath: DefaultConfigPath,
		EnvFile:    engine.DefaultEnvFile,
		Logger:     &logger,
	}
}

// WithConfigPath overrides the default configuration path. Unlike the
// default path, an explicit path must exist.
func WithConfigPath(configPath string) Option {
	return func(options *Options) error {
		options.ConfigPath = configPath
		options.configPathSet = true
		return nil
	}
}

// WithEnvFile overrides the default dotenv file.
func WithEnvFile(envFile string) Option {
	return func(options *Options) error {
		options.EnvFile = envFile
		return nil
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(options *Options) error {
		if logger != nil {
			options.Logger = logger
		}
		return nil
	}
}

// WithOverrides sets configuration values that take precedence
// over the playbook and the environment.
func WithOverrides(overrides engine.Config) Option {
	return func(options *Options) error {
		options.Overrides = overrides
		return nil
	}
}

// WithEngineOptions passes options to the engine.
func WithEngineOptions(engineOptions ...engine.Option) Option {
	return func(options *Options) error {
		options.EngineOptions = append(options.EngineOptions, engineOptions...)
		return nil
	}
}
