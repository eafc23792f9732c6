// Package ops implements the operations of the command line interface.
// Every operation loads the playbook, applies the overrides and runs the
// relevant part of it against the remote host.
package ops

import (
	"context"
	"errors"
	"os"

	"github.com/nicklasfrahm/sshclient/pkg/engine"
	"github.com/nicklasfrahm/sshclient/pkg/rexec"
)

// Run runs the uploads, commands and downloads of the playbook.
func Run(ctx context.Context, options ...Option) (*engine.Report, error) {
	return run(ctx, nil, options...)
}

// Exec executes the commands instead of the playbook.
func Exec(ctx context.Context, commands []string, options ...Option) (*engine.Report, error) {
	return run(ctx, func(config *engine.Config) {
		config.Uploads, config.Commands, config.Downloads = nil, commands, nil
	}, options...)
}

// Upload uploads the local files into the remote path instead of
// running the playbook.
func Upload(ctx context.Context, files []string, options ...Option) (*engine.Report, error) {
	return run(ctx, func(config *engine.Config) {
		config.Uploads, config.Commands, config.Downloads = files, nil, nil
	}, options...)
}

// Download downloads the remote files into the local path instead of
// running the playbook.
func Download(ctx context.Context, files []string, options ...Option) (*engine.Report, error) {
	return run(ctx, func(config *engine.Config) {
		config.Uploads, config.Commands, config.Downloads = nil, nil, files
	}, options...)
}

// Provision provisions the key onto the remote host.
func Provision(ctx context.Context, options ...Option) (rexec.KeyStatus, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return rexec.KeyStatus{}, err
	}

	eng, err := prepare(opts, nil)
	if err != nil {
		return rexec.KeyStatus{}, err
	}

	return eng.Provision(ctx)
}

func run(ctx context.Context, adjust func(*engine.Config), options ...Option) (*engine.Report, error) {
	// Fetch the options for this operation.
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	eng, err := prepare(opts, adjust)
	if err != nil {
		return nil, err
	}

	return eng.Run(ctx)
}

// prepare loads the configuration and creates an engine for it.
func prepare(opts *Options, adjust func(*engine.Config)) (*engine.Engine, error) {
	configPath := opts.ConfigPath
	if !opts.configPathSet {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			opts.Logger.Debug().Str("config", configPath).Msg("No playbook found, using environment only")
			configPath = ""
		}
	}

	config, err := engine.LoadConfig(configPath, opts.EnvFile, opts.Overrides)
	if err != nil {
		return nil, err
	}

	if adjust != nil {
		adjust(config)
	}

	eng, err := engine.New(append([]engine.Option{engine.WithLogger(opts.Logger)}, opts.EngineOptions...)...)
	if err != nil {
		return nil, err
	}

	if err := eng.SetSpec(config); err != nil {
		return nil, err
	}

	return eng, nil
}
