// Package engine runs playbooks against a remote host: it uploads
// files, executes commands and downloads files over a single connection.
package engine

import (
	"context"
	"errors"

	"github.com/nicklasfrahm/sshclient/pkg/keys"
	"github.com/nicklasfrahm/sshclient/pkg/rexec"
	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

// Engine is a type that encapsulates the execution of a playbook.
type Engine struct {
	*Options

	Spec *Config

	client *rexec.Client
}

// New creates a new Engine.
func New(options ...Option) (*Engine, error) {
	opts, err := GetDefaultOptions().Apply(options...)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Options: opts,
	}, nil
}

// SetSpec configures the playbook. Note that the config will
// only be applied if the verification succeeds.
func (e *Engine) SetSpec(config *Config) error {
	if err := config.Verify(); err != nil {
		return err
	}

	e.Spec = config
	e.client = nil

	return nil
}

// Client returns the client for the remote host of the playbook. The
// client is created on first use, which provisions the key.
func (e *Engine) Client(ctx context.Context) (*rexec.Client, error) {
	if e.client != nil {
		return e.client, nil
	}

	if e.Spec == nil {
		return nil, errors.New("no playbook configured")
	}

	var proxy *sshx.Config
	if e.Spec.SSHProxy.Host != "" {
		proxyConfig := e.Spec.SSHProxy
		proxy = &proxyConfig
	}

	provisioner := e.Provisioner
	if provisioner == nil {
		var err error
		provisioner, err = keys.NewProvisioner(e.Spec.Provisioner, keys.WithLogger(e.Logger), keys.WithProxy(proxy))
		if err != nil {
			return nil, err
		}
	}

	options := []rexec.Option{
		rexec.WithLogger(e.Logger),
		rexec.WithProvisioner(provisioner),
		rexec.WithCommandTimeout(e.Spec.CommandTimeout),
		rexec.WithTransferTimeout(e.Spec.TransferTimeout),
		rexec.WithRetries(e.Spec.Retries),
		rexec.WithAbortOnFailure(e.Spec.AbortOnFailure),
	}
	if e.Spec.Timeout > 0 {
		options = append(options, rexec.WithTimeout(e.Spec.Timeout))
	}
	if e.Spec.LocalPath != "" {
		options = append(options, rexec.WithLocalPath(e.Spec.LocalPath))
	}
	if proxy != nil {
		options = append(options, rexec.WithSSHProxy(proxy))
	}
	if e.Dialer != nil {
		options = append(options, rexec.WithDialer(e.Dialer))
	}

	client, err := rexec.New(ctx, e.Spec.SSH, e.Spec.RemotePath, options...)
	if err != nil {
		return nil, err
	}
	e.client = client

	return client, nil
}

// Provision provisions the key onto the remote host and reports the
// outcome.
func (e *Engine) Provision(ctx context.Context) (rexec.KeyStatus, error) {
	client, err := e.Client(ctx)
	if err != nil {
		return rexec.KeyStatus{}, err
	}

	status := client.KeyStatus()
	return status, status.Err()
}

// Run uploads the files, executes the commands and downloads the files
// of the playbook, in this order. Failures of single items are recorded
// in the report. An error is only returned if the remote host could not
// be reached, in which case the report holds what was done until then.
// The connection is always closed before returning.
func (e *Engine) Run(ctx context.Context) (report *Report, err error) {
	client, err := e.Client(ctx)
	if err != nil {
		return nil, err
	}

	report = &Report{
		Host: client.Target().Host,
		Key:  client.KeyStatus(),
	}

	defer func() {
		if disconnectErr := client.Disconnect(); disconnectErr != nil {
			e.Logger.Warn().Err(disconnectErr).Msg("Failed to disconnect")
			err = errors.Join(err, disconnectErr)
		}
	}()

	if len(e.Spec.Uploads) > 0 {
		e.Logger.Info().Int("count", len(e.Spec.Uploads)).Str("remote_path", client.RemotePath()).Msg("Uploading files")
	}
	if report.Uploads, err = client.BulkUpload(ctx, e.Spec.Uploads); err != nil {
		return report, err
	}

	if len(e.Spec.Commands) > 0 {
		e.Logger.Info().Int("count", len(e.Spec.Commands)).Msg("Executing commands")
	}
	if report.Commands, err = client.ExecuteCommands(ctx, e.Spec.Commands); err != nil {
		return report, err
	}

	for _, remoteFile := range e.Spec.Downloads {
		localPath, err := client.DownloadFile(ctx, remoteFile)

		var transferErr *rexec.TransferError
		if err != nil && !errors.As(err, &transferErr) {
			return report, err
		}

		report.Downloads = append(report.Downloads, Download{
			RemotePath: remoteFile,
			LocalPath:  localPath,
			Err:        err,
		})
	}

	return report, nil
}

// Disconnect closes the connection to the remote host, if any.
func (e *Engine) Disconnect() error {
	if e.client == nil {
		return nil
	}

	return e.client.Disconnect()
}
