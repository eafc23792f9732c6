package rexec

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"

	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

var _ Dialer = (*SSHDialer)(nil)

// SSHDialer is a dialer that connects to remote hosts via SSH
// and transfers files via SFTP.
type SSHDialer struct {
	Logger  *zerolog.Logger
	Proxy   *sshx.Config
	Timeout time.Duration
	Retries int
}

// Dial establishes a connection to the SSH host, optionally
// through an SSH bastion host.
func (d *SSHDialer) Dial(ctx context.Context, target *sshx.Config, signer ssh.Signer) (Conn, error) {
	options := []sshx.Option{
		sshx.WithLogger(d.Logger),
		sshx.WithTimeout(d.Timeout),
		sshx.WithRetries(d.Retries),
	}

	var proxy *sshx.Client
	if d.Proxy != nil && d.Proxy.Host != "" {
		proxyConfig := *d.Proxy

		var err error
		if proxy, err = sshx.NewClient(ctx, &proxyConfig, options...); err != nil {
			return nil, err
		}
	}

	targetConfig := *target
	client, err := sshx.NewClient(ctx, &targetConfig,
		append(options, sshx.WithSigner(signer), sshx.WithProxy(proxy))...,
	)
	if err != nil {
		if proxy != nil {
			_ = proxy.Close()
		}
		return nil, err
	}

	return &sshConn{client: client, proxy: proxy}, nil
}

// sshConn adapts an SSH client to the Conn interface.
type sshConn struct {
	client *sshx.Client
	proxy  *sshx.Client
}

func (c *sshConn) Run(ctx context.Context, command string, output io.Writer) (int, error) {
	err := c.client.Do(ctx, sshx.Cmd{
		Cmd:    command,
		Stdout: output,
		Stderr: output,
	})

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	if err != nil {
		return -1, err
	}

	return 0, nil
}

func (c *sshConn) OpenFileChannel(ctx context.Context) (FileChannel, error) {
	channel, err := c.client.OpenFileChannel(ctx)
	if err != nil {
		return nil, err
	}
	return channel, nil
}

// Close closes the SSH connections in reverse order to how they were opened.
func (c *sshConn) Close() error {
	err := c.client.Close()

	if c.proxy != nil {
		err = errors.Join(err, c.proxy.Close())
	}

	return err
}
