// Package rexec provides APIs to execute commands on and transfer files
// to and from remote machines.
package rexec

import (
	"context"
	"io"

	"golang.org/x/crypto/ssh"

	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

// Dialer establishes connections to remote hosts. This
// can be for example via SSH, or an in-memory double
// in tests.
type Dialer interface {
	// Dial opens an authenticated connection to the target.
	Dial(ctx context.Context, target *sshx.Config, signer ssh.Signer) (Conn, error)
}

// Conn is an authenticated connection to a remote host.
type Conn interface {
	// Run executes the command and waits for it to exit. Both
	// output streams are written to output. A non-zero exit code
	// is not an error; the error is reserved for failures of the
	// connection itself.
	Run(ctx context.Context, command string, output io.Writer) (int, error)
	// OpenFileChannel opens a file transfer channel on the
	// connection. It gives up once the context is done.
	OpenFileChannel(ctx context.Context) (FileChannel, error)
	// Close closes the connection.
	Close() error
}

// FileChannel transfers files over a connection.
type FileChannel interface {
	// Upload writes src to the remote file.
	Upload(ctx context.Context, remotePath string, src io.Reader) (int64, error)
	// Download writes the remote file to dst.
	Download(ctx context.Context, remotePath string, dst io.Writer) (int64, error)
	// MkdirAll creates a remote directory and its parents.
	MkdirAll(remotePath string) error
	// Close closes the channel, but not the connection.
	Close() error
}
