package sshx

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/sftp"
)

// FileChannel is a file transfer channel bound to an SSH connection.
type FileChannel struct {
	*sftp.Client
}

// OpenFileChannel starts the SFTP subsystem on the connection. The SFTP
// handshake has no timeout of its own, so the connection is closed if
// the context is done before the server answers.
func (client *Client) OpenFileChannel(ctx context.Context) (*FileChannel, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = client.Client.Close()
	})

	sftpClient, err := sftp.NewClient(client.Client)
	if !stop() {
		if sftpClient != nil {
			_ = sftpClient.Close()
		}
		return nil, fmt.Errorf("failed to create sftp client: %w", ctx.Err())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}

	return &FileChannel{Client: sftpClient}, nil
}

// NewFileChannel creates a file channel that speaks SFTP over an
// arbitrary pair of streams.
func NewFileChannel(rd io.Reader, wr io.WriteCloser) (*FileChannel, error) {
	sftpClient, err := sftp.NewClientPipe(rd, wr)
	if err != nil {
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}

	return &FileChannel{Client: sftpClient}, nil
}

// Upload writes the content of src to the remote file, replacing it if it
// exists. The parent directory must exist.
func (f *FileChannel) Upload(ctx context.Context, remotePath string, src io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	dst, err := f.Create(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create remote file %q: %w", remotePath, err)
	}

	n, err := io.Copy(dst, &contextReader{ctx: ctx, r: src})
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}

	return n, err
}

// Download copies the content of the remote file to dst.
func (f *FileChannel) Download(ctx context.Context, remotePath string, dst io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	src, err := f.Open(remotePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open remote file %q: %w", remotePath, err)
	}
	defer src.Close()

	return io.Copy(dst, &contextReader{ctx: ctx, r: src})
}

// contextReader stops reading once its context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
