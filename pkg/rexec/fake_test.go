package rexec

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/nicklasfrahm/sshclient/pkg/keys"
	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

// fakeDialer records dials and hands out connections to an in-memory host.
type fakeDialer struct {
	host    *fakeHost
	err     error
	dials   int
	signers []ssh.Signer
}

func (d *fakeDialer) Dial(ctx context.Context, target *sshx.Config, signer ssh.Signer) (Conn, error) {
	d.dials++
	d.signers = append(d.signers, signer)
	if d.err != nil {
		return nil, d.err
	}
	return &fakeConn{host: d.host}, nil
}

// fakeHost is the state of a remote host shared by all connections to it.
type fakeHost struct {
	files      map[string][]byte
	dirs       map[string]bool
	ran        []string
	closed     []string
	channelErr error
	uploadErr  map[string]error
	// closeErr fails closing the "channel" or the "conn".
	closeErr map[string]error
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		files:     map[string][]byte{},
		dirs:      map[string]bool{},
		uploadErr: map[string]error{},
		closeErr:  map[string]error{},
	}
}

type fakeConn struct {
	host *fakeHost
}

// Run understands "echo <text>", "true", "false", "exit <code>" and
// "broken", which fails the channel.
func (c *fakeConn) Run(ctx context.Context, command string, output io.Writer) (int, error) {
	c.host.ran = append(c.host.ran, command)

	switch {
	case strings.HasPrefix(command, "echo "):
		fmt.Fprintln(output, strings.TrimPrefix(command, "echo "))
		return 0, nil
	case command == "true":
		return 0, nil
	case command == "false":
		return 1, nil
	case strings.HasPrefix(command, "exit "):
		var code int
		fmt.Sscanf(command, "exit %d", &code)
		fmt.Fprintln(output, "bye")
		return code, nil
	case command == "broken":
		return -1, io.ErrUnexpectedEOF
	case command == "hang":
		<-ctx.Done()
		return -1, ctx.Err()
	default:
		fmt.Fprintf(output, "sh: %s: not found\n", command)
		return 127, nil
	}
}

func (c *fakeConn) OpenFileChannel(context.Context) (FileChannel, error) {
	if c.host.channelErr != nil {
		return nil, c.host.channelErr
	}
	return &fakeChannel{host: c.host}, nil
}

func (c *fakeConn) Close() error {
	c.host.closed = append(c.host.closed, "conn")
	return c.host.closeErr["conn"]
}

type fakeChannel struct {
	host *fakeHost
}

func (f *fakeChannel) Upload(ctx context.Context, remotePath string, src io.Reader) (int64, error) {
	if err := f.host.uploadErr[remotePath]; err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, src)
	if err != nil {
		return n, err
	}
	f.host.files[remotePath] = buf.Bytes()
	return n, nil
}

func (f *fakeChannel) Download(ctx context.Context, remotePath string, dst io.Writer) (int64, error) {
	content, ok := f.host.files[remotePath]
	if !ok {
		return 0, os.ErrNotExist
	}
	n, err := dst.Write(content)
	return int64(n), err
}

func (f *fakeChannel) MkdirAll(remotePath string) error {
	f.host.dirs[remotePath] = true
	return nil
}

func (f *fakeChannel) Close() error {
	f.host.closed = append(f.host.closed, "channel")
	return f.host.closeErr["channel"]
}

// fakeProvisioner records provisioned keys.
type fakeProvisioner struct {
	err  error
	keys []*keys.Key
}

func (p *fakeProvisioner) Provision(ctx context.Context, target *sshx.Config, key *keys.Key) error {
	p.keys = append(p.keys, key)
	return p.err
}

var errAuth = errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none publickey], no supported methods remain")

// writeTestKey writes an unencrypted ed25519 private key into the directory.
func writeTestKey(t *testing.T, dir string) string {
	t.Helper()

	_, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKey(private, "")
	require.NoError(t, err)

	path := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	return path
}

// newTestClient creates a client that talks to an in-memory host.
func newTestClient(t *testing.T, options ...Option) (*Client, *fakeDialer, *fakeProvisioner) {
	t.Helper()

	dialer := &fakeDialer{host: newFakeHost()}
	provisioner := &fakeProvisioner{}

	target := sshx.Config{
		Host:    "example.com",
		User:    "deploy",
		KeyFile: writeTestKey(t, t.TempDir()),
	}

	options = append([]Option{
		WithDialer(dialer),
		WithProvisioner(provisioner),
		WithLocalPath(t.TempDir()),
	}, options...)

	client, err := New(context.Background(), target, "/srv/app", options...)
	require.NoError(t, err)

	return client, dialer, provisioner
}
