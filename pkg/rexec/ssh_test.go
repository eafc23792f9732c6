package rexec

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/nicklasfrahm/sshclient/pkg/keys"
	"github.com/nicklasfrahm/sshclient/pkg/sshx"
)

// sshServer is an SSH server on the loopback interface that understands
// a handful of commands and serves SFTP from memory.
type sshServer struct {
	address    string
	hostKey    ssh.PublicKey
	authorized ssh.PublicKey
	// stallSFTP accepts the SFTP subsystem but never answers.
	stallSFTP bool

	files sftp.Handlers
}

func newSSHServer(t *testing.T, authorized ssh.PublicKey, configure ...func(*sshServer)) *sshServer {
	t.Helper()

	_, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostKey, err := ssh.NewSignerFromKey(private)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	server := &sshServer{
		address:    listener.Addr().String(),
		hostKey:    hostKey.PublicKey(),
		authorized: authorized,
		files:      sftp.InMemHandler(),
	}
	for _, fn := range configure {
		fn(server)
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if server.authorized != nil && bytes.Equal(key.Marshal(), server.authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unauthorized")
		},
	}
	config.AddHostKey(hostKey)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go server.serve(conn, config)
		}
	}()

	return server
}

// target returns the connection configuration for the server, pinned to
// its host key.
func (s *sshServer) target(t *testing.T, keyFile string) sshx.Config {
	t.Helper()

	host, port, err := net.SplitHostPort(s.address)
	require.NoError(t, err)

	var portNumber int
	_, err = fmt.Sscan(port, &portNumber)
	require.NoError(t, err)

	return sshx.Config{
		Host:        host,
		Port:        portNumber,
		User:        "deploy",
		KeyFile:     keyFile,
		Fingerprint: ssh.FingerprintSHA256(s.hostKey),
	}
}

func (s *sshServer) serve(conn net.Conn, config *ssh.ServerConfig) {
	serverConn, channels, requests, err := ssh.NewServerConn(conn, config)
	if err != nil {
		_ = conn.Close()
		return
	}
	defer serverConn.Close()

	go ssh.DiscardRequests(requests)

	for newChannel := range channels {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}

		channel, channelRequests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.session(channel, channelRequests)
	}
}

func (s *sshServer) session(channel ssh.Channel, requests <-chan *ssh.Request) {
	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)

			status := runCommand(payload.Command, channel, channel.Stderr())
			_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
			_ = channel.Close()
		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)

			if s.stallSFTP {
				continue
			}
			go func() {
				server := sftp.NewRequestServer(channel, s.files)
				_ = server.Serve()
				_ = server.Close()
			}()
		default:
			_ = req.Reply(false, nil)
		}
	}
}

// runCommand understands "echo <text>", "true" and "false".
func runCommand(command string, stdout, stderr io.Writer) uint32 {
	switch {
	case strings.HasPrefix(command, "echo "):
		fmt.Fprintln(stdout, strings.TrimPrefix(command, "echo "))
		return 0
	case command == "true":
		return 0
	case command == "false":
		return 1
	default:
		fmt.Fprintf(stderr, "sh: %s: not found\n", command)
		return 127
	}
}

// newSSHClient creates a client for the server that uses the SSH dialer.
func newSSHClient(t *testing.T, server *sshServer, keyFile string, options ...Option) *Client {
	t.Helper()

	options = append([]Option{
		WithProvisioner(keys.NopProvisioner{}),
		WithLocalPath(t.TempDir()),
		WithTimeout(5 * time.Second),
	}, options...)

	client, err := New(context.Background(), server.target(t, keyFile), "/", options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect() })

	return client
}

func authorizedKey(t *testing.T, keyFile string) ssh.PublicKey {
	t.Helper()

	key, err := keys.Load(keyFile, "")
	require.NoError(t, err)
	return key.PublicKey()
}

func TestSSHDialer(t *testing.T) {
	t.Parallel()

	t.Run("exit codes and output", func(t *testing.T) {
		t.Parallel()

		keyFile := writeTestKey(t, t.TempDir())
		server := newSSHServer(t, authorizedKey(t, keyFile))
		client := newSSHClient(t, server, keyFile)

		results, err := client.ExecuteCommands(context.Background(), []string{"echo A", "false", "echo B"})
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, 0, results[0].ExitCode)
		assert.Equal(t, "A\n", results[0].Output)
		assert.Equal(t, 1, results[1].ExitCode)
		assert.Empty(t, results[1].Output)
		assert.Equal(t, 0, results[2].ExitCode)
		assert.Equal(t, "B\n", results[2].Output)

		var cmdErr *CommandError
		require.ErrorAs(t, results[1].Err, &cmdErr)
		assert.Equal(t, 1, cmdErr.ExitCode)
		assert.Equal(t, Connected, client.State())
	})

	t.Run("rejected key", func(t *testing.T) {
		t.Parallel()

		keyFile := writeTestKey(t, t.TempDir())
		server := newSSHServer(t, nil)
		client := newSSHClient(t, server, keyFile)

		var authErr *AuthenticationError
		require.ErrorAs(t, client.Connect(context.Background()), &authErr)
		assert.Equal(t, "deploy", authErr.User)
		assert.Equal(t, Disconnected, client.State())
	})

	t.Run("handshake timeout", func(t *testing.T) {
		t.Parallel()

		// The listener accepts connections but never speaks SSH.
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		t.Cleanup(func() { _ = listener.Close() })

		accepted := make(chan net.Conn, 1)
		go func() {
			conn, err := listener.Accept()
			if err == nil {
				accepted <- conn
			}
		}()
		t.Cleanup(func() {
			select {
			case conn := <-accepted:
				_ = conn.Close()
			default:
			}
		})

		keyFile := writeTestKey(t, t.TempDir())
		silent := &sshServer{address: listener.Addr().String(), hostKey: authorizedKey(t, keyFile)}
		client := newSSHClient(t, silent, keyFile, WithTimeout(300*time.Millisecond))

		start := time.Now()
		err = client.Connect(context.Background())
		elapsed := time.Since(start)

		var timeoutErr *ConnectionTimeoutError
		require.ErrorAs(t, err, &timeoutErr)
		assert.Less(t, elapsed, 5*time.Second)
		assert.Equal(t, Disconnected, client.State())
	})

	t.Run("file channel timeout", func(t *testing.T) {
		t.Parallel()

		keyFile := writeTestKey(t, t.TempDir())
		server := newSSHServer(t, authorizedKey(t, keyFile), func(s *sshServer) { s.stallSFTP = true })
		client := newSSHClient(t, server, keyFile, WithTimeout(500*time.Millisecond))

		start := time.Now()
		err := client.Connect(context.Background())

		var timeoutErr *ConnectionTimeoutError
		require.ErrorAs(t, err, &timeoutErr)
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.Equal(t, Disconnected, client.State())
	})

	t.Run("file transfer", func(t *testing.T) {
		t.Parallel()

		keyFile := writeTestKey(t, t.TempDir())
		server := newSSHServer(t, authorizedKey(t, keyFile))
		client := newSSHClient(t, server, keyFile)

		local := filepath.Join(t.TempDir(), "app.conf")
		require.NoError(t, os.WriteFile(local, []byte("port=8080"), 0o644))

		report, err := client.BulkUpload(context.Background(), []string{local})
		require.NoError(t, err)
		require.True(t, report.OK(), report.Err())
		assert.Equal(t, "/app.conf", report[0].RemotePath)
		assert.Equal(t, int64(9), report[0].Bytes)

		downloaded, err := client.DownloadFile(context.Background(), "app.conf")
		require.NoError(t, err)

		content, err := os.ReadFile(downloaded)
		require.NoError(t, err)
		assert.Equal(t, "port=8080", string(content))

		_, err = client.DownloadFile(context.Background(), "missing.conf")
		var transferErr *TransferError
		assert.ErrorAs(t, err, &transferErr)

		require.NoError(t, client.Disconnect())
		assert.Equal(t, Disconnected, client.State())
	})
}
