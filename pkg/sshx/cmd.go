package sshx

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// Cmd describes a command to be executed on the remote host.
type Cmd struct {
	Cmd    string
	Env    map[string]string
	Shell  bool
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// String compiles the command to be executed.
func (c *Cmd) String() string {
	cmd := c.Cmd

	// Note that we also need to wrap the command in a
	// shell if we want to inject environment variables.
	if c.Shell || c.Env != nil {
		cmd = "sh -c " + quote(c.Cmd)
	}

	if c.Env != nil {
		keys := make([]string, 0, len(c.Env))
		for k := range c.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		vars := make([]string, 0, len(keys))
		for _, k := range keys {
			vars = append(vars, k+"="+quote(c.Env[k]))
		}

		cmd = fmt.Sprintf("env %s %s", strings.Join(vars, " "), cmd)
	}

	return cmd
}

// quote wraps a value in single quotes for a POSIX shell.
func quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// Do runs the command in a new session and waits for it to exit. A
// non-zero exit status is returned as *ssh.ExitError. If the context is
// canceled, the remote process is killed and the context error returned.
func (client *Client) Do(ctx context.Context, cmd Cmd) error {
	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	session.Stdin = cmd.Stdin
	session.Stdout = cmd.Stdout
	session.Stderr = cmd.Stderr

	if err := session.Start(cmd.String()); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()

		// Give the output copiers a moment to drain before returning.
		select {
		case <-done:
		case <-time.After(time.Second):
		}

		return ctx.Err()
	}
}
