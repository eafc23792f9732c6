package rexec

import (
	"errors"
	"fmt"
	"time"
)

// ErrSkipped is recorded for commands that were not run because an
// earlier command of the sequence failed.
var ErrSkipped = errors.New("skipped after previous failure")

// AuthenticationError is returned if the remote host rejected
// the credentials.
type AuthenticationError struct {
	User    string
	Address string
	Err     error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication as %q at %s failed: %v", e.User, e.Address, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// ConnectionTimeoutError is returned if the connection could not
// be established in time.
type ConnectionTimeoutError struct {
	Address string
	Timeout time.Duration
	Err     error
}

func (e *ConnectionTimeoutError) Error() string {
	return fmt.Sprintf("connection to %s timed out after %s: %v", e.Address, e.Timeout, e.Err)
}

func (e *ConnectionTimeoutError) Unwrap() error {
	return e.Err
}

// ConnectionError is returned for all other failures to connect.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// CommandError describes why a remote command failed. Err is nil if
// the command ran but exited with a non-zero code.
type CommandError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
	}

	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Transfer operations.
const (
	OpUpload   = "upload"
	OpDownload = "download"
)

// TransferError describes why a file transfer failed.
type TransferError struct {
	Op         string
	LocalPath  string
	RemotePath string
	Err        error
}

func (e *TransferError) Error() string {
	if e.Op == OpDownload {
		return fmt.Sprintf("failed to download %q to %q: %v", e.RemotePath, e.LocalPath, e.Err)
	}

	return fmt.Sprintf("failed to upload %q to %q: %v", e.LocalPath, e.RemotePath, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
