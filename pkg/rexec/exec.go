package rexec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// CommandResult is the outcome of a single remote command.
type CommandResult struct {
	Command string
	// Output is the combined standard output and standard error.
	Output   string
	ExitCode int
	Duration time.Duration
	// Err is a *CommandError if the command failed.
	Err error
}

// Success returns true if the command exited with code 0.
func (r *CommandResult) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Failed returns true if the command did not succeed.
func (r *CommandResult) Failed() bool {
	return !r.Success()
}

// Results are the outcomes of a command sequence in execution order.
type Results []CommandResult

// OK returns true if every command succeeded.
func (r Results) OK() bool {
	for i := range r {
		if r[i].Failed() {
			return false
		}
	}
	return true
}

// Failed returns the results of all failed commands.
func (r Results) Failed() Results {
	var failed Results
	for i := range r {
		if r[i].Failed() {
			failed = append(failed, r[i])
		}
	}
	return failed
}

// Err joins the errors of all failed commands.
func (r Results) Err() error {
	var errs []error
	for _, result := range r.Failed() {
		errs = append(errs, result.Err)
	}
	return errors.Join(errs...)
}

// ExecuteCommands runs the commands one after another on the shared
// connection. A failing command does not stop the sequence unless the
// client aborts on failure, in which case the remaining commands are
// recorded as skipped. There is always one result per command. The
// returned error is only set if no connection could be established.
func (c *Client) ExecuteCommands(ctx context.Context, commands []string) (Results, error) {
	if len(commands) == 0 {
		return Results{}, nil
	}

	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	results := make(Results, 0, len(commands))
	aborted := false
	for _, command := range commands {
		if aborted {
			results = append(results, CommandResult{
				Command:  command,
				ExitCode: -1,
				Err:      &CommandError{Command: command, ExitCode: -1, Err: ErrSkipped},
			})
			c.logger.Warn().Str("input", command).Msg("Skipped command")
			continue
		}

		result := c.execute(ctx, command)
		results = append(results, result)

		if result.Failed() && c.AbortOnFailure {
			aborted = true
		}
	}

	return results, nil
}

// execute runs a single command and records its outcome.
func (c *Client) execute(ctx context.Context, command string) CommandResult {
	if c.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.CommandTimeout)
		defer cancel()
	}

	output := new(syncBuffer)
	start := time.Now()
	exitCode, err := c.conn.Run(ctx, command, output)

	result := CommandResult{
		Command:  command,
		Output:   output.String(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}
	if err != nil || exitCode != 0 {
		result.Err = &CommandError{Command: command, ExitCode: exitCode, Err: err}
	}

	scanner := bufio.NewScanner(strings.NewReader(result.Output))
	for scanner.Scan() {
		c.logger.Info().Str("input", command).Str("output", scanner.Text()).Msg("Command output")
	}

	event := c.logger.Info()
	if result.Failed() {
		event = c.logger.Warn().Err(result.Err)
	}
	event.Str("input", command).
		Int("exit_code", exitCode).
		Dur("duration", result.Duration).
		Msg("Executed command")

	return result
}

// syncBuffer is a buffer that is safe for the concurrent writes of the
// output and error streams of a remote command.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
