// Package execrunner executes external commands with a bounded timeout.
package execrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds every command unless the caller overrides it.
const DefaultTimeout = 30 * time.Second

// Result captures the outcome of a completed command. A non-zero ExitCode is
// not an error; callers inspect it and decide.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// TimeoutError reports that a command exceeded its deadline.
type TimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %q timed out after %s", e.Command, e.Timeout)
}

// ExecutionError reports that a command could not be run at all, as opposed to
// running and exiting non-zero.
type ExecutionError struct {
	Command string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command %q failed to execute: %v", e.Command, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Runner executes commands in a fixed working directory.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// CommandRunner is the real Runner backed by os/exec.
type CommandRunner struct {
	workDir string
	timeout time.Duration
}

// NewCommandRunner creates a runner rooted at workDir. A zero timeout selects
// DefaultTimeout.
func NewCommandRunner(workDir string, timeout time.Duration) *CommandRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandRunner{workDir: workDir, timeout: timeout}
}

// Run executes name with args and returns captured output plus the exit code.
func (r *CommandRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return nil, &TimeoutError{Command: name, Timeout: r.timeout}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Result{
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
				ExitCode: exitErr.ExitCode(),
			}, nil
		}
		return nil, &ExecutionError{Command: name, Err: err}
	}

	return &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}, nil
}
