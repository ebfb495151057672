package execrunner

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	r := NewCommandRunner(t.TempDir(), 0)

	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err >&2; exit 3")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.Stdout != "out\n" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}
	if res.Stderr != "err\n" {
		t.Fatalf("unexpected stderr: %q", res.Stderr)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestRunZeroExit(t *testing.T) {
	r := NewCommandRunner(t.TempDir(), 0)

	res, err := r.Run(context.Background(), "true")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}
}

func TestRunTimeout(t *testing.T) {
	r := NewCommandRunner(t.TempDir(), 50*time.Millisecond)

	_, err := r.Run(context.Background(), "sleep", "5")
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := NewCommandRunner(t.TempDir(), 0)

	_, err := r.Run(context.Background(), "definitely-not-a-real-binary-xyz")
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
}
