package toolrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "tool.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunReturnsStdout(t *testing.T) {
	bin := writeScript(t, `echo "hello $1"`)
	out, err := Run(context.Background(), time.Second, bin, "world")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(out) != "hello world\n" {
		t.Fatalf("stdout = %q", out)
	}
}

func TestRunExitCodeCarriesStderr(t *testing.T) {
	bin := writeScript(t, "echo '  bad language  ' >&2\nexit 3")
	_, err := Run(context.Background(), time.Second, bin)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.ExitCode != 3 || exitErr.Stderr != "bad language" {
		t.Fatalf("unexpected exit error: %+v", exitErr)
	}
}

func TestRunTimeout(t *testing.T) {
	bin := writeScript(t, "exec sleep 5")
	_, err := Run(context.Background(), 50*time.Millisecond, bin)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := Run(context.Background(), time.Second, filepath.Join(t.TempDir(), "missing"))
	var exitErr *ExitError
	if err == nil || errors.As(err, &exitErr) {
		t.Fatalf("expected start error, got %v", err)
	}
}
