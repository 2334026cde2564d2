// Package toolrun executes external command-line tools such as tesseract and
// libreoffice under a deadline.
package toolrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when a tool does not finish before its deadline.
var ErrTimeout = errors.New("tool timed out")

const waitDelay = 2 * time.Second

// ExitError describes a tool that ran but exited with a non-zero status.
type ExitError struct {
	Binary   string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with status %d", e.Binary, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d: %s", e.Binary, e.ExitCode, e.Stderr)
}

// Run executes binary with args and waits for it. A zero timeout means the
// caller's context is the only deadline. Stdout is returned; stderr is folded
// into the error on failure.
func Run(ctx context.Context, timeout time.Duration, binary string, args ...string) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children that inherit the output pipes must not keep Run blocked after
	// the tool itself was killed.
	cmd.WaitDelay = waitDelay
	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", binary, ErrTimeout)
		}
		return nil, fmt.Errorf("%s: %w", binary, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, &ExitError{
			Binary:   binary,
			ExitCode: exitErr.ExitCode(),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}
	return nil, fmt.Errorf("start %s: %w", binary, err)
}
