//go:build !windows

package pty

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestCaptureCollectsOutputAndExitCode(t *testing.T) {
	if _, err := os.Stat("/dev/ptmx"); err != nil {
		t.Skip("no pseudo-terminal support")
	}
	var buf bytes.Buffer
	err := Capture(exec.Command("sh", "-c", "echo from-tty; exit 4"), &buf)

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error, got %v", err)
	}
	if exitErr.ExitCode() != 4 {
		t.Errorf("exit code = %d, expected 4", exitErr.ExitCode())
	}
	if !strings.Contains(buf.String(), "from-tty") {
		t.Errorf("output %q does not contain from-tty", buf.String())
	}
}
