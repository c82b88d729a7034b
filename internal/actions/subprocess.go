package actions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"taskflow/internal/pty"
	"taskflow/internal/util"
	"taskflow/internal/workflow/types"
)

// Subprocess runs the action's run line through the system shell.
//
// Args:
//
//	cwd  working directory
//	env  map of extra environment variables
//	tty  attach a pseudo-terminal; stdout and stderr are then merged
type Subprocess struct{}

func (s *Subprocess) Execute(ctx context.Context, req Request) (*types.RunResult, error) {
	if strings.TrimSpace(req.Run) == "" {
		return nil, inputErrorf("You must specify a value for the action's \"run\".")
	}
	out, err := runShell(ctx, req.Run, req.Args)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{
		"stdout":   out.stdout,
		"stderr":   out.stderr,
		"exitCode": out.exitCode,
	}
	if out.exitCode != 0 {
		return &types.RunResult{Data: data}, shellFailure(req.Run, out)
	}
	return &types.RunResult{Data: data}, nil
}

type shellOutput struct {
	stdout   string
	stderr   string
	exitCode int
}

func shellFailure(cmdline string, out *shellOutput) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Failed to exec command: %s\n", util.Truncate(cmdline, 80))
	if strings.TrimSpace(out.stderr) != "" {
		fmt.Fprintf(&b, "Command Stderr:\n%s\n", strings.TrimRight(out.stderr, "\n"))
	}
	if strings.TrimSpace(out.stdout) != "" {
		fmt.Fprintf(&b, "Command Stdout:\n%s\n", strings.TrimRight(out.stdout, "\n"))
	}
	fmt.Fprintf(&b, "Command failed with exit code %d.", out.exitCode)
	return errors.New(b.String())
}

func shellCommand(ctx context.Context, cmdline string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", cmdline)
	}
	return exec.CommandContext(ctx, "sh", "-c", cmdline)
}

// runShell executes cmdline and reports its output. A non-zero exit is not an
// error here; only failures to start or cancellation are.
func runShell(ctx context.Context, cmdline string, args map[string]interface{}) (*shellOutput, error) {
	cmd := shellCommand(ctx, cmdline)
	if cwd, ok := stringArg(args, "cwd"); ok && cwd != "" {
		cmd.Dir = cwd
	}
	cmd.Env = os.Environ()
	if env, ok := args["env"].(map[string]interface{}); ok {
		for _, k := range sortedKeys(env) {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%v", k, env[k]))
		}
	}

	tty := boolArg(args, "tty")
	if !tty {
		setProcessGroup(cmd)
	}
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	var err error
	if tty {
		err = pty.Capture(cmd, util.NewStrippingWriter(&stdout))
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err = cmd.Run()
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	out := &shellOutput{stdout: stdout.String(), stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to start command: %v", err)
		}
		out.exitCode = exitErr.ExitCode()
	}
	return out, nil
}
