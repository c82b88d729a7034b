//go:build windows
// +build windows

package pty

import (
	"fmt"
	"os/exec"
	"sync"

	widepty "github.com/aymanbagabas/go-pty"
)

// winConPTY wraps a ConPTY to satisfy our PTY interface.
type winConPTY struct {
	c     widepty.Pty
	child *widepty.Cmd
	once  sync.Once
	err   error
}

func Start(cmd *exec.Cmd) (PTY, error) {
	p, err := widepty.New()
	if err != nil {
		return nil, fmt.Errorf("pty: failed to create PTY: %w", err)
	}

	var name string
	var args []string
	if len(cmd.Args) > 0 {
		name = cmd.Args[0]
		if len(cmd.Args) > 1 {
			args = cmd.Args[1:]
		}
	} else {
		name = cmd.Path
	}

	c := p.Command(name, args...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.SysProcAttr = cmd.SysProcAttr

	if err := c.Start(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("pty: failed to start command in PTY: %w", err)
	}
	// Expose the process so callers can kill it on cancellation.
	cmd.Process = c.Process
	return &winConPTY{c: p, child: c}, nil
}

func (w *winConPTY) Wait() error {
	if w.child != nil {
		return w.child.Wait()
	}
	return fmt.Errorf("no child process")
}

func (w *winConPTY) Read(b []byte) (int, error)  { return w.c.Read(b) }
func (w *winConPTY) Write(b []byte) (int, error) { return w.c.Write(b) }
func (w *winConPTY) Close() error {
	w.once.Do(func() { w.err = w.c.Close() })
	return w.err
}
func (w *winConPTY) SetSize(rows, cols int) error { return w.c.Resize(cols, rows) }
