package pty

import (
	"errors"
	"io"
	"os/exec"
	"syscall"
)

// PTY is a small, cross-platform abstraction over a pseudo-terminal with a
// child process attached.
type PTY interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	Wait() error
	SetSize(rows, cols int) error
}

// Capture starts cmd on a new pseudo-terminal, copies everything the child
// writes into w until the terminal closes, then waits for it to exit. The
// returned error is the one from Wait, so callers can inspect *exec.ExitError.
func Capture(cmd *exec.Cmd, w io.Writer) error {
	p, err := Start(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	copied := make(chan struct{})
	go func() {
		defer close(copied)
		_, _ = io.Copy(w, readerIgnoringEIO{p})
	}()

	// The master side reports EIO once every holder of the slave is gone.
	<-copied
	return p.Wait()
}

type readerIgnoringEIO struct{ r io.Reader }

func (r readerIgnoringEIO) Read(b []byte) (int, error) {
	n, err := r.r.Read(b)
	if errors.Is(err, syscall.EIO) {
		return n, io.EOF
	}
	return n, err
}
