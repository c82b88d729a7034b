package util

import (
	"bytes"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinterSilenceNests(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, &out)

	p.Log("one")
	restoreOuter := p.Silence()
	restoreInner := p.Silence()
	p.Log("hidden")
	restoreInner()
	restoreInner()
	p.Log("still hidden")
	assert.True(t, p.IsSuspended())
	restoreOuter()
	p.Log("two")

	assert.Equal(t, "one\ntwo\n", out.String())
}

func TestPrinterMultiLineError(t *testing.T) {
	var out, errOut bytes.Buffer
	p := NewPrinter(&out, &errOut)

	p.LogMultiLineError("   ", "first\nsecond")
	p.LogFuncWarnings("", []string{"careful"})

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "   first\n   second\n")
	assert.Contains(t, errOut.String(), "[warn] careful")
}

func TestRunAllWaitsForEveryTask(t *testing.T) {
	var ran int32
	boom := errors.New("boom")
	tasks := []ConcurrentTask{
		func() error { atomic.AddInt32(&ran, 1); return boom },
		func() error { time.Sleep(10 * time.Millisecond); atomic.AddInt32(&ran, 1); return nil },
		func() error { atomic.AddInt32(&ran, 1); return nil },
	}

	errs := RunAll(tasks, 0)

	require.Len(t, errs, 3)
	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
	assert.ErrorIs(t, errs[0], boom)
	assert.NoError(t, errs[1])
}

func TestRunAllBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	tasks := make([]ConcurrentTask, 8)
	for i := range tasks {
		tasks[i] = func() error {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return nil
		}
	}

	RunAll(tasks, 2)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(time.Second)
	now := time.Unix(100, 0)
	th.now = func() time.Time { return now }

	assert.True(t, th.Allow("a"))
	assert.False(t, th.Allow("a"))
	assert.True(t, th.Allow("b"))
	now = now.Add(2 * time.Second)
	assert.True(t, th.Allow("a"))
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "a\n  b\n", Dedent("\n    a\n      b\n  "))
	assert.Equal(t, "short", Truncate("short", 18))
	assert.Equal(t, "echo hello world ...", Truncate("echo hello world and more", 17))
	assert.Equal(t, "dry-run", KebabCase("dryRun"))
	assert.Equal(t, "max-count", KebabCase("max_count"))
	assert.Equal(t, "url", KebabCase("url"))
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "red text", StripANSIString("\x1b[31mred\x1b[0m text"))

	var buf bytes.Buffer
	w := NewStrippingWriter(&buf)
	_, _ = w.Write([]byte("a\x1b["))
	_, _ = w.Write([]byte("1mb"))
	assert.Equal(t, "ab", buf.String())
}
