package util

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Printer is the line-oriented console sink. While suspended (see Silence)
// every write is dropped.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	silence int
}

var Default = NewPrinter(os.Stdout, os.Stderr)

// Indicator glyphs used in action and task lines.
var (
	MarkSuccess = color.GreenString("✔")
	MarkFailed  = color.RedString("✖")
	MarkSkipped = color.YellowString("⬇")
)

// funcIndent offsets function messages under their action line.
const funcIndent = "          "

func NewPrinter(out, errOut io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = out
	}
	return &Printer{out: out, errOut: errOut}
}

func (p *Printer) write(w io.Writer, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.silence > 0 {
		return
	}
	fmt.Fprint(w, msg)
}

func (p *Printer) Print(a ...interface{}) {
	p.write(p.out, fmt.Sprint(a...))
}

func (p *Printer) Printf(format string, a ...interface{}) {
	p.write(p.out, fmt.Sprintf(format, a...))
}

func (p *Printer) Println(a ...interface{}) {
	p.write(p.out, fmt.Sprintln(a...))
}

// Log writes one line to standard output.
func (p *Printer) Log(msg string) {
	p.write(p.out, msg+"\n")
}

// Error writes one line to the error stream.
func (p *Printer) Error(msg string) {
	p.write(p.errOut, msg+"\n")
}

// ErrorHeader writes a highlighted header line to the error stream.
func (p *Printer) ErrorHeader(header string) {
	p.write(p.errOut, color.New(color.FgRed, color.Bold).Sprint(header)+"\n")
}

// LogMultiLineError writes every line of message to the error stream,
// prefixed with indent.
func (p *Printer) LogMultiLineError(indent, message string) {
	var b strings.Builder
	for _, line := range strings.Split(message, "\n") {
		b.WriteString(indent + line + "\n")
	}
	p.write(p.errOut, b.String())
}

func (p *Printer) LogFuncWarnings(indent string, warnings []string) {
	p.logFunc(indent, color.YellowString("[warn]"), warnings)
}

func (p *Printer) LogFuncInfo(indent string, info []string) {
	p.logFunc(indent, color.GreenString("[info]"), info)
}

func (p *Printer) LogFuncErrors(indent string, errs []string) {
	p.logFunc(indent, color.RedString("[error]"), errs)
}

func (p *Printer) logFunc(indent, tag string, msgs []string) {
	if len(msgs) == 0 {
		return
	}
	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(funcIndent + indent + tag + " " + msg + "\n")
	}
	p.write(p.errOut, b.String())
}

// Silence suspends output until the returned func is called. Calls nest.
func (p *Printer) Silence() func() {
	p.Suspend()
	var once sync.Once
	return func() { once.Do(p.Resume) }
}

func (p *Printer) Suspend() {
	p.mu.Lock()
	p.silence++
	p.mu.Unlock()
}

func (p *Printer) Resume() {
	p.mu.Lock()
	if p.silence > 0 {
		p.silence--
	}
	p.mu.Unlock()
}

func (p *Printer) IsSuspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.silence > 0
}
