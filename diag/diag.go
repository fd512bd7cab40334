// Package diag carries syntax and runtime diagnostics from the scanner,
// parser and interpreter to whoever is driving them.
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Sink receives diagnostics at the point of failure. It never influences
// control flow.
type Sink interface {
	SyntaxError(line int, where, message string)
	RuntimeError(line int, message string)
}

// ---------------------------------------------------------------------------
// Flags
// ---------------------------------------------------------------------------

// Flags forwards to a Sink and records which classes of error were seen.
// The two flags are independent; a driver uses them to pick an exit status
// and resets them between interactive lines.
type Flags struct {
	sink            Sink
	hadError        bool
	hadRuntimeError bool
}

// NewFlags wraps sink. A nil sink discards diagnostics but still sets flags.
func NewFlags(sink Sink) *Flags {
	return &Flags{sink: sink}
}

// SyntaxError records a syntax error and forwards it.
func (f *Flags) SyntaxError(line int, where, message string) {
	f.hadError = true
	if f.sink != nil {
		f.sink.SyntaxError(line, where, message)
	}
}

// RuntimeError records a runtime error and forwards it.
func (f *Flags) RuntimeError(line int, message string) {
	f.hadRuntimeError = true
	if f.sink != nil {
		f.sink.RuntimeError(line, message)
	}
}

// HadError reports whether a syntax error occurred since the last reset.
func (f *Flags) HadError() bool { return f.hadError }

// HadRuntimeError reports whether a runtime error occurred since the last reset.
func (f *Flags) HadRuntimeError() bool { return f.hadRuntimeError }

// SetError sets the syntax error flag.
func (f *Flags) SetError(v bool) { f.hadError = v }

// SetRuntimeError sets the runtime error flag.
func (f *Flags) SetRuntimeError(v bool) { f.hadRuntimeError = v }

// Reset clears both flags.
func (f *Flags) Reset() {
	f.hadError = false
	f.hadRuntimeError = false
}

// ---------------------------------------------------------------------------
// Console
// ---------------------------------------------------------------------------

// Console writes diagnostics to a writer, usually stderr:
//
//	[line 3] Error at 'x': Expect ';' after value.
//	Operands must be numbers.
//	[line 7]
type Console struct {
	w     io.Writer
	label *color.Color
}

// NewConsole returns a Console writing to w. Colour is enabled only when w is
// a terminal and NO_COLOR is unset.
func NewConsole(w io.Writer) *Console {
	label := color.New(color.FgRed, color.Bold)
	if f, ok := w.(*os.File); !ok || f != os.Stderr || color.NoColor {
		label.DisableColor()
	}
	return &Console{w: w, label: label}
}

// SyntaxError implements Sink.
func (c *Console) SyntaxError(line int, where, message string) {
	fmt.Fprintf(c.w, "[line %d] %s%s: %s\n", line, c.label.Sprint("Error"), where, message)
}

// RuntimeError implements Sink.
func (c *Console) RuntimeError(line int, message string) {
	fmt.Fprintf(c.w, "%s\n[line %d]\n", c.label.Sprint(message), line)
}

// ---------------------------------------------------------------------------
// Collector
// ---------------------------------------------------------------------------

// Kind distinguishes the two error classes.
type Kind int

const (
	KindSyntax Kind = iota
	KindRuntime
)

func (k Kind) String() string {
	if k == KindRuntime {
		return "runtime"
	}
	return "syntax"
}

// Diagnostic is one recorded error.
type Diagnostic struct {
	Kind    Kind
	Line    int
	Where   string
	Message string
}

func (d Diagnostic) String() string {
	if d.Kind == KindRuntime {
		return fmt.Sprintf("%s\n[line %d]", d.Message, d.Line)
	}
	return fmt.Sprintf("[line %d] Error%s: %s", d.Line, d.Where, d.Message)
}

// Collector accumulates diagnostics in memory. Safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// SyntaxError implements Sink.
func (c *Collector) SyntaxError(line int, where, message string) {
	c.mu.Lock()
	c.diags = append(c.diags, Diagnostic{Kind: KindSyntax, Line: line, Where: where, Message: message})
	c.mu.Unlock()
}

// RuntimeError implements Sink.
func (c *Collector) RuntimeError(line int, message string) {
	c.mu.Lock()
	c.diags = append(c.diags, Diagnostic{Kind: KindRuntime, Line: line, Message: message})
	c.mu.Unlock()
}

// Diagnostics returns a copy of everything recorded so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// Drain returns everything recorded so far and clears the collector.
func (c *Collector) Drain() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.diags
	c.diags = nil
	return out
}
