// Package driver runs source units through the scanner, parser and
// interpreter and turns the outcome into a status a caller can act on.
package driver

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/lox/diag"
	"github.com/chazu/lox/interpreter"
	"github.com/chazu/lox/syntax"
	"github.com/chazu/lox/value"
)

var log = commonlog.GetLogger("lox.driver")

// Process exit codes, following sysexits.h.
const (
	ExitOK       = 0
	ExitUsage    = 64
	ExitDataErr  = 65
	ExitSoftware = 70
	ExitIOErr    = 74
)

// Status is the outcome of one unit.
type Status int

const (
	StatusOK Status = iota
	StatusSyntaxError
	StatusRuntimeError
	StatusIOError
)

var statusNames = map[Status]string{
	StatusOK:           "ok",
	StatusSyntaxError:  "syntax_error",
	StatusRuntimeError: "runtime_error",
	StatusIOError:      "io_error",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", s)
}

// ExitCode maps s to a process exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusSyntaxError:
		return ExitDataErr
	case StatusRuntimeError:
		return ExitSoftware
	case StatusIOError:
		return ExitIOErr
	}
	return ExitOK
}

// Result describes how a unit finished. Err is nil when Status is StatusOK.
type Result struct {
	Status Status
	Err    error
}

// OK reports whether the unit completed without errors.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Option configures a Driver.
type Option func(*Driver)

// WithEnvironment runs units against env instead of fresh globals.
func WithEnvironment(env *interpreter.Environment) Option {
	return func(d *Driver) { d.env = env }
}

// Driver owns one interpreter and its error flags. Globals persist across
// Run calls until ResetEnvironment. Not safe for concurrent use.
type Driver struct {
	flags  *diag.Flags
	env    *interpreter.Environment
	interp *interpreter.Interpreter
}

// New creates a driver that prints program output to out and reports
// diagnostics to sink.
func New(out io.Writer, sink diag.Sink, opts ...Option) *Driver {
	d := &Driver{flags: diag.NewFlags(sink)}
	for _, opt := range opts {
		opt(d)
	}
	if d.env == nil {
		d.env = interpreter.NewEnvironment()
	}
	d.interp = interpreter.New(out, d.env, d.flags)
	return d
}

// Flags exposes the syntax and runtime error flags.
func (d *Driver) Flags() *diag.Flags { return d.flags }

// Environment returns the environment units run against.
func (d *Driver) Environment() *interpreter.Environment { return d.env }

// SetOutput redirects program output.
func (d *Driver) SetOutput(w io.Writer) { d.interp.SetOutput(w) }

// Reset clears the error flags. Globals are kept.
func (d *Driver) Reset() { d.flags.Reset() }

// ResetEnvironment clears the error flags and every global binding.
func (d *Driver) ResetEnvironment() {
	d.flags.Reset()
	d.env.Reset()
}

// Parse scans and parses source, reporting syntax errors to the sink.
func (d *Driver) Parse(source string) ([]syntax.Stmt, error) {
	// unit tracks this call only; d.flags still sees every error.
	unit := diag.NewFlags(d.flags)
	stmts, err := syntax.ParseProgram(source, unit)
	if err != nil {
		return nil, err
	}
	return stmts, nil
}

// Run executes one unit. A unit with any syntax error is not executed at all.
// A runtime error stops the unit; effects before it are kept.
func (d *Driver) Run(source string) Result {
	stmts, err := d.Parse(source)
	if err != nil {
		log.Debugf("syntax error: %v", err)
		return Result{Status: StatusSyntaxError, Err: err}
	}

	log.Debugf("running %d statements", len(stmts))
	if err := d.interp.Interpret(stmts); err != nil {
		var rerr *interpreter.RuntimeError
		if errors.As(err, &rerr) {
			log.Debugf("runtime error on line %d: %s", rerr.Line(), rerr.Message)
			return Result{Status: StatusRuntimeError, Err: err}
		}
		return Result{Status: StatusIOError, Err: err}
	}
	return Result{Status: StatusOK}
}

// RunFile reads path and runs it as one unit.
func (d *Driver) RunFile(path string) Result {
	source, err := os.ReadFile(path)
	if err != nil {
		log.Errorf("read %s: %v", path, err)
		return Result{Status: StatusIOError, Err: fmt.Errorf("driver: %w", err)}
	}
	log.Infof("running %s", path)
	return d.Run(string(source))
}

// RunLine runs one interactive line. A line holding a single expression with
// no trailing semicolon is evaluated and its value returned with echo set.
// Anything else runs as a unit. Error flags are cleared first.
func (d *Driver) RunLine(line string) (v value.Value, echo bool, res Result) {
	d.Reset()

	if expr, ok := bareExpression(line); ok {
		v, err := d.interp.Evaluate(expr)
		if err != nil {
			return value.Nil, false, Result{Status: StatusRuntimeError, Err: err}
		}
		return v, true, Result{Status: StatusOK}
	}
	return value.Nil, false, d.Run(line)
}

// bareExpression parses line as a lone expression without reporting errors.
func bareExpression(line string) (syntax.Expr, bool) {
	scan := diag.NewFlags(nil)
	tokens := syntax.NewScanner(line, scan).ScanTokens()
	if scan.HadError() || len(tokens) <= 1 {
		return nil, false
	}
	expr, err := syntax.NewParser(tokens, nil).ParseExpression()
	if err != nil {
		return nil, false
	}
	return expr, true
}

// Tokens scans source, reporting lexical errors to the sink.
func (d *Driver) Tokens(source string) []syntax.Token {
	return syntax.NewScanner(source, d.flags).ScanTokens()
}
