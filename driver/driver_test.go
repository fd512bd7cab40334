package driver

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/lox/diag"
	"github.com/chazu/lox/interpreter"
	"github.com/chazu/lox/syntax"
	"github.com/chazu/lox/value"
)

func newDriver() (*Driver, *bytes.Buffer, *diag.Collector) {
	var out bytes.Buffer
	c := &diag.Collector{}
	return New(&out, c), &out, c
}

func TestRunStatus(t *testing.T) {
	tests := []struct {
		src    string
		status Status
		exit   int
		out    string
	}{
		{`print "hi";`, StatusOK, ExitOK, "hi\n"},
		{`print 1`, StatusSyntaxError, ExitDataErr, ""},
		{`print 1; print 2 +;`, StatusSyntaxError, ExitDataErr, ""},
		{`print 1; @`, StatusSyntaxError, ExitDataErr, ""},
		{`print 1; print -nil; print 2;`, StatusRuntimeError, ExitSoftware, "1\n"},
	}

	for _, tt := range tests {
		d, out, _ := newDriver()
		res := d.Run(tt.src)
		if res.Status != tt.status {
			t.Errorf("%q: status = %v, want %v", tt.src, res.Status, tt.status)
		}
		if code := res.Status.ExitCode(); code != tt.exit {
			t.Errorf("%q: exit code = %d, want %d", tt.src, code, tt.exit)
		}
		if out.String() != tt.out {
			t.Errorf("%q: output = %q, want %q", tt.src, out.String(), tt.out)
		}
		if res.OK() != (res.Err == nil) {
			t.Errorf("%q: OK()=%v but Err=%v", tt.src, res.OK(), res.Err)
		}
	}
}

func TestRunSetsFlags(t *testing.T) {
	d, _, _ := newDriver()

	d.Run(`print;`)
	if !d.Flags().HadError() || d.Flags().HadRuntimeError() {
		t.Errorf("after syntax error: HadError=%v HadRuntimeError=%v", d.Flags().HadError(), d.Flags().HadRuntimeError())
	}

	d.Reset()
	d.Run(`print x;`)
	if d.Flags().HadError() || !d.Flags().HadRuntimeError() {
		t.Errorf("after runtime error: HadError=%v HadRuntimeError=%v", d.Flags().HadError(), d.Flags().HadRuntimeError())
	}
}

func TestSyntaxErrorSkipsWholeUnit(t *testing.T) {
	d, out, c := newDriver()
	res := d.Run("var a = 1;\nprint a;\nprint ;")
	if res.Status != StatusSyntaxError {
		t.Fatalf("status = %v", res.Status)
	}
	if out.Len() != 0 {
		t.Errorf("unit with syntax error produced output %q", out.String())
	}
	if len(d.Environment().Globals()) != 0 {
		t.Error("unit with syntax error defined globals")
	}
	got := c.Diagnostics()
	if len(got) != 1 || got[0].String() != "[line 3] Error at ';': Expect expression." {
		t.Errorf("diagnostics = %v", got)
	}
}

func TestGlobalsPersistAcrossRuns(t *testing.T) {
	d, out, _ := newDriver()
	d.Run(`var a = "x";`)
	d.Run(`a = a + "y";`)
	d.Run(`print a;`)
	if out.String() != "xy\n" {
		t.Errorf("output = %q, want xy", out.String())
	}

	d.ResetEnvironment()
	if res := d.Run(`print a;`); res.Status != StatusRuntimeError {
		t.Errorf("after ResetEnvironment status = %v, want runtime error", res.Status)
	}
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.lox")
	if err := os.WriteFile(path, []byte("for (var i = 0; i < 2; i = i + 1) print i;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, out, _ := newDriver()
	if res := d.RunFile(path); !res.OK() {
		t.Fatalf("RunFile: %v", res.Err)
	}
	if out.String() != "0\n1\n" {
		t.Errorf("output = %q", out.String())
	}

	res := d.RunFile(filepath.Join(dir, "missing.lox"))
	if res.Status != StatusIOError || res.Status.ExitCode() != ExitIOErr {
		t.Errorf("missing file: status = %v", res.Status)
	}
	if !errors.Is(res.Err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want ErrNotExist", res.Err)
	}
}

func TestRunLineEcho(t *testing.T) {
	tests := []struct {
		line string
		echo bool
		want value.Value
	}{
		{"1 + 2", true, value.Number(3)},
		{`"a" + "b"`, true, value.String("ab")},
		{"x = 5", true, value.Number(5)},
		{"x", true, value.Number(5)},
		{"print x;", false, value.Nil},
		{"x;", false, value.Nil},
		{"1 @", false, value.Nil},
		{"", false, value.Nil},
	}

	d, _, _ := newDriver()
	d.Run("var x;")
	for _, tt := range tests {
		v, echo, _ := d.RunLine(tt.line)
		if echo != tt.echo {
			t.Errorf("RunLine(%q) echo = %v, want %v", tt.line, echo, tt.echo)
			continue
		}
		if echo && !v.Equal(tt.want) {
			t.Errorf("RunLine(%q) = %#v, want %#v", tt.line, v, tt.want)
		}
	}
}

func TestRunLineResetsFlags(t *testing.T) {
	d, _, _ := newDriver()
	d.RunLine("print ;")
	if !d.Flags().HadError() {
		t.Fatal("expected syntax error flag")
	}
	d.RunLine("1;")
	if d.Flags().HadError() {
		t.Error("flags not reset between lines")
	}
}

func TestRunLineRuntimeError(t *testing.T) {
	d, _, c := newDriver()
	_, echo, res := d.RunLine("-nil")
	if echo || res.Status != StatusRuntimeError {
		t.Errorf("echo=%v status=%v", echo, res.Status)
	}
	if n := len(c.Diagnostics()); n != 1 {
		t.Errorf("got %d diagnostics, want 1", n)
	}
}

func TestWithEnvironment(t *testing.T) {
	env := interpreter.NewEnvironment()
	env.Define("shared", value.Number(1))

	var out bytes.Buffer
	d := New(&out, nil, WithEnvironment(env))
	d.Run("print shared;")
	if out.String() != "1\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestTokens(t *testing.T) {
	d, _, _ := newDriver()
	toks := d.Tokens("var x;")
	if len(toks) != 4 || toks[3].Type != syntax.TokenEOF {
		t.Errorf("Tokens = %v", toks)
	}
}
