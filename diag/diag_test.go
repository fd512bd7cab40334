package diag

import (
	"bytes"
	"testing"
)

func TestFlagsIndependent(t *testing.T) {
	f := NewFlags(nil)
	if f.HadError() || f.HadRuntimeError() {
		t.Fatal("fresh flags should be clear")
	}

	f.SyntaxError(1, "", "bad")
	if !f.HadError() {
		t.Error("HadError should be set after SyntaxError")
	}
	if f.HadRuntimeError() {
		t.Error("HadRuntimeError should not be set by SyntaxError")
	}

	f.SetError(false)
	f.RuntimeError(2, "boom")
	if f.HadError() {
		t.Error("HadError should stay clear after RuntimeError")
	}
	if !f.HadRuntimeError() {
		t.Error("HadRuntimeError should be set")
	}

	f.Reset()
	if f.HadError() || f.HadRuntimeError() {
		t.Error("Reset should clear both flags")
	}
}

func TestFlagsForward(t *testing.T) {
	var c Collector
	f := NewFlags(&c)
	f.SyntaxError(3, " at 'x'", "Expect ';' after value.")
	f.RuntimeError(4, "Operands must be numbers.")

	got := c.Diagnostics()
	if len(got) != 2 {
		t.Fatalf("got %d diagnostics, want 2", len(got))
	}
	if got[0].Kind != KindSyntax || got[0].Line != 3 || got[0].Where != " at 'x'" {
		t.Errorf("diag[0] = %+v", got[0])
	}
	if got[1].Kind != KindRuntime || got[1].Line != 4 {
		t.Errorf("diag[1] = %+v", got[1])
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.SyntaxError(2, " at 'print'", "Expect expression.")
	c.RuntimeError(5, "Undefined variable 'y'.")

	want := "[line 2] Error at 'print': Expect expression.\n" +
		"Undefined variable 'y'.\n[line 5]\n"
	if got := buf.String(); got != want {
		t.Errorf("console output = %q, want %q", got, want)
	}
}

func TestCollectorDrain(t *testing.T) {
	var c Collector
	c.SyntaxError(1, "", "a")
	if n := len(c.Drain()); n != 1 {
		t.Fatalf("Drain returned %d, want 1", n)
	}
	if n := len(c.Diagnostics()); n != 0 {
		t.Errorf("after Drain, %d diagnostics remain", n)
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Kind: KindSyntax, Line: 1, Where: " at end", Message: "Expect ';' after value."}
	if got, want := d.String(), "[line 1] Error at end: Expect ';' after value."; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
