package interpreter

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chazu/lox/syntax"
	"github.com/chazu/lox/value"
)

func name(s string) syntax.Token {
	return syntax.Token{Type: syntax.TokenIdentifier, Lexeme: s, Line: 1}
}

func TestEnvironmentShadowing(t *testing.T) {
	env := NewEnvironment()
	env.Define("a", value.Number(1))
	env.push()
	env.Define("a", value.Number(2))

	v, err := env.Get(name("a"))
	if err != nil || !v.Equal(value.Number(2)) {
		t.Errorf("inner a = %v (%v), want 2", v, err)
	}

	env.pop()
	v, err = env.Get(name("a"))
	if err != nil || !v.Equal(value.Number(1)) {
		t.Errorf("outer a = %v (%v), want 1", v, err)
	}
}

func TestEnvironmentAssignInnermostBinding(t *testing.T) {
	env := NewEnvironment()
	env.Define("a", value.Number(1))
	env.push()
	env.push()

	if err := env.Assign(name("a"), value.String("x")); err != nil {
		t.Fatal(err)
	}
	if d := env.Depth(); d != 3 {
		t.Fatalf("Depth = %d, want 3", d)
	}
	env.unwind(1)

	v, _ := env.Get(name("a"))
	if !v.Equal(value.String("x")) {
		t.Errorf("a = %#v, want \"x\"", v)
	}
}

func TestEnvironmentAssignNeverDefines(t *testing.T) {
	env := NewEnvironment()
	err := env.Assign(name("ghost"), value.True)

	var rerr *RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *RuntimeError", err)
	}
	if rerr.Message != "Undefined variable 'ghost'." {
		t.Errorf("message = %q", rerr.Message)
	}
	if _, err := env.Get(name("ghost")); err == nil {
		t.Error("Assign created a binding")
	}
}

func TestEnvironmentGlobalsSortedAndReset(t *testing.T) {
	env := NewEnvironment()
	env.Define("b", value.Number(2))
	env.Define("a", value.Nil)
	env.push()
	env.Define("local", value.True)

	got := env.Globals()
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("Globals() = %v, want [a b]", got)
	}

	env.Reset()
	if env.Depth() != 1 || len(env.Globals()) != 0 {
		t.Errorf("after Reset depth=%d globals=%v", env.Depth(), env.Globals())
	}
}

func TestSnapshotRestoresGlobals(t *testing.T) {
	env := NewEnvironment()
	env.Define("n", value.Number(2.5))
	env.Define("s", value.String("text"))
	env.Define("t", value.True)
	env.Define("f", value.False)
	env.Define("z", value.Nil)

	var buf bytes.Buffer
	if err := SaveSnapshot(&buf, env); err != nil {
		t.Fatal(err)
	}

	restored := NewEnvironment()
	restored.Define("other", value.Number(1))
	if err := LoadSnapshot(&buf, restored); err != nil {
		t.Fatal(err)
	}

	for _, b := range env.Globals() {
		v, err := restored.Get(name(b.Name))
		if err != nil {
			t.Errorf("%s missing after load: %v", b.Name, err)
			continue
		}
		if v.Kind() != b.Value.Kind() || !v.Equal(b.Value) {
			t.Errorf("%s = %#v, want %#v", b.Name, v, b.Value)
		}
	}
	if _, err := restored.Get(name("other")); err != nil {
		t.Error("load dropped an unrelated global")
	}
}

func TestSnapshotDeterministic(t *testing.T) {
	env := NewEnvironment()
	env.Define("x", value.Number(1))
	env.Define("y", value.String("2"))

	a, err := MarshalGlobals(env)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalGlobals(env)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("MarshalGlobals is not deterministic")
	}
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	if err := UnmarshalGlobals(NewEnvironment(), []byte{0xff, 0x00}); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}
