package server

import (
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix_SimpleWord(t *testing.T) {
	text := "print counter"
	pos := protocol.Position{Line: 0, Character: 13}
	prefix := extractPrefix(text, pos)
	if prefix != "counter" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "counter")
	}
}

func TestExtractPrefix_AtStart(t *testing.T) {
	text := "wh"
	pos := protocol.Position{Line: 0, Character: 2}
	prefix := extractPrefix(text, pos)
	if prefix != "wh" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "wh")
	}
}

func TestExtractPrefix_EmptyLine(t *testing.T) {
	text := ""
	pos := protocol.Position{Line: 0, Character: 0}
	prefix := extractPrefix(text, pos)
	if prefix != "" {
		t.Errorf("extractPrefix = %q, want empty string", prefix)
	}
}

func TestExtractPrefix_MultiLine(t *testing.T) {
	text := "var a = 1;\nvar b = 2;\nprint a_b"
	pos := protocol.Position{Line: 2, Character: 9}
	prefix := extractPrefix(text, pos)
	if prefix != "a_b" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "a_b")
	}
}

func TestExtractPrefix_AfterOperator(t *testing.T) {
	text := "x = y+tot"
	pos := protocol.Position{Line: 0, Character: 9}
	prefix := extractPrefix(text, pos)
	if prefix != "tot" {
		t.Errorf("extractPrefix = %q, want %q", prefix, "tot")
	}
}

func TestExtractPrefix_CursorPastLine(t *testing.T) {
	text := "abc"
	pos := protocol.Position{Line: 5, Character: 0}
	if prefix := extractPrefix(text, pos); prefix != "" {
		t.Errorf("extractPrefix = %q, want empty string", prefix)
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		text string
		char protocol.UInteger
		want string
	}{
		{"print total;", 8, "total"},
		{"print total;", 6, "total"},
		{"print total;", 11, "total"},
		{"print total;", 12, ""},
		{"while (x)", 2, "while"},
	}
	for _, tt := range tests {
		got := extractWord(tt.text, protocol.Position{Line: 0, Character: tt.char})
		if got != tt.want {
			t.Errorf("extractWord(%q, %d) = %q, want %q", tt.text, tt.char, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Declarations, completion and hover
// ---------------------------------------------------------------------------

func TestDeclarations(t *testing.T) {
	text := "var a = 1;\n{\n  var b;\n  var a = 2;\n}\nprint a;"
	got := declarations(text)
	want := []declaration{{Name: "a", Line: 1}, {Name: "b", Line: 3}}
	if len(got) != len(want) {
		t.Fatalf("declarations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("declarations[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func labels(items []protocol.CompletionItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Label
	}
	return out
}

func TestComplete_Keywords(t *testing.T) {
	got := strings.Join(labels(complete("", "f")), ",")
	if got != "false,for,fun" {
		t.Errorf("complete(f) = %s, want false,for,fun", got)
	}
}

func TestComplete_Variables(t *testing.T) {
	text := "var total = 0;\nvar tally = 1;\nprint t"
	items := complete(text, "ta")
	if got := strings.Join(labels(items), ","); got != "tally" {
		t.Errorf("complete(ta) = %s, want tally", got)
	}
	if *items[0].Kind != protocol.CompletionItemKindVariable {
		t.Errorf("kind = %v, want Variable", *items[0].Kind)
	}

	items = complete(text, "t")
	if got := strings.Join(labels(items), ","); got != "this,true,total,tally" {
		t.Errorf("complete(t) = %s", got)
	}
}

func TestComplete_ExactVariableOmitted(t *testing.T) {
	if items := complete("var x = 1;", "x"); len(items) != 0 {
		t.Errorf("complete(x) = %v, want none", labels(items))
	}
}

func TestHover(t *testing.T) {
	text := "var answer = 42;\nprint answer;"

	h := hover(text, "while")
	if h == nil {
		t.Fatal("hover(while) = nil")
	}
	content := h.Contents.(protocol.MarkupContent)
	if !strings.Contains(content.Value, "**while**") {
		t.Errorf("hover(while) = %q", content.Value)
	}

	h = hover(text, "answer")
	if h == nil {
		t.Fatal("hover(answer) = nil")
	}
	content = h.Contents.(protocol.MarkupContent)
	if !strings.Contains(content.Value, "var answer") || !strings.Contains(content.Value, "line 1") {
		t.Errorf("hover(answer) = %q", content.Value)
	}

	if h := hover(text, "missing"); h != nil {
		t.Errorf("hover(missing) = %v, want nil", h)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestAnalyze_Valid(t *testing.T) {
	if diags := analyze("var a = 1;\nprint a + 2;\n"); len(diags) != 0 {
		t.Errorf("got %d diagnostics, want 0: %v", len(diags), diags)
	}
}

func TestAnalyze_ParseErrorAtEnd(t *testing.T) {
	diags := analyze("print 1")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Message != "Error at end: Expect ';' after value." {
		t.Errorf("message = %q", d.Message)
	}
	if d.Range.Start.Line != 0 || d.Range.Start.Character != 7 || d.Range.End.Character != 7 {
		t.Errorf("range = %+v, want line 0 char 7..7", d.Range)
	}
	if *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v, want Error", *d.Severity)
	}
}

func TestAnalyze_ParseErrorAtToken(t *testing.T) {
	diags := analyze("print 1;\nvar = 2;")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	r := diags[0].Range
	if r.Start.Line != 1 || r.Start.Character != 4 || r.End.Character != 5 {
		t.Errorf("range = %+v, want line 1 char 4..5", r)
	}
	if diags[0].Message != "Error at '=': Expect variable name." {
		t.Errorf("message = %q", diags[0].Message)
	}
}

func TestAnalyze_ScanErrorCoversLine(t *testing.T) {
	diags := analyze("print 1;\nprint @;")
	if len(diags) == 0 {
		t.Fatal("expected diagnostics")
	}
	r := diags[0].Range
	if r.Start.Line != 1 || r.Start.Character != 0 || r.End.Character != 8 {
		t.Errorf("range = %+v, want line 1 char 0..8", r)
	}
	if diags[0].Message != "Unexpected character." {
		t.Errorf("message = %q", diags[0].Message)
	}
}
