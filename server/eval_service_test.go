package server

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/lox/history"
)

// ---------------------------------------------------------------------------
// Evaluate: happy paths
// ---------------------------------------------------------------------------

func TestEvaluate_PrintOutput(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.Evaluate(bg(), structReq(t, map[string]any{
		"source": `print 1 + 2; print "a" + "b";`,
	}))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !boolean(resp.Msg, "ok") {
		t.Fatalf("Evaluate was not ok: %v", resp.Msg)
	}
	if got := str(resp.Msg, "output"); got != "3\nab\n" {
		t.Errorf("output = %q, want %q", got, "3\nab\n")
	}
	if got := str(resp.Msg, "status"); got != "ok" {
		t.Errorf("status = %q, want ok", got)
	}
}

func TestEvaluate_ExpressionValue(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.Evaluate(bg(), structReq(t, map[string]any{"source": "7.0 / 2"}))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if got := str(resp.Msg, "value"); got != "3.5" {
		t.Errorf("value = %q, want 3.5", got)
	}
}

// ---------------------------------------------------------------------------
// Evaluate: error paths
// ---------------------------------------------------------------------------

func TestEvaluate_EmptySource(t *testing.T) {
	svc := newTestEvalService()
	_, err := svc.Evaluate(bg(), structReq(t, map[string]any{"source": ""}))
	if codeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", codeOf(err))
	}
}

func TestEvaluate_UnknownSession(t *testing.T) {
	svc := newTestEvalService()
	_, err := svc.Evaluate(bg(), structReq(t, map[string]any{"source": "1;", "session": "nope"}))
	if codeOf(err) != connect.CodeNotFound {
		t.Errorf("code = %v, want NotFound", codeOf(err))
	}
}

func TestEvaluate_SyntaxError(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.Evaluate(bg(), structReq(t, map[string]any{"source": "print 1"}))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if boolean(resp.Msg, "ok") {
		t.Error("syntax error reported as ok")
	}
	if got := str(resp.Msg, "status"); got != "syntax_error" {
		t.Errorf("status = %q, want syntax_error", got)
	}
	diags := list(resp.Msg, "diagnostics")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	text := diags[0].GetStructValue().GetFields()["text"].GetStringValue()
	if text != "[line 1] Error at end: Expect ';' after value." {
		t.Errorf("diagnostic text = %q", text)
	}
}

func TestEvaluate_RuntimeErrorKeepsOutput(t *testing.T) {
	svc := newTestEvalService()

	resp, err := svc.Evaluate(bg(), structReq(t, map[string]any{"source": `print "before"; print -"x";`}))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if got := str(resp.Msg, "status"); got != "runtime_error" {
		t.Errorf("status = %q, want runtime_error", got)
	}
	if got := str(resp.Msg, "output"); got != "before\n" {
		t.Errorf("output = %q", got)
	}
	diags := list(resp.Msg, "diagnostics")
	if len(diags) != 1 || diags[0].GetStructValue().GetFields()["kind"].GetStringValue() != "runtime" {
		t.Errorf("diagnostics = %v", diags)
	}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func TestSession_GlobalsPersist(t *testing.T) {
	svc := newTestEvalService()

	created, err := svc.CreateSession(bg(), structReq(t, map[string]any{"name": "work"}))
	if err != nil {
		t.Fatal(err)
	}
	id := str(created.Msg, "session")
	if id == "" {
		t.Fatal("CreateSession returned no session id")
	}
	if str(created.Msg, "name") != "work" {
		t.Errorf("name = %q", str(created.Msg, "name"))
	}

	for _, src := range []string{"var count = 1;", "count = count + 1;"} {
		if _, err := svc.Evaluate(bg(), structReq(t, map[string]any{"session": id, "source": src})); err != nil {
			t.Fatal(err)
		}
	}

	resp, err := svc.Evaluate(bg(), structReq(t, map[string]any{"session": id, "source": "print count;"}))
	if err != nil {
		t.Fatal(err)
	}
	if got := str(resp.Msg, "output"); got != "2\n" {
		t.Errorf("output = %q, want 2", got)
	}

	globals, err := svc.Globals(bg(), structReq(t, map[string]any{"session": id}))
	if err != nil {
		t.Fatal(err)
	}
	g := globals.Msg.GetFields()["globals"].GetStructValue().GetFields()
	if g["count"].GetNumberValue() != 2 {
		t.Errorf("globals = %v", g)
	}

	if _, err := svc.DestroySession(bg(), structReq(t, map[string]any{"session": id})); err != nil {
		t.Fatal(err)
	}
	_, err = svc.Globals(bg(), structReq(t, map[string]any{"session": id}))
	if codeOf(err) != connect.CodeNotFound {
		t.Errorf("after destroy code = %v, want NotFound", codeOf(err))
	}
}

func TestSession_Isolation(t *testing.T) {
	svc := newTestEvalService()
	a := testSessions.Create("a")
	b := testSessions.Create("b")

	svc.Evaluate(bg(), structReq(t, map[string]any{"session": a.ID, "source": "var x = 1;"}))
	resp, err := svc.Evaluate(bg(), structReq(t, map[string]any{"session": b.ID, "source": "print x;"}))
	if err != nil {
		t.Fatal(err)
	}
	if got := str(resp.Msg, "status"); got != "runtime_error" {
		t.Errorf("session b saw session a's global: status = %q", got)
	}
}

func TestEphemeralEvaluationsDoNotShareGlobals(t *testing.T) {
	svc := newTestEvalService()
	svc.Evaluate(bg(), structReq(t, map[string]any{"source": "var leaked = 1;"}))
	resp, err := svc.Evaluate(bg(), structReq(t, map[string]any{"source": "print leaked;"}))
	if err != nil {
		t.Fatal(err)
	}
	if str(resp.Msg, "status") != "runtime_error" {
		t.Error("sessionless evaluations shared globals")
	}
}

func TestListSessions(t *testing.T) {
	svc := NewEvalService(testWorker, NewSessionStore(), nil)
	first, _ := svc.CreateSession(bg(), structReq(t, map[string]any{"name": "first"}))
	svc.CreateSession(bg(), structReq(t, map[string]any{"name": "second"}))

	resp, err := svc.ListSessions(bg(), structReq(t, map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	sessions := list(resp.Msg, "sessions")
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	oldest := sessions[0].GetStructValue()
	if str(oldest, "session") != str(first.Msg, "session") || str(oldest, "name") != "first" {
		t.Errorf("oldest session = %v", oldest)
	}
}

func TestDestroySession_Unknown(t *testing.T) {
	svc := newTestEvalService()
	_, err := svc.DestroySession(bg(), structReq(t, map[string]any{"session": "missing"}))
	if codeOf(err) != connect.CodeNotFound {
		t.Errorf("code = %v, want NotFound", codeOf(err))
	}
}

// ---------------------------------------------------------------------------
// CheckSyntax
// ---------------------------------------------------------------------------

func TestCheckSyntax(t *testing.T) {
	svc := newTestEvalService()

	tests := []struct {
		source string
		valid  bool
		count  int
	}{
		{"print 1;", true, 0},
		{"var = 1;\nprint 2;", false, 1},
		{"print 1; @", false, 1},
		{"print x;", true, 0},
	}

	for _, tt := range tests {
		resp, err := svc.CheckSyntax(bg(), structReq(t, map[string]any{"source": tt.source}))
		if err != nil {
			t.Fatalf("CheckSyntax(%q): %v", tt.source, err)
		}
		if boolean(resp.Msg, "valid") != tt.valid {
			t.Errorf("CheckSyntax(%q) valid = %v, want %v", tt.source, !tt.valid, tt.valid)
		}
		if n := len(list(resp.Msg, "diagnostics")); n != tt.count {
			t.Errorf("CheckSyntax(%q) diagnostics = %d, want %d", tt.source, n, tt.count)
		}
	}
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func TestHistory_RecordsEvaluations(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	svc := NewEvalService(testWorker, testSessions, store)
	svc.Evaluate(bg(), structReq(t, map[string]any{"source": "print 1;"}))
	svc.Evaluate(bg(), structReq(t, map[string]any{"source": "print ;"}))

	resp, err := svc.History(bg(), structReq(t, map[string]any{"limit": 10}))
	if err != nil {
		t.Fatal(err)
	}
	entries := list(resp.Msg, "entries")
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	newest := entries[0].GetStructValue().GetFields()
	if newest["status"].GetStringValue() != "syntax_error" || newest["session"].GetStringValue() != ephemeralSession {
		t.Errorf("newest entry = %v", newest)
	}
}

func TestHistory_Disabled(t *testing.T) {
	svc := newTestEvalService()
	_, err := svc.History(bg(), structReq(t, map[string]any{}))
	if codeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("code = %v, want FailedPrecondition", codeOf(err))
	}
}

// ---------------------------------------------------------------------------
// Worker
// ---------------------------------------------------------------------------

func TestWorker_RecoversPanic(t *testing.T) {
	w := NewWorker()
	defer w.Stop()

	_, err := w.Do(bg(), func() (any, error) { panic("boom") })
	if err == nil {
		t.Fatal("expected error from panicking work")
	}

	v, err := w.Do(bg(), func() (any, error) { return 42, nil })
	if err != nil || v.(int) != 42 {
		t.Errorf("worker unusable after panic: %v %v", v, err)
	}
}

func TestWorker_StoppedAndCancelled(t *testing.T) {
	w := NewWorker()
	w.Stop()
	w.Stop()

	if _, err := w.Do(bg(), func() (any, error) { return nil, nil }); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Do after Stop err = %v, want ErrWorkerStopped", err)
	}

	w2 := NewWorker()
	defer w2.Stop()
	started := make(chan struct{})
	block := make(chan struct{})
	go w2.Do(bg(), func() (any, error) {
		close(started)
		<-block
		return nil, nil
	})
	<-started

	ctx, cancel := context.WithCancel(bg())
	cancel()
	_, err := w2.Do(ctx, func() (any, error) { return nil, nil })
	close(block)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do with cancelled ctx err = %v, want context.Canceled", err)
	}
}
