package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/lox/diag"
	"github.com/chazu/lox/driver"
	"github.com/chazu/lox/history"
	"github.com/chazu/lox/syntax"
)

// EvalServiceName is the fully-qualified name of the evaluation service.
const EvalServiceName = "lox.v1.EvalService"

// Procedure paths. Requests and responses are google.protobuf.Struct, so the
// same handlers serve Connect JSON, Connect binary and gRPC clients.
const (
	CreateSessionProcedure  = "/" + EvalServiceName + "/CreateSession"
	DestroySessionProcedure = "/" + EvalServiceName + "/DestroySession"
	ListSessionsProcedure   = "/" + EvalServiceName + "/ListSessions"
	EvaluateProcedure       = "/" + EvalServiceName + "/Evaluate"
	CheckSyntaxProcedure    = "/" + EvalServiceName + "/CheckSyntax"
	GlobalsProcedure        = "/" + EvalServiceName + "/Globals"
	HistoryProcedure        = "/" + EvalServiceName + "/History"
)

// timestampLayout formats times in responses.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ephemeralSession labels history entries for sessionless evaluations.
const ephemeralSession = "ephemeral"

// EvalService implements the evaluation service handlers.
type EvalService struct {
	worker   *Worker
	sessions *SessionStore
	history  *history.Store
}

// NewEvalService creates an EvalService. hist may be nil.
func NewEvalService(worker *Worker, sessions *SessionStore, hist *history.Store) *EvalService {
	return &EvalService{
		worker:   worker,
		sessions: sessions,
		history:  hist,
	}
}

// NewEvalServiceHandler builds an HTTP handler that serves every procedure of
// svc. It returns the path prefix to mount it on.
func NewEvalServiceHandler(svc *EvalService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, svc.CreateSession, opts...))
	mux.Handle(DestroySessionProcedure, connect.NewUnaryHandler(DestroySessionProcedure, svc.DestroySession, opts...))
	mux.Handle(ListSessionsProcedure, connect.NewUnaryHandler(ListSessionsProcedure, svc.ListSessions, opts...))
	mux.Handle(EvaluateProcedure, connect.NewUnaryHandler(EvaluateProcedure, svc.Evaluate, opts...))
	mux.Handle(CheckSyntaxProcedure, connect.NewUnaryHandler(CheckSyntaxProcedure, svc.CheckSyntax, opts...))
	mux.Handle(GlobalsProcedure, connect.NewUnaryHandler(GlobalsProcedure, svc.Globals, opts...))
	mux.Handle(HistoryProcedure, connect.NewUnaryHandler(HistoryProcedure, svc.History, opts...))
	return "/" + EvalServiceName + "/", mux
}

// CreateSession starts a session with fresh globals.
//
// Request: {name?}. Response: {session, name}.
func (s *EvalService) CreateSession(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session := s.sessions.Create(stringField(req.Msg, "name"))
	return respond(map[string]any{
		"session": session.ID,
		"name":    session.Name,
	})
}

// DestroySession drops a session and its globals.
//
// Request: {session}. Response: {destroyed}.
func (s *EvalService) DestroySession(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id := stringField(req.Msg, "session")
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session is required"))
	}
	if !s.sessions.Destroy(id) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return respond(map[string]any{"destroyed": true})
}

// ListSessions lists live sessions, oldest first.
//
// Request: {}. Response: {sessions: [{session, name, created}]}.
func (s *EvalService) ListSessions(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	sessions := s.sessions.List()
	list := make([]any, 0, len(sessions))
	for _, session := range sessions {
		list = append(list, map[string]any{
			"session": session.ID,
			"name":    session.Name,
			"created": session.Created.UTC().Format(timestampLayout),
		})
	}
	return respond(map[string]any{"sessions": list})
}

// Evaluate runs source as one unit. With a session, globals persist between
// calls; without one, the unit runs against fresh globals. A lone expression
// also returns its value.
//
// Request: {session?, source}.
// Response: {ok, status, output, value?, diagnostics[]}.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	source := stringField(req.Msg, "source")
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	session, err := s.lookupOrEphemeral(stringField(req.Msg, "session"))
	if err != nil {
		return nil, err
	}

	result, err := s.worker.Do(ctx, func() (any, error) {
		return evaluate(session, source), nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	out := result.(evalResult)

	s.record(ctx, session, source, out)
	return respond(out.fields())
}

// CheckSyntax scans and parses source without running it.
//
// Request: {source}. Response: {valid, diagnostics[]}.
func (s *EvalService) CheckSyntax(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	source := stringField(req.Msg, "source")
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	diags := checkSyntax(source)
	return respond(map[string]any{
		"valid":       len(diags) == 0,
		"diagnostics": diagnosticList(diags),
	})
}

// Globals lists a session's global bindings.
//
// Request: {session}. Response: {globals: {name: value}}.
func (s *EvalService) Globals(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id := stringField(req.Msg, "session")
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session is required"))
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}

	result, err := s.worker.Do(ctx, func() (any, error) {
		globals := map[string]any{}
		for _, b := range session.driver.Environment().Globals() {
			globals[b.Name] = b.Value.Any()
		}
		return globals, nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return respond(map[string]any{"globals": result})
}

// History returns recent transcript entries.
//
// Request: {session?, limit?}. Response: {entries[]}.
func (s *EvalService) History(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	if s.history == nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("history is not enabled"))
	}

	limit := int(req.Msg.GetFields()["limit"].GetNumberValue())
	entries, err := s.history.Recent(ctx, stringField(req.Msg, "session"), limit)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	list := make([]any, 0, len(entries))
	for _, e := range entries {
		list = append(list, map[string]any{
			"id":      e.ID,
			"session": e.Session,
			"source":  e.Source,
			"status":  e.Status,
			"output":  e.Output,
			"created": e.Created.UTC().Format(timestampLayout),
		})
	}
	return respond(map[string]any{"entries": list})
}

// ---------------------------------------------------------------------------
// Evaluation (runs on the worker goroutine)
// ---------------------------------------------------------------------------

type evalResult struct {
	res   driver.Result
	out   string
	value string
	echo  bool
	diags []diag.Diagnostic
}

func (r evalResult) fields() map[string]any {
	f := map[string]any{
		"ok":          r.res.OK(),
		"status":      r.res.Status.String(),
		"output":      r.out,
		"diagnostics": diagnosticList(r.diags),
	}
	if r.echo {
		f["value"] = r.value
	}
	return f
}

func evaluate(session *Session, source string) evalResult {
	session.out.Reset()
	session.diags.Drain()

	v, echo, res := session.driver.RunLine(source)
	return evalResult{
		res:   res,
		out:   session.out.String(),
		value: v.String(),
		echo:  echo,
		diags: session.diags.Drain(),
	}
}

func checkSyntax(source string) []diag.Diagnostic {
	var c diag.Collector
	syntax.ParseProgram(source, &c)
	return c.Diagnostics()
}

func (s *EvalService) lookupOrEphemeral(id string) (*Session, error) {
	if id == "" {
		return newSession("", ""), nil
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return session, nil
}

func (s *EvalService) record(ctx context.Context, session *Session, source string, r evalResult) {
	if s.history == nil {
		return
	}
	id := session.ID
	if id == "" {
		id = ephemeralSession
	}
	entry := history.Entry{Session: id, Source: source, Status: r.res.Status.String(), Output: r.out}
	if _, err := s.history.Record(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		log.Warningf("recording history: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Message helpers
// ---------------------------------------------------------------------------

func stringField(msg *structpb.Struct, key string) string {
	return msg.GetFields()[key].GetStringValue()
}

func respond(fields map[string]any) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func diagnosticList(diags []diag.Diagnostic) []any {
	list := make([]any, 0, len(diags))
	for _, d := range diags {
		list = append(list, map[string]any{
			"kind":    d.Kind.String(),
			"line":    d.Line,
			"where":   d.Where,
			"message": d.Message,
			"text":    d.String(),
		})
	}
	return list
}
