// Package client talks to a lox evaluation server over gRPC.
package client

import (
	"context"
	"fmt"

	"github.com/tliron/commonlog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/lox/server"
)

var log = commonlog.GetLogger("lox.client")

// Client is a gRPC connection to an evaluation server.
type Client struct {
	conn   *grpc.ClientConn
	target string
}

// Diagnostic is one error reported by the server.
type Diagnostic struct {
	Kind    string
	Line    int
	Message string
	Text    string
}

// Result is the outcome of a remote evaluation.
type Result struct {
	OK          bool
	Status      string
	Output      string
	Value       string
	HasValue    bool
	Diagnostics []Diagnostic
}

// Dial connects to the server at target ("host:port"). The connection is
// established lazily on the first call.
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	log.Debugf("connected to %s", target)
	return &Client{conn: conn, target: target}, nil
}

// Target returns the address the client was dialled with.
func (c *Client) Target() string {
	return c.target
}

// CreateSession opens a server-side session. Evaluations that name it share
// its globals.
func (c *Client) CreateSession(ctx context.Context, name string) (string, error) {
	out, err := c.call(ctx, server.CreateSessionProcedure, map[string]any{"name": name})
	if err != nil {
		return "", err
	}
	return field(out, "session").GetStringValue(), nil
}

// DestroySession drops a session and its globals.
func (c *Client) DestroySession(ctx context.Context, session string) error {
	_, err := c.call(ctx, server.DestroySessionProcedure, map[string]any{"session": session})
	return err
}

// Evaluate runs source on the server. An empty session runs it against fresh
// globals.
func (c *Client) Evaluate(ctx context.Context, session, source string) (*Result, error) {
	in := map[string]any{"source": source}
	if session != "" {
		in["session"] = session
	}
	out, err := c.call(ctx, server.EvaluateProcedure, in)
	if err != nil {
		return nil, err
	}

	r := &Result{
		OK:          field(out, "ok").GetBoolValue(),
		Status:      field(out, "status").GetStringValue(),
		Output:      field(out, "output").GetStringValue(),
		Diagnostics: diagnostics(out),
	}
	if v, ok := out.GetFields()["value"]; ok {
		r.Value = v.GetStringValue()
		r.HasValue = true
	}
	return r, nil
}

// CheckSyntax asks the server to parse source without running it.
func (c *Client) CheckSyntax(ctx context.Context, source string) ([]Diagnostic, error) {
	out, err := c.call(ctx, server.CheckSyntaxProcedure, map[string]any{"source": source})
	if err != nil {
		return nil, err
	}
	return diagnostics(out), nil
}

// Globals returns a session's globals as Go values.
func (c *Client) Globals(ctx context.Context, session string) (map[string]any, error) {
	out, err := c.call(ctx, server.GlobalsProcedure, map[string]any{"session": session})
	if err != nil {
		return nil, err
	}
	return field(out, "globals").GetStructValue().AsMap(), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func field(msg *structpb.Struct, key string) *structpb.Value {
	return msg.GetFields()[key]
}

func diagnostics(msg *structpb.Struct) []Diagnostic {
	var out []Diagnostic
	for _, v := range field(msg, "diagnostics").GetListValue().GetValues() {
		f := v.GetStructValue().GetFields()
		out = append(out, Diagnostic{
			Kind:    f["kind"].GetStringValue(),
			Line:    int(f["line"].GetNumberValue()),
			Message: f["message"].GetStringValue(),
			Text:    f["text"].GetStringValue(),
		})
	}
	return out
}
