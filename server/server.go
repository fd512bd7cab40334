// Package server exposes the interpreter over the network: an evaluation
// service speaking Connect and gRPC on one port, and a language server on
// stdio.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/lox/history"
)

var log = commonlog.GetLogger("lox.server")

// Server is the evaluation server. It serves both gRPC (binary protobuf) and
// Connect (HTTP/JSON) on the same port.
type Server struct {
	worker   *Worker
	sessions *SessionStore
	history  *history.Store
	mux      *http.ServeMux
	http     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithHistory records every evaluation in store.
func WithHistory(store *history.Store) Option {
	return func(s *Server) { s.history = store }
}

// New creates a Server with its own worker and session store.
func New(opts ...Option) *Server {
	s := &Server{
		worker:   NewWorker(),
		sessions: NewSessionStore(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	evalPath, evalHandler := NewEvalServiceHandler(NewEvalService(s.worker, s.sessions, s.history))
	s.mux.Handle(evalPath, evalHandler)
	s.http = s.newHTTPServer()
	return s
}

// Handler returns the HTTP handler serving every service.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// newHTTPServer accepts HTTP/1.1 and cleartext HTTP/2 so gRPC clients can
// connect without TLS.
func (s *Server) newHTTPServer() *http.Server {
	var protocols http.Protocols
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	return &http.Server{
		Handler:           s.mux,
		Protocols:         &protocols,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	addr := ln.Addr().String()
	log.Noticef("lox server listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, EvaluateProcedure)
	log.Infof("  gRPC (binary):       grpc://%s", addr)

	err := s.http.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts down the server.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		log.Warningf("shutdown: %v", err)
	}
	s.worker.Stop()
}
