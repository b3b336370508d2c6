// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package httpserver runs an http.Handler on its own listener with a
// start/stop lifecycle shared by the API and observability servers.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
)

// Timeouts bound each connection. Zero values mean no limit, except
// ReadHeader which falls back to DefaultReadHeaderTimeout.
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
}

// DefaultReadHeaderTimeout applies when Timeouts.ReadHeader is zero.
const DefaultReadHeaderTimeout = 10 * time.Second

// Server serves one handler. Error codes are prefixed with the upper-cased
// name, so a server named "web" fails to bind with WEB_LISTEN_FAILED.
type Server struct {
	name     string
	addr     string
	handler  http.Handler
	timeouts Timeouts
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
}

// New creates a stopped server. A nil logger uses slog.Default().
func New(name, addr string, handler http.Handler, timeouts Timeouts, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if timeouts.ReadHeader == 0 {
		timeouts.ReadHeader = DefaultReadHeaderTimeout
	}
	return &Server{
		name:     name,
		addr:     addr,
		handler:  handler,
		timeouts: timeouts,
		logger:   logger.With("server", name),
	}
}

func (s *Server) code(suffix string) string {
	return strings.ToUpper(s.name) + "_" + suffix
}

// Start binds the listener and serves in the background. The returned
// channel receives a serve failure, if any, and is closed once serving ends.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return nil, oops.Code(s.code("ALREADY_RUNNING")).Errorf("%s server already running", s.name)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code(s.code("LISTEN_FAILED")).With("addr", s.addr).Wrap(err)
	}

	// A shut-down http.Server cannot serve again, so each Start builds one.
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.timeouts.ReadHeader,
		ReadTimeout:       s.timeouts.Read,
		WriteTimeout:      s.timeouts.Write,
		IdleTimeout:       s.timeouts.Idle,
	}
	s.listener, s.srv = listener, srv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("serve failed", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests until ctx ends. Stopping a stopped server
// is a no-op; a failed drain leaves the server running so Stop can retry.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return oops.With("operation", "shutdown "+s.name+" server").Wrap(err)
	}
	s.srv = nil
	s.logger.Info("server stopped")
	return nil
}

// Addr returns the bound address, or "" before the first Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Listener returns the bound listener, or nil before the first Start.
func (s *Server) Listener() net.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener
}
