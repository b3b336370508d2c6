// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package web

import (
	"net/http"
	"time"

	"github.com/stockevaluator/authcore/internal/httpserver"
)

// apiTimeouts bound every connection to the auth API.
var apiTimeouts = httpserver.Timeouts{
	ReadHeader: 5 * time.Second,
	Read:       15 * time.Second,
	Write:      15 * time.Second,
	Idle:       60 * time.Second,
}

// Server runs the auth API on its own listener. Start, Stop and Addr come
// from httpserver.Server; a bind failure is coded WEB_LISTEN_FAILED.
type Server struct {
	*httpserver.Server
}

// NewServer creates a server for handler listening on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{Server: httpserver.New("web", addr, handler, apiTimeouts, nil)}
}
