// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package httpserver_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/stockevaluator/authcore/internal/httpserver"
	"github.com/stockevaluator/authcore/pkg/errutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var client = &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}

func teapot() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func stop(t *testing.T, s *httpserver.Server) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Stop(ctx)
}

func waitClosed(t *testing.T, errCh <-chan error) {
	t.Helper()
	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error channel not closed after stop")
	}
}

func TestServer_Lifecycle(t *testing.T) {
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	s := httpserver.New("probe", "127.0.0.1:0", teapot(), httpserver.Timeouts{}, logger)
	assert.Empty(t, s.Addr())
	assert.Nil(t, s.Listener())

	errCh, err := s.Start()
	require.NoError(t, err)
	require.NotEmpty(t, s.Addr())

	_, err = s.Start()
	errutil.AssertErrorCode(t, err, "PROBE_ALREADY_RUNNING")

	resp, err := client.Get("http://" + s.Addr() + "/")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	require.NoError(t, stop(t, s))
	require.NoError(t, stop(t, s), "stop is idempotent")
	waitClosed(t, errCh)

	assert.Contains(t, logs.String(), `"server":"probe"`)
	assert.Contains(t, logs.String(), "server stopped")
}

func TestServer_RestartAfterStop(t *testing.T) {
	s := httpserver.New("probe", "127.0.0.1:0", teapot(), httpserver.Timeouts{}, nil)

	errCh, err := s.Start()
	require.NoError(t, err)
	require.NoError(t, stop(t, s))
	waitClosed(t, errCh)

	errCh, err = s.Start()
	require.NoError(t, err)
	require.NoError(t, stop(t, s))
	waitClosed(t, errCh)
}

func TestServer_ListenFailure(t *testing.T) {
	s := httpserver.New("web", "127.0.0.1:99999", teapot(), httpserver.Timeouts{}, nil)
	_, err := s.Start()
	errutil.AssertErrorCode(t, err, "WEB_LISTEN_FAILED")
	errutil.AssertErrorContext(t, err, "addr", "127.0.0.1:99999")

	assert.NoError(t, stop(t, s), "a failed start leaves nothing to stop")
}

func TestServer_ServeFailureReported(t *testing.T) {
	s := httpserver.New("probe", "127.0.0.1:0", teapot(), httpserver.Timeouts{}, nil)
	errCh, err := s.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = stop(t, s) })

	_ = s.Listener().Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for serve error")
	}
}
