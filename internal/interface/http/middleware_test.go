package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/alem-gamification/pkg/logger"
)

func TestWithRecovery_PanicBecomes500(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf})

	h := withRequestID(withRecovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})), log)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "internal_error", env.Error.Code)
	assert.Contains(t, buf.String(), `"panic":"kaboom"`)
	assert.Contains(t, buf.String(), env.RequestID)
}

func TestWithAccessLog_ImplicitOKAndFirstStatus(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{Output: &buf})

	h := withRequestID(withAccessLog(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})), log)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, float64(http.StatusOK), line["status"])
	assert.Equal(t, "GET /api/v1/leaderboard", line["route"])
	assert.Equal(t, "INFO", line["level"])
}

func TestWithTimeout_SetsDeadline(t *testing.T) {
	var deadline bool
	h := withTimeout(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	}), time.Second)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, deadline)

	h = withTimeout(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	}), 0)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, deadline)
}

func TestServer_Lifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	s := NewServer(cfg, Dependencies{Logger: logger.New(logger.Options{Output: &bytes.Buffer{}})})

	assert.Zero(t, s.Uptime())
	require.NoError(t, s.Shutdown(context.Background()))

	errCh := s.StartAsync()
	assert.Positive(t, s.Uptime())

	again := s.StartAsync()
	assert.ErrorIs(t, <-again, ErrAlreadyStarted)

	require.NoError(t, s.Shutdown(context.Background()))
	_, open := <-errCh
	assert.False(t, open)
	assert.Zero(t, s.Uptime())
}
