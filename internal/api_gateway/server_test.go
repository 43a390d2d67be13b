package api_gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/provenance-ledger/internal/api_gateway/middleware"
	"github.com/provenance-ledger/internal/api_gateway/service"
	"github.com/provenance-ledger/internal/config"
	"github.com/provenance-ledger/internal/data/memory"
	"github.com/provenance-ledger/internal/domain/shared"
	"github.com/provenance-ledger/internal/provenance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	core := provenance.New(memory.NewStore(), logger, provenance.Options{
		Window:  memory.NewDedupWindow(10, time.Hour),
		Cache:   memory.NewReadingCache(10, time.Hour),
		Archive: memory.NewArchive(),
	})
	retry := shared.RetryPolicy{MaxAttempts: 1}
	cfg := &config.Config{
		Application: config.ApplicationConfig{Env: "test"},
		Server:      config.ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
	}
	return NewServer(logger, cfg, pingerFunc(func(context.Context) error { return nil }),
		service.NewProductService(core, retry, logger),
		service.NewRecordService(core, retry, logger),
		service.NewTraceService(core, retry),
	)
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Ready(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ready", nil)
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	down := NewServer(logger, &config.Config{}, pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }), nil, nil, nil)
	rr = httptest.NewRecorder()
	down.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "refused")
}

func TestServer_RegisterAndTrace(t *testing.T) {
	s := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"id":"p-1","name":"Honey Jar"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.ActorIDHeader, "producer-1")
	req.Header.Set(middleware.ActorRoleHeader, "producer")
	req.Header.Set(middleware.CorrelationIDHeader, "corr-1")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "corr-1", rr.Header().Get(middleware.CorrelationIDHeader))

	req, _ = http.NewRequest(http.MethodGet, "/api/v1/products/p-1/trace", nil)
	req.Header.Set(middleware.ActorIDHeader, "producer-1")
	req.Header.Set(middleware.ActorRoleHeader, "producer")
	rr = httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"current_state":"created"`)
}

func TestServer_UnknownRoute(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/shipments", nil)
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_StopBeforeStart(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
