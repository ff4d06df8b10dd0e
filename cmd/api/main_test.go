package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docsync/internal/config"
	"docsync/internal/repository/memory"
	"docsync/internal/service"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Port:           "0",
		RequestTimeout: time.Second,
		StoreBackend:   config.BackendMemory,
	}
}

func TestNewApp(t *testing.T) {
	store := memory.NewDocumentMemory()
	svc := service.NewDocumentService(nil, store, nil)
	app, err := newApp(testConfig(), store, svc, zap.NewNop(), prometheus.NewRegistry())
	require.NoError(t, err)

	t.Run("health", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})

	t.Run("create then metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(`{"title":"Notes"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "http_requests_total")
	})

	t.Run("swagger doc", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "/documents/{id}")
	})
}

func TestNewApp_DuplicateRegistry(t *testing.T) {
	store := memory.NewDocumentMemory()
	svc := service.NewDocumentService(nil, store, nil)
	reg := prometheus.NewRegistry()

	_, err := newApp(testConfig(), store, svc, zap.NewNop(), reg)
	require.NoError(t, err)
	_, err = newApp(testConfig(), store, svc, zap.NewNop(), reg)
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, closeFn, err := openStore(ctx, testConfig(), zap.NewNop())
		require.NoError(t, err)
		assert.NoError(t, store.Ping(ctx))
		assert.NoError(t, closeFn())
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig()
		cfg.StoreBackend = config.BackendRedis
		cfg.Redis = config.RedisConfig{URL: "redis://" + mr.Addr() + "/0", KeyPrefix: "document:"}

		store, closeFn, err := openStore(ctx, cfg, zap.NewNop())
		require.NoError(t, err)
		assert.NoError(t, store.Ping(ctx))
		assert.NoError(t, closeFn())
	})

	t.Run("postgres with incomplete config", func(t *testing.T) {
		cfg := testConfig()
		cfg.StoreBackend = config.BackendPostgres

		_, _, err := openStore(ctx, cfg, zap.NewNop())
		assert.ErrorContains(t, err, "connect database")
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := testConfig()
		cfg.StoreBackend = "dynamo"

		_, _, err := openStore(ctx, cfg, zap.NewNop())
		assert.ErrorContains(t, err, "unknown store backend")
	})
}

func TestOpenArchive_Disabled(t *testing.T) {
	archive, err := openArchive(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, archive)
}
