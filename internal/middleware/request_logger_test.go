package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestLoggerAddsRequestFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	h := WithRequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LoggerFromRequest(r, zap.NewNop()).Info("handled")
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/analytics/c1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "GET", fields["http_method"])
	assert.Equal(t, "/analytics/c1", fields["http_path"])
	// no span was started, so no trace correlation fields
	assert.NotContains(t, fields, "trace_id")
}

func TestLoggerFromContextFallsBack(t *testing.T) {
	logger := zap.NewNop()
	assert.Same(t, logger, LoggerFromContext(context.Background(), logger))
}
