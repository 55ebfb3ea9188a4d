package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaasdream/ai-studio-like/internal/api/shared"
	"github.com/aaasdream/ai-studio-like/internal/platform/logger"
)

// Swaps the default logger for a buffer-backed one; TraceMiddleware
// derives its request logger from the default.
func captureDefaultLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func TestTraceMiddleware_AttachesTraceIDAndLogger(t *testing.T) {
	buf := captureDefaultLogger(t)

	var gotTraceID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTraceID = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("handling request")
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rr := httptest.NewRecorder()
	TraceMiddleware(inner).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, gotTraceID, "trace ID must be set on the request context")

	// The context logger carries the trace ID into every log line the
	// handler writes.
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var found bool
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["msg"] == "handling request" {
			found = true
			assert.Equal(t, gotTraceID, entry["trace_id"])
		}
	}
	assert.True(t, found, "handler log line not captured")
}

func TestTraceMiddleware_DistinctTraceIDsPerRequest(t *testing.T) {
	captureDefaultLogger(t)

	var ids []string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, shared.GetTraceID(r.Context()))
	})
	handler := TraceMiddleware(inner)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	}

	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}
