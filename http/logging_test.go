package http_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	userwebhttp "github.com/sagarc03/userweb/http"
)

func decodeRecords(t *testing.T, out string) []map[string]any {
	t.Helper()

	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		records = append(records, rec)
	}
	return records
}

func TestLogHandler_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(userwebhttp.NewLogHandler(slog.NewJSONHandler(&buf, nil), nil, userwebhttp.RequestIDAttr))

	handler := userwebhttp.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.InfoContext(r.Context(), "inside")
		logger.With("user", "alice").WarnContext(r.Context(), "with attrs")
	}))

	req := httptest.NewRequest(http.MethodGet, "/alice/", nil)
	req.Header.Set(userwebhttp.RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	logger.Info("outside")

	records := decodeRecords(t, buf.String())
	require.Len(t, records, 3)

	assert.Equal(t, "inside", records[0]["msg"])
	assert.Equal(t, "req-42", records[0]["request_id"])

	assert.Equal(t, "alice", records[1]["user"])
	assert.Equal(t, "req-42", records[1]["request_id"])

	assert.Equal(t, "outside", records[2]["msg"])
	assert.NotContains(t, records[2], "request_id")
}

func TestLogHandler_Enabled(t *testing.T) {
	h := userwebhttp.NewLogHandler(slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))

	assert.False(t, h.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, h.Enabled(t.Context(), slog.LevelError))
}
