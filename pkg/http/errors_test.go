package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w *httptest.ResponseRecorder)
		wantStatus int
		wantCode   string
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { WriteBadRequest(w, "bad") }, 400, "bad_request"},
		{"unauthorized", func(w *httptest.ResponseRecorder) { WriteUnauthorized(w, "nope") }, 401, "unauthorized"},
		{"not found", func(w *httptest.ResponseRecorder) { WriteNotFound(w, "missing") }, 404, "not_found"},
		{"expired", func(w *httptest.ResponseRecorder) { WriteExpired(w, "stale") }, 400, "expired"},
		{"too many requests", func(w *httptest.ResponseRecorder) { WriteTooManyRequests(w, "slow down") }, 429, "rate_limit_exceeded"},
		{"internal", func(w *httptest.ResponseRecorder) { WriteInternalError(w, "boom") }, 500, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Error)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteErrorWithDetails(w, 400, "bad_request", "validation failed", "username: too short")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "username: too short", resp.Details)
}
