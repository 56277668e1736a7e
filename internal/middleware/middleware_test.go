package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashureev/ops-console/internal/config"
	"github.com/ashureev/ops-console/internal/session"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantCreds  string
		wantStatus int
	}{
		{"explicit origin", []string{"http://console.local"}, "http://console.local", http.MethodGet, "http://console.local", "true", http.StatusOK},
		{"wildcard", []string{"*"}, "http://other.local", http.MethodGet, "http://other.local", "", http.StatusOK},
		{"rejected", []string{"http://console.local"}, "http://evil.local", http.MethodGet, "", "", http.StatusOK},
		{"preflight", []string{"*"}, "http://other.local", http.MethodOptions, "http://other.local", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, "/api/session", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, rec.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestRateLimitPerKey(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimit(ctx, config.RateLimitConfig{RequestsPerMin: 1, Burst: 2})(okHandler)

	do := func(remote string, sess *session.Session) int {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = remote
		if sess != nil {
			req = req.WithContext(session.NewContext(req.Context(), sess))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1234", nil))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:5678", nil))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:9999", nil))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1234", nil), "other IPs have their own bucket")

	op := &session.Session{ID: "op-1"}
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1", op), "operators are keyed by session")
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1", op))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1", op))
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:4000"
	assert.Equal(t, "192.0.2.7", ClientIP(req))
	req.RemoteAddr = "192.0.2.7"
	assert.Equal(t, "192.0.2.7", ClientIP(req))
}
