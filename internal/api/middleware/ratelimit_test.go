package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiterWindow(2, 50*time.Millisecond)
	defer rl.Close()

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "keys are independent")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.Allow("a"), "window should slide")
}

func TestRateLimitByIP(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Close()

	handler := RateLimitByIP(rl, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")

	// Spoofed forwarding headers from an untrusted peer are ignored.
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitByUser(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Close()

	handler := RateLimitByUser(rl, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, user := range []string{"u1", "u2"} {
		req := setAuthContext(httptest.NewRequest(http.MethodPost, "/api/ideas", nil), user, "member")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, user)
	}

	req := setAuthContext(httptest.NewRequest(http.MethodPost, "/api/ideas", nil), "u1", "member")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestClientIPResolver(t *testing.T) {
	res, err := NewClientIPResolver([]string{"10.0.0.0/8", "192.168.1.1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"untrusted peer", "203.0.113.5:80", "1.2.3.4", "", "203.0.113.5"},
		{"trusted proxy", "10.1.2.3:80", "1.2.3.4", "", "1.2.3.4"},
		{"proxy chain", "10.1.2.3:80", "1.2.3.4, 10.9.9.9", "", "1.2.3.4"},
		{"single trusted ip", "192.168.1.1:80", "5.6.7.8", "", "5.6.7.8"},
		{"real ip header", "10.1.2.3:80", "", "9.9.9.9", "9.9.9.9"},
		{"garbage header", "10.1.2.3:80", "not-an-ip", "", "10.1.2.3"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				req.Header.Set("X-Real-IP", tc.xri)
			}
			assert.Equal(t, tc.want, res.ClientIP(req))
		})
	}

	_, err = NewClientIPResolver([]string{"not-a-cidr"})
	assert.Error(t, err)
}
