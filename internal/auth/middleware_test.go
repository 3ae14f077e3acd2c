package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func doRequest(h http.Handler, remote, header string) int {
	r := httptest.NewRequest("GET", "/admin/config", nil)
	r.RemoteAddr = remote
	if header != "" {
		r.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w.Code
}

func TestRequireAdminToken(t *testing.T) {
	h := RequireAdminToken("s3cret", okHandler)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer s3cret", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := doRequest(h, "10.0.0.1:1234", tt.header); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRequireAdminTokenDisabled(t *testing.T) {
	h := RequireAdminToken("", okHandler)

	if got := doRequest(h, "10.0.0.1:1234", "Bearer "); got != http.StatusNotFound {
		t.Errorf("status = %d, want %d", got, http.StatusNotFound)
	}
}

func TestRequireAdminTokenRateLimit(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	limiter := newRateLimiter()
	limiter.now = func() time.Time { return now }
	h := requireAdminToken("s3cret", limiter, okHandler)

	for i := 0; i < rateLimitMaxFail; i++ {
		if got := doRequest(h, "10.0.0.1:1234", "Bearer wrong"); got != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i, got)
		}
	}

	if got := doRequest(h, "10.0.0.1:5678", "Bearer s3cret"); got != http.StatusTooManyRequests {
		t.Errorf("limited ip status = %d, want 429", got)
	}
	if got := doRequest(h, "10.0.0.2:1234", "Bearer s3cret"); got != http.StatusOK {
		t.Errorf("other ip status = %d, want 200", got)
	}

	now = now.Add(rateLimitWindow + time.Second)
	if got := doRequest(h, "10.0.0.1:1234", "Bearer s3cret"); got != http.StatusOK {
		t.Errorf("after window status = %d, want 200", got)
	}
}

func TestSuccessfulRequestsAreNotCounted(t *testing.T) {
	h := RequireAdminToken("s3cret", okHandler)

	for i := 0; i < rateLimitMaxFail*2; i++ {
		if got := doRequest(h, "10.0.0.1:1234", "Bearer s3cret"); got != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, got)
		}
	}
}
