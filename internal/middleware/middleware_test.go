package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestJWTAuth_Middleware(t *testing.T) {
	auth := NewJWTAuth("s3cret")
	var gotSubject string
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = GetSubject(r.Context())
	}))

	valid := signToken(t, "s3cret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(time.Hour).Unix()})
	expired := signToken(t, "s3cret", jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})
	wrongKey := signToken(t, "other", jwt.MapClaims{"sub": "user-1"})
	noSubject := signToken(t, "s3cret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized},
		{"no subject", "Bearer " + noSubject, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotSubject = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			if tc.status == http.StatusOK && gotSubject != "user-1" {
				t.Fatalf("expected subject user-1, got %q", gotSubject)
			}
		})
	}
}

func TestJWTAuth_DisabledWithoutSecret(t *testing.T) {
	called := false
	h := NewJWTAuth("").Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !called || rr.Code != http.StatusOK {
		t.Fatalf("expected request to pass through when auth is disabled")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Now()

	if !rl.allow("1.2.3.4", now) || !rl.allow("1.2.3.4", now) {
		t.Fatalf("expected first two requests to pass")
	}
	if rl.allow("1.2.3.4", now) {
		t.Fatalf("expected third request to be limited")
	}
	if !rl.allow("5.6.7.8", now) {
		t.Fatalf("expected other clients to be unaffected")
	}
	if !rl.allow("1.2.3.4", now.Add(31*time.Second)) {
		t.Fatalf("expected a token to be refilled")
	}

	rl.cleanup(now.Add(2 * time.Minute))
	if len(rl.visitors) != 0 {
		t.Fatalf("expected idle visitors to be cleaned up, got %d", len(rl.visitors))
	}
}

func TestRateLimiter_KeysOnHostNotPort(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		remoteAddr string
		status     int
	}{
		{"10.0.0.1:40001", http.StatusOK},
		{"10.0.0.1:40002", http.StatusTooManyRequests},
		{"10.0.0.1", http.StatusTooManyRequests},
		{"[2001:db8::1]:40003", http.StatusOK},
	}

	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remoteAddr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.remoteAddr, tc.status, rr.Code)
		}
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rr.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected generated request id to be echoed, got %q / %q", seen, rr.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seen != "abc-123" {
		t.Fatalf("expected caller request id to be kept, got %q", seen)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS("http://localhost:5173")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("preflight should not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("expected origin to be allowed")
	}
}
