package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"verona-backend/internal/conversation"
	"verona-backend/internal/handlers"
	"verona-backend/internal/middleware"
	"verona-backend/internal/reply"
	"verona-backend/internal/repository"
	"verona-backend/internal/services"
	"verona-backend/internal/websocket"
)

type echoProvider struct{}

func (echoProvider) Stream(ctx context.Context, model string, msgs []conversation.Message) (reply.FragmentSource, error) {
	return reply.Fragments(msgs[len(msgs)-1].Content), nil
}

func (echoProvider) Complete(ctx context.Context, model string, msgs []conversation.Message) (string, error) {
	return msgs[len(msgs)-1].Content, nil
}

func newTestHandler(t *testing.T, secret string) http.Handler {
	t.Helper()
	sessions := services.NewSessionManager(repository.NewFileSnapshotStore(t.TempDir()), "You are Verona.")
	chat := services.NewChatService(sessions, echoProvider{}, nil, services.ChatOptions{Model: "m", WindowSize: 8, Timeout: time.Second})

	auth := middleware.NewJWTAuth(secret)
	limiter := middleware.NewRateLimiter(100, time.Minute)
	t.Cleanup(limiter.Stop)

	return New(
		auth,
		limiter,
		handlers.NewSessionHandler(chat),
		handlers.NewChatHandler(chat),
		websocket.NewHub(nil, auth),
		"http://localhost:5173",
	)
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != `{"status":"ok"}` {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestSessionRoutes(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		status int
	}{
		{"open without secret", "", http.StatusCreated},
		{"requires token with secret", "test-secret", http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandler(t, tc.secret)

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/", nil))
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
			if rr.Header().Get(middleware.RequestIDHeader) == "" {
				t.Fatal("expected request id header")
			}
		})
	}
}

func TestWebSocketRouteChecksToken(t *testing.T) {
	h := newTestHandler(t, "test-secret")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/0b7c2e43-4c55-4f43-9d43-8a7d7a0f6e10/ws", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}
