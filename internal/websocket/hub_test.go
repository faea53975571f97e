package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"verona-backend/internal/middleware"
	"verona-backend/internal/models"
)

func TestHub_LocalPublishReachesSubscriber(t *testing.T) {
	hub := NewHub(nil, middleware.NewJWTAuth(""))
	r := chi.NewRouter()
	r.Get("/sessions/{id}/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	sessionID := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + sessionID.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration happens after the upgrade returns; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		hub.mu.RLock()
		n := len(hub.connections[sessionID])
		hub.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("connection was never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(context.Background(), sessionID, models.WSMessage{
		Type:    "visible",
		Payload: models.VisibleUpdate{SessionID: sessionID.String(), Text: "Hel"},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg struct {
		Type    string               `json:"type"`
		Payload models.VisibleUpdate `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != "visible" || msg.Payload.Text != "Hel" {
		t.Fatalf("unexpected message %s", data)
	}
}

func TestHub_RejectsMissingToken(t *testing.T) {
	hub := NewHub(nil, middleware.NewJWTAuth("secret"))
	r := chi.NewRouter()
	r.Get("/sessions/{id}/ws", hub.HandleWebSocket)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("GET", "/sessions/"+uuid.NewString()+"/ws", nil))
	if rr.Code != 401 {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub(nil, middleware.NewJWTAuth(""))
	sessionID := uuid.New()

	// Nobody drains this queue, like a client whose socket stopped reading.
	stuck := &client{send: make(chan []byte, 1)}
	hub.registerConnection(sessionID, stuck)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(context.Background(), sessionID, models.WSMessage{
				Type:    "visible",
				Payload: models.VisibleUpdate{SessionID: sessionID.String(), Text: "Hel"},
			})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	if len(stuck.send) != 1 {
		t.Fatalf("expected one queued update, got %d", len(stuck.send))
	}
}
