package alerts

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fingrow/fingrow/internal/finance"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		if err := hub.Subscribe(w, r, userID); err != nil {
			t.Errorf("Subscribe failed: %v", err)
		}
	}))
}

func dial(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, userID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers(userID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("subscribers for %s never reached %d", userID, want)
}

func TestHub_PublishReachesSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	server := newTestServer(t, hub)
	defer server.Close()

	conn := dial(t, server, "u1")
	defer conn.Close()
	waitForSubscribers(t, hub, "u1", 1)

	hub.Publish("u1", finance.Alert{
		UserID:   "u1",
		Severity: finance.SeverityCritical,
		Percent:  7,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got finance.Alert
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.Severity != finance.SeverityCritical || got.UserID != "u1" {
		t.Errorf("alert = %+v", got)
	}
}

func TestHub_PublishIsScopedToUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	server := newTestServer(t, hub)
	defer server.Close()

	conn := dial(t, server, "u2")
	defer conn.Close()
	waitForSubscribers(t, hub, "u2", 1)

	hub.Publish("someone-else", finance.Alert{UserID: "someone-else"})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("received an alert addressed to another user")
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	server := newTestServer(t, hub)
	defer server.Close()

	conn := dial(t, server, "u3")
	waitForSubscribers(t, hub, "u3", 1)

	conn.Close()
	waitForSubscribers(t, hub, "u3", 0)
}
