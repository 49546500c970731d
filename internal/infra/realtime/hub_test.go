package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"parley/internal/infra/bus"
)

// dialedConnection upgrades a real websocket pair: the server side is
// wrapped in a Connection and attached to the hub, the client side reads
// what the hub delivers.
func dialedConnection(t *testing.T, hub *Hub, userID string) (*Connection, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	attached := make(chan *Connection, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn := NewConnection(userID, ws)
		hub.Attach(conn)
		attached <- conn
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-attached:
		return conn, client
	case <-time.After(time.Second):
		t.Fatalf("connection never attached")
		return nil, nil
	}
}

func readEvent(t *testing.T, client *websocket.Conn) bus.Event {
	t.Helper()
	if err := client.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, raw, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev bus.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", raw, err)
	}
	return ev
}

func TestDeliverReachesSubscribersOnly(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	defer hub.Close()

	aliceConn, aliceClient := dialedConnection(t, hub, "alice")
	_, bobClient := dialedConnection(t, hub, "bob")

	hub.Subscribe("conversation:c1", aliceConn)

	hub.Deliver(bus.Event{Channel: "conversation:c1", Event: "new", Payload: json.RawMessage(`{"id":"m1"}`)})

	got := readEvent(t, aliceClient)
	if got.Channel != "conversation:c1" || got.Event != "new" {
		t.Fatalf("event = %+v", got)
	}

	// Bob never subscribed, so nothing arrives on his socket.
	if err := bobClient.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	if _, _, err := bobClient.ReadMessage(); err == nil {
		t.Fatalf("unsubscribed connection received an event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	conn, client := dialedConnection(t, hub, "alice")
	hub.Subscribe("user:alice:conversations", conn)

	hub.Deliver(bus.Event{Channel: "user:alice:conversations", Event: "update", Payload: json.RawMessage(`{}`)})
	if got := readEvent(t, client); got.Event != "update" {
		t.Fatalf("event = %+v", got)
	}

	hub.Unsubscribe("user:alice:conversations", conn)
	hub.Deliver(bus.Event{Channel: "user:alice:conversations", Event: "update", Payload: json.RawMessage(`{}`)})

	if err := client.SetReadDeadline(time.Now().Add(200 * time.Millisecond)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	if _, _, err := client.ReadMessage(); err == nil {
		t.Fatalf("received event after unsubscribe")
	}
}

func TestDetachDropsSubscriptions(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	conn, _ := dialedConnection(t, hub, "alice")
	hub.Subscribe("conversation:c1", conn)
	hub.Detach(conn)

	// Subscribing a detached connection is a no-op.
	hub.Subscribe("conversation:c2", conn)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if len(hub.channels) != 0 {
		t.Fatalf("channels = %v, want none after detach", hub.channels)
	}
	if _, ok := hub.subscriptions[conn.ID]; ok {
		t.Fatalf("subscriptions survive detach")
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}
