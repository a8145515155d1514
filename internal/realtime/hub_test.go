package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quickbite/internal/events"

	"github.com/gorilla/websocket"
)

type staticAuthorizer map[string]bool

func (a staticAuthorizer) Allow(_ uint, channel string) (bool, error) {
	return a[channel], nil
}

func startHub(t *testing.T, authorizer Authorizer) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(authorizer, Options{AllowedOrigins: []string{"*"}, SendBufferSize: 8})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = hub.Start(ctx)
	}()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.ServeWS(w, r, 7); err != nil {
			t.Errorf("serve ws failed: %v", err)
		}
	}))
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		_ = hub.Stop(context.Background())
		cancel()
		server.Close()
	})
	waitFor(t, func() bool { return hub.Subscribers(events.UserChannel(7)) == 1 })
	return hub, conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func readJSON(t *testing.T, conn *websocket.Conn, dest interface{}) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		t.Fatalf("decode failed: %v (%s)", err, raw)
	}
}

func TestHubDeliversUserChannel(t *testing.T) {
	hub, conn := startHub(t, staticAuthorizer{})
	if err := hub.Publish(context.Background(), events.New("order.created", map[string]uint{"order_id": 3}, events.UserChannel(7), events.UserChannel(8))); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	var got events.Event
	readJSON(t, conn, &got)
	if got.Type != "order.created" || len(got.Channels) != 1 || got.Channels[0] != "user:7" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestHubSubscribeRequiresAuthorization(t *testing.T) {
	hub, conn := startHub(t, staticAuthorizer{"cart:5": true})

	if err := conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Channel: "store:1"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var denied ServerMessage
	readJSON(t, conn, &denied)
	if denied.Type != "error" || denied.Channel != "store:1" {
		t.Fatalf("expected forbidden reply, got %+v", denied)
	}

	if err := conn.WriteJSON(ClientMessage{Action: ActionSubscribe, Channel: "cart:5"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var ok ServerMessage
	readJSON(t, conn, &ok)
	if ok.Type != "subscribed" {
		t.Fatalf("expected subscribed, got %+v", ok)
	}

	_ = hub.Publish(context.Background(), events.New("cart.updated", nil, "store:1"))
	_ = hub.Publish(context.Background(), events.New("cart.updated", nil, "cart:5"))
	var got events.Event
	readJSON(t, conn, &got)
	if got.Channels[0] != "cart:5" {
		t.Fatalf("unsubscribed channel leaked: %+v", got)
	}

	if err := conn.WriteJSON(ClientMessage{Action: ActionUnsubscribe, Channel: "cart:5"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var bye ServerMessage
	readJSON(t, conn, &bye)
	if bye.Type != "unsubscribed" || hub.Subscribers("cart:5") != 0 {
		t.Fatalf("expected unsubscribe, got %+v", bye)
	}
}

func TestHubRemovesClosedClients(t *testing.T) {
	hub, conn := startHub(t, staticAuthorizer{})
	_ = conn.Close()
	waitFor(t, func() bool { return hub.Subscribers(events.UserChannel(7)) == 0 })
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://shop.test"})
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if !check(req) {
		t.Fatalf("requests without origin are allowed")
	}
	req.Header.Set("Origin", "https://evil.test")
	if check(req) {
		t.Fatalf("unknown origin must be rejected")
	}
	req.Header.Set("Origin", "https://shop.test")
	if !check(req) {
		t.Fatalf("configured origin must be allowed")
	}
}
