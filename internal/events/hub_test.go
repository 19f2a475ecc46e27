package events_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mangamirror/internal/events"
)

func TestPublishReachesSubscribers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := events.NewHub()

	r := gin.New()
	r.GET("/ws", events.WSHandler(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// registration races the dial; wait for the hub to see the client
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(events.Event{Type: events.TitleCreated, Slug: "my-title", RunID: "abc123"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got events.Event
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != events.TitleCreated || got.Slug != "my-title" {
		t.Errorf("event = %+v", got)
	}
	if got.At.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestPublishDropsDeadClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := events.NewHub()

	r := gin.New()
	r.GET("/ws", events.WSHandler(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()

	// the read loop notices the close and unregisters the client
	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("dead client never removed")
		}
		hub.Publish(events.Event{Type: events.PassStarted})
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNilHubIsSafe(t *testing.T) {
	var hub *events.Hub
	hub.Publish(events.Event{Type: events.PassFinished})
}
