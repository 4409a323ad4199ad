package project

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubDeliversOverWebsocket(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(hub, conn, r.URL.Query().Get("project"))
		hub.Register(c)
		go c.WritePump()
		c.ReadPump(context.Background())
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?project=p1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount("p1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// 其他项目的事件不应送达
	hub.Publish("p2", EventCueCreated, nil)
	hub.Publish("p1", EventProjectUpdated, map[string]string{"name": "New"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventProjectUpdated || ev.ProjectID != "p1" || !strings.Contains(string(ev.Data), "New") {
		t.Fatalf("event = %+v", ev)
	}

	if err := conn.WriteJSON(Event{Type: EventPing}); err != nil {
		t.Fatal(err)
	}
	_, raw, err = conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	json.Unmarshal(raw, &ev)
	if ev.Type != EventPong {
		t.Fatalf("expected pong, got %+v", ev)
	}
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := &Client{hub: hub, send: make(chan []byte, 1), projectID: "p"}
	hub.Register(c)
	hub.Stop()

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("unexpected message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed")
	}
	// publishing after stop must not block
	hub.Publish("p", EventCueCreated, nil)
}
