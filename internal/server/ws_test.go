package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWSDeliversConnectionAndBroadcasts(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(Handler(hub, &storeMock{}, &serviceMock{}, nil, nil))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, first, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read connection event: %v", err)
	}
	if !strings.Contains(string(first), `"connection"`) {
		t.Fatalf("expected connection event, got %s", first)
	}

	hub.BroadcastInterviewStarted("call-1", "Dana", "Backend Engineer", 5)

	_, second, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if !strings.Contains(string(second), `"interview_started"`) {
		t.Fatalf("expected interview_started event, got %s", second)
	}
}
