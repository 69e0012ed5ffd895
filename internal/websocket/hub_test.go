package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, coachID int64) *Client {
	return &Client{
		hub:     hub,
		coachID: coachID,
		send:    make(chan []byte, sendBufferSize),
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 0)
	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	// second unregister must not close the channel twice
	hub.Unregister(c1)
	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastFiltersByCoach(t *testing.T) {
	hub := NewHub(slog.Default())

	mine := mockClient(hub, 7)
	other := mockClient(hub, 8)
	all := mockClient(hub, 0)
	for _, c := range []*Client{mine, other, all} {
		hub.Register(c)
	}

	hub.Broadcast(NewMessage("availability", "updated", 7, "r1", map[string]any{"kind": "recurring"}))

	for _, c := range []*Client{mine, all} {
		got := receive(t, c)
		if got.Type != "availability_updated" {
			t.Errorf("type = %s, want availability_updated", got.Type)
		}
		if got.CoachID != 7 || got.ID != "r1" {
			t.Errorf("message = %+v", got)
		}
		if got.Extra["kind"] != "recurring" {
			t.Errorf("extra = %v", got.Extra)
		}
	}

	select {
	case <-other.send:
		t.Error("client watching another coach should not receive the message")
	default:
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast(NewMessage("event", "moved", 1, "e1", nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, 1)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("event", "moved", 1, "", nil))
	}
	// This should drop the message, not panic or block
	hub.Broadcast(NewMessage("event", "dropped", 1, "", nil))

	count := 0
	for len(c.send) > 0 {
		<-c.send
		count++
	}
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(coach int64) {
			defer wg.Done()
			c := mockClient(hub, coach)
			hub.Register(c)
			hub.Broadcast(NewMessage("test", "concurrent", coach, "", nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i % 3))
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestHandleWebSocket(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := httptest.NewServer(HandleWebSocket(hub, slog.Default(), nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?coach=3"
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast(NewMessage("meeting", "created", 3, "m1", nil))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "meeting_created" || got.ID != "m1" {
		t.Errorf("message = %+v", got)
	}
}

func TestHandleWebSocketBadCoach(t *testing.T) {
	hub := NewHub(slog.Default())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws?coach=abc", nil)
	HandleWebSocket(hub, slog.Default(), nil).ServeHTTP(rec, req)
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
