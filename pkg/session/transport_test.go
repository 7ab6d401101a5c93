package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newEchoServer(t *testing.T, key string, received chan<- []byte) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != key {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			received <- data
			if strings.HasPrefix(string(data), `{"setup"`) {
				c.WriteMessage(websocket.TextMessage, []byte(`{"text":"hello from server"}`))
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebsocket_EndToEnd(t *testing.T) {
	received := make(chan []byte, 8)
	srv := newEchoServer(t, "test-key", received)

	cfg := DefaultConfig()
	s, err := New(cfg,
		WithEndpoint(wsURL(srv)),
		WithAPIKey("test-key"),
		WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case data := <-received:
		if !strings.HasPrefix(string(data), `{"setup"`) {
			t.Errorf("Expected setup first, got %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for setup")
	}

	waitFor(t, "server text in transcript", func() bool { return s.Transcript().Len() == 1 })
	if got := s.Transcript().Entries()[0].Text; got != "hello from server" {
		t.Errorf("Unexpected transcript text %q", got)
	}

	s.pending.AppendPCM([]int16{1, 2})
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	select {
	case data := <-received:
		if !strings.HasPrefix(string(data), `{"realtime_input"`) {
			t.Errorf("Expected realtime_input, got %s", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for realtime_input")
	}
}

func TestWebsocket_Unauthorized(t *testing.T) {
	srv := newEchoServer(t, "right-key", make(chan []byte, 1))

	s, err := New(DefaultConfig(),
		WithEndpoint(wsURL(srv)),
		WithAPIKey("wrong-key"),
		WithReconnect(time.Hour, 0),
		WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	err = s.Connect(context.Background())
	var cerr *ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected ConnectionError, got %v", err)
	}
	if cerr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected HTTP 401, got %d", cerr.StatusCode)
	}
	if IsRetryable(err) {
		t.Error("401 should not be retryable")
	}
	if s.State() != StateError {
		t.Errorf("Expected error state, got %s", s.State())
	}
}

func TestWebsocket_RemoteCloseIsCloseEvent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		c.ReadMessage()
		c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"), time.Now().Add(time.Second))
		c.ReadMessage()
	}))
	defer srv.Close()

	s, err := New(DefaultConfig(),
		WithEndpoint(wsURL(srv)),
		WithReconnect(time.Hour, 3),
		WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()

	var sawError bool
	s.OnEvent(func(e Event) {
		if e.Type == EventState && e.State == StateError {
			sawError = true
		}
	})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitFor(t, "reconnect scheduled", func() bool { return s.Attempts() == 1 })
	if s.State() != StateDisconnected {
		t.Errorf("Expected disconnected, got %s", s.State())
	}
	s.Close()
	if sawError {
		t.Error("A peer close should not pass through the error state")
	}
}
