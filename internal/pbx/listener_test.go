package pbx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newStreamServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.URL.Query().Get("api_key"); key != "ari-user:ari-pass" {
			t.Errorf("api_key = %q", key)
		}
		if app := r.URL.Query().Get("app"); app != "callcenter" {
			t.Errorf("app = %q", app)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListenerDispatchesInOrder(t *testing.T) {
	srv := newStreamServer(t, []string{
		`{"type":"session-start","channel":{"id":"ch-1","caller":{"number":"79991234567"}},"args":["100"]}`,
		`not json at all`,
		`{"type":"some-noise-event"}`,
		`{"type":"session-end","channel":{"id":"ch-1"}}`,
	})

	var got []string
	handler := HandlerFunc(func(ctx context.Context, ev Event) {
		got = append(got, ev.EventType())
	})

	l := NewListener(ListenerConfig{
		EventsURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Username:  "ari-user",
		Password:  "ari-pass",
		AppName:   "callcenter",
	}, handler, quietLogger())

	err := l.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when server closes the stream")
	}

	want := []string{"session-start", "session-end"}
	if len(got) != len(want) {
		t.Fatalf("dispatched %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListenerStopsOnContextCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Hold the connection open without sending anything.
		conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	l := NewListener(ListenerConfig{
		EventsURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Username:  "ari-user",
		Password:  "ari-pass",
		AppName:   "callcenter",
	}, HandlerFunc(func(context.Context, Event) {}), quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after cancel")
	}
}

func TestListenerConnectFailure(t *testing.T) {
	l := NewListener(ListenerConfig{
		EventsURL: "ws://127.0.0.1:1/ari/events",
		Username:  "u",
		Password:  "p",
		AppName:   "callcenter",
	}, HandlerFunc(func(context.Context, Event) {}), quietLogger())

	if err := l.Run(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
}
