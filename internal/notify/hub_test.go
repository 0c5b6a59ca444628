package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PewPewSlowMo/SmartCallCenter/internal/rbac"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Attach(w, r, r.URL.Query().Get("user"), r.URL.Query().Get("role"))
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialHub(t *testing.T, srv *httptest.Server, userID, role string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=" + userID + "&role=" + role
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Every connection starts with a greeting frame.
	msg := readMessage(t, conn)
	if msg.Type != "connection-established" {
		t.Fatalf("greeting type = %q", msg.Type)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func expectNoMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Fatalf("unexpected frame: %s", data)
	}
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversToSupervisoryRoles(t *testing.T) {
	hub, srv := newTestHub(t)
	admin := dialHub(t, srv, "u-admin", rbac.RoleAdmin)
	supervisor := dialHub(t, srv, "u-sup", rbac.RoleSupervisor)
	waitForClients(t, hub, 2)

	hub.Publish("call-started", map[string]string{"call_id": "c-1"}, "")

	for _, conn := range []*websocket.Conn{admin, supervisor} {
		msg := readMessage(t, conn)
		if msg.Type != "call-started" {
			t.Errorf("type = %q", msg.Type)
		}
		if msg.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	}
}

func TestHubTargetsOperatorByUserID(t *testing.T) {
	hub, srv := newTestHub(t)
	target := dialHub(t, srv, "u-op-1", rbac.RoleOperator)
	bystander := dialHub(t, srv, "u-op-2", rbac.RoleOperator)
	waitForClients(t, hub, 2)

	hub.Publish("call-assigned", map[string]string{"call_id": "c-2"}, "u-op-1")

	if msg := readMessage(t, target); msg.Type != "call-assigned" {
		t.Errorf("target got type %q", msg.Type)
	}
	expectNoMessage(t, bystander)
}

func TestHubSurvivesMissingTarget(t *testing.T) {
	hub, srv := newTestHub(t)
	admin := dialHub(t, srv, "u-admin", rbac.RoleAdmin)
	waitForClients(t, hub, 1)

	// The targeted user has no connection; supervisors still get the event.
	hub.Publish("call-assigned", map[string]string{"call_id": "c-3"}, "u-gone")

	if msg := readMessage(t, admin); msg.Type != "call-assigned" {
		t.Errorf("type = %q", msg.Type)
	}
}

func TestHubRemovesDisconnectedClients(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dialHub(t, srv, "u-admin", rbac.RoleAdmin)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Attach(w, r, r.URL.Query().Get("user"), r.URL.Query().Get("role"))
	}))
	t.Cleanup(srv.Close)

	conn := dialHub(t, srv, "u-admin", rbac.RoleAdmin)
	waitForClients(t, hub, 1)

	cancel()
	select {
	case <-hubDone:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	// The hub closed the send channel; the write pump answers with a
	// close frame and the read fails.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection still open after shutdown")
	}
	conn.Close()

	// A client disconnecting after shutdown must not wedge on the
	// unregister channel, and a late attach is turned away.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=u-late&role=" + rbac.RoleAdmin
	late, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return
	}
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Fatal("late attach was accepted after shutdown")
	}
}

func TestMockNotifierRecords(t *testing.T) {
	var m MockNotifier
	m.Publish("call-started", 1, "")
	m.Publish("call-ended", 2, "u-1")
	m.Publish("call-started", 3, "")

	if got := len(m.Recorded()); got != 3 {
		t.Fatalf("recorded %d publishes", got)
	}
	started := m.ByEvent("call-started")
	if len(started) != 2 {
		t.Fatalf("ByEvent returned %d", len(started))
	}
	if ended := m.ByEvent("call-ended"); len(ended) != 1 || ended[0].TargetUserID != "u-1" {
		t.Errorf("call-ended = %+v", ended)
	}
}
