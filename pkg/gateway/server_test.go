package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cobblechat/cobblechat/pkg/bus"
	"github.com/cobblechat/cobblechat/pkg/config"
	"github.com/cobblechat/cobblechat/pkg/mc"
	"github.com/cobblechat/cobblechat/pkg/relay"
	"github.com/cobblechat/cobblechat/pkg/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()

	b := bus.NewMessageBus()
	registry := session.NewRegistry(mc.NewLoopbackConnector(), mc.AuthOffline, b)
	hub, err := relay.NewHub(registry, b)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	go hub.Run(t.Context())

	srv := NewServer(config.GatewayConfig{}, registry, hub, b, nil, 5*time.Second)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		registry.CloseAll()
		b.Close()
	})
	return ts, registry
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestCreateSession(t *testing.T) {
	ts, registry := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/sessions", createSessionRequest{
		OwnerName:   "Alice",
		Destination: "host1",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatal(err)
	}
	if sr.SessionID != "Alice:host1" {
		t.Errorf("sessionId = %q", sr.SessionID)
	}
	if _, ok := registry.Lookup(session.Identity{Owner: "Alice", Destination: "host1"}); !ok {
		t.Error("session not registered")
	}
}

func TestCreateSessionDuplicate(t *testing.T) {
	ts, _ := newTestServer(t)

	req := createSessionRequest{OwnerName: "Alice", Destination: "host1"}
	first := postJSON(t, ts.URL+"/api/sessions", req)
	first.Body.Close()
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("first create status = %d", first.StatusCode)
	}

	second := postJSON(t, ts.URL+"/api/sessions", req)
	defer second.Body.Close()
	if second.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", second.StatusCode)
	}
	var sr sessionResponse
	if err := json.NewDecoder(second.Body).Decode(&sr); err != nil {
		t.Fatal(err)
	}
	if sr.SessionID != "Alice:host1" {
		t.Errorf("conflict response sessionId = %q", sr.SessionID)
	}
}

func TestCreateSessionInvalid(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/sessions", createSessionRequest{OwnerName: "Alice"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListAndRemoveSessions(t *testing.T) {
	ts, _ := newTestServer(t)

	postJSON(t, ts.URL+"/api/sessions", createSessionRequest{OwnerName: "Alice", Destination: "host1"}).Body.Close()
	postJSON(t, ts.URL+"/api/sessions", createSessionRequest{OwnerName: "Bob", Destination: "host2"}).Body.Close()

	resp, err := http.Get(ts.URL + "/api/sessions")
	if err != nil {
		t.Fatal(err)
	}
	var list []sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(list) != 2 {
		t.Fatalf("listed %d sessions, want 2", len(list))
	}

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/Alice:host1", nil)
	if err != nil {
		t.Fatal(err)
	}
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", del.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/api/sessions")
	if err != nil {
		t.Fatal(err)
	}
	list = nil
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(list) != 1 || list[0].SessionID != "Bob:host2" {
		t.Errorf("after delete, list = %+v", list)
	}
}

func TestRemoveSessionBadID(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/nodelimiter", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAuthenticateUnconfigured(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/authenticate", authenticateRequest{OwnerName: "Alice"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) relay.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev relay.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	return ev
}

func TestWebsocketRelay(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialWS(t, ts)

	postJSON(t, ts.URL+"/api/sessions", createSessionRequest{OwnerName: "Alice", Destination: "host1"}).Body.Close()

	// The loopback backend greets every new session; that greeting reaches
	// connected viewers through the hub.
	ev := readEvent(t, conn)
	if ev.SessionID != "Alice:host1" {
		t.Fatalf("greeting sessionId = %q", ev.SessionID)
	}
	joined := ""
	for _, seg := range ev.Segments {
		joined += seg.Text
	}
	if !strings.Contains(joined, "Welcome, Alice") {
		t.Errorf("greeting text = %q", joined)
	}

	// Viewer text is forwarded to the session; loopback echoes it back as
	// an inbound chat event.
	err := conn.WriteJSON(viewerCommand{SessionID: "Alice:host1", Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	ev = readEvent(t, conn)
	if ev.SessionID != "Alice:host1" {
		t.Fatalf("echo sessionId = %q", ev.SessionID)
	}
	var echoed string
	for _, seg := range ev.Segments {
		echoed += seg.Text
	}
	if !strings.Contains(echoed, " hi") {
		t.Errorf("echo text = %q", echoed)
	}
}

func TestWebsocketSubscribeScoping(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dialWS(t, ts)

	if err := conn.WriteJSON(viewerCommand{SessionID: "Bob:host2", Subscribe: true}); err != nil {
		t.Fatal(err)
	}
	// Subscribe has no acknowledgement; give the read loop a moment before
	// generating traffic on a different session.
	time.Sleep(100 * time.Millisecond)

	postJSON(t, ts.URL+"/api/sessions", createSessionRequest{OwnerName: "Alice", Destination: "host1"}).Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	var ev relay.Event
	if err := conn.ReadJSON(&ev); err == nil {
		t.Fatalf("scoped viewer received %+v", ev)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/sessions", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", got)
	}
}

func TestConnectFailureIsBadGateway(t *testing.T) {
	b := bus.NewMessageBus()
	registry := session.NewRegistry(failingConnector{}, mc.AuthOffline, b)
	hub, err := relay.NewHub(registry, b)
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(config.GatewayConfig{}, registry, hub, b, nil, time.Second)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		b.Close()
	})

	resp := postJSON(t, ts.URL+"/api/sessions", createSessionRequest{OwnerName: "Alice", Destination: "down"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

type failingConnector struct{}

func (failingConnector) Connect(_ context.Context, destination, _ string, _ mc.AuthMode) (mc.Handle, error) {
	return nil, fmt.Errorf("dial %s: refused", destination)
}
