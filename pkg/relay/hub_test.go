package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cobblechat/cobblechat/pkg/bus"
	"github.com/cobblechat/cobblechat/pkg/chatfmt"
	"github.com/cobblechat/cobblechat/pkg/mc"
	"github.com/cobblechat/cobblechat/pkg/session"
)

func newTestHub(t *testing.T) (*Hub, *session.Registry, *bus.MessageBus) {
	t.Helper()
	b := bus.NewMessageBus()
	reg := session.NewRegistry(mc.NewLoopbackConnector(), mc.AuthOffline, b)
	h, err := NewHub(reg, b)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}
	return h, reg, b
}

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBroadcastReachesAllViewers(t *testing.T) {
	h, _, _ := newTestHub(t)
	_, ch1 := h.AttachViewer()
	_, ch2 := h.AttachViewer()

	h.OnInboundEvent(context.Background(), "Alice:host1", []byte(`"§ahi"`))

	for _, ch := range []<-chan Event{ch1, ch2} {
		ev := recvEvent(t, ch)
		if ev.SessionID != "Alice:host1" {
			t.Errorf("session id = %q", ev.SessionID)
		}
		want := chatfmt.Message{{Text: "hi", Color: "#55FF55"}}
		if len(ev.Segments) != 1 || ev.Segments[0] != want[0] {
			t.Errorf("segments = %+v, want %+v", ev.Segments, want)
		}
	}
}

func TestEmptyDecodeNotBroadcast(t *testing.T) {
	h, _, _ := newTestHub(t)
	_, ch := h.AttachViewer()

	h.OnInboundEvent(context.Background(), "Alice:host1", []byte(`{"text":""}`))
	h.OnInboundEvent(context.Background(), "Alice:host1", []byte(`{}`))
	h.OnInboundEvent(context.Background(), "Alice:host1", []byte(`not even json`))

	select {
	case ev := <-ch:
		t.Errorf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestViewerScope(t *testing.T) {
	h, _, _ := newTestHub(t)
	scopedID, scoped := h.AttachViewer()
	_, global := h.AttachViewer()
	h.Subscribe(scopedID, "Alice:host1")

	h.OnInboundEvent(context.Background(), "Bob:host2", []byte(`"other"`))
	h.OnInboundEvent(context.Background(), "Alice:host1", []byte(`"mine"`))

	// The global viewer sees both, in arrival order.
	if ev := recvEvent(t, global); ev.SessionID != "Bob:host2" {
		t.Errorf("global first event = %q", ev.SessionID)
	}
	if ev := recvEvent(t, global); ev.SessionID != "Alice:host1" {
		t.Errorf("global second event = %q", ev.SessionID)
	}
	// The scoped viewer only sees its session.
	if ev := recvEvent(t, scoped); ev.SessionID != "Alice:host1" {
		t.Errorf("scoped event = %q", ev.SessionID)
	}
	select {
	case ev := <-scoped:
		t.Errorf("scoped viewer leaked %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPerSessionFIFO(t *testing.T) {
	h, _, _ := newTestHub(t)
	_, ch := h.AttachViewer()

	for i := 0; i < 10; i++ {
		payload, _ := json.Marshal(string(rune('a' + i)))
		h.OnInboundEvent(context.Background(), "Alice:host1", payload)
	}
	for i := 0; i < 10; i++ {
		ev := recvEvent(t, ch)
		want := string(rune('a' + i))
		if ev.Segments[0].Text != want {
			t.Fatalf("event %d text = %q, want %q", i, ev.Segments[0].Text, want)
		}
	}
}

func TestSlowViewerDoesNotBlockOthers(t *testing.T) {
	h, _, _ := newTestHub(t)
	_, slow := h.AttachViewer()
	_, fast := h.AttachViewer()

	// Overflow the slow viewer's queue without draining it.
	for i := 0; i < DefaultViewerQueue+10; i++ {
		h.OnInboundEvent(context.Background(), "Alice:host1", []byte(`"spam"`))
	}
	// The fast viewer still gets events (its own queue also capped, but
	// broadcast never blocked).
	recvEvent(t, fast)
	if len(slow) != DefaultViewerQueue {
		t.Errorf("slow queue len = %d, want %d", len(slow), DefaultViewerQueue)
	}
}

func TestForwardUnknownIdentityIsSilent(t *testing.T) {
	h, _, _ := newTestHub(t)
	// Must not panic and must not surface an error.
	h.Forward(session.Identity{Owner: "ghost", Destination: "nowhere"}, "hello")
}

func TestForwardAfterRemovalIsSilent(t *testing.T) {
	h, reg, _ := newTestHub(t)
	id := session.Identity{Owner: "Alice", Destination: "host1"}
	if _, err := reg.Create(context.Background(), id); err != nil {
		t.Fatalf("create: %v", err)
	}
	reg.Remove(id)
	h.Forward(id, "hi")
}

func TestDetachViewerClosesChannel(t *testing.T) {
	h, _, _ := newTestHub(t)
	id, ch := h.AttachViewer()
	h.DetachViewer(id)
	if _, ok := <-ch; ok {
		t.Error("channel still open after detach")
	}
	// Idempotent.
	h.DetachViewer(id)
	// Broadcast after detach must not panic.
	h.OnInboundEvent(context.Background(), "Alice:host1", []byte(`"post-detach"`))
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Mirror(_ context.Context, ev Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.notify <- struct{}{}
	return nil
}

func TestSinkReceivesEvents(t *testing.T) {
	h, _, _ := newTestHub(t)
	sink := &recordingSink{notify: make(chan struct{}, 1)}
	h.AddSink(sink)

	h.OnInboundEvent(context.Background(), "Alice:host1", []byte(`"hello"`))

	select {
	case <-sink.notify:
	case <-time.After(time.Second):
		t.Fatal("sink never mirrored")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 1 || sink.events[0].SessionID != "Alice:host1" {
		t.Errorf("sink events = %+v", sink.events)
	}
}

func TestRunBridgesBusBothDirections(t *testing.T) {
	h, reg, b := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	_, ch := h.AttachViewer()

	// Creating a loopback session publishes its greeting inbound.
	id := session.Identity{Owner: "Alice", Destination: "host1"}
	if _, err := reg.Create(ctx, id); err != nil {
		t.Fatalf("create: %v", err)
	}
	greeting := recvEvent(t, ch)
	if greeting.SessionID != "Alice:host1" {
		t.Errorf("greeting session = %q", greeting.SessionID)
	}

	// An outbound command on the bus reaches the session; the loopback
	// connector echoes it back through the relay.
	if err := b.PublishOutbound(ctx, bus.OutboundText{SessionID: "Alice:host1", Text: "ping"}); err != nil {
		t.Fatalf("publish outbound: %v", err)
	}
	echo := recvEvent(t, ch)
	found := false
	for _, seg := range echo.Segments {
		if seg.Text == " ping" || seg.Text == "ping" {
			found = true
		}
	}
	if !found {
		t.Errorf("echo segments = %+v", echo.Segments)
	}
}
