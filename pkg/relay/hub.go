// Package relay routes chat between bot sessions and viewers. Inbound chat
// events are decoded once and fanned out to every attached viewer and bridge
// sink; outbound viewer text is forwarded to the matching session through the
// registry.
package relay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/cobblechat/cobblechat/pkg/bus"
	"github.com/cobblechat/cobblechat/pkg/chatfmt"
	"github.com/cobblechat/cobblechat/pkg/session"
)

// DefaultViewerQueue is the per-viewer event buffer. Delivery is
// fire-and-forget: when a viewer's queue is full its events are dropped so
// one slow viewer never blocks the others or the originating session.
const DefaultViewerQueue = 64

const sinkMirrorTimeout = 10 * time.Second

type viewer struct {
	id     string
	events chan Event
	// scope is the set of session IDs this viewer receives. nil means all
	// sessions (the compatibility default).
	scope map[string]struct{}
}

// Hub is the relay hub. One Run loop per direction consumes the bus, so
// delivery order for events from the same session is FIFO; cross-session
// interleaving is arrival order.
type Hub struct {
	registry *session.Registry
	bus      *bus.MessageBus

	mu      sync.Mutex
	viewers map[string]*viewer
	sinks   []Sink

	queueSize int
}

// NewHub wires a hub to its registry and bus.
func NewHub(registry *session.Registry, b *bus.MessageBus) (*Hub, error) {
	if registry == nil {
		return nil, errors.New("hub registry is nil")
	}
	if b == nil {
		return nil, errors.New("hub bus is nil")
	}
	return &Hub{
		registry:  registry,
		bus:       b,
		viewers:   make(map[string]*viewer),
		queueSize: DefaultViewerQueue,
	}, nil
}

// AddSink registers a bridge sink. Sinks must be added before Run.
func (h *Hub) AddSink(s Sink) {
	if s == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, s)
	h.mu.Unlock()
}

// AttachViewer registers a new viewer and returns its ID and event channel.
// The channel is closed by DetachViewer.
func (h *Hub) AttachViewer() (string, <-chan Event) {
	v := &viewer{
		id:     uuid.NewString(),
		events: make(chan Event, h.queueSize),
	}
	h.mu.Lock()
	h.viewers[v.id] = v
	n := len(h.viewers)
	h.mu.Unlock()
	log.Debug().Str("component", "relay").Str("viewer_id", v.id).Int("viewers", n).Msg("viewer attached")
	return v.id, v.events
}

// DetachViewer removes a viewer and closes its event channel. Idempotent.
func (h *Hub) DetachViewer(id string) {
	h.mu.Lock()
	v := h.viewers[id]
	if v != nil {
		delete(h.viewers, id)
		close(v.events)
	}
	h.mu.Unlock()
	if v == nil {
		return
	}
	log.Debug().Str("component", "relay").Str("viewer_id", id).Msg("viewer detached")
}

// Subscribe narrows a viewer's delivery to the given session. A viewer with
// no subscriptions receives every session's traffic.
func (h *Hub) Subscribe(viewerID, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.viewers[viewerID]
	if !ok {
		return
	}
	if v.scope == nil {
		v.scope = make(map[string]struct{})
	}
	v.scope[sessionID] = struct{}{}
}

// Run consumes the bus until ctx is cancelled or the bus closes.
func (h *Hub) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			ev, ok := h.bus.ConsumeInbound(ctx)
			if !ok {
				return
			}
			h.relayInbound(ctx, ev)
		}
	}()
	go func() {
		defer wg.Done()
		for {
			msg, ok := h.bus.ConsumeOutbound(ctx)
			if !ok {
				return
			}
			h.forwardOutbound(msg)
		}
	}()
	wg.Wait()
}

// OnInboundEvent decodes a raw chat payload and, when it resolves to
// renderable text, broadcasts it. Payloads that decode to nothing are dropped
// silently; a malformed payload never takes the hub down.
func (h *Hub) OnInboundEvent(ctx context.Context, sessionID string, payload []byte) {
	msg := chatfmt.Decode(payload)
	if len(msg) == 0 {
		return
	}
	h.broadcast(ctx, Event{SessionID: sessionID, Segments: msg})
}

// Forward sends viewer text to the identified session unmodified. An unknown
// or no-longer-live session is a routing miss: logged and dropped, never an
// error to the sender. The session may disappear between lookup and send;
// that is a drop as well.
func (h *Hub) Forward(id session.Identity, text string) {
	s, ok := h.registry.Lookup(id)
	if !ok {
		log.Debug().
			Str("component", "relay").
			Str("session_id", id.String()).
			Msg("routing miss, dropping outbound text")
		return
	}
	if err := s.Send(text); err != nil {
		log.Debug().
			Str("component", "relay").
			Str("session_id", id.String()).
			Err(err).
			Msg("send failed, dropping outbound text")
	}
}

func (h *Hub) relayInbound(ctx context.Context, ev bus.ChatEvent) {
	h.OnInboundEvent(ctx, ev.SessionID, ev.Payload)
}

func (h *Hub) forwardOutbound(msg bus.OutboundText) {
	id, ok := session.ParseID(msg.SessionID)
	if !ok {
		log.Debug().
			Str("component", "relay").
			Str("session_id", msg.SessionID).
			Msg("malformed session id, dropping outbound text")
		return
	}
	h.Forward(id, msg.Text)
}

func (h *Hub) broadcast(ctx context.Context, ev Event) {
	h.mu.Lock()
	sinks := append([]Sink(nil), h.sinks...)
	for _, v := range h.viewers {
		if v.scope != nil {
			if _, ok := v.scope[ev.SessionID]; !ok {
				continue
			}
		}
		select {
		case v.events <- ev:
		default:
			log.Warn().
				Str("component", "relay").
				Str("viewer_id", v.id).
				Str("session_id", ev.SessionID).
				Msg("viewer queue full, dropping event")
		}
	}
	h.mu.Unlock()

	for _, s := range sinks {
		go func(s Sink) {
			mctx, cancel := context.WithTimeout(ctx, sinkMirrorTimeout)
			defer cancel()
			if err := s.Mirror(mctx, ev); err != nil {
				log.Warn().
					Str("component", "relay").
					Str("sink", s.Name()).
					Str("session_id", ev.SessionID).
					Err(err).
					Msg("bridge mirror failed")
			}
		}(s)
	}
}
