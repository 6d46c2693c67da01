package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/cobblechat/cobblechat/pkg/bus"
	"github.com/cobblechat/cobblechat/pkg/mc"
)

var (
	// ErrAlreadyExists is returned by Create when the identity already has a
	// registered session. The existing session is returned alongside it.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrInvalidIdentity is returned by Create for empty owner or destination.
	ErrInvalidIdentity = errors.New("invalid session identity")
)

// Registry maps session identities to live sessions. It has an explicit
// lifecycle: construct at service start, CloseAll at shutdown. The map mutex
// is held only for map mutation, never across a connect or disconnect call.
type Registry struct {
	connector mc.Connector
	authMode  mc.AuthMode
	bus       *bus.MessageBus

	mu       sync.Mutex
	sessions map[Identity]*Session

	// OnClosed, if set, is invoked after a session leaves the registry
	// because its connection terminated remotely.
	OnClosed func(id Identity, reason error)
}

// NewRegistry returns an empty registry. Sessions created through it publish
// their inbound chat events to b.
func NewRegistry(connector mc.Connector, authMode mc.AuthMode, b *bus.MessageBus) *Registry {
	return &Registry{
		connector: connector,
		authMode:  authMode,
		bus:       b,
		sessions:  make(map[Identity]*Session),
	}
}

// Create opens a session for the identity. Duplicate creates are rejected
// with ErrAlreadyExists and the existing session, without opening a second
// connection. A failed or cancelled connect leaves no partial session
// registered. The caller bounds connect time through ctx.
func (r *Registry) Create(ctx context.Context, id Identity) (*Session, error) {
	if id.Owner == "" || id.Destination == "" {
		return nil, ErrInvalidIdentity
	}

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return existing, ErrAlreadyExists
	}
	s := newSession(id)
	r.sessions[id] = s
	r.mu.Unlock()

	handle, err := r.connector.Connect(ctx, id.Destination, id.Owner, r.authMode)
	if err != nil {
		s.close()
		r.deleteIfSame(id, s)
		return nil, fmt.Errorf("connecting %s to %s: %w", id.Owner, id.Destination, err)
	}

	if !s.attach(handle) {
		// Removed while connecting; the handle must not leak.
		_ = handle.Close()
		r.deleteIfSame(id, s)
		return nil, fmt.Errorf("connecting %s to %s: session removed during connect", id.Owner, id.Destination)
	}

	go r.pump(s)

	log.Info().
		Str("component", "session").
		Str("session_id", id.String()).
		Msg("session live")
	return s, nil
}

// Lookup returns the session for the identity, exact match only.
func (r *Registry) Lookup(id Identity) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove releases the session and closes its connection handle. Removing an
// unknown identity is a no-op.
func (r *Registry) Remove(id Identity) {
	r.mu.Lock()
	s := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if s == nil {
		return
	}
	s.close()
	log.Info().
		Str("component", "session").
		Str("session_id", id.String()).
		Msg("session removed")
}

// List returns a snapshot of all registered sessions.
func (r *Registry) List() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// CloseAll drains the registry at shutdown, closing every live session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	drained := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		drained = append(drained, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range drained {
		s.close()
	}
}

func (r *Registry) deleteIfSame(id Identity, s *Session) {
	r.mu.Lock()
	if r.sessions[id] == s {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
}

// pump forwards the handle's chat events onto the bus until the handle
// closes or the remote side terminates the session.
func (r *Registry) pump(s *Session) {
	h := s.currentHandle()
	if h == nil {
		return
	}
	id := s.identity
	for {
		select {
		case raw, ok := <-h.Chat():
			if !ok {
				return
			}
			if err := r.bus.PublishInbound(context.Background(), bus.ChatEvent{
				SessionID: id.String(),
				Payload:   raw,
			}); err != nil {
				log.Debug().
					Str("component", "session").
					Str("session_id", id.String()).
					Err(err).
					Msg("dropping inbound chat event")
				return
			}
		case reason, ok := <-h.Terminated():
			if !ok {
				return
			}
			log.Warn().
				Str("component", "session").
				Str("session_id", id.String()).
				Err(reason).
				Msg("session terminated by remote")
			r.Remove(id)
			if r.OnClosed != nil {
				r.OnClosed(id, reason)
			}
			return
		}
	}
}
