// Package session tracks live bot sessions, one per (owner, destination)
// identity. The Registry owns every connection handle exclusively: nothing
// outside this package holds or outlives a handle.
package session

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cobblechat/cobblechat/pkg/mc"
)

// State is the lifecycle state of a Session. Transitions only move forward:
// Connecting -> Live -> Closed, with Connecting -> Closed on immediate
// connection failure.
type State int32

const (
	StateConnecting State = iota
	StateLive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotLive is returned by Send when the session is not in the Live state.
var ErrNotLive = errors.New("session not live")

// Session is one live remote connection plus its identity.
type Session struct {
	identity Identity
	state    atomic.Int32

	mu     sync.Mutex
	handle mc.Handle
}

func newSession(id Identity) *Session {
	s := &Session{identity: id}
	s.state.Store(int32(StateConnecting))
	return s
}

func (s *Session) Identity() Identity { return s.identity }

func (s *Session) State() State { return State(s.state.Load()) }

// Send forwards text to the remote host unmodified. Outbound text is never
// rich-text decoded.
func (s *Session) Send(text string) error {
	if s.State() != StateLive {
		return ErrNotLive
	}
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h == nil {
		return ErrNotLive
	}
	return h.Send(text)
}

// attach installs the handle and moves the session to Live. No-op if the
// session was closed while connecting.
func (s *Session) attach(h mc.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if State(s.state.Load()) == StateClosed {
		return false
	}
	s.handle = h
	s.state.Store(int32(StateLive))
	return true
}

// close moves the session to Closed and releases the handle. Idempotent.
func (s *Session) close() {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.state.Store(int32(StateClosed))
	s.mu.Unlock()
	if h != nil {
		_ = h.Close()
	}
}

// currentHandle returns the handle for the event pump; nil once closed.
func (s *Session) currentHandle() mc.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}
