// Package bridge mirrors relayed chat out to external platforms. Each bridge
// is a relay sink with a lifecycle; which sessions it mirrors is controlled
// by a per-bridge allowlist.
package bridge

import (
	"context"
	"sync/atomic"

	"github.com/cobblechat/cobblechat/pkg/relay"
)

// Bridge is a relay sink with start/stop lifecycle.
type Bridge interface {
	relay.Sink
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

// BaseBridge carries the state shared by all bridge implementations.
type BaseBridge struct {
	name     string
	sessions []string
	running  atomic.Bool
}

func NewBaseBridge(name string, sessions []string) *BaseBridge {
	return &BaseBridge{name: name, sessions: sessions}
}

func (b *BaseBridge) Name() string { return b.name }

func (b *BaseBridge) IsRunning() bool { return b.running.Load() }

func (b *BaseBridge) SetRunning(running bool) { b.running.Store(running) }

// ShouldMirror reports whether the session's traffic is mirrored by this
// bridge. An empty allowlist mirrors everything.
func (b *BaseBridge) ShouldMirror(sessionID string) bool {
	if len(b.sessions) == 0 {
		return true
	}
	for _, allowed := range b.sessions {
		if allowed == sessionID {
			return true
		}
	}
	return false
}
