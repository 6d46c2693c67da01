package mc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// LoopbackConnector is an in-process Connector for development and tests. It
// performs no network I/O: every connected handle greets the owner with a
// server-styled message and echoes sent chat back as inbound chat events, so
// the full decode-and-relay path can be exercised without a real server.
type LoopbackConnector struct{}

// NewLoopbackConnector returns a LoopbackConnector.
func NewLoopbackConnector() *LoopbackConnector {
	return &LoopbackConnector{}
}

func (c *LoopbackConnector) Connect(ctx context.Context, destination, owner string, mode AuthMode) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := &loopbackHandle{
		owner:      owner,
		dest:       destination,
		chat:       make(chan json.RawMessage, 16),
		terminated: make(chan error, 1),
	}
	log.Debug().
		Str("component", "mc").
		Str("destination", destination).
		Str("owner", owner).
		Str("auth", string(mode)).
		Msg("loopback connection established")

	greeting, _ := json.Marshal(map[string]any{
		"extra": []any{
			map[string]any{"text": "[", "color": "gray"},
			map[string]any{"text": destination, "color": "gold"},
			map[string]any{"text": "] ", "color": "gray"},
			map[string]any{"text": "Welcome, " + owner, "color": "green"},
		},
	})
	h.chat <- greeting
	return h, nil
}

type loopbackHandle struct {
	owner      string
	dest       string
	chat       chan json.RawMessage
	terminated chan error

	mu     sync.Mutex
	closed bool
}

func (h *loopbackHandle) Send(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHandleClosed
	}
	echo, err := json.Marshal(fmt.Sprintf("§7%s§r %s", h.owner+":", text))
	if err != nil {
		return err
	}
	select {
	case h.chat <- echo:
	default:
		// Nobody draining; drop rather than block the sender.
	}
	return nil
}

func (h *loopbackHandle) Chat() <-chan json.RawMessage { return h.chat }

func (h *loopbackHandle) Terminated() <-chan error { return h.terminated }

func (h *loopbackHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.chat)
	close(h.terminated)
	return nil
}
