package relay

import (
	"context"

	"github.com/cobblechat/cobblechat/pkg/chatfmt"
)

// Event is one decoded chat line attributed to its originating session. This
// is the exact shape delivered to viewer transports.
type Event struct {
	SessionID string          `json:"sessionId"`
	Segments  chatfmt.Message `json:"segments"`
}

// Sink receives every relayed event alongside the websocket viewers. Bridges
// to external chat platforms implement this. Mirror is called on its own
// goroutine per event; a slow sink never blocks viewer delivery.
type Sink interface {
	Name() string
	Mirror(ctx context.Context, ev Event) error
}
