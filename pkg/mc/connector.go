// Package mc defines the boundary to the underlying Minecraft connection
// library. The relay core only ever sees these interfaces; the protocol
// handshake, packet codec, and credential exchange live behind them.
package mc

import (
	"context"
	"encoding/json"
	"errors"
)

// AuthMode selects how a connection authenticates with the remote host.
type AuthMode string

const (
	// AuthMicrosoft uses a cached Microsoft device-code credential.
	AuthMicrosoft AuthMode = "microsoft"
	// AuthOffline connects without authentication (offline-mode servers).
	AuthOffline AuthMode = "offline"
)

// ErrHandleClosed is returned by Send after the handle has been closed.
var ErrHandleClosed = errors.New("connection handle closed")

// Connector establishes an authenticated session with a remote host.
type Connector interface {
	Connect(ctx context.Context, destination, owner string, mode AuthMode) (Handle, error)
}

// Handle is one live remote connection. Chat delivers raw chat payloads
// (legacy strings or JSON component trees, still encoded) as they arrive;
// Terminated delivers at most one value when the remote side ends the
// session. Both channels are closed when the handle closes.
type Handle interface {
	Send(text string) error
	Chat() <-chan json.RawMessage
	Terminated() <-chan error
	Close() error
}
