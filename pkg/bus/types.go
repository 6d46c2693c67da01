package bus

import "encoding/json"

// ChatEvent is one inbound chat payload emitted by a live bot session. The
// payload is still encoded (legacy string or JSON component tree); decoding
// happens in the relay hub.
type ChatEvent struct {
	SessionID string          `json:"session_id"`
	Payload   json.RawMessage `json:"payload"`
}

// OutboundText is one viewer-submitted message bound for a bot session. Text
// is forwarded to the remote host unmodified.
type OutboundText struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}
