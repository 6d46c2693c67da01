package chatfmt

import (
	"bytes"
	"encoding/json"
	"strings"
)

// component is the wire shape of one JSON chat-component node. A node is
// either a leaf (text plus style attributes), a parent carrying an extra
// array of children, or a wrapper exposing a parent under a nested json key.
type component struct {
	Text          string            `json:"text"`
	Color         string            `json:"color"`
	Bold          bool              `json:"bold"`
	Italic        bool              `json:"italic"`
	Underlined    bool              `json:"underlined"`
	Strikethrough bool              `json:"strikethrough"`
	Extra         []json.RawMessage `json:"extra"`
	JSON          *struct {
		Extra []json.RawMessage `json:"extra"`
	} `json:"json"`
}

// Decode turns a raw chat payload into a normalized Message. The payload is
// either a JSON string (possibly carrying legacy format codes) or a
// chat-component node. Decode never fails: malformed payloads and nodes that
// resolve to no renderable text yield an empty Message.
func Decode(raw json.RawMessage) Message {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		return ParseLegacy(s)
	}

	var node component
	if err := json.Unmarshal(trimmed, &node); err != nil {
		return nil
	}

	// Resolution order: nested json.extra, then extra, then the node itself
	// as a single leaf.
	switch {
	case node.JSON != nil && len(node.JSON.Extra) > 0:
		return flatten(node.JSON.Extra)
	case len(node.Extra) > 0:
		return flatten(node.Extra)
	case node.Text != "":
		return decodeLeaf(node)
	default:
		return nil
	}
}

// DecodeText is a convenience wrapper for payloads that are already plain Go
// strings rather than JSON documents.
func DecodeText(s string) Message {
	return ParseLegacy(s)
}

// flatten expands children depth-first, left-to-right. Each child goes back
// through the full Decode entry, so string children hit the legacy parser and
// nested parents recurse no deeper than the payload's own nesting.
func flatten(children []json.RawMessage) Message {
	var msg Message
	for _, child := range children {
		msg = append(msg, Decode(child)...)
	}
	return msg
}

// decodeLeaf produces the segments for a single leaf node. Leaf text that
// itself contains the format marker is re-parsed through the legacy path, and
// those segments inherit nothing from the leaf's own attributes: legacy codes
// win locally.
func decodeLeaf(node component) Message {
	if node.Text == "" {
		return nil
	}
	if strings.ContainsRune(node.Text, FormatMarker) {
		return ParseLegacy(node.Text)
	}
	return Message{{
		Text:          node.Text,
		Color:         ResolveColor(node.Color),
		Bold:          node.Bold,
		Italic:        node.Italic,
		Underlined:    node.Underlined,
		Strikethrough: node.Strikethrough,
	}}
}
