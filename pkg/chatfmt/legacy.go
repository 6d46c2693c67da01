package chatfmt

import "strings"

// ParseLegacy decodes a string carrying legacy '§' format codes into
// segments. Text before the first marker becomes a default-styled segment.
// Each marker-delimited chunk is styled by its leading code character
// (case-insensitive): 0-9a-f select a fixed color, l/o/n/m set
// bold/italic/underlined/strikethrough, r resets to default. Style never
// carries over between chunks; every code starts a fresh segment.
//
// Unrecognized codes are not dropped: the marker and code character are
// prefixed back onto the chunk text as a plain segment. Chunks whose text is
// empty after removing the code produce no segment.
func ParseLegacy(s string) Message {
	parts := strings.Split(s, string(FormatMarker))
	if len(parts) == 1 {
		if s == "" {
			return nil
		}
		return Message{plain(s)}
	}

	var msg Message
	if parts[0] != "" {
		msg = append(msg, plain(parts[0]))
	}

	for _, part := range parts[1:] {
		if part == "" {
			// A bare marker with no code; keep it literally.
			msg = append(msg, plain(string(FormatMarker)))
			continue
		}
		code := lowerASCII(part[0])
		text := part[1:]

		switch {
		case legacyColorByCode[code] != "":
			if text == "" {
				continue
			}
			msg = append(msg, Segment{Text: text, Color: legacyColorByCode[code]})
		case code == 'l':
			if text == "" {
				continue
			}
			msg = append(msg, Segment{Text: text, Color: DefaultColor, Bold: true})
		case code == 'o':
			if text == "" {
				continue
			}
			msg = append(msg, Segment{Text: text, Color: DefaultColor, Italic: true})
		case code == 'n':
			if text == "" {
				continue
			}
			msg = append(msg, Segment{Text: text, Color: DefaultColor, Underlined: true})
		case code == 'm':
			if text == "" {
				continue
			}
			msg = append(msg, Segment{Text: text, Color: DefaultColor, Strikethrough: true})
		case code == 'r':
			if text == "" {
				continue
			}
			msg = append(msg, plain(text))
		default:
			// Unknown code: no silent data loss, restore the marker and the
			// original (un-lowercased) chunk verbatim.
			msg = append(msg, plain(string(FormatMarker)+part))
		}
	}

	return msg
}

func lowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
