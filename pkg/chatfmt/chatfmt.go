// Package chatfmt decodes Minecraft chat payloads into a normalized sequence
// of styled text segments.
//
// Two encodings occur in the wild, often nested inside each other: the legacy
// inline format (a '§' marker followed by a single color or style code) and
// the JSON chat-component tree (leaves with text/color/style attributes and
// optional child arrays). Both are flattened into the same Segment model so
// transports and bridges never have to know which encoding produced a line.
package chatfmt

// FormatMarker is the reserved control character that introduces a legacy
// inline format code.
const FormatMarker = '§'

// DefaultColor is the color applied to segments that carry no explicit color.
const DefaultColor = "#FFFFFF"

// Segment is the minimal unit of uniformly-styled text in a decoded message.
// Segments are immutable once produced.
type Segment struct {
	Text          string `json:"text"`
	Color         string `json:"color"`
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Underlined    bool   `json:"underlined,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
}

// Message is one decoded chat line. Order is significant: render order is
// decode order. An empty Message means "nothing to display" and callers must
// drop it silently rather than emit an empty line.
type Message []Segment

// plain returns a segment with default styling.
func plain(text string) Segment {
	return Segment{Text: text, Color: DefaultColor}
}

// legacyColorByCode maps the 16 legacy single-character color codes to RGB.
var legacyColorByCode = map[byte]string{
	'0': "#000000", // black
	'1': "#0000AA", // dark_blue
	'2': "#00AA00", // dark_green
	'3': "#00AAAA", // dark_aqua
	'4': "#AA0000", // dark_red
	'5': "#AA00AA", // dark_purple
	'6': "#FFAA00", // gold
	'7': "#AAAAAA", // gray
	'8': "#555555", // dark_gray
	'9': "#5555FF", // blue
	'a': "#55FF55", // green
	'b': "#55FFFF", // aqua
	'c': "#FF5555", // red
	'd': "#FF55FF", // light_purple
	'e': "#FFFF55", // yellow
	'f': "#FFFFFF", // white
}

// colorByName maps component color names to the same 16 RGB values.
var colorByName = map[string]string{
	"black":        "#000000",
	"dark_blue":    "#0000AA",
	"dark_green":   "#00AA00",
	"dark_aqua":    "#00AAAA",
	"dark_red":     "#AA0000",
	"dark_purple":  "#AA00AA",
	"gold":         "#FFAA00",
	"gray":         "#AAAAAA",
	"dark_gray":    "#555555",
	"blue":         "#5555FF",
	"green":        "#55FF55",
	"aqua":         "#55FFFF",
	"red":          "#FF5555",
	"light_purple": "#FF55FF",
	"yellow":       "#FFFF55",
	"white":        "#FFFFFF",
}

// ResolveColor maps a component color value to RGB: named colors go through
// the 16-entry table, unknown non-empty values pass through unresolved, and
// an absent value falls back to DefaultColor.
func ResolveColor(value string) string {
	if rgb, ok := colorByName[value]; ok {
		return rgb
	}
	if value != "" {
		return value
	}
	return DefaultColor
}
