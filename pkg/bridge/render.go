package bridge

import (
	"strings"
	"unicode"

	"github.com/cobblechat/cobblechat/pkg/chatfmt"
)

// RenderPlain flattens a message to bare text, style and color dropped.
func RenderPlain(msg chatfmt.Message) string {
	var b strings.Builder
	for _, seg := range msg {
		b.WriteString(seg.Text)
	}
	return b.String()
}

// RenderMarkdown renders a message with Markdown-style inline markup
// (Discord, Telegram). Colors have no Markdown equivalent and are dropped.
func RenderMarkdown(msg chatfmt.Message) string {
	var b strings.Builder
	for _, seg := range msg {
		b.WriteString(renderSegment(seg, func(s chatfmt.Segment, core string) string {
			if s.Strikethrough {
				core = "~~" + core + "~~"
			}
			if s.Underlined {
				core = "__" + core + "__"
			}
			if s.Italic {
				core = "*" + core + "*"
			}
			if s.Bold {
				core = "**" + core + "**"
			}
			return core
		}))
	}
	return b.String()
}

// RenderMrkdwn renders a message with Slack's mrkdwn markup.
func RenderMrkdwn(msg chatfmt.Message) string {
	var b strings.Builder
	for _, seg := range msg {
		b.WriteString(renderSegment(seg, func(s chatfmt.Segment, core string) string {
			if s.Strikethrough {
				core = "~" + core + "~"
			}
			if s.Italic {
				core = "_" + core + "_"
			}
			if s.Bold {
				core = "*" + core + "*"
			}
			return core
		}))
	}
	return b.String()
}

// renderSegment applies markup to the trimmed core of the segment text,
// keeping surrounding whitespace outside the markers so platforms parse the
// markup correctly.
func renderSegment(seg chatfmt.Segment, wrap func(chatfmt.Segment, string) string) string {
	core := strings.TrimSpace(seg.Text)
	if core == "" {
		return seg.Text
	}
	lead := seg.Text[:len(seg.Text)-len(strings.TrimLeftFunc(seg.Text, unicode.IsSpace))]
	trail := seg.Text[len(lead)+len(core):]
	return lead + wrap(seg, core) + trail
}
