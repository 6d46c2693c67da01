package console

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/gorilla/websocket"
	"github.com/muesli/termenv"

	"github.com/cobblechat/cobblechat/pkg/chatfmt"
)

type chatEvent struct {
	SessionID string          `json:"sessionId"`
	Segments  chatfmt.Message `json:"segments"`
}

type viewerCommand struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text,omitempty"`
	Subscribe bool   `json:"subscribe,omitempty"`
}

func consoleCmd(gatewayURL, sessionID string, subscribe bool) error {
	wsURL, err := websocketURL(gatewayURL)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", wsURL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if subscribe {
		if err := conn.WriteJSON(viewerCommand{SessionID: sessionID, Subscribe: true}); err != nil {
			return fmt.Errorf("subscribing: %w", err)
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("[%s] > ", sessionID),
		HistoryFile:     filepath.Join(os.TempDir(), ".cobblechat_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	out := termenv.NewOutput(rl.Stdout())
	fmt.Fprintf(rl.Stdout(), "Connected to %s (session %s)\n", gatewayURL, sessionID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev chatEvent
			if err := conn.ReadJSON(&ev); err != nil {
				fmt.Fprintf(rl.Stdout(), "\nConnection closed: %v\n", err)
				return
			}
			fmt.Fprintf(rl.Stdout(), "[%s] %s\n", ev.SessionID, renderSegments(out, ev.Segments))
		}
	}()

	for {
		select {
		case <-done:
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("Goodbye!")
				return nil
			}
			return err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		if err := conn.WriteJSON(viewerCommand{SessionID: sessionID, Text: input}); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
	}
}

// websocketURL turns the gateway base URL into its /ws endpoint.
func websocketURL(gatewayURL string) (string, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return "", fmt.Errorf("invalid gateway URL %q: %w", gatewayURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid gateway URL scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// renderSegments maps decoded chat styling onto ANSI escapes.
func renderSegments(out *termenv.Output, msg chatfmt.Message) string {
	var sb strings.Builder
	profile := out.ColorProfile()
	for _, seg := range msg {
		s := out.String(seg.Text).Foreground(profile.Color(chatfmt.ResolveColor(seg.Color)))
		if seg.Bold {
			s = s.Bold()
		}
		if seg.Italic {
			s = s.Italic()
		}
		if seg.Underlined {
			s = s.Underline()
		}
		if seg.Strikethrough {
			s = s.CrossOut()
		}
		sb.WriteString(s.String())
	}
	return sb.String()
}
