package gateway

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cobblechat/cobblechat/pkg/bus"
)

const wsWriteTimeout = 10 * time.Second

// viewerCommand is the viewer-to-relay message. Text is forwarded to the
// named session; Subscribe scopes this viewer to the named session instead
// of the global fan-out.
type viewerCommand struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text,omitempty"`
	Subscribe bool   `json:"subscribe,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	viewerID, events := s.hub.AttachViewer()
	s.logger.Info().Str("viewer", viewerID).Msg("viewer connected")

	defer func() {
		s.hub.DetachViewer(viewerID)
		_ = conn.Close()
		s.logger.Info().Str("viewer", viewerID).Msg("viewer disconnected")
	}()

	// Writer drains the viewer queue; it stops when DetachViewer closes the
	// channel or the connection breaks.
	go func() {
		for ev := range events {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug().Err(err).Str("viewer", viewerID).Msg("viewer write failed")
				return
			}
		}
	}()

	for {
		var cmd viewerCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug().Err(err).Str("viewer", viewerID).Msg("viewer read failed")
			}
			return
		}

		switch {
		case cmd.Subscribe:
			s.hub.Subscribe(viewerID, cmd.SessionID)
		case cmd.SessionID != "" && cmd.Text != "":
			err := s.bus.PublishOutbound(r.Context(), bus.OutboundText{
				SessionID: cmd.SessionID,
				Text:      cmd.Text,
			})
			if err != nil {
				s.logger.Debug().Err(err).Str("viewer", viewerID).Msg("outbound publish failed")
				return
			}
		}
	}
}
