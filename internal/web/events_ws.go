package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteWait = 10 * time.Second
	streamBuffer    = 64
	streamBacklog   = 20
)

// handleEventStream pushes the recent backlog and then every new event as
// JSON text frames until the client disconnects or the server shuts down.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Event stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := s.events.Subscribe(streamBuffer)
	defer unsubscribe()

	for _, event := range s.events.Recent(streamBacklog) {
		if err := s.writeFrame(conn, event); err != nil {
			return
		}
	}

	// Reads only detect the close; clients send nothing.
	disconnected := make(chan struct{})
	go func() {
		defer close(disconnected)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-s.closing:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(streamWriteWait))
			return
		case <-disconnected:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := s.writeFrame(conn, event); err != nil {
				s.logger.Debug("Event stream closed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(v)
}
