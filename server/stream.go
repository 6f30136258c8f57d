package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dmora/agentdeck"
	"github.com/dmora/agentdeck/filter"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Local daemon; the UI connects from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades to a WebSocket and relays the project's live
// frames. Pass ?deltas=0 to receive only tool and terminal frames.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	accept := func(agentdeck.EventKind) bool { return true }
	if r.URL.Query().Get("deltas") == "0" {
		accept = filter.Kinds(
			agentdeck.EventToolStart,
			agentdeck.EventToolEnd,
			agentdeck.EventDone,
			agentdeck.EventError,
		)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	sub := s.hub.Subscribe(projectID)
	defer sub.Close()
	defer conn.Close()

	s.log.Debug("stream subscriber attached", zap.String("project_id", projectID))

	// Reader: consume control frames and detect client close.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sub.C():
			if !ok {
				return
			}
			if !accept(frame.Type) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				s.log.Debug("stream write failed",
					zap.String("project_id", projectID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}
