package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades to WebSocket, replays the latest report of every
// path and then streams new reports as JSON.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Subscribe before the replay so nothing published in between is lost.
	reports := s.hub.Subscribe()
	defer s.hub.Unsubscribe(reports)

	// Read pump: detect client disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, r := range s.hub.Reports() {
		if err := conn.WriteJSON(r); err != nil {
			s.log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}

	// Write pump: send reports as JSON.
	for {
		select {
		case <-gone:
			return
		case r, ok := <-reports:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"))
				return
			}
			if err := conn.WriteJSON(r); err != nil {
				s.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
