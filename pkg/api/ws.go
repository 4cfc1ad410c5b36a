package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin enforcement happens in the CORS middleware; the upgrade itself
	// accepts any origin so non-browser clients can connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleEventsWS upgrades the connection and streams content-change events
// until the client disconnects. Events a slow client cannot keep up with are
// dropped by the hub, never buffered unboundedly.
func (s *Server) HandleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	id, events := s.hub.Register()
	defer s.hub.Unregister(id)
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debugf("closing websocket: %v", err)
		}
	}()

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice disconnects and process control frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debugf("websocket write failed: %v", err)
				return
			}
		case <-ping.C:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
