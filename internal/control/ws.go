package control

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/crewrelay/internal/bus"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsEventBuffer  = 64
)

// handleWebSocket streams relay events to the client as JSON frames. Slow
// consumers drop events rather than stalling the bus.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "event feed unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	subID := "ws-" + uuid.NewString()
	events := make(chan bus.Event, wsEventBuffer)
	s.events.Subscribe(subID, func(e bus.Event) {
		select {
		case events <- e:
		default:
			// Buffer full; the client is too slow to keep the feed.
		}
	})

	slog.Debug("websocket subscriber connected", "id", subID, "remote", r.RemoteAddr)

	done := make(chan struct{})

	// Read loop exists only to detect the close.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		s.events.Unsubscribe(subID)
		conn.Close()
		slog.Debug("websocket subscriber disconnected", "id", subID)
	}()

	for {
		select {
		case <-done:
			return
		case e := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
