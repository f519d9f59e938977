package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/civicflow/civicflow/internal/eventbus"
	"github.com/civicflow/civicflow/internal/util"
)

// writeTimeout bounds a single websocket write.
const writeTimeout = 5 * time.Second

// watchComplaint streams the live events of one tracking code as JSON
// messages until the client goes away.
func (s *Server) watchComplaint(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !util.IsTrackingCode(code) {
		writeError(w, http.StatusBadRequest, "malformed tracking code")
		return
	}
	if s.deps.Bus == nil {
		s.unavailable(w, "live updates")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "tracking_code", code, "error", err)
		return
	}
	defer conn.CloseNow()

	sub := s.deps.Bus.Watch(code)
	defer sub.Close()

	// Clients only listen; CloseRead handles their close frame.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := s.send(ctx, conn, evt); err != nil {
				s.logger.Debug("websocket write failed", "tracking_code", code, "error", err)
				return
			}
		}
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, evt eventbus.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, evt)
}
