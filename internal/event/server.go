// Package event streams the domain event bus to websocket clients, so
// dashboards and indexers can follow permission, delegation, and swap
// activity live.
package event

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/chainagent/chainagent/internal/eventbus"
)

const subscriberBuffer = 64

// Server upgrades connections and forwards every bus event as a JSON
// text message. Each connection gets its own bus subscription; a slow
// client drops events rather than backing up publishers.
type Server struct {
	bus      *eventbus.Bus
	upgrader websocket.Upgrader
}

func NewServer(bus *eventbus.Bus) *Server {
	return &Server{
		bus: bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/events", s.stream)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	id, events := s.bus.Subscribe(subscriberBuffer)
	defer s.bus.Unsubscribe(id)
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain client frames to detect disconnects; inbound content is
	// ignored.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				slog.DebugContext(ctx, "websocket write failed, dropping client", "error", err)
				return
			}
		}
	}
}
