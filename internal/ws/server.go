package ws

import (
	"net/http"

	"parley/internal/logging"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type ServerConfig struct {
	// AllowedOrigins restricts the Origin header of upgrade requests. Empty
	// allows any origin.
	AllowedOrigins []string
	MaxFrameBytes  int64
}

type Server struct {
	hub      messageHub
	outbox   *Outbox
	upgrader *websocket.Upgrader
	maxFrame int64
	logger   zerolog.Logger
}

func NewServer(hub messageHub, outbox *Outbox, cfg ServerConfig, logger zerolog.Logger) *Server {
	return &Server{
		hub:    hub,
		outbox: outbox,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(cfg.AllowedOrigins) == 0 || lo.Contains(cfg.AllowedOrigins, origin)
			},
		},
		maxFrame: cfg.MaxFrameBytes,
		logger:   logging.Component(logger, "ws"),
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	if s.maxFrame > 0 {
		ws.SetReadLimit(s.maxFrame)
	}

	id := uuid.NewString()
	log := s.logger.With().Str(logging.FieldConnection, id).Logger()
	log.Debug().Str("remote", r.RemoteAddr).Msg("connection opened")

	conn := NewConnection(s.hub, s.outbox, ws, id, s.logger)
	if err := conn.Handle(r.Context()); err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Debug().Err(err).Msg("connection ended")
		return
	}
	log.Debug().Msg("connection closed")
}

// Close ends every open connection.
func (s *Server) Close() {
	s.outbox.CloseAll()
}
