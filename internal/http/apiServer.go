package http

import (
	"context"
	"net/http"
	"sync"

	"parley/internal/api"
	"parley/internal/logging"
	"parley/internal/ws"

	"github.com/rs/zerolog"
)

type APIServer struct {
	server *http.Server
	ws     *ws.Server
	logger zerolog.Logger
	wg     sync.WaitGroup
}

func NewAPIServer(apiHandlers *api.API, wsServer *ws.Server, addr string, logger zerolog.Logger) *APIServer {
	mux := http.NewServeMux()

	// Read-only API endpoints
	mux.HandleFunc("GET /healthz", apiHandlers.HealthHandler)
	mux.HandleFunc("GET /api/rooms", apiHandlers.RoomsHandler)
	mux.HandleFunc("GET /api/users", apiHandlers.UsersHandler)
	mux.HandleFunc("GET /api/rooms/{id}/messages", apiHandlers.RoomMessagesHandler)
	mux.HandleFunc("GET /api/archive/{id}", apiHandlers.ArchiveHandler)

	// WebSocket endpoint
	mux.HandleFunc("/ws", wsServer.HandleConnections)

	if addr == "" {
		addr = ":5000"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ws:     wsServer,
		logger: logging.Component(logger, "http"),
	}
}

func (s *APIServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("server started")
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes the open websockets, which
// the HTTP server does not track once upgraded.
func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	s.ws.Close()
	return s.server.Shutdown(ctx)
}
