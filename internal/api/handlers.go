package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"parley/internal/logging"
	"parley/internal/models"

	"github.com/rs/zerolog"
)

// chatState is the read model of the live session state.
type chatState interface {
	PublicRooms() []models.Room
	OnlineUsers() []models.Identity
	History(roomID string, before *int64, limit int) (models.Page, error)
}

type archive interface {
	GetRoom(roomID string) (models.Room, error)
	ListMessages(roomID string, from, to int64) ([]models.Message, error)
}

type API struct {
	hub     chatState
	archive archive
	logger  zerolog.Logger
}

// New builds the read-only HTTP API. A nil archive disables the archive
// endpoint.
func New(hub chatState, archive archive, logger zerolog.Logger) *API {
	return &API{
		hub:     hub,
		archive: archive,
		logger:  logging.Component(logger, "api"),
	}
}

type HealthResponse struct {
	Status      string `json:"status"`
	OnlineUsers int    `json:"onlineUsers"`
	Archive     bool   `json:"archive"`
}

type ArchiveResponse struct {
	RoomID   string           `json:"roomId"`
	Messages []models.Message `json:"messages"`
}

func (a *API) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrRoomNotFound):
		http.Error(w, "Room not found", http.StatusNotFound)
	case errors.Is(err, models.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int64, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, false, errors.Join(models.ErrValidation, errors.New("invalid "+name))
	}
	return v, true, nil
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, HealthResponse{
		Status:      "ok",
		OnlineUsers: len(a.hub.OnlineUsers()),
		Archive:     a.archive != nil,
	})
}

func (a *API) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, a.hub.PublicRooms())
}

func (a *API) UsersHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, a.hub.OnlineUsers())
}

func (a *API) RoomMessagesHandler(w http.ResponseWriter, r *http.Request) {
	before, hasBefore, err := queryInt(r, "before")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var anchor *int64
	if hasBefore {
		anchor = &before
	}

	page, err := a.hub.History(r.PathValue("id"), anchor, int(limit))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, page)
}

func (a *API) ArchiveHandler(w http.ResponseWriter, r *http.Request) {
	if a.archive == nil {
		http.Error(w, "Archive disabled", http.StatusNotFound)
		return
	}

	from, _, err := queryInt(r, "from")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	to, _, err := queryInt(r, "to")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	roomID := r.PathValue("id")
	room, err := a.archive.GetRoom(roomID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if room.IsPrivate() {
		a.writeError(w, r, models.ErrRoomNotFound)
		return
	}

	messages, err := a.archive.ListMessages(roomID, from, to)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeJSON(w, ArchiveResponse{RoomID: roomID, Messages: messages})
}
