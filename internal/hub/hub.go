package hub

import (
	"fmt"
	"sort"
	"sync"

	"parley/internal/chat"
	"parley/internal/identity"
	"parley/internal/logging"
	"parley/internal/models"
	"parley/internal/rooms"
	"parley/internal/typing"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Emitter hands an outbound event to one connection. Implementations must not
// block: Emit is called while the hub lock is held.
type Emitter interface {
	Emit(connection string, event models.ServerEvent)
}

// Archiver receives every stored room and message state change.
// Implementations must not block.
type Archiver interface {
	ArchiveRoom(room models.Room)
	ArchiveMessage(msg models.Message)
}

type noopArchiver struct{}

func (noopArchiver) ArchiveRoom(models.Room)       {}
func (noopArchiver) ArchiveMessage(models.Message) {}

type Config struct {
	DefaultRoom   string
	Rooms         []string // public rooms opened at start, default room included
	HistoryCap    int
	SnapshotSize  int
	SearchLimit   int
	PreviewLength int
	PageLimitMax  int
	LastMessageID int64 // message ids continue after it
}

// Hub sequences every inbound event against the identity, room, message,
// reaction and typing stores and fans out the resulting events.
type Hub struct {
	mu sync.Mutex

	config     Config
	identities *identity.Registry
	rooms      *rooms.Directory
	ledger     *chat.Ledger
	typing     *typing.Aggregator
	subs       *subscriptions
	sessions   map[string]struct{}

	emitter  Emitter
	archiver Archiver
	logger   zerolog.Logger
}

// New creates a hub and opens the configured public rooms. A nil archiver
// disables archiving.
func New(config Config, emitter Emitter, archiver Archiver, logger zerolog.Logger) *Hub {
	if archiver == nil {
		archiver = noopArchiver{}
	}

	h := &Hub{
		config:     config,
		identities: identity.NewRegistry(),
		rooms:      rooms.NewDirectory(),
		ledger:     chat.New(chat.Config{MaxRecords: config.HistoryCap, LastID: config.LastMessageID}),
		typing:     typing.New(),
		subs:       newSubscriptions(),
		sessions:   make(map[string]struct{}),
		emitter:    emitter,
		archiver:   archiver,
		logger:     logging.Component(logger, "hub"),
	}

	for _, id := range lo.Uniq(append([]string{config.DefaultRoom}, config.Rooms...)) {
		room, created := h.rooms.EnsurePublicRoom(id, "")
		h.ledger.Open(room.ID)
		if created {
			h.archiver.ArchiveRoom(room)
		}
	}

	return h
}

// Connect registers a live connection. It receives global broadcasts from
// now on, but may not act until it joins.
func (h *Hub) Connect(connection string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[connection] = struct{}{}
	h.logger.Debug().Str(logging.FieldConnection, connection).Msg("connection registered")
}

// Disconnect releases everything the connection holds. Calling it twice is a
// no-op.
func (h *Hub) Disconnect(connection string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[connection]; !ok {
		return
	}
	delete(h.sessions, connection)
	subscribed := h.subs.drop(connection)

	id, joined := h.identities.Leave(connection)
	if !joined {
		h.logger.Debug().Str(logging.FieldConnection, connection).Msg("connection released before join")
		return
	}

	affected := lo.Uniq(append(subscribed, h.typing.Clear(id.ID)...))
	sort.Strings(affected)

	deliveries := make([]Delivery, 0, len(affected)+2)
	for _, roomID := range affected {
		deliveries = append(deliveries, deliver(toRoom(roomID), models.ServerEventTyping, models.TypingPayload{
			RoomID:      roomID,
			IdentityIDs: h.typing.Members(roomID),
		}))
	}

	online := h.identities.Snapshot()
	deliveries = append(deliveries,
		deliver(toEveryone(), models.ServerEventUserLeft, models.PresencePayload{Identity: id, OnlineUsers: online}),
		deliver(toEveryone(), models.ServerEventOnlineUsers, models.OnlineUsersPayload{OnlineUsers: online}),
	)

	h.logger.Info().
		Str(logging.FieldConnection, connection).
		Str(logging.FieldIdentity, id.ID).
		Str("displayName", id.DisplayName).
		Msg("identity left")

	h.emit(connection, deliveries)
}

// Dispatch handles one inbound event to completion. Failures are reported to
// the caller only and leave every store untouched.
func (h *Hub) Dispatch(connection string, event models.ClientEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	log := h.logger.With().
		Str(logging.FieldConnection, connection).
		Str(logging.FieldEvent, string(event.Type)).
		Logger()

	if _, ok := h.sessions[connection]; !ok {
		log.Warn().Msg("event from unknown connection dropped")
		return
	}

	deliveries, err := h.handle(connection, event)
	if err != nil {
		log.Debug().Err(err).Msg("event rejected")
		h.emitter.Emit(connection, errorEvent(err))
		return
	}

	log.Debug().Int("deliveries", len(deliveries)).Msg("event applied")
	h.emit(connection, deliveries)
}

func (h *Hub) handle(connection string, event models.ClientEvent) ([]Delivery, error) {
	switch event.Type {
	case models.ClientEventJoin:
		var req models.JoinRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.join(connection, req)
	case models.ClientEventJoinRoom:
		var req models.RoomRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.joinRoom(connection, req)
	case models.ClientEventLeaveRoom:
		var req models.RoomRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.leaveRoom(connection, req)
	case models.ClientEventCreateRoom:
		var req models.CreateRoomRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.createRoom(connection, req)
	case models.ClientEventSendMessage:
		var req models.SendMessageRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.sendMessage(connection, req)
	case models.ClientEventSendPrivateMessage:
		var req models.SendPrivateMessageRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.sendPrivateMessage(connection, req)
	case models.ClientEventTyping:
		var req models.TypingRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.setTyping(connection, req)
	case models.ClientEventAddReaction:
		var req models.ReactionRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.addReaction(connection, req)
	case models.ClientEventRemoveReaction:
		var req models.ReactionRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.removeReaction(connection, req)
	case models.ClientEventMarkRead:
		var req models.MessageRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.markRead(connection, req)
	case models.ClientEventLoadMessages:
		var req models.LoadMessagesRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.loadMessages(connection, req)
	case models.ClientEventSearchMessages:
		var req models.SearchMessagesRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.searchMessages(connection, req)
	case models.ClientEventGetReactions:
		var req models.MessageRequest
		if err := event.Decode(&req); err != nil {
			return nil, err
		}
		return h.getReactions(connection, req)
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", models.ErrValidation, event.Type)
	}
}

// emit resolves every delivery against the current state and hands the
// events to the emitter in order.
func (h *Hub) emit(caller string, deliveries []Delivery) {
	for _, d := range deliveries {
		for _, connection := range h.resolve(caller, d.To) {
			h.emitter.Emit(connection, d.Event)
		}
	}
}

func (h *Hub) resolve(caller string, a Audience) []string {
	var targets []string
	switch a.kind {
	case audienceCaller:
		targets = []string{caller}
	case audienceConnections:
		targets = a.connections
	case audienceRoom:
		targets = h.subs.members(a.roomID)
		if room, err := h.rooms.Get(a.roomID); err == nil && room.IsPrivate() {
			for _, name := range room.Participants {
				if id, err := h.identities.LookupByDisplayName(name); err == nil {
					targets = append(targets, id.Connection)
				}
			}
		}
	case audienceEveryone:
		targets = sortedKeys(h.sessions)
	}

	return lo.Filter(lo.Uniq(targets), func(c string, _ int) bool {
		if c == "" || c == a.except {
			return false
		}
		_, live := h.sessions[c]
		return live
	})
}

// PublicRooms lists the public rooms in creation order.
func (h *Hub) PublicRooms() []models.Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	return lo.Filter(h.rooms.List(), func(room models.Room, _ int) bool {
		return !room.IsPrivate()
	})
}

// OnlineUsers returns the online identities sorted by display name.
func (h *Hub) OnlineUsers() []models.Identity {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.identities.Snapshot()
}

// History pages through a public room. Private rooms are reported as not
// found.
func (h *Hub) History(roomID string, before *int64, limit int) (models.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, err := h.rooms.Get(roomID)
	if err != nil {
		return models.Page{}, err
	}
	if room.IsPrivate() {
		return models.Page{}, fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
	}
	return h.ledger.Page(room.ID, before, h.pageLimit(limit))
}

func (h *Hub) pageLimit(limit int) int {
	if limit <= 0 {
		return h.config.SnapshotSize
	}
	return min(limit, h.config.PageLimitMax)
}

// accessible returns the room when the identity may use it. Private rooms of
// other pairs are indistinguishable from missing ones.
func (h *Hub) accessible(id models.Identity, roomID string) (models.Room, error) {
	room, err := h.rooms.Get(roomID)
	if err != nil {
		return models.Room{}, err
	}
	if !rooms.CanAccess(room, id.DisplayName) {
		return models.Room{}, fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
	}
	return room, nil
}
