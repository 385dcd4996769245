package hub

import (
	"fmt"
	"strings"

	"parley/internal/content"
	"parley/internal/logging"
	"parley/internal/models"
	"parley/internal/reactions"
)

func (h *Hub) join(connection string, req models.JoinRequest) ([]Delivery, error) {
	defaultRoom := h.config.DefaultRoom
	page, err := h.ledger.Page(defaultRoom, nil, h.config.SnapshotSize)
	if err != nil {
		return nil, err
	}

	id, err := h.identities.Join(connection, req.DisplayName)
	if err != nil {
		return nil, err
	}
	h.subs.add(connection, defaultRoom)
	online := h.identities.Snapshot()

	h.logger.Info().
		Str(logging.FieldConnection, connection).
		Str(logging.FieldIdentity, id.ID).
		Str("displayName", id.DisplayName).
		Msg("identity joined")

	return []Delivery{
		deliver(toCaller(), models.ServerEventJoined, models.JoinedPayload{
			Identity:    id,
			Rooms:       h.rooms.Visible(id.DisplayName),
			OnlineUsers: online,
		}),
		deliver(toCaller(), models.ServerEventMessages, models.MessagesPayload{
			RoomID:   defaultRoom,
			Messages: page.Messages,
			HasMore:  page.HasMore,
		}),
		deliver(toRoom(defaultRoom).butNot(connection), models.ServerEventUserJoined, models.PresencePayload{
			Identity:    id,
			RoomID:      defaultRoom,
			OnlineUsers: online,
		}),
		deliver(toEveryone(), models.ServerEventOnlineUsers, models.OnlineUsersPayload{OnlineUsers: online}),
	}, nil
}

func (h *Hub) joinRoom(connection string, req models.RoomRequest) ([]Delivery, error) {
	id, err := h.identities.LookupByConnection(connection)
	if err != nil {
		return nil, err
	}
	room, err := h.accessible(id, req.RoomID)
	if err != nil {
		return nil, err
	}
	page, err := h.ledger.Page(room.ID, nil, h.config.SnapshotSize)
	if err != nil {
		return nil, err
	}

	deliveries := []Delivery{
		deliver(toCaller(), models.ServerEventMessages, models.MessagesPayload{
			RoomID:   room.ID,
			Messages: page.Messages,
			HasMore:  page.HasMore,
		}),
	}
	if h.subs.add(connection, room.ID) {
		deliveries = append(deliveries, deliver(toRoom(room.ID).butNot(connection), models.ServerEventUserJoined, models.PresencePayload{
			Identity: id,
			RoomID:   room.ID,
		}))
	}
	return deliveries, nil
}

func (h *Hub) leaveRoom(connection string, req models.RoomRequest) ([]Delivery, error) {
	id, err := h.identities.LookupByConnection(connection)
	if err != nil {
		return nil, err
	}
	room, err := h.accessible(id, req.RoomID)
	if err != nil {
		return nil, err
	}
	if !h.subs.remove(connection, room.ID) {
		return nil, nil
	}

	var deliveries []Delivery
	if members, changed := h.typing.SetTyping(room.ID, id.ID, false); changed {
		deliveries = append(deliveries, deliver(toRoom(room.ID), models.ServerEventTyping, models.TypingPayload{
			RoomID:      room.ID,
			IdentityIDs: members,
		}))
	}
	return append(deliveries, deliver(toRoom(room.ID).butNot(connection), models.ServerEventUserLeft, models.PresencePayload{
		Identity: id,
		RoomID:   room.ID,
	})), nil
}

func (h *Hub) createRoom(connection string, req models.CreateRoomRequest) ([]Delivery, error) {
	id, err := h.identities.LookupByConnection(connection)
	if err != nil {
		return nil, err
	}
	room, err := h.rooms.CreateRoom(req.Name, req.Visibility, id)
	if err != nil {
		return nil, err
	}
	h.ledger.Open(room.ID)
	h.archiver.ArchiveRoom(room)
	h.subs.add(connection, room.ID)

	h.logger.Info().
		Str(logging.FieldIdentity, id.ID).
		Str(logging.FieldRoom, room.ID).
		Str("name", room.Name).
		Msg("room created")

	return []Delivery{
		deliver(toEveryone(), models.ServerEventRoomCreated, models.RoomCreatedPayload{Room: room}),
		deliver(toCaller(), models.ServerEventMessages, models.MessagesPayload{
			RoomID:   room.ID,
			Messages: []models.Message{},
		}),
	}, nil
}

func (h *Hub) sendMessage(connection string, req models.SendMessageRequest) ([]Delivery, error) {
	id, err := h.identities.LookupByConnection(connection)
	if err != nil {
		return nil, err
	}
	room, err := h.accessible(id, req.RoomID)
	if err != nil {
		return nil, err
	}
	body, err := content.NormalizeBody(req.Body)
	if err != nil {
		return nil, err
	}
	return h.post(id, room, body)
}

func (h *Hub) sendPrivateMessage(connection string, req models.SendPrivateMessageRequest) ([]Delivery, error) {
	sender, err := h.identities.LookupByConnection(connection)
	if err != nil {
		return nil, err
	}
	recipient, err := h.identities.LookupByDisplayName(strings.TrimSpace(req.RecipientDisplayName))
	if err != nil {
		return nil, err
	}
	if recipient.DisplayName == sender.DisplayName {
		return nil, fmt.Errorf("%w: cannot message yourself", models.ErrValidation)
	}
	body, err := content.NormalizeBody(req.Body)
	if err != nil {
		return nil, err
	}

	room, created, err := h.rooms.EnsurePrivateRoom(sender, recipient)
	if err != nil {
		return nil, err
	}

	var deliveries []Delivery
	if created {
		h.ledger.Open(room.ID)
		h.archiver.ArchiveRoom(room)
		deliveries = append(deliveries, deliver(toConnections(sender.Connection, recipient.Connection), models.ServerEventRoomCreated, models.RoomCreatedPayload{Room: room}))
	}

	posted, err := h.post(sender, room, body)
	if err != nil {
		return nil, err
	}
	return append(deliveries, posted...), nil
}

// post appends the message and builds its fan-out: the ack for the author,
// the message for the room audience, the author's typing reset and the
// out-of-room notifications.
func (h *Hub) post(author models.Identity, room models.Room, body models.Body) ([]Delivery, error) {
	msg, err := h.ledger.Append(room.ID, models.Message{
		AuthorID:          author.ID,
		AuthorDisplayName: author.DisplayName,
		Body:              body,
	})
	if err != nil {
		return nil, err
	}
	h.archiver.ArchiveMessage(msg.Clone())

	deliveries := []Delivery{
		deliver(toCaller(), models.ServerEventMessageSent, models.MessageSentPayload{MessageID: msg.ID, RoomID: room.ID}),
		deliver(toRoom(room.ID), models.ServerEventNewMessage, models.NewMessagePayload{Message: msg}),
	}

	if members, changed := h.typing.SetTyping(room.ID, author.ID, false); changed {
		deliveries = append(deliveries, deliver(toRoom(room.ID), models.ServerEventTyping, models.TypingPayload{
			RoomID:      room.ID,
			IdentityIDs: members,
		}))
	}

	notification := models.NotificationPayload{
		Kind:    models.NotificationNewMessage,
		RoomID:  room.ID,
		Sender:  author.DisplayName,
		Preview: content.Preview(body, h.config.PreviewLength),
	}
	var notified []string
	if room.IsPrivate() {
		notification.Kind = models.NotificationPrivateMessage
		for _, name := range room.Participants {
			if name == author.DisplayName {
				continue
			}
			if peer, err := h.identities.LookupByDisplayName(name); err == nil {
				notified = append(notified, peer.Connection)
			}
		}
	} else {
		for _, peer := range h.identities.Snapshot() {
			if peer.ID != author.ID && !h.subs.has(peer.Connection, room.ID) {
				notified = append(notified, peer.Connection)
			}
		}
	}
	if len(notified) > 0 {
		deliveries = append(deliveries, deliver(toConnections(notified...), models.ServerEventNotification, notification))
	}

	return deliveries, nil
}

func (h *Hub) setTyping(connection string, req models.TypingRequest) ([]Delivery, error) {
	id, err := h.identities.LookupByConnection(connection)
	if err != nil {
		return nil, err
	}
	room, err := h.accessible(id, req.RoomID)
	if err != nil {
		return nil, err
	}

	members, changed := h.typing.SetTyping(room.ID, id.ID, *req.IsTyping)
	if !changed {
		return nil, nil
	}
	return []Delivery{
		deliver(toRoom(room.ID), models.ServerEventTyping, models.TypingPayload{
			RoomID:      room.ID,
			IdentityIDs: members,
		}),
	}, nil
}

// locate resolves the stored message an identity wants to act on.
func (h *Hub) locate(connection, roomID string, messageID int64) (models.Identity, *models.Message, error) {
	id, err := h.identities.LookupByConnection(connection)
	if err != nil {
		return models.Identity{}, nil, err
	}
	room, err := h.accessible(id, roomID)
	if err != nil {
		return models.Identity{}, nil, err
	}
	msg, err := h.ledger.Find(room.ID, messageID)
	if err != nil {
		return models.Identity{}, nil, err
	}
	return id, msg, nil
}

func reactionSymbol(symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", fmt.Errorf("%w: empty reaction symbol", models.ErrValidation)
	}
	return symbol, nil
}

func (h *Hub) addReaction(connection string, req models.ReactionRequest) ([]Delivery, error) {
	id, msg, err := h.locate(connection, req.RoomID, req.MessageID)
	if err != nil {
		return nil, err
	}
	symbol, err := reactionSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	if !reactions.AddReaction(msg, symbol, id.ID) {
		return nil, nil
	}
	h.archiver.ArchiveMessage(msg.Clone())

	return []Delivery{
		deliver(toRoom(msg.RoomID), models.ServerEventReactionAdded, models.ReactionPayload{
			MessageID:  msg.ID,
			RoomID:     msg.RoomID,
			Symbol:     symbol,
			IdentityID: id.ID,
		}),
	}, nil
}

func (h *Hub) removeReaction(connection string, req models.ReactionRequest) ([]Delivery, error) {
	id, msg, err := h.locate(connection, req.RoomID, req.MessageID)
	if err != nil {
		return nil, err
	}
	symbol, err := reactionSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	if !reactions.RemoveReaction(msg, symbol, id.ID) {
		return nil, nil
	}
	h.archiver.ArchiveMessage(msg.Clone())

	return []Delivery{
		deliver(toRoom(msg.RoomID), models.ServerEventReactionRemoved, models.ReactionPayload{
			MessageID:  msg.ID,
			RoomID:     msg.RoomID,
			Symbol:     symbol,
			IdentityID: id.ID,
		}),
	}, nil
}

func (h *Hub) markRead(connection string, req models.MessageRequest) ([]Delivery, error) {
	id, msg, err := h.locate(connection, req.RoomID, req.MessageID)
	if err != nil {
		return nil, err
	}
	if !reactions.MarkRead(msg, id.ID) {
		return nil, nil
	}
	h.archiver.ArchiveMessage(msg.Clone())

	return []Delivery{
		deliver(toRoom(msg.RoomID), models.ServerEventMessageRead, models.MessageReadPayload{
			MessageID:  msg.ID,
			RoomID:     msg.RoomID,
			IdentityID: id.ID,
		}),
	}, nil
}

func (h *Hub) getReactions(connection string, req models.MessageRequest) ([]Delivery, error) {
	_, msg, err := h.locate(connection, req.RoomID, req.MessageID)
	if err != nil {
		return nil, err
	}
	return []Delivery{
		deliver(toCaller(), models.ServerEventReactions, models.ReactionsPayload{
			MessageID: msg.ID,
			RoomID:    msg.RoomID,
			Reactions: reactions.Snapshot(msg),
		}),
	}, nil
}

func (h *Hub) loadMessages(connection string, req models.LoadMessagesRequest) ([]Delivery, error) {
	id, err := h.identities.LookupByConnection(connection)
	if err != nil {
		return nil, err
	}
	room, err := h.accessible(id, req.RoomID)
	if err != nil {
		return nil, err
	}
	page, err := h.ledger.Page(room.ID, req.BeforeMessageID, h.pageLimit(req.Limit))
	if err != nil {
		return nil, err
	}
	return []Delivery{
		deliver(toCaller(), models.ServerEventMessages, models.MessagesPayload{
			RoomID:   room.ID,
			Messages: page.Messages,
			HasMore:  page.HasMore,
		}),
	}, nil
}

func (h *Hub) searchMessages(connection string, req models.SearchMessagesRequest) ([]Delivery, error) {
	id, err := h.identities.LookupByConnection(connection)
	if err != nil {
		return nil, err
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", models.ErrValidation)
	}
	room, err := h.accessible(id, req.RoomID)
	if err != nil {
		return nil, err
	}
	found, err := h.ledger.Search(room.ID, query, h.config.SearchLimit)
	if err != nil {
		return nil, err
	}
	return []Delivery{
		deliver(toCaller(), models.ServerEventSearchResults, models.SearchResultsPayload{
			RoomID:   room.ID,
			Query:    query,
			Messages: found,
		}),
	}, nil
}
