package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ClientEvent is an inbound frame. Payload is decoded according to Type.
type ClientEvent struct {
	Type    ClientEventType `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ClientEventType string

const (
	ClientEventJoin               ClientEventType = "join"
	ClientEventJoinRoom           ClientEventType = "joinRoom"
	ClientEventLeaveRoom          ClientEventType = "leaveRoom"
	ClientEventCreateRoom         ClientEventType = "createRoom"
	ClientEventSendMessage        ClientEventType = "sendMessage"
	ClientEventSendPrivateMessage ClientEventType = "sendPrivateMessage"
	ClientEventTyping             ClientEventType = "typing"
	ClientEventAddReaction        ClientEventType = "addReaction"
	ClientEventRemoveReaction     ClientEventType = "removeReaction"
	ClientEventMarkRead           ClientEventType = "markRead"
	ClientEventLoadMessages       ClientEventType = "loadMessages"
	ClientEventSearchMessages     ClientEventType = "searchMessages"
	ClientEventGetReactions       ClientEventType = "getReactions"
)

type JoinRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=64"`
}

type RoomRequest struct {
	RoomID string `json:"roomId" validate:"required,max=256"`
}

type CreateRoomRequest struct {
	Name       string     `json:"name" validate:"required,max=64"`
	Visibility Visibility `json:"visibility" validate:"omitempty,oneof=public private"`
}

type BodyRequest struct {
	Kind     BodyKind `json:"kind" validate:"required,oneof=text image file"`
	Payload  string   `json:"payload" validate:"required,max=16384"`
	Filename string   `json:"filename" validate:"max=255"`
	MimeType string   `json:"mimeType" validate:"max=255"`
}

type SendMessageRequest struct {
	RoomID string      `json:"roomId" validate:"required,max=256"`
	Body   BodyRequest `json:"body"`
}

type SendPrivateMessageRequest struct {
	RecipientDisplayName string      `json:"recipientDisplayName" validate:"required,max=64"`
	Body                 BodyRequest `json:"body"`
}

type TypingRequest struct {
	RoomID   string `json:"roomId" validate:"required,max=256"`
	IsTyping *bool  `json:"isTyping" validate:"required"`
}

type ReactionRequest struct {
	MessageID int64  `json:"messageId" validate:"required,gt=0"`
	RoomID    string `json:"roomId" validate:"required,max=256"`
	Symbol    string `json:"symbol" validate:"required,max=32"`
}

type MessageRequest struct {
	MessageID int64  `json:"messageId" validate:"required,gt=0"`
	RoomID    string `json:"roomId" validate:"required,max=256"`
}

type LoadMessagesRequest struct {
	RoomID          string `json:"roomId" validate:"required,max=256"`
	BeforeMessageID *int64 `json:"beforeMessageId" validate:"omitempty,gt=0"`
	Limit           int    `json:"limit" validate:"gte=0"`
}

type SearchMessagesRequest struct {
	RoomID string `json:"roomId" validate:"required,max=256"`
	Query  string `json:"query" validate:"required,max=256"`
}

// Decode unmarshals the payload into v and validates it.
// All failures wrap ErrValidation.
func (e ClientEvent) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: %s: missing payload", ErrValidation, e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, e.Type, err)
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s: field %s failed %q", ErrValidation, e.Type, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %s: %v", ErrValidation, e.Type, err)
	}
	return nil
}

// ServerEvent is an outbound frame.
type ServerEvent struct {
	Type    ServerEventType `json:"type"`
	Payload any             `json:"payload"`
}

type ServerEventType string

const (
	ServerEventJoined          ServerEventType = "joined"
	ServerEventError           ServerEventType = "error"
	ServerEventMessages        ServerEventType = "messages"
	ServerEventNewMessage      ServerEventType = "newMessage"
	ServerEventMessageSent     ServerEventType = "messageSent"
	ServerEventNotification    ServerEventType = "notification"
	ServerEventUserJoined      ServerEventType = "userJoined"
	ServerEventUserLeft        ServerEventType = "userLeft"
	ServerEventOnlineUsers     ServerEventType = "onlineUsers"
	ServerEventRoomCreated     ServerEventType = "roomCreated"
	ServerEventTyping          ServerEventType = "typing"
	ServerEventReactionAdded   ServerEventType = "reactionAdded"
	ServerEventReactionRemoved ServerEventType = "reactionRemoved"
	ServerEventMessageRead     ServerEventType = "messageRead"
	ServerEventSearchResults   ServerEventType = "searchResults"
	ServerEventReactions       ServerEventType = "reactions"
)

type ErrorKind string

const (
	ErrorKindNameTaken       ErrorKind = "NameTaken"
	ErrorKindNotJoined       ErrorKind = "NotJoined"
	ErrorKindRoomNotFound    ErrorKind = "RoomNotFound"
	ErrorKindUserNotFound    ErrorKind = "UserNotFound"
	ErrorKindInvalidName     ErrorKind = "InvalidName"
	ErrorKindMessageNotFound ErrorKind = "MessageNotFound"
	ErrorKindValidation      ErrorKind = "Validation"
)

// KindOf maps an error to the kind reported to clients.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNameTaken):
		return ErrorKindNameTaken
	case errors.Is(err, ErrNotJoined):
		return ErrorKindNotJoined
	case errors.Is(err, ErrRoomNotFound):
		return ErrorKindRoomNotFound
	case errors.Is(err, ErrUserNotFound):
		return ErrorKindUserNotFound
	case errors.Is(err, ErrInvalidName):
		return ErrorKindInvalidName
	case errors.Is(err, ErrMessageNotFound):
		return ErrorKindMessageNotFound
	default:
		return ErrorKindValidation
	}
}

type ErrorPayload struct {
	Kind   ErrorKind `json:"kind"`
	Detail string    `json:"detail"`
}

type JoinedPayload struct {
	Identity    Identity   `json:"identity"`
	Rooms       []Room     `json:"rooms"`
	OnlineUsers []Identity `json:"onlineUsers"`
}

type MessagesPayload struct {
	RoomID   string    `json:"roomId"`
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}

type NewMessagePayload struct {
	Message Message `json:"message"`
}

type MessageSentPayload struct {
	MessageID int64  `json:"messageId"`
	RoomID    string `json:"roomId"`
}

type NotificationKind string

const (
	NotificationNewMessage     NotificationKind = "newMessage"
	NotificationPrivateMessage NotificationKind = "privateMessage"
)

type NotificationPayload struct {
	Kind    NotificationKind `json:"kind"`
	RoomID  string           `json:"roomId"`
	Sender  string           `json:"sender"`
	Preview string           `json:"preview"`
}

// PresencePayload backs userJoined and userLeft. RoomID is empty for
// process-wide presence changes.
type PresencePayload struct {
	Identity    Identity   `json:"identity"`
	RoomID      string     `json:"roomId,omitempty"`
	OnlineUsers []Identity `json:"onlineUsers,omitempty"`
}

type OnlineUsersPayload struct {
	OnlineUsers []Identity `json:"onlineUsers"`
}

type RoomCreatedPayload struct {
	Room Room `json:"room"`
}

type TypingPayload struct {
	RoomID      string   `json:"roomId"`
	IdentityIDs []string `json:"identityIds"`
}

type ReactionPayload struct {
	MessageID  int64  `json:"messageId"`
	RoomID     string `json:"roomId"`
	Symbol     string `json:"symbol"`
	IdentityID string `json:"identityId"`
}

type MessageReadPayload struct {
	MessageID  int64  `json:"messageId"`
	RoomID     string `json:"roomId"`
	IdentityID string `json:"identityId"`
}

type SearchResultsPayload struct {
	RoomID   string    `json:"roomId"`
	Query    string    `json:"query"`
	Messages []Message `json:"messages"`
}

type ReactionsPayload struct {
	MessageID int64               `json:"messageId"`
	RoomID    string              `json:"roomId"`
	Reactions map[string][]string `json:"reactions"`
}
