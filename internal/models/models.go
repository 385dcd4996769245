package models

import (
	"errors"
	"time"
)

var (
	ErrNameTaken       = errors.New("display name is taken")
	ErrNotJoined       = errors.New("join required")
	ErrAlreadyJoined   = errors.New("connection already joined")
	ErrRoomNotFound    = errors.New("room not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidName     = errors.New("invalid name")
	ErrMessageNotFound = errors.New("message not found")
	ErrValidation      = errors.New("validation failed")
)

type IdentityStatus string

const (
	IdentityStatusOnline IdentityStatus = "online"
)

// Identity is the server-side representation of a joined connection.
type Identity struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"displayName"`
	JoinedAt    time.Time      `json:"joinedAt"`
	Status      IdentityStatus `json:"status"`

	// Connection is the transport connection that owns this identity.
	Connection string `json:"-"`
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Room is a named broadcast scope.
type Room struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Visibility   Visibility `json:"visibility"`
	CreatedBy    *string    `json:"createdBy"`
	Participants []string   `json:"participants,omitempty"` // private rooms only, sorted
	CreatedAt    time.Time  `json:"createdAt"`
}

func (r Room) IsPrivate() bool {
	return r.Visibility == VisibilityPrivate
}

type BodyKind string

const (
	BodyKindText  BodyKind = "text"
	BodyKindImage BodyKind = "image"
	BodyKindFile  BodyKind = "file"
)

// Body is the message content. For image and file kinds Payload is an opaque
// reference (usually a URL) handed over by the upload collaborator.
type Body struct {
	Kind     BodyKind `json:"kind"`
	Payload  string   `json:"payload"`
	Filename string   `json:"filename,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	HTML     string   `json:"html,omitempty"` // rendered text body
}

// Message represents a chat message. Only ReadBy and Reactions change after
// the message is stored.
type Message struct {
	ID                int64               `json:"id"`
	RoomID            string              `json:"roomId"`
	AuthorID          string              `json:"authorId"`
	AuthorDisplayName string              `json:"authorDisplayName"`
	Body              Body                `json:"body"`
	CreatedAt         time.Time           `json:"createdAt"`
	ReadBy            []string            `json:"readBy"`
	Reactions         map[string][]string `json:"reactions"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (m Message) Clone() Message {
	c := m
	c.ReadBy = append([]string(nil), m.ReadBy...)
	c.Reactions = make(map[string][]string, len(m.Reactions))
	for sym, ids := range m.Reactions {
		c.Reactions[sym] = append([]string(nil), ids...)
	}
	return c
}

// Page is a slice of room history.
type Page struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}
