package storage

import (
	"encoding"
	"encoding/binary"
	"time"

	"parley/internal/models"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// Timestamps are stored as Unix nanoseconds, zero for the zero time.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

type DBRoom struct {
	ID           string   `msgpack:"id"`
	Name         string   `msgpack:"name"`
	Visibility   string   `msgpack:"visibility"`
	CreatedBy    string   `msgpack:"createdBy"`
	Participants []string `msgpack:"participants"`
	CreatedAt    int64    `msgpack:"createdAt"`
}

func (r *DBRoom) Key() []byte {
	return []byte(r.ID)
}

func (r *DBRoom) MarshalBinary() (data []byte, err error) {
	type alias DBRoom
	return msgpack.Marshal((*alias)(r))
}

func (r *DBRoom) UnmarshalBinary(data []byte) error {
	type alias DBRoom
	return msgpack.Unmarshal(data, (*alias)(r))
}

func newDBRoom(room models.Room) DBRoom {
	r := DBRoom{
		ID:           room.ID,
		Name:         room.Name,
		Visibility:   string(room.Visibility),
		Participants: room.Participants,
		CreatedAt:    unixNano(room.CreatedAt),
	}
	if room.CreatedBy != nil {
		r.CreatedBy = *room.CreatedBy
	}
	return r
}

func (r *DBRoom) model() models.Room {
	room := models.Room{
		ID:           r.ID,
		Name:         r.Name,
		Visibility:   models.Visibility(r.Visibility),
		Participants: r.Participants,
		CreatedAt:    fromUnixNano(r.CreatedAt),
	}
	if r.CreatedBy != "" {
		createdBy := r.CreatedBy
		room.CreatedBy = &createdBy
	}
	return room
}

type DBMessage struct {
	ID                int64               `msgpack:"id"`
	RoomID            string              `msgpack:"roomId"`
	AuthorID          string              `msgpack:"authorId"`
	AuthorDisplayName string              `msgpack:"authorDisplayName"`
	Body              DBBody              `msgpack:"body"`
	CreatedAt         int64               `msgpack:"createdAt"`
	ReadBy            []string            `msgpack:"readBy"`
	Reactions         map[string][]string `msgpack:"reactions"`
}

type DBBody struct {
	Kind     string `msgpack:"kind"`
	Payload  string `msgpack:"payload"`
	Filename string `msgpack:"filename"`
	MimeType string `msgpack:"mimeType"`
	HTML     string `msgpack:"html"`
}

func (m *DBMessage) Key() []byte {
	return messageKey(m.ID)
}

func messageKey(id int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(id))
	return key
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

func newDBMessage(msg models.Message) DBMessage {
	return DBMessage{
		ID:                msg.ID,
		RoomID:            msg.RoomID,
		AuthorID:          msg.AuthorID,
		AuthorDisplayName: msg.AuthorDisplayName,
		Body: DBBody{
			Kind:     string(msg.Body.Kind),
			Payload:  msg.Body.Payload,
			Filename: msg.Body.Filename,
			MimeType: msg.Body.MimeType,
			HTML:     msg.Body.HTML,
		},
		CreatedAt: unixNano(msg.CreatedAt),
		ReadBy:    msg.ReadBy,
		Reactions: msg.Reactions,
	}
}

func (m *DBMessage) model() models.Message {
	msg := models.Message{
		ID:                m.ID,
		RoomID:            m.RoomID,
		AuthorID:          m.AuthorID,
		AuthorDisplayName: m.AuthorDisplayName,
		Body: models.Body{
			Kind:     models.BodyKind(m.Body.Kind),
			Payload:  m.Body.Payload,
			Filename: m.Body.Filename,
			MimeType: m.Body.MimeType,
			HTML:     m.Body.HTML,
		},
		CreatedAt: fromUnixNano(m.CreatedAt),
		ReadBy:    m.ReadBy,
		Reactions: m.Reactions,
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []string{}
	}
	if msg.Reactions == nil {
		msg.Reactions = map[string][]string{}
	}
	return msg
}
