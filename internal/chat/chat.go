package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"parley/internal/models"
)

// history is a per-room ring buffer of messages ordered by id.
type history struct {
	Records    []*models.Message
	LastIndex  int
	MaxRecords int
}

func newHistory(maxRecords int) *history {
	return &history{
		LastIndex:  -1,
		MaxRecords: maxRecords,
	}
}

// add appends a record, overwriting the oldest one once the buffer is full.
func (h *history) add(m *models.Message) {
	switch {
	case len(h.Records) < h.MaxRecords:
		h.Records = append(h.Records, m)
		h.LastIndex++
	default:
		i := (h.LastIndex + 1) % h.MaxRecords
		h.Records[i] = m
		h.LastIndex = i
	}
}

func (h *history) len() int {
	return len(h.Records)
}

// at returns the i-th oldest record.
func (h *history) at(i int) *models.Message {
	head := 0
	if len(h.Records) == h.MaxRecords {
		head = (h.LastIndex + 1) % h.MaxRecords
	}
	return h.Records[(head+i)%len(h.Records)]
}

// indexOf returns the logical index of the message with the given id.
func (h *history) indexOf(id int64) (int, bool) {
	n := h.len()
	i := sort.Search(n, func(i int) bool { return h.at(i).ID >= id })
	if i < n && h.at(i).ID == id {
		return i, true
	}
	return 0, false
}

func (h *history) slice(from, to int) []models.Message {
	out := make([]models.Message, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, h.at(i).Clone())
	}
	return out
}

type Config struct {
	MaxRecords int
	// LastID is the id numbering continues after, zero for a fresh start.
	LastID int64
}

// Ledger stores bounded message history per room. Message ids are unique
// across rooms and strictly increase with insertion. Callers serialize access.
type Ledger struct {
	rooms      map[string]*history
	lastID     int64
	maxRecords int
	now        func() time.Time
}

func New(config Config) *Ledger {
	return &Ledger{
		rooms:      make(map[string]*history),
		lastID:     max(config.LastID, 0),
		maxRecords: config.MaxRecords,
		now:        time.Now,
	}
}

// Open registers a room. Opening a known room is a no-op.
func (l *Ledger) Open(roomID string) {
	if _, ok := l.rooms[roomID]; !ok {
		l.rooms[roomID] = newHistory(l.maxRecords)
	}
}

func (l *Ledger) room(roomID string) (*history, error) {
	h, ok := l.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
	}
	return h, nil
}

// Append stores a message in the room, assigning id and timestamp and
// seeding the read set with the author.
func (l *Ledger) Append(roomID string, msg models.Message) (models.Message, error) {
	h, err := l.room(roomID)
	if err != nil {
		return models.Message{}, err
	}

	l.lastID++
	msg.ID = l.lastID
	msg.RoomID = roomID
	msg.CreatedAt = l.now().UTC()
	msg.ReadBy = []string{msg.AuthorID}
	msg.Reactions = make(map[string][]string)

	stored := msg
	h.add(&stored)

	return stored.Clone(), nil
}

// Page returns up to limit messages. Without an anchor these are the most
// recent ones; with one, the messages strictly preceding it. An anchor that
// is no longer in history yields an empty page.
func (l *Ledger) Page(roomID string, before *int64, limit int) (models.Page, error) {
	h, err := l.room(roomID)
	if err != nil {
		return models.Page{}, err
	}
	if limit <= 0 {
		return models.Page{Messages: []models.Message{}}, nil
	}

	end := h.len()
	if before != nil {
		idx, ok := h.indexOf(*before)
		if !ok {
			return models.Page{Messages: []models.Message{}}, nil
		}
		end = idx
	}

	start := max(end-limit, 0)
	return models.Page{
		Messages: h.slice(start, end),
		HasMore:  start > 0,
	}, nil
}

// Search returns up to limit text messages containing query, ignoring case.
// The most recent matches are returned, oldest first.
func (l *Ledger) Search(roomID, query string, limit int) ([]models.Message, error) {
	h, err := l.room(roomID)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var found []models.Message
	for i := h.len() - 1; i >= 0 && len(found) < limit; i-- {
		m := h.at(i)
		if m.Body.Kind != models.BodyKindText {
			continue
		}
		if strings.Contains(strings.ToLower(m.Body.Payload), q) {
			found = append(found, m.Clone())
		}
	}

	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	if found == nil {
		found = []models.Message{}
	}
	return found, nil
}

// Find returns the stored message for in-place reaction and receipt updates.
func (l *Ledger) Find(roomID string, id int64) (*models.Message, error) {
	h, err := l.room(roomID)
	if err != nil {
		return nil, err
	}
	idx, ok := h.indexOf(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d in %s", models.ErrMessageNotFound, id, roomID)
	}
	return h.at(idx), nil
}

// Len returns the number of messages currently held for the room.
func (l *Ledger) Len(roomID string) int {
	if h, ok := l.rooms[roomID]; ok {
		return h.len()
	}
	return 0
}
