package rooms

import (
	"fmt"
	"sort"
	"time"

	"parley/internal/content"
	"parley/internal/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const privatePrefix = "private-"

// Directory owns room metadata. Rooms are never deleted.
type Directory struct {
	rooms map[string]models.Room
	order []string
	now   func() time.Time
	newID func() string
}

func NewDirectory() *Directory {
	return &Directory{
		rooms: make(map[string]models.Room),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

func (d *Directory) add(room models.Room) models.Room {
	d.rooms[room.ID] = room
	d.order = append(d.order, room.ID)
	return room
}

// EnsurePublicRoom returns the room with the given id, creating it when
// absent. An empty name defaults to the id.
func (d *Directory) EnsurePublicRoom(id, name string) (models.Room, bool) {
	if room, ok := d.rooms[id]; ok {
		return room, false
	}
	if name == "" {
		name = id
	}
	return d.add(models.Room{
		ID:         id,
		Name:       name,
		Visibility: models.VisibilityPublic,
		CreatedAt:  d.now().UTC(),
	}), true
}

// CreateRoom creates a public room with a fresh id.
func (d *Directory) CreateRoom(name string, visibility models.Visibility, creator models.Identity) (models.Room, error) {
	name, err := content.ValidateRoomName(name)
	if err != nil {
		return models.Room{}, err
	}
	if visibility == models.VisibilityPrivate {
		return models.Room{}, fmt.Errorf("%w: private rooms are opened by sending a private message", models.ErrValidation)
	}

	return d.add(models.Room{
		ID:         d.newID(),
		Name:       name,
		Visibility: models.VisibilityPublic,
		CreatedBy:  lo.ToPtr(creator.ID),
		CreatedAt:  d.now().UTC(),
	}), nil
}

// PrivateRoomID returns the id shared by the two names regardless of order.
func PrivateRoomID(nameA, nameB string) string {
	if nameB < nameA {
		nameA, nameB = nameB, nameA
	}
	return privatePrefix + nameA + "-" + nameB
}

// EnsurePrivateRoom returns the private room of the pair, creating it when
// absent.
func (d *Directory) EnsurePrivateRoom(a, b models.Identity) (models.Room, bool, error) {
	if a.DisplayName == b.DisplayName {
		return models.Room{}, false, fmt.Errorf("%w: private room needs two distinct participants", models.ErrValidation)
	}

	id := PrivateRoomID(a.DisplayName, b.DisplayName)
	if room, ok := d.rooms[id]; ok {
		return room, false, nil
	}

	participants := []string{a.DisplayName, b.DisplayName}
	sort.Strings(participants)

	return d.add(models.Room{
		ID:           id,
		Name:         participants[0] + " & " + participants[1],
		Visibility:   models.VisibilityPrivate,
		CreatedBy:    lo.ToPtr(a.ID),
		Participants: participants,
		CreatedAt:    d.now().UTC(),
	}), true, nil
}

func (d *Directory) Get(id string) (models.Room, error) {
	room, ok := d.rooms[id]
	if !ok {
		return models.Room{}, fmt.Errorf("%w: %s", models.ErrRoomNotFound, id)
	}
	return room, nil
}

// List returns every room in creation order.
func (d *Directory) List() []models.Room {
	return lo.Map(d.order, func(id string, _ int) models.Room {
		return d.rooms[id]
	})
}

// Visible returns the rooms the display name may see: all public rooms and
// the private rooms it participates in.
func (d *Directory) Visible(displayName string) []models.Room {
	return lo.Filter(d.List(), func(room models.Room, _ int) bool {
		return CanAccess(room, displayName)
	})
}

// CanAccess reports whether the display name may read and post in the room.
func CanAccess(room models.Room, displayName string) bool {
	if !room.IsPrivate() {
		return true
	}
	return lo.Contains(room.Participants, displayName)
}
