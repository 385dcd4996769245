package typing

import (
	"sort"

	"github.com/samber/lo"
)

// Aggregator keeps the set of typing identities per room. There is no
// expiry: the originator clears its own flag, and disconnect cleanup calls
// Clear.
type Aggregator struct {
	rooms map[string]map[string]struct{}
}

func New() *Aggregator {
	return &Aggregator{rooms: make(map[string]map[string]struct{})}
}

// SetTyping updates the identity's flag in the room and returns the
// resulting members, sorted, and whether anything changed.
func (a *Aggregator) SetTyping(roomID, identityID string, isTyping bool) ([]string, bool) {
	set := a.rooms[roomID]
	_, present := set[identityID]

	changed := false
	switch {
	case isTyping && !present:
		if set == nil {
			set = make(map[string]struct{})
			a.rooms[roomID] = set
		}
		set[identityID] = struct{}{}
		changed = true
	case !isTyping && present:
		delete(set, identityID)
		if len(set) == 0 {
			delete(a.rooms, roomID)
		}
		changed = true
	}

	return a.Members(roomID), changed
}

func (a *Aggregator) Members(roomID string) []string {
	ids := lo.Keys(a.rooms[roomID])
	sort.Strings(ids)
	return ids
}

func (a *Aggregator) IsTyping(roomID, identityID string) bool {
	_, ok := a.rooms[roomID][identityID]
	return ok
}

// Clear removes the identity from every room and returns the rooms that
// changed, sorted.
func (a *Aggregator) Clear(identityID string) []string {
	var changed []string
	for roomID, set := range a.rooms {
		if _, ok := set[identityID]; !ok {
			continue
		}
		delete(set, identityID)
		if len(set) == 0 {
			delete(a.rooms, roomID)
		}
		changed = append(changed, roomID)
	}
	sort.Strings(changed)
	return changed
}
