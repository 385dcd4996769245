package hub

import (
	"sort"

	"github.com/samber/lo"
)

// subscriptions tracks which connections listen to which rooms.
type subscriptions struct {
	byConnection map[string]map[string]struct{}
	byRoom       map[string]map[string]struct{}
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		byConnection: make(map[string]map[string]struct{}),
		byRoom:       make(map[string]map[string]struct{}),
	}
}

func link(m map[string]map[string]struct{}, a, b string) {
	set, ok := m[a]
	if !ok {
		set = make(map[string]struct{})
		m[a] = set
	}
	set[b] = struct{}{}
}

func unlink(m map[string]map[string]struct{}, a, b string) {
	delete(m[a], b)
	if len(m[a]) == 0 {
		delete(m, a)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := lo.Keys(set)
	sort.Strings(keys)
	return keys
}

func (s *subscriptions) has(connection, roomID string) bool {
	_, ok := s.byConnection[connection][roomID]
	return ok
}

// add subscribes the connection and reports whether it was new.
func (s *subscriptions) add(connection, roomID string) bool {
	if s.has(connection, roomID) {
		return false
	}
	link(s.byConnection, connection, roomID)
	link(s.byRoom, roomID, connection)
	return true
}

// remove unsubscribes the connection and reports whether it was subscribed.
func (s *subscriptions) remove(connection, roomID string) bool {
	if !s.has(connection, roomID) {
		return false
	}
	unlink(s.byConnection, connection, roomID)
	unlink(s.byRoom, roomID, connection)
	return true
}

func (s *subscriptions) members(roomID string) []string {
	return sortedKeys(s.byRoom[roomID])
}

func (s *subscriptions) roomsOf(connection string) []string {
	return sortedKeys(s.byConnection[connection])
}

// drop removes every subscription of the connection and returns the rooms
// it was subscribed to.
func (s *subscriptions) drop(connection string) []string {
	rooms := s.roomsOf(connection)
	for _, roomID := range rooms {
		s.remove(connection, roomID)
	}
	return rooms
}
