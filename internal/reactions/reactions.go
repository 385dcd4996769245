// Package reactions holds the idempotent mutations of a message's reaction
// multimap and read-by set. Every function reports whether state changed;
// callers notify only on change.
package reactions

import (
	"slices"

	"parley/internal/models"
)

func AddReaction(m *models.Message, symbol, identityID string) bool {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	ids := m.Reactions[symbol]
	if slices.Contains(ids, identityID) {
		return false
	}
	m.Reactions[symbol] = append(ids, identityID)
	return true
}

// RemoveReaction drops the identity from the symbol, deleting the symbol
// once nobody uses it.
func RemoveReaction(m *models.Message, symbol, identityID string) bool {
	ids, ok := m.Reactions[symbol]
	if !ok {
		return false
	}
	i := slices.Index(ids, identityID)
	if i < 0 {
		return false
	}
	ids = slices.Delete(slices.Clone(ids), i, i+1)
	if len(ids) == 0 {
		delete(m.Reactions, symbol)
		return true
	}
	m.Reactions[symbol] = ids
	return true
}

// MarkRead adds the identity to the read set. The set never shrinks.
func MarkRead(m *models.Message, identityID string) bool {
	if slices.Contains(m.ReadBy, identityID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, identityID)
	return true
}

// Snapshot returns a copy of the reaction multimap.
func Snapshot(m *models.Message) map[string][]string {
	return m.Clone().Reactions
}
