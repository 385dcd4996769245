package identity

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"parley/internal/content"
	"parley/internal/models"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
)

// Registry maps live connections to identities and keeps display names
// unique among them. Callers serialize access.
type Registry struct {
	byConnection geche.Geche[string, models.Identity]
	byName       geche.Geche[string, string] // displayName -> connection
	now          func() time.Time
	newID        func() string
}

func NewRegistry() *Registry {
	return &Registry{
		byConnection: geche.NewMapCache[string, models.Identity](),
		byName:       geche.NewMapCache[string, string](),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Join creates an identity for the connection.
func (r *Registry) Join(connection, displayName string) (models.Identity, error) {
	name, err := content.ValidateDisplayName(displayName)
	if err != nil {
		return models.Identity{}, err
	}

	if _, err := r.byConnection.Get(connection); err == nil {
		return models.Identity{}, models.ErrAlreadyJoined
	}
	if _, err := r.byName.Get(name); err == nil {
		return models.Identity{}, fmt.Errorf("%w: %s", models.ErrNameTaken, name)
	}

	id := models.Identity{
		ID:          r.newID(),
		DisplayName: name,
		JoinedAt:    r.now().UTC(),
		Status:      models.IdentityStatusOnline,
		Connection:  connection,
	}
	r.byConnection.Set(connection, id)
	r.byName.Set(name, connection)

	return id, nil
}

// Leave removes the connection's identity. Leaving twice is a no-op.
func (r *Registry) Leave(connection string) (models.Identity, bool) {
	id, err := r.byConnection.Get(connection)
	if err != nil {
		return models.Identity{}, false
	}
	_ = r.byConnection.Del(connection)
	_ = r.byName.Del(id.DisplayName)
	return id, true
}

func (r *Registry) LookupByConnection(connection string) (models.Identity, error) {
	id, err := r.byConnection.Get(connection)
	if errors.Is(err, geche.ErrNotFound) {
		return models.Identity{}, models.ErrNotJoined
	}
	return id, err
}

func (r *Registry) LookupByDisplayName(name string) (models.Identity, error) {
	connection, err := r.byName.Get(name)
	if errors.Is(err, geche.ErrNotFound) {
		return models.Identity{}, fmt.Errorf("%w: %s", models.ErrUserNotFound, name)
	}
	if err != nil {
		return models.Identity{}, err
	}
	return r.LookupByConnection(connection)
}

// Snapshot returns all online identities sorted by display name.
func (r *Registry) Snapshot() []models.Identity {
	snap := r.byConnection.Snapshot()
	ids := make([]models.Identity, 0, len(snap))
	for _, id := range snap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].DisplayName < ids[j].DisplayName
	})
	return ids
}

func (r *Registry) Len() int {
	return r.byConnection.Len()
}
