package storage

import (
	"path/filepath"
	"testing"
	"time"

	"parley/internal/models"

	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *BboltStorage {
	t.Helper()
	store, err := NewBboltStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testMessage(id int64, roomID string) models.Message {
	return models.Message{
		ID:                id,
		RoomID:            roomID,
		AuthorID:          "id-alice",
		AuthorDisplayName: "alice",
		Body:              models.Body{Kind: models.BodyKindText, Payload: "hello", HTML: "<p>hello</p>"},
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC),
		ReadBy:            []string{"id-alice"},
		Reactions:         map[string][]string{},
	}
}

func TestStorage(t *testing.T) {
	store := newTestStorage(t)

	t.Run("Rooms", func(t *testing.T) {
		creator := "id-alice"
		team := models.Room{
			ID:         "room-team",
			Name:       "team",
			Visibility: models.VisibilityPublic,
			CreatedBy:  &creator,
			CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		general := models.Room{
			ID:         "general",
			Name:       "general",
			Visibility: models.VisibilityPublic,
			CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, store.UpsertRoom(team))
		require.NoError(t, store.UpsertRoom(general))
		require.NoError(t, store.UpsertRoom(general))

		rooms, err := store.ListRooms()
		require.NoError(t, err)
		require.Equal(t, []models.Room{general, team}, rooms)

		got, err := store.GetRoom("room-team")
		require.NoError(t, err)
		require.Equal(t, team, got)

		_, err = store.GetRoom("nowhere")
		require.ErrorIs(t, err, models.ErrRoomNotFound)
	})

	t.Run("Messages", func(t *testing.T) {
		for id := int64(1); id <= 5; id++ {
			require.NoError(t, store.UpsertMessage(testMessage(id, "general")))
		}

		updated := testMessage(3, "general")
		updated.ReadBy = append(updated.ReadBy, "id-bob")
		updated.Reactions = map[string][]string{"+1": {"id-bob"}}
		require.NoError(t, store.UpsertMessage(updated))

		all, err := store.ListMessages("general", 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 5)
		require.Equal(t, updated, all[2])

		window, err := store.ListMessages("general", 2, 4)
		require.NoError(t, err)
		require.Len(t, window, 3)
		require.Equal(t, int64(2), window[0].ID)
		require.Equal(t, int64(4), window[2].ID)

		empty, err := store.ListMessages("room-team", 0, 0)
		require.NoError(t, err)
		require.Empty(t, empty)
	})

	t.Run("UnknownRoom", func(t *testing.T) {
		require.ErrorIs(t, store.UpsertMessage(testMessage(9, "nowhere")), models.ErrRoomNotFound)

		_, err := store.ListMessages("nowhere", 0, 0)
		require.ErrorIs(t, err, models.ErrRoomNotFound)

		require.Error(t, store.UpsertMessage(testMessage(10, "")))
	})
}

func TestStorage_LastMessageID(t *testing.T) {
	store := newTestStorage(t)

	last, err := store.LastMessageID()
	require.NoError(t, err)
	require.Zero(t, last)

	require.NoError(t, store.UpsertRoom(models.Room{ID: "general", Name: "general"}))
	require.NoError(t, store.UpsertRoom(models.Room{ID: "room-team", Name: "team"}))
	require.NoError(t, store.UpsertMessage(testMessage(3, "general")))
	require.NoError(t, store.UpsertMessage(testMessage(7, "room-team")))
	require.NoError(t, store.UpsertMessage(testMessage(5, "general")))

	last, err = store.LastMessageID()
	require.NoError(t, err)
	require.Equal(t, int64(7), last)
}
