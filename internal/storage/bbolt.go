package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"parley/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketRooms    = []byte("rooms")
	bucketMessages = []byte("messages")
)

// BboltStorage is the write-behind archive of rooms and messages. It is
// never read back into the live session state.
type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRooms); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

func put(b *bbolt.Bucket, record Storeable) error {
	data, err := record.MarshalBinary()
	if err != nil {
		return err
	}
	return b.Put(record.Key(), data)
}

// UpsertRoom saves room metadata.
func (s *BboltStorage) UpsertRoom(room models.Room) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbRoom := newDBRoom(room)
		return put(tx.Bucket(bucketRooms), &dbRoom)
	})
}

// ListRooms returns every archived room ordered by id.
func (s *BboltStorage) ListRooms() ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRooms).ForEach(func(k, v []byte) error {
			var dbRoom DBRoom
			if err := dbRoom.UnmarshalBinary(v); err != nil {
				return err
			}
			rooms = append(rooms, dbRoom.model())
			return nil
		})
	})
	return rooms, err
}

// GetRoom returns the archived metadata of a room.
func (s *BboltStorage) GetRoom(roomID string) (models.Room, error) {
	var dbRoom DBRoom
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRooms).Get([]byte(roomID))
		if data == nil {
			return fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
		}
		return dbRoom.UnmarshalBinary(data)
	})
	if err != nil {
		return models.Room{}, err
	}
	return dbRoom.model(), nil
}

// UpsertMessage saves the latest state of a message. The room must have been
// archived first.
func (s *BboltStorage) UpsertMessage(message models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if message.RoomID == "" {
			return errors.New("message missing roomID")
		}
		if tx.Bucket(bucketRooms).Get([]byte(message.RoomID)) == nil {
			return fmt.Errorf("room %s not found for message upsert: %w", message.RoomID, models.ErrRoomNotFound)
		}

		roomBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(message.RoomID))
		if err != nil {
			return fmt.Errorf("failed to create room bucket: %w", err)
		}

		dbMessage := newDBMessage(message)
		if err := put(roomBucket, &dbMessage); err != nil {
			return fmt.Errorf("failed to put message: %w", err)
		}
		return nil
	})
}

// ListMessages returns archived messages of the room with from <= id <= to,
// oldest first. A zero to means no upper bound.
func (s *BboltStorage) ListMessages(roomID string, from, to int64) ([]models.Message, error) {
	if to <= 0 {
		to = math.MaxInt64
	}

	messages := []models.Message{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketRooms).Get([]byte(roomID)) == nil {
			return fmt.Errorf("%w: %s", models.ErrRoomNotFound, roomID)
		}
		roomBucket := tx.Bucket(bucketMessages).Bucket([]byte(roomID))
		if roomBucket == nil {
			return nil // No messages for this room
		}

		c := roomBucket.Cursor()
		minKey := messageKey(max(from, 0))
		maxKey := messageKey(to)

		for k, v := c.Seek(minKey); k != nil && bytes.Compare(k, maxKey) <= 0; k, v = c.Next() {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, dbMsg.model())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// LastMessageID returns the highest archived message id across all rooms,
// zero for an empty archive. The live ledger continues numbering after it so
// a restarted process does not overwrite earlier history.
func (s *BboltStorage) LastMessageID() (int64, error) {
	var last int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		messages := tx.Bucket(bucketMessages)
		return messages.ForEach(func(roomID, v []byte) error {
			if v != nil {
				return nil
			}
			k, _ := messages.Bucket(roomID).Cursor().Last()
			if len(k) == 8 {
				last = max(last, int64(binary.BigEndian.Uint64(k)))
			}
			return nil
		})
	})
	return last, err
}
