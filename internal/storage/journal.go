package storage

import (
	"context"

	"parley/internal/logging"
	"parley/internal/models"

	"github.com/rs/zerolog"
)

type archiveStore interface {
	UpsertRoom(room models.Room) error
	UpsertMessage(message models.Message) error
}

// record is one queued archive write. Exactly one field is set.
type record struct {
	room    *models.Room
	message *models.Message
}

// Journal queues archive writes and applies them on its own goroutine, so
// callers never wait on disk. A full queue drops the write.
type Journal struct {
	store  archiveStore
	queue  chan record
	logger zerolog.Logger
}

func NewJournal(store archiveStore, size int, logger zerolog.Logger) *Journal {
	return &Journal{
		store:  store,
		queue:  make(chan record, size),
		logger: logging.Component(logger, "journal"),
	}
}

func (j *Journal) ArchiveRoom(room models.Room) {
	j.enqueue(record{room: &room})
}

func (j *Journal) ArchiveMessage(msg models.Message) {
	j.enqueue(record{message: &msg})
}

func (j *Journal) enqueue(rec record) {
	select {
	case j.queue <- rec:
	default:
		ev := j.logger.Warn()
		if rec.room != nil {
			ev = ev.Str(logging.FieldRoom, rec.room.ID)
		} else {
			ev = ev.Str(logging.FieldRoom, rec.message.RoomID).Int64("message_id", rec.message.ID)
		}
		ev.Msg("journal full, archive write dropped")
	}
}

// Run applies queued writes until ctx is done, then drains what is left.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-j.queue:
			j.apply(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-j.queue:
					j.apply(rec)
				default:
					j.logger.Debug().Msg("journal drained")
					return nil
				}
			}
		}
	}
}

func (j *Journal) apply(rec record) {
	var err error
	switch {
	case rec.room != nil:
		err = j.store.UpsertRoom(*rec.room)
	case rec.message != nil:
		err = j.store.UpsertMessage(*rec.message)
	}
	if err != nil {
		j.logger.Error().Err(err).Msg("archive write failed")
	}
}
