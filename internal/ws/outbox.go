package ws

import (
	"sync"

	"parley/internal/logging"
	"parley/internal/models"

	"github.com/rs/zerolog"
)

// Outbox owns the buffered channel of every live connection. It implements
// hub.Emitter: Emit never blocks, a full buffer drops the event.
type Outbox struct {
	// Map of connection id -> outbound channel
	queues map[string]chan models.ServerEvent
	size   int
	logger zerolog.Logger

	mu sync.RWMutex
}

func NewOutbox(size int, logger zerolog.Logger) *Outbox {
	return &Outbox{
		queues: make(map[string]chan models.ServerEvent),
		size:   size,
		logger: logging.Component(logger, "outbox"),
	}
}

// Open creates the connection's channel. Opening twice returns the same one.
func (o *Outbox) Open(connection string) <-chan models.ServerEvent {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ch, ok := o.queues[connection]; ok {
		return ch
	}
	ch := make(chan models.ServerEvent, o.size)
	o.queues[connection] = ch
	return ch
}

// Close closes and forgets the connection's channel.
func (o *Outbox) Close(connection string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ch, ok := o.queues[connection]; ok {
		close(ch)
		delete(o.queues, connection)
	}
}

// CloseAll closes every channel, ending all connection loops.
func (o *Outbox) CloseAll() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for connection, ch := range o.queues {
		close(ch)
		delete(o.queues, connection)
	}
}

func (o *Outbox) Emit(connection string, event models.ServerEvent) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	ch, ok := o.queues[connection]
	if !ok {
		return
	}

	select {
	case ch <- event:
	default:
		o.logger.Warn().
			Str(logging.FieldConnection, connection).
			Str(logging.FieldEvent, string(event.Type)).
			Msg("outbox full, event dropped")
	}
}

func (o *Outbox) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.queues)
}
