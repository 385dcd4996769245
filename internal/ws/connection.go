package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"parley/internal/logging"
	"parley/internal/models"

	"github.com/rs/zerolog"
)

type wsConnection interface {
	Close() error
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
}

type messageHub interface {
	Connect(connection string)
	Disconnect(connection string)
	Dispatch(connection string, event models.ClientEvent)
}

type mailbox interface {
	Open(connection string) <-chan models.ServerEvent
	Close(connection string)
}

// inbound is a frame read from the client, or the reason it could not be
// decoded.
type inbound struct {
	event models.ClientEvent
	err   error
}

type Connection struct {
	ws         wsConnection
	hub        messageHub
	outbox     mailbox
	id         string
	fromClient chan inbound
	fromServer <-chan models.ServerEvent
	errorCh    chan error
	logger     zerolog.Logger
}

// NewConnection opens the connection's outbox and registers it with the hub.
func NewConnection(
	hub messageHub,
	outbox mailbox,
	ws wsConnection,
	id string,
	logger zerolog.Logger,
) *Connection {
	c := &Connection{
		ws:         ws,
		hub:        hub,
		outbox:     outbox,
		id:         id,
		fromClient: make(chan inbound),
		fromServer: outbox.Open(id),
		errorCh:    make(chan error, 2),
		logger:     logger.With().Str(logging.FieldConnection, id).Logger(),
	}
	hub.Connect(id)
	return c
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.hub.Disconnect(c.id)
		c.outbox.Close(c.id)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	_ = c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		var in inbound
		if err := json.Unmarshal(data, &in.event); err != nil {
			in = inbound{err: err}
		}
		select {
		case c.fromClient <- in:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case in := <-c.fromClient:
			if err := c.processClientEvent(in); err != nil {
				return err
			}
		case ev, ok := <-c.fromServer:
			if !ok {
				c.logger.Debug().Msg("outbox closed")
				return nil
			}
			if err := c.ws.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Connection) processClientEvent(in inbound) error {
	if in.err != nil {
		c.logger.Debug().Err(in.err).Msg("malformed frame")
		return c.ws.WriteJSON(models.ServerEvent{
			Type: models.ServerEventError,
			Payload: models.ErrorPayload{
				Kind:   models.ErrorKindValidation,
				Detail: "malformed frame: " + in.err.Error(),
			},
		})
	}

	c.hub.Dispatch(c.id, in.event)
	return nil
}
