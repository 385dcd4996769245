package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"parley/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type mockWS struct {
	readCh      chan any // models.ClientEvent, raw []byte or error
	writeCh     chan any
	closeCh     chan struct{}
	closed      bool
	errToReturn error
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan any, 10),
		writeCh: make(chan any, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockWS) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.closeCh)
	return nil
}

func (m *mockWS) WriteJSON(v any) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	m.writeCh <- v
	return nil
}

func (m *mockWS) ReadMessage() (int, []byte, error) {
	if m.errToReturn != nil {
		return 0, nil, m.errToReturn
	}
	select {
	case item, ok := <-m.readCh:
		if !ok {
			return 0, nil, errors.New("closed")
		}
		switch v := item.(type) {
		case error:
			return 0, nil, v
		case []byte:
			return websocket.TextMessage, v, nil
		default:
			data, err := json.Marshal(v)
			return websocket.TextMessage, data, err
		}
	case <-m.closeCh:
		return 0, nil, errors.New("connection closed")
	}
}

type mockHub struct {
	connectCh    chan string
	disconnectCh chan string
	dispatchCh   chan models.ClientEvent
}

func newMockHub() *mockHub {
	return &mockHub{
		connectCh:    make(chan string, 10),
		disconnectCh: make(chan string, 10),
		dispatchCh:   make(chan models.ClientEvent, 10),
	}
}

func (m *mockHub) Connect(connection string)    { m.connectCh <- connection }
func (m *mockHub) Disconnect(connection string) { m.disconnectCh <- connection }
func (m *mockHub) Dispatch(_ string, event models.ClientEvent) {
	m.dispatchCh <- event
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for value")
	}
	var zero T
	return zero
}

func TestConnection_Lifecycle(t *testing.T) {
	hub := newMockHub()
	outbox := NewOutbox(10, zerolog.Nop())
	ws := newMockWS()
	id := "conn1"

	conn := NewConnection(hub, outbox, ws, id, zerolog.Nop())
	require.NotNil(t, conn)
	require.Equal(t, id, receive(t, hub.connectCh))
	require.Equal(t, 1, outbox.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- conn.Handle(ctx)
	}()

	// client -> hub
	join := models.ClientEvent{Type: models.ClientEventJoin, Payload: json.RawMessage(`{"displayName":"alice"}`)}
	ws.readCh <- join
	require.Equal(t, join.Type, receive(t, hub.dispatchCh).Type)

	// hub -> client
	outbox.Emit(id, models.ServerEvent{Type: models.ServerEventOnlineUsers})
	written, ok := receive(t, ws.writeCh).(models.ServerEvent)
	require.True(t, ok)
	require.Equal(t, models.ServerEventOnlineUsers, written.Type)

	cancel()
	require.NoError(t, receive(t, done))
	require.Equal(t, id, receive(t, hub.disconnectCh))
	require.True(t, ws.closed)
	require.Zero(t, outbox.Len())
}

func TestConnection_WSError(t *testing.T) {
	hub := newMockHub()
	ws := newMockWS()

	conn := NewConnection(hub, NewOutbox(10, zerolog.Nop()), ws, "conn2", zerolog.Nop())
	ws.errToReturn = errors.New("read error")

	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	require.Error(t, receive(t, done))
	require.True(t, ws.closed)
	require.Equal(t, "conn2", receive(t, hub.disconnectCh))
}

func TestConnection_MalformedFrame(t *testing.T) {
	hub := newMockHub()
	ws := newMockWS()

	conn := NewConnection(hub, NewOutbox(10, zerolog.Nop()), ws, "conn3", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error)
	go func() {
		done <- conn.Handle(ctx)
	}()

	frames := [][]byte{
		[]byte(`{not json`),
		[]byte(`{"type":"join"`),
		{},
		[]byte(`{"type":42}`),
	}
	for _, frame := range frames {
		ws.readCh <- frame

		written, ok := receive(t, ws.writeCh).(models.ServerEvent)
		require.True(t, ok, "frame %q", frame)
		require.Equal(t, models.ServerEventError, written.Type)
		require.Equal(t, models.ErrorKindValidation, written.Payload.(models.ErrorPayload).Kind)
	}

	// the connection survives
	ws.readCh <- models.ClientEvent{Type: models.ClientEventJoinRoom}
	require.Equal(t, models.ClientEventJoinRoom, receive(t, hub.dispatchCh).Type)

	cancel()
	require.NoError(t, receive(t, done))
}

func TestConnection_OutboxClosed(t *testing.T) {
	hub := newMockHub()
	outbox := NewOutbox(10, zerolog.Nop())
	ws := newMockWS()

	conn := NewConnection(hub, outbox, ws, "conn4", zerolog.Nop())
	done := make(chan error)
	go func() {
		done <- conn.Handle(context.Background())
	}()

	outbox.CloseAll()
	require.NoError(t, receive(t, done))
	require.True(t, ws.closed)
}
