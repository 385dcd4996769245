package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientEvent_Decode(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		target  func() any
		wantErr bool
	}{
		{"join ok", `{"type":"join","payload":{"displayName":"alice"}}`, func() any { return &JoinRequest{} }, false},
		{"join missing name", `{"type":"join","payload":{}}`, func() any { return &JoinRequest{} }, true},
		{"missing payload", `{"type":"join"}`, func() any { return &JoinRequest{} }, true},
		{"wrong json type", `{"type":"joinRoom","payload":{"roomId":5}}`, func() any { return &RoomRequest{} }, true},
		{"send ok", `{"type":"sendMessage","payload":{"roomId":"general","body":{"kind":"text","payload":"hi"}}}`, func() any { return &SendMessageRequest{} }, false},
		{"send bad kind", `{"type":"sendMessage","payload":{"roomId":"general","body":{"kind":"video","payload":"x"}}}`, func() any { return &SendMessageRequest{} }, true},
		{"send no body", `{"type":"sendMessage","payload":{"roomId":"general"}}`, func() any { return &SendMessageRequest{} }, true},
		{"typing false ok", `{"type":"typing","payload":{"roomId":"general","isTyping":false}}`, func() any { return &TypingRequest{} }, false},
		{"typing missing flag", `{"type":"typing","payload":{"roomId":"general"}}`, func() any { return &TypingRequest{} }, true},
		{"create private ok", `{"type":"createRoom","payload":{"name":"x","visibility":"private"}}`, func() any { return &CreateRoomRequest{} }, false},
		{"create bad visibility", `{"type":"createRoom","payload":{"name":"x","visibility":"secret"}}`, func() any { return &CreateRoomRequest{} }, true},
		{"load without anchor", `{"type":"loadMessages","payload":{"roomId":"general","limit":5}}`, func() any { return &LoadMessagesRequest{} }, false},
		{"load negative limit", `{"type":"loadMessages","payload":{"roomId":"general","limit":-1}}`, func() any { return &LoadMessagesRequest{} }, true},
		{"reaction zero id", `{"type":"addReaction","payload":{"roomId":"general","messageId":0,"symbol":"+1"}}`, func() any { return &ReactionRequest{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ev ClientEvent
			require.NoError(t, json.Unmarshal([]byte(tt.event), &ev))

			err := ev.Decode(tt.target())
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestKindOf(t *testing.T) {
	require.Equal(t, ErrorKindNameTaken, KindOf(fmt.Errorf("join alice: %w", ErrNameTaken)))
	require.Equal(t, ErrorKindUserNotFound, KindOf(ErrUserNotFound))
	require.Equal(t, ErrorKindRoomNotFound, KindOf(fmt.Errorf("x: %w", ErrRoomNotFound)))
	require.Equal(t, ErrorKindValidation, KindOf(errors.New("boom")))
}

func TestMessage_Clone(t *testing.T) {
	m := Message{
		ID:        1,
		ReadBy:    []string{"a"},
		Reactions: map[string][]string{"+1": {"a"}},
	}

	c := m.Clone()
	c.ReadBy = append(c.ReadBy, "b")
	c.Reactions["+1"][0] = "z"
	c.Reactions["heart"] = []string{"b"}

	require.Equal(t, []string{"a"}, m.ReadBy)
	require.Equal(t, map[string][]string{"+1": {"a"}}, m.Reactions)
}
