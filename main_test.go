package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"parley/internal/api"
	"parley/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type    models.ServerEventType `json:"type"`
	Payload json.RawMessage        `json:"payload"`
}

func TestIntegration(t *testing.T) {
	apiAddr := "127.0.0.1:8887"

	t.Setenv("API_ADDR", apiAddr)
	t.Setenv("ARCHIVE_DB", filepath.Join(t.TempDir(), "archive.db"))
	t.Setenv("LOG_LEVEL", "disabled")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")

	// Start server in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(ctx)
	}()

	base := fmt.Sprintf("http://%s", apiAddr)
	waitForServer(t, base+"/healthz", 20)

	// Step 1: two identities join over websockets
	alice := dialWS(t, apiAddr)
	send(t, alice, models.ClientEventJoin, models.JoinRequest{DisplayName: "alice"})
	readUntil(t, alice, models.ServerEventJoined)

	bob := dialWS(t, apiAddr)
	send(t, bob, models.ClientEventJoin, models.JoinRequest{DisplayName: "bob"})
	readUntil(t, bob, models.ServerEventJoined)

	// Step 2: a second "alice" is refused
	mallory := dialWS(t, apiAddr)
	send(t, mallory, models.ClientEventJoin, models.JoinRequest{DisplayName: "alice"})
	var refused models.ErrorPayload
	require.NoError(t, json.Unmarshal(readUntil(t, mallory, models.ServerEventError).Payload, &refused))
	require.Equal(t, models.ErrorKindNameTaken, refused.Kind)

	// Step 3: alice talks in general, bob reads it
	send(t, alice, models.ClientEventSendMessage, models.SendMessageRequest{
		RoomID: "general",
		Body:   models.BodyRequest{Kind: models.BodyKindText, Payload: "hello"},
	})
	var sent models.MessageSentPayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, models.ServerEventMessageSent).Payload, &sent))

	var received models.NewMessagePayload
	require.NoError(t, json.Unmarshal(readUntil(t, bob, models.ServerEventNewMessage).Payload, &received))
	require.Equal(t, sent.MessageID, received.Message.ID)

	send(t, bob, models.ClientEventMarkRead, models.MessageRequest{MessageID: sent.MessageID, RoomID: "general"})
	readUntil(t, alice, models.ServerEventMessageRead)

	// Step 4: REST read model
	var users []models.Identity
	getJSON(t, base+"/api/users", &users)
	require.Len(t, users, 2)

	var page models.Page
	getJSON(t, base+"/api/rooms/general/messages", &page)
	require.Len(t, page.Messages, 1)
	require.Len(t, page.Messages[0].ReadBy, 2)

	// Step 5: the archive catches up with the read receipt
	require.Eventually(t, func() bool {
		var archived api.ArchiveResponse
		if !tryGetJSON(base+"/api/archive/general", &archived) {
			return false
		}
		return len(archived.Messages) == 1 && len(archived.Messages[0].ReadBy) == 2
	}, 2*time.Second, 20*time.Millisecond)

	// Step 6: shutdown closes the sockets and run returns cleanly
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	require.NoError(t, alice.SetReadDeadline(time.Now().Add(time.Second)))
	for {
		if _, _, err := alice.ReadMessage(); err != nil {
			break
		}
	}
}

func dialWS(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws", addr), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ models.ClientEventType, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(models.ClientEvent{Type: typ, Payload: raw}))
}

func readUntil(t *testing.T, conn *websocket.Conn, typ models.ServerEventType) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == typ {
			return f
		}
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	require.True(t, tryGetJSON(url, v), "GET %s failed", url)
}

func tryGetJSON(url string, v any) bool {
	resp, err := http.Get(url)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	return json.NewDecoder(resp.Body).Decode(v) == nil
}

func waitForServer(t *testing.T, urlStr string, retries int) {
	client := &http.Client{Timeout: 500 * time.Millisecond}

	for i := 0; i < retries; i++ {
		resp, err := client.Get(urlStr)
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("Server failed to start at %s after %d retries", urlStr, retries)
}
