package network

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AmatanHead/points-game/pkg/game"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/messages"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *messages.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msg, err := ReadMessageFromWS(conn)
	require.NoError(t, err)
	return msg
}

func TestWSHub_Broadcast(t *testing.T) {
	initial := &types.DerivedView{Height: 1, TurnCaption: "Your move"}
	hub := NewWSHub(NewWSHubOptions{
		Current: func(ctx context.Context) (*types.DerivedView, error) {
			return initial, nil
		},
	})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	first := dial(t, srv)
	second := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 5*time.Millisecond)

	// every renderer starts from the current view
	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, messages.MessageTypeServerView, msg.Type)
		var v types.DerivedView
		require.NoError(t, json.Unmarshal(msg.Payload, &v))
		assert.Equal(t, uint64(1), v.Height)
	}

	hub.OnSnapshotApplied(&types.DerivedView{Height: 2, RedScore: 3})
	hub.OnAlert(&game.Alert{Title: game.AlertTitleUpdate, Message: "boom"})

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, messages.MessageTypeServerView, msg.Type)
		var v types.DerivedView
		require.NoError(t, json.Unmarshal(msg.Payload, &v))
		assert.Equal(t, uint64(2), v.Height)
		assert.Equal(t, 3, v.RedScore)

		msg = readMessage(t, conn)
		assert.Equal(t, messages.MessageTypeServerAlert, msg.Type)
		var a game.Alert
		require.NoError(t, json.Unmarshal(msg.Payload, &a))
		assert.Equal(t, game.AlertTitleUpdate, a.Title)
		assert.Equal(t, "boom", a.Message)
	}

	first.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestWSHub_NoCurrentView(t *testing.T) {
	hub := NewWSHub(NewWSHubOptions{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.OnSnapshotApplied(&types.DerivedView{Height: 7})
	msg := readMessage(t, conn)
	var v types.DerivedView
	require.NoError(t, json.Unmarshal(msg.Payload, &v))
	assert.Equal(t, uint64(7), v.Height)
}

func TestClientManager(t *testing.T) {
	cm := NewClientManager()

	a, err := cm.AddClient(nil)
	require.NoError(t, err)
	b, err := cm.AddClient(nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, cm.Count())

	msg := &messages.Message{Type: messages.MessageTypeServerView}
	for i := 0; i < messages.MessageBufferSize; i++ {
		assert.Empty(t, cm.Broadcast(msg))
	}
	// both buffers are full now
	assert.ElementsMatch(t, []uint32{a.ID, b.ID}, cm.Broadcast(msg))
	assert.False(t, cm.SendTo(a.ID, msg))

	assert.True(t, cm.RemoveClient(a.ID))
	assert.False(t, cm.RemoveClient(a.ID))
	assert.False(t, cm.Exists(a.ID))
	assert.True(t, cm.Exists(b.ID))
	assert.False(t, cm.SendTo(a.ID, msg))

	// the send buffer of a removed client is closed
	for range a.Send {
	}
}
