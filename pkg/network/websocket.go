// Package network pushes applied views and alerts to websocket renderers.
package network

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/AmatanHead/points-game/pkg/game"
	"github.com/AmatanHead/points-game/pkg/game/types"
	"github.com/AmatanHead/points-game/pkg/log"
	"github.com/AmatanHead/points-game/pkg/messages"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CurrentViewFunc returns the view a newly connected renderer starts from.
type CurrentViewFunc func(ctx context.Context) (*types.DerivedView, error)

// WSHub is a game.Renderer and game.AlertSink that forwards every view and
// alert to the connected websocket renderers.
type WSHub struct {
	clientManager *ClientManager
	current       CurrentViewFunc
}

type NewWSHubOptions struct {
	ClientManager *ClientManager
	// Current is optional
	Current CurrentViewFunc
}

// NewWSHub creates a new WSHub.
func NewWSHub(opts NewWSHubOptions) *WSHub {
	if opts.ClientManager == nil {
		opts.ClientManager = NewClientManager()
	}
	return &WSHub{
		clientManager: opts.ClientManager,
		current:       opts.Current,
	}
}

var (
	_ game.Renderer  = (*WSHub)(nil)
	_ game.AlertSink = (*WSHub)(nil)
)

// SetCurrent sets the source of the initial view sent to new renderers.
func (h *WSHub) SetCurrent(current CurrentViewFunc) {
	h.current = current
}

// Clients returns the number of connected renderers.
func (h *WSHub) Clients() int {
	return h.clientManager.Count()
}

func (h *WSHub) OnSnapshotApplied(v *types.DerivedView) {
	h.broadcast(messages.MessageTypeServerView, v)
}

func (h *WSHub) OnAlert(alert *game.Alert) {
	h.broadcast(messages.MessageTypeServerAlert, alert)
}

func (h *WSHub) broadcast(t string, payload interface{}) {
	msg, err := messages.NewMessage(t, payload)
	if err != nil {
		log.Error("Failed to create %s message: %v", t, err)
		return
	}
	for _, id := range h.clientManager.Broadcast(msg) {
		log.Warn("Dropping renderer %d, its buffer is full", id)
		h.clientManager.RemoveClient(id)
	}
}

// ServeHTTP upgrades the request and serves the renderer until it hangs up.
func (h *WSHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}
	client, err := h.clientManager.AddClient(conn)
	if err != nil {
		log.Error("Failed to add renderer: %v", err)
		conn.Close()
		return
	}
	log.Debug("Renderer %d connected from %s", client.ID, conn.RemoteAddr().String())

	go h.writePump(client)

	if h.current != nil {
		if v, err := h.current(r.Context()); err == nil {
			msg, err := messages.NewMessage(messages.MessageTypeServerView, v)
			if err == nil {
				h.clientManager.SendTo(client.ID, msg)
			}
		}
	}

	h.readPump(client)
}

// readPump discards what the renderer sends and returns once it is gone.
func (h *WSHub) readPump(client *Client) {
	defer func() {
		h.clientManager.RemoveClient(client.ID)
		log.Trace("Connection closed for renderer %d", client.ID)
	}()

	for {
		if _, _, err := client.WSConn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error("Error reading WebSocket message from renderer %d: %v", client.ID, err)
			}
			return
		}
	}
}

func (h *WSHub) writePump(client *Client) {
	defer client.WSConn.Close()

	for msg := range client.Send {
		if err := WriteMessageToWS(client.WSConn, msg); err != nil {
			log.Debug("Failed to write to renderer %d: %v", client.ID, err)
			h.clientManager.RemoveClient(client.ID)
			return
		}
	}
	client.WSConn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
}

// WriteMessageToWS writes a Message to a WebSocket connection
func WriteMessageToWS(conn *websocket.Conn, msg *messages.Message) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}
	return nil
}

// ReadMessageFromWS reads a Message from a WebSocket connection
func ReadMessageFromWS(conn *websocket.Conn) (*messages.Message, error) {
	var msg messages.Message
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
