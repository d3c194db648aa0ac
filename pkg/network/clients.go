package network

import (
	"fmt"
	"sync"

	"github.com/AmatanHead/points-game/pkg/messages"
	"github.com/gorilla/websocket"
)

const (
	// ClientIDMaxRetries represents the maximum number of retries when generating a unique ID
	ClientIDMaxRetries = 1024
)

// Client represents a connected renderer
type Client struct {
	ID     uint32
	WSConn *websocket.Conn
	// Send buffers the messages waiting to be written to WSConn
	Send chan *messages.Message
}

// ClientManager manages connected renderers
type ClientManager struct {
	clients     map[uint32]*Client
	clientsLock sync.RWMutex
	nextID      uint32
}

// NewClientManager creates a new ClientManager
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[uint32]*Client),
		nextID:  1,
	}
}

// GetClients returns a slice with all connected clients.
func (cm *ClientManager) GetClients() []*Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	clients := make([]*Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		clients = append(clients, client)
	}
	return clients
}

// Count returns the number of connected clients
func (cm *ClientManager) Count() int {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	return len(cm.clients)
}

// AddClient registers a websocket connection and returns the new client
func (cm *ClientManager) AddClient(conn *websocket.Conn) (*Client, error) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()
	clientID, err := cm.generateUniqueID(ClientIDMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a unique ID: %v", err)
	}
	client := &Client{
		ID:     clientID,
		WSConn: conn,
		Send:   make(chan *messages.Message, messages.MessageBufferSize),
	}
	cm.clients[clientID] = client
	return client, nil
}

// RemoveClient removes a client from the manager and closes its send
// buffer. It reports whether the client was still registered.
func (cm *ClientManager) RemoveClient(clientID uint32) bool {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client, exists := cm.clients[clientID]
	if !exists {
		return false
	}
	delete(cm.clients, clientID)
	close(client.Send)
	return true
}

// Broadcast queues msg for every client without blocking. The IDs of
// clients whose buffer is full are returned.
func (cm *ClientManager) Broadcast(msg *messages.Message) []uint32 {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()

	var slow []uint32
	for id, client := range cm.clients {
		select {
		case client.Send <- msg:
		default:
			slow = append(slow, id)
		}
	}
	return slow
}

// SendTo queues msg for one client without blocking.
func (cm *ClientManager) SendTo(clientID uint32, msg *messages.Message) bool {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()

	client, ok := cm.clients[clientID]
	if !ok {
		return false
	}
	select {
	case client.Send <- msg:
		return true
	default:
		return false
	}
}

// Exists reports whether a client is registered
func (cm *ClientManager) Exists(clientID uint32) bool {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	_, ok := cm.clients[clientID]
	return ok
}

// generateUniqueID generates a unique client ID with a maximum number of retries
// it reads from the clients, so it needs to be locked before calling
func (cm *ClientManager) generateUniqueID(maxRetries int) (uint32, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		id := cm.nextID
		cm.nextID++
		if id == 0 {
			continue
		}
		if _, ok := cm.clients[id]; !ok {
			return id, nil
		}
	}

	return 0, fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}
