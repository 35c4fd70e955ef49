package websocket

import (
	"context"
	"sync"
)

type subscriptionRequest struct {
	client    *Client
	room      string
	subscribe bool
}

// Hub tracks connected clients and their room subscriptions. Rooms are chat
// ids; a user may hold several connections at once and each subscribes
// independently. The hub is created in main and injected wherever fan-out
// is needed.
type Hub struct {
	mu sync.RWMutex

	// clients maps connection id to client
	clients map[string]*Client

	// rooms maps room name to its subscribed clients
	rooms map[string]map[*Client]struct{}

	register     chan *Client
	unregister   chan *Client
	subscription chan subscriptionRequest
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		rooms:        make(map[string]map[*Client]struct{}),
		register:     make(chan *Client, 256),
		unregister:   make(chan *Client, 256),
		subscription: make(chan subscriptionRequest, 512),
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case req := <-h.subscription:
			if req.subscribe {
				h.joinRoom(req.client, req.room)
			} else {
				h.leaveRoom(req.client, req.room)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) Subscribe(client *Client, room string) {
	h.subscription <- subscriptionRequest{client: client, room: room, subscribe: true}
}

func (h *Hub) Unsubscribe(client *Client, room string) {
	h.subscription <- subscriptionRequest{client: client, room: room, subscribe: false}
}

// BroadcastRoom sends payload to every client subscribed to the room.
func (h *Hub) BroadcastRoom(room string, payload []byte) {
	h.mu.RLock()
	for c := range h.rooms[room] {
		c.SendMessage(payload)
	}
	h.mu.RUnlock()
}

// BroadcastRoomExcept sends to the room, skipping one user's connections.
func (h *Hub) BroadcastRoomExcept(room, exceptUserID string, payload []byte) {
	h.mu.RLock()
	for c := range h.rooms[room] {
		if c.UserID == exceptUserID {
			continue
		}
		c.SendMessage(payload)
	}
	h.mu.RUnlock()
}

// BroadcastToUser sends to every connection of one user.
func (h *Hub) BroadcastToUser(userID string, payload []byte) {
	h.mu.RLock()
	for _, client := range h.clients {
		if client.UserID == userID {
			client.SendMessage(payload)
		}
	}
	h.mu.RUnlock()
}

// BroadcastAll sends to every connected client.
func (h *Hub) BroadcastAll(payload []byte) {
	h.mu.RLock()
	for _, client := range h.clients {
		client.SendMessage(payload)
	}
	h.mu.RUnlock()
}

// BroadcastAllExcept sends to every connected client except one user's
// connections.
func (h *Hub) BroadcastAllExcept(exceptUserID string, payload []byte) {
	h.mu.RLock()
	for _, client := range h.clients {
		if client.UserID == exceptUserID {
			continue
		}
		client.SendMessage(payload)
	}
	h.mu.RUnlock()
}

// UserConnectionCount reports how many connections a user currently holds.
// Presence transitions fire on the first and last connection only.
func (h *Hub) UserConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, client := range h.clients {
		if client.UserID == userID {
			n++
		}
	}
	return n
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSubscriberCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	for room := range client.rooms {
		if subscribers, ok := h.rooms[room]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.rooms, room)
			}
		}
	}

	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) joinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.trackRoom(room)
}

func (h *Hub) leaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.rooms[room]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.rooms, room)
		}
	}
	client.untrackRoom(room)
}
