package ws

import (
	"sync"
)

// Client is one connection's hub handle. Frames queued on Send are
// drained by the connection's write pump; a full buffer drops the frame
// rather than blocking the broadcaster.
type Client struct {
	ID     string
	UserID string // set once the connection authenticates
	Send   chan []byte
}

func NewClient(id string) *Client {
	return &Client{ID: id, Send: make(chan []byte, 256)}
}

func (c *Client) enqueue(b []byte) {
	if b == nil {
		return
	}
	select {
	case c.Send <- b:
	default:
		// slow consumer, drop
	}
}

// Hub tracks room membership and per-user personal channels. Membership is
// ephemeral: it exists only while the connection is open and is owned
// exclusively by this process.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{} // thread id -> members
	users map[string]map[*Client]struct{} // user id -> connections
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]struct{}),
		users: make(map[string]map[*Client]struct{}),
	}
}

// RegisterUser binds an authenticated connection to its personal channel.
// A user may hold several connections (one per tab or device).
func (h *Hub) RegisterUser(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[c.UserID]; !ok {
		h.users[c.UserID] = make(map[*Client]struct{})
	}
	h.users[c.UserID][c] = struct{}{}
}

func (h *Hub) JoinRoom(threadID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[threadID]; !ok {
		h.rooms[threadID] = make(map[*Client]struct{})
	}
	h.rooms[threadID][c] = struct{}{}
}

// RemoveClient discards every membership held by the connection.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, id)
		}
	}
	if set, ok := h.users[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.UserID)
		}
	}
}

// BroadcastRoom queues a frame for every room member except skip.
func (h *Hub) BroadcastRoom(threadID string, frame []byte, skip *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[threadID] {
		if c == skip {
			continue
		}
		c.enqueue(frame)
	}
}

// SendToUser queues a frame on every connection the user holds.
func (h *Hub) SendToUser(userID string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		c.enqueue(frame)
	}
}

// UserConnections reports how many connections a user currently holds.
func (h *Hub) UserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
