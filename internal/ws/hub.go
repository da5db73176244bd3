package ws

import (
	"log/slog"
	"sync"
)

// Hub is the in-process registry of live connections and their room
// memberships. Each gateway process has exactly one Hub holding only local
// state; nothing here is shared across processes, so cross-process facts
// (order locks) never live in the hub.
type Hub struct {
	log *slog.Logger

	mu    sync.RWMutex
	conns map[string]*Connection
	rooms map[string]map[*Connection]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log,
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[*Connection]struct{}),
	}
}

// Add registers an authenticated connection.
func (h *Hub) Add(c *Connection) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
	h.log.Info("connection admitted", "conn_id", c.ID, "user_id", c.Principal.UserID)
}

// Remove drops a connection and all of its room memberships. It does not
// touch any order lock the principal may hold: release is independent, and
// TTL expiry is the safety net for locks orphaned by a vanished editor.
func (h *Hub) Remove(c *Connection) {
	h.mu.Lock()
	delete(h.conns, c.ID)
	c.mu.Lock()
	memberOf := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		memberOf = append(memberOf, room)
	}
	c.mu.Unlock()
	for _, room := range memberOf {
		if members, ok := h.rooms[room]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()
	c.Close()
	h.log.Info("connection removed", "conn_id", c.ID, "user_id", c.Principal.UserID)
}

// Join adds the connection to a room. Joining a room twice is idempotent.
func (h *Hub) Join(c *Connection, room string) {
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Connection]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
	size := len(members)
	h.mu.Unlock()
	h.log.Debug("room joined", "room", room, "members", size)
}

// BroadcastAll queues an event on every live connection. Broadcasting to
// zero connections is a successful no-op. The member snapshot is taken under
// the lock but the sends happen outside it, so a stalled socket cannot hold
// up registry operations.
func (h *Hub) BroadcastAll(event string, payload any) {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.Send(event, payload)
	}
}

// BroadcastRoom queues an event on every member of one room. Unknown or
// empty rooms are a successful no-op.
func (h *Hub) BroadcastRoom(room, event string, payload any) {
	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Connection, 0, len(members))
	for c := range members {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.Send(event, payload)
	}
}

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// RoomLen reports the membership size of one room.
func (h *Hub) RoomLen(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
