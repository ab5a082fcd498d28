package server

import (
	"sort"
	"sync"

	"devconnect/models"
)

// Hub tracks open websockets and which user each one registered as.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	users   map[string]map[*Client]struct{}
	names   map[string]string
}

func newHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		users:   make(map[string]map[*Client]struct{}),
		names:   make(map[string]string),
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// bind registers c as user. It reports whether this is the user's first
// live connection. A connection registering again as someone else leaves
// its previous user first; that user's departure is returned as left.
func (h *Hub) bind(c *Client, user models.User) (first bool, left string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.user != nil {
		if c.user.ID == user.ID {
			return false, ""
		}
		if h.unbindLocked(c) {
			left = c.user.ID
		}
	}

	conns := h.users[user.ID]
	if conns == nil {
		conns = make(map[*Client]struct{})
		h.users[user.ID] = conns
	}
	first = len(conns) == 0
	conns[c] = struct{}{}
	h.names[user.ID] = user.Username
	u := user
	c.user = &u
	return first, left
}

// remove forgets c. It returns the user c was bound to and whether that
// was the user's last connection.
func (h *Hub) remove(c *Client) (models.User, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, c)
	if c.user == nil {
		return models.User{}, false
	}
	return *c.user, h.unbindLocked(c)
}

func (h *Hub) unbindLocked(c *Client) bool {
	id := c.user.ID
	conns := h.users[id]
	delete(conns, c)
	if len(conns) > 0 {
		return false
	}
	delete(h.users, id)
	delete(h.names, id)
	return true
}

// userOf returns the user c registered as.
func (h *Hub) userOf(c *Client) (models.User, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.user == nil {
		return models.User{}, false
	}
	return *c.user, true
}

// online returns the ids of users with at least one registered connection.
func (h *Hub) online() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.users))
	for id := range h.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) all() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// broadcast queues frame on every connection except skip. With
// registeredOnly set, anonymous connections are left out.
func (h *Hub) broadcast(frame []byte, skip *Client, registeredOnly bool) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c == skip || (registeredOnly && c.user == nil) {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.queue(frame)
	}
}

// sendToUser queues frame on every connection of userID. It reports
// whether the user had any.
func (h *Hub) sendToUser(userID string, frame []byte) bool {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.queue(frame)
	}
	return len(targets) > 0
}

func (h *Hub) stats() (int, []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.names))
	for _, name := range h.names {
		users = append(users, name)
	}
	return len(h.clients), users
}
