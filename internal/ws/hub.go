package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"hrchat-service/internal/models"
	"hrchat-service/internal/observability"
)

// Hub maintains the live rooms: one room per chat, holding the connections
// of its currently online members. The hub keeps no durable backlog; a
// reconnecting client catches up over REST.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[*client]struct{}
	users  map[int64]map[*client]struct{}
	logger *zap.SugaredLogger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:  make(map[int64]map[*client]struct{}),
		users:  make(map[int64]map[*client]struct{}),
		logger: logger,
	}
}

// register places a connection into one room per chat the user belongs to,
// computed at connect time.
func (h *Hub) register(c *client, chatIDs []int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.users[c.info.UserID]; !ok {
		h.users[c.info.UserID] = make(map[*client]struct{})
	}
	h.users[c.info.UserID][c] = struct{}{}

	c.rooms = make(map[int64]struct{}, len(chatIDs))
	for _, chatID := range chatIDs {
		h.addToRoom(c, chatID)
	}
	observability.AddRoomSubscriptions(len(c.rooms))
}

// unregister detaches a connection from every room and closes its send
// channel. Safe to call more than once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if conns, ok := h.users[c.info.UserID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, c.info.UserID)
		}
	}
	for chatID := range c.rooms {
		h.removeFromRoom(c, chatID)
	}
	observability.AddRoomSubscriptions(-len(c.rooms))
	close(c.send)
}

// BroadcastToChat delivers an event to every connection in the chat's room,
// skipping connections of excludeUserID (zero excludes nobody). Delivery is
// at-most-once: a client too slow to drain its buffer is dropped.
func (h *Hub) BroadcastToChat(chatID int64, event models.Event, excludeUserID int64) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorw("marshal ws event", "type", event.Type, "error", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.rooms[chatID] {
		if excludeUserID != 0 && c.info.UserID == excludeUserID {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	observability.IncWSEvent(event.Type)

	for _, c := range slow {
		h.logger.Warnw("dropping slow websocket client", "conn_id", c.info.ConnID, "user_id", c.info.UserID)
		h.unregister(c)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Subscribe attaches every live connection of the user to the chat's room
// and pushes a resubscribe event to them, so a member added mid-session does
// not miss live messages until their next reconnect.
func (h *Hub) Subscribe(userID, chatID int64) {
	payload, _ := json.Marshal(models.Event{Type: models.EventResubscribe, ChatID: chatID})

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.users[userID] {
		if _, ok := c.rooms[chatID]; ok {
			continue
		}
		h.addToRoom(c, chatID)
		observability.AddRoomSubscriptions(1)
		select {
		case c.send <- payload:
		default:
		}
	}
}

// Unsubscribe detaches the user's live connections from the chat's room.
func (h *Hub) Unsubscribe(userID, chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.users[userID] {
		if _, ok := c.rooms[chatID]; !ok {
			continue
		}
		h.removeFromRoom(c, chatID)
		delete(c.rooms, chatID)
		observability.AddRoomSubscriptions(-1)
	}
}

// CloseChat tears down the chat's room after the chat itself was deleted.
// Connections stay alive; they simply stop receiving events for this chat.
func (h *Hub) CloseChat(chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[chatID] {
		delete(c.rooms, chatID)
		observability.AddRoomSubscriptions(-1)
	}
	delete(h.rooms, chatID)
}

// sendToClient delivers an event to one connection only.
func (h *Hub) sendToClient(c *client, event models.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// addToRoom and removeFromRoom require h.mu held for writing.
func (h *Hub) addToRoom(c *client, chatID int64) {
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[*client]struct{})
	}
	h.rooms[chatID][c] = struct{}{}
	c.rooms[chatID] = struct{}{}
}

func (h *Hub) removeFromRoom(c *client, chatID int64) {
	if conns, ok := h.rooms[chatID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, chatID)
		}
	}
}
