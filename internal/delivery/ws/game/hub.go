package ws_game

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/paramsgit/scribble/internal/model"
)

// Hub tracks connected clients and their room membership and fans events
// out to them. It implements the session package's Broadcaster.
type Hub struct {
	mu sync.RWMutex

	clients map[string]*Client
	rooms   map[model.RoomID]map[*Client]bool

	logger *slog.Logger
}

type HubOption func(*Hub)

func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[model.RoomID]map[*Client]bool),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	mu     sync.Mutex
	roomID model.RoomID
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:   id,
		Conn: conn,
		Send: make(chan []byte, 256),
	}
}

func (c *Client) RoomID() model.RoomID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) setRoomID(roomID model.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

func (h *Hub) RegisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	h.logger.Info("client registered", slog.String("client_id", client.ID))
}

// JoinRoom puts the client into a room's broadcast group. A client belongs
// to at most one room.
func (h *Hub) JoinRoom(client *Client, roomID model.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev := client.RoomID(); prev != model.EmptyRoomID {
		if room, ok := h.rooms[prev]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, prev)
			}
		}
	}

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.setRoomID(roomID)

	h.logger.Info("client joined room",
		slog.String("client_id", client.ID),
		slog.String("room_id", string(roomID)),
	)
}

func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)

	if roomID := client.RoomID(); roomID != model.EmptyRoomID {
		if room, ok := h.rooms[roomID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.logger.Info("client unregistered", slog.String("client_id", client.ID))
}

func (h *Hub) BroadcastToRoom(roomID model.RoomID, event model.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", slog.String("error", err.Error()))
		return
	}

	if clients, ok := h.rooms[roomID]; ok {
		for client := range clients {
			select {
			case client.Send <- data:
			default:
				// Slow consumer; the read pump will reap it.
			}
		}
	}
}

func (h *Hub) SendToPlayer(playerID string, event model.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[playerID]
	if !ok {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", slog.String("error", err.Error()))
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

// StartClientWriting drains the client's send channel onto the socket.
func (h *Hub) StartClientWriting(client *Client) {
	defer client.Conn.Close()

	for message := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}
