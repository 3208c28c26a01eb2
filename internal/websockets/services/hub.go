package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"tacoshare-tracking-api/internal/websockets/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrHubStopped is returned when publishing after the hub loop exited
var ErrHubStopped = errors.New("websocket hub stopped")

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	UserID   uuid.UUID
	Role     string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
	Channels map[string]bool // Channels this client is subscribed to
	mu       sync.RWMutex
}

// SubscribedChannels returns the channels the client listens on
func (c *Client) SubscribedChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	channels := make([]string, 0, len(c.Channels))
	for channel := range c.Channels {
		channels = append(channels, channel)
	}
	return channels
}

// Hub maintains active WebSocket connections and fans tracking events out to
// channel subscribers
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Clients by user ID for direct messaging
	clientsByUser map[uuid.UUID][]*Client

	// Channel subscriptions (channel_name -> clients)
	channels map[string]map[*Client]bool

	// Register requests from clients (exported for handlers)
	Register chan *Client

	// Unregister requests from clients (exported for handlers)
	Unregister chan *Client

	// Broadcast to specific channel
	channelBroadcast chan *ChannelMessage

	// Send to specific user
	userMessage chan *UserMessage

	done   chan struct{}
	logger *slog.Logger
	mu     sync.RWMutex
}

// ChannelMessage represents a message to broadcast to a channel
type ChannelMessage struct {
	Channel string
	Message []byte
}

// UserMessage represents a message to send to a specific user
type UserMessage struct {
	UserID  uuid.UUID
	Message []byte
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:          make(map[*Client]bool),
		clientsByUser:    make(map[uuid.UUID][]*Client),
		channels:         make(map[string]map[*Client]bool),
		Register:         make(chan *Client),
		Unregister:       make(chan *Client),
		channelBroadcast: make(chan *ChannelMessage, 256),
		userMessage:      make(chan *UserMessage, 256),
		done:             make(chan struct{}),
		logger:           logger.With(slog.String("component", "ws_hub")),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case channelMsg := <-h.channelBroadcast:
			h.deliver(h.channelClients(channelMsg.Channel), channelMsg.Message)

		case userMsg := <-h.userMessage:
			h.deliver(h.userClients(userMsg.UserID), userMsg.Message)
		}
	}
}

// registerClient registers a new client
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.clientsByUser[client.UserID] = append(h.clientsByUser[client.UserID], client)

	client.mu.RLock()
	for channel := range client.Channels {
		if h.channels[channel] == nil {
			h.channels[channel] = make(map[*Client]bool)
		}
		h.channels[channel][client] = true
	}
	client.mu.RUnlock()
}

// unregisterClient unregisters a client
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)

	userClients := h.clientsByUser[client.UserID]
	for i, c := range userClients {
		if c == client {
			h.clientsByUser[client.UserID] = append(userClients[:i], userClients[i+1:]...)
			break
		}
	}
	if len(h.clientsByUser[client.UserID]) == 0 {
		delete(h.clientsByUser, client.UserID)
	}

	client.mu.RLock()
	for channel := range client.Channels {
		if clients, ok := h.channels[channel]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	client.mu.RUnlock()

	close(client.Send)
}

func (h *Hub) channelClients(channel string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.channels[channel]))
	for client := range h.channels[channel] {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) userClients(userID uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*Client(nil), h.clientsByUser[userID]...)
}

// deliver queues message on every client; slow clients are dropped
func (h *Hub) deliver(clients []*Client, message []byte) {
	var slow []*Client
	for _, client := range clients {
		select {
		case client.Send <- message:
		default:
			slow = append(slow, client)
		}
	}
	if len(slow) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range slow {
		h.logger.Warn("dropping slow websocket client",
			slog.String("client_id", client.ID),
			slog.String("user_id", client.UserID.String()),
		)
		h.removeLocked(client)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
}

// SubscribeToChannel subscribes a client to a channel
func (h *Hub) SubscribeToChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]bool)
	}

	h.channels[channel][client] = true

	client.mu.Lock()
	client.Channels[channel] = true
	client.mu.Unlock()
}

// UnsubscribeFromChannel unsubscribes a client from a channel
func (h *Hub) UnsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}

	client.mu.Lock()
	delete(client.Channels, channel)
	client.mu.Unlock()
}

// BroadcastToChannel broadcasts a message to a specific channel
func (h *Hub) BroadcastToChannel(ctx context.Context, channel string, message *models.WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case h.channelBroadcast <- &ChannelMessage{Channel: channel, Message: data}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendToUser sends a message to every connection of a user
func (h *Hub) SendToUser(ctx context.Context, userID uuid.UUID, message *models.WSMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case h.userMessage <- &UserMessage{UserID: userID, Message: data}:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetChannelClientCount returns the number of clients in a channel
func (h *Hub) GetChannelClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
