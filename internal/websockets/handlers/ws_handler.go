package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	trackingmodels "tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/internal/websockets/models"
	"tacoshare-tracking-api/internal/websockets/services"
	"tacoshare-tracking-api/pkg/middleware"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024

	// Bound for one location report sent over the socket
	locationTimeout = 15 * time.Second
)

// LocationReporter accepts courier positions received over the socket
type LocationReporter interface {
	UpdateDeliveryPersonPosition(ctx context.Context, deliveryPersonID uuid.UUID, position trackingmodels.Position) ([]*trackingmodels.Event, error)
}

// WSHandler handles WebSocket connections
type WSHandler struct {
	hub      *services.Hub
	reporter LocationReporter
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler creates a new WebSocket handler.
// allowedOrigins empty or containing "*" accepts any origin.
func NewWSHandler(hub *services.Hub, reporter LocationReporter, allowedOrigins []string, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		hub:      hub,
		reporter: reporter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		logger: logger.With(slog.String("component", "ws_handler")),
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// HandleConnection handles general WebSocket connections. Couriers are
// subscribed to their own channel; others subscribe per order via messages.
func (h *WSHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var channels []string
	if middleware.GetUserRole(r.Context()) == middleware.RoleDriver {
		channels = append(channels, models.DriverChannel(userID))
	}
	h.serve(w, r, channels)
}

// HandleOrderChannel handles WebSocket connections for order-specific channels
func (h *WSHandler) HandleOrderChannel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(r.PathValue("order_id"))
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}

	h.serve(w, r, []string{models.OrderChannel(orderID)})
}

// HandleDriverChannel handles WebSocket connections for driver-specific channels
func (h *WSHandler) HandleDriverChannel(w http.ResponseWriter, r *http.Request) {
	driverID, err := uuid.Parse(r.PathValue("driver_id"))
	if err != nil {
		http.Error(w, "Invalid driver ID", http.StatusBadRequest)
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Verify user is accessing their own channel or is admin
	if userID != driverID && middleware.GetUserRole(r.Context()) != middleware.RoleAdmin {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	h.serve(w, r, []string{models.DriverChannel(driverID)})
}

func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request, channels []string) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userRole := middleware.GetUserRole(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := &services.Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		Role:     userRole,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      h.hub,
		Channels: make(map[string]bool, len(channels)),
	}
	for _, channel := range channels {
		client.Channels[channel] = true
	}

	h.hub.Register <- client

	if msg, err := models.NewConnectedMessage(client.ID, userID.String(), userRole, channels); err == nil {
		h.send(client, msg)
	}

	go h.writePump(client)
	go h.readPump(client)
}

// readPump pumps messages from the WebSocket connection to the hub
func (h *WSHandler) readPump(client *services.Client) {
	defer func() {
		h.hub.Unregister <- client
		_ = client.Conn.Close()
	}()

	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", slog.String("client_id", client.ID), slog.String("error", err.Error()))
			}
			break
		}

		var wsMsg models.WSMessage
		if err := json.Unmarshal(message, &wsMsg); err != nil {
			h.sendError(client, "invalid_message", "Mensaje inválido")
			continue
		}

		h.handleClientMessage(client, &wsMsg)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (h *WSHandler) writePump(client *services.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			if err := client.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Hub closed the channel
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := client.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming messages from clients
func (h *WSHandler) handleClientMessage(client *services.Client, msg *models.WSMessage) {
	switch msg.Type {
	case models.MessageTypePing:
		if pong, err := models.NewWSMessage(models.MessageTypePong, nil); err == nil {
			h.send(client, pong)
		}

	case models.MessageTypeSubscribe, models.MessageTypeUnsubscribe:
		var data models.SubscriptionData
		if err := json.Unmarshal(msg.Data, &data); err != nil || !h.canSubscribe(client, data.Channel) {
			h.sendError(client, "invalid_channel", "Canal inválido o no autorizado")
			return
		}
		if msg.Type == models.MessageTypeSubscribe {
			h.hub.SubscribeToChannel(client, data.Channel)
		} else {
			h.hub.UnsubscribeFromChannel(client, data.Channel)
		}

	case models.MessageTypeLocation:
		h.handleLocation(client, msg)

	default:
		h.sendError(client, "unsupported_type", "Tipo de mensaje no soportado")
	}
}

func (h *WSHandler) handleLocation(client *services.Client, msg *models.WSMessage) {
	if client.Role != middleware.RoleDriver || h.reporter == nil {
		h.sendError(client, "forbidden", "Solo repartidores pueden reportar ubicación")
		return
	}

	var data models.LocationData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		h.sendError(client, "invalid_location", "Ubicación inválida")
		return
	}

	position := trackingmodels.Position{
		Latitude:  data.Latitude,
		Longitude: data.Longitude,
		Accuracy:  data.Accuracy,
		Heading:   data.Heading,
		Speed:     data.Speed,
		Timestamp: time.Now(),
	}
	if data.Timestamp != nil && !data.Timestamp.IsZero() {
		position.Timestamp = *data.Timestamp
	}

	ctx, cancel := context.WithTimeout(context.Background(), locationTimeout)
	defer cancel()
	if _, err := h.reporter.UpdateDeliveryPersonPosition(ctx, client.UserID, position); err != nil {
		h.sendError(client, "invalid_location", err.Error())
	}
}

// canSubscribe allows any order channel and only the caller's own driver channel
func (h *WSHandler) canSubscribe(client *services.Client, channel string) bool {
	kind, rawID, ok := strings.Cut(channel, ":")
	if !ok {
		return false
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return false
	}

	switch kind {
	case "order":
		return true
	case "driver":
		return id == client.UserID || client.Role == middleware.RoleAdmin
	}
	return false
}

func (h *WSHandler) sendError(client *services.Client, code, message string) {
	if msg, err := models.NewErrorMessage(code, message); err == nil {
		h.send(client, msg)
	}
}

// send queues msg without blocking the read loop
func (h *WSHandler) send(client *services.Client, msg *models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	defer func() {
		// Send may already be closed by the hub
		_ = recover()
	}()
	select {
	case client.Send <- data:
	default:
	}
}
