package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	// Tracking events, mirrored from the tracking store
	MessageTypePositionUpdate    MessageType = "position_update"
	MessageTypeStatusChange      MessageType = "status_change"
	MessageTypeTrackingStarted   MessageType = "tracking_started"
	MessageTypeRouteRecalculated MessageType = "route_recalculated"

	// Client requests
	MessageTypeLocation    MessageType = "location"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"

	// Connection events
	MessageTypeConnected MessageType = "connected"
	MessageTypePing      MessageType = "ping"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	MessageID string          `json:"message_id"`
}

// LocationData is sent by couriers to report their position over the socket
type LocationData struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Heading   *float64   `json:"heading,omitempty"`
	Speed     *float64   `json:"speed,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// SubscriptionData names the channel of a subscribe/unsubscribe request
type SubscriptionData struct {
	Channel string `json:"channel"`
}

// ErrorData represents error message data
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectedData represents connection confirmation data
type ConnectedData struct {
	ClientID string   `json:"client_id"`
	UserID   string   `json:"user_id,omitempty"`
	Role     string   `json:"role,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Message  string   `json:"message"`
}

// OrderChannel is the channel carrying events of one order
func OrderChannel(orderID uuid.UUID) string {
	return "order:" + orderID.String()
}

// DriverChannel is the channel carrying events of one delivery person
func DriverChannel(driverID uuid.UUID) string {
	return "driver:" + driverID.String()
}

// NewWSMessage creates a new WebSocket message
func NewWSMessage(msgType MessageType, data any) (*WSMessage, error) {
	msg := &WSMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		MessageID: uuid.New().String(),
	}
	if data == nil {
		return msg, nil
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	msg.Data = dataJSON
	return msg, nil
}

// NewErrorMessage creates an error WebSocket message
func NewErrorMessage(code, message string) (*WSMessage, error) {
	return NewWSMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
}

// NewConnectedMessage creates a connected confirmation message
func NewConnectedMessage(clientID, userID, role string, channels []string) (*WSMessage, error) {
	return NewWSMessage(MessageTypeConnected, ConnectedData{
		ClientID: clientID,
		UserID:   userID,
		Role:     role,
		Channels: channels,
		Message:  "Conectado exitosamente al servidor de rastreo",
	})
}
