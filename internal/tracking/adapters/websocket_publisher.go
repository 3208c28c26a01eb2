package adapters

import (
	"context"
	"errors"

	"tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/internal/tracking/services"
	wsModels "tacoshare-tracking-api/internal/websockets/models"
	wsServices "tacoshare-tracking-api/internal/websockets/services"
)

// ChannelBroadcaster is the part of the WebSocket hub used for fan-out
type ChannelBroadcaster interface {
	BroadcastToChannel(ctx context.Context, channel string, message *wsModels.WSMessage) error
}

// WebSocketPublisher mirrors tracking events to the order and driver channels
type WebSocketPublisher struct {
	hub ChannelBroadcaster
}

// NewWebSocketPublisher creates a new WebSocket publisher
func NewWebSocketPublisher(hub ChannelBroadcaster) *WebSocketPublisher {
	return &WebSocketPublisher{hub: hub}
}

// Publish sends the event to order:{id} and driver:{id}
func (p *WebSocketPublisher) Publish(ctx context.Context, event *models.Event) error {
	var errs []error
	for _, channel := range []string{
		wsModels.OrderChannel(event.OrderID),
		wsModels.DriverChannel(event.DeliveryPersonID),
	} {
		msg, err := wsModels.NewWSMessage(wsModels.MessageType(event.Type), event)
		if err != nil {
			return err
		}
		msg.MessageID = event.ID.String()
		msg.Timestamp = event.Timestamp
		msg.Channel = channel
		if err := p.hub.BroadcastToChannel(ctx, channel, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ ChannelBroadcaster     = (*wsServices.Hub)(nil)
	_ services.EventPublisher = (*WebSocketPublisher)(nil)
)
