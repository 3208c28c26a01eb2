package adapters

import (
	"context"
	"errors"
	"fmt"

	notificationServices "tacoshare-tracking-api/internal/notifications/services"
	"tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/internal/tracking/repositories"
	"tacoshare-tracking-api/internal/tracking/services"
	"tacoshare-tracking-api/pkg/geo"

	"github.com/google/uuid"
)

// TopicPusher sends push notifications to a topic
type TopicPusher interface {
	SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error
}

// SMSSender sends a text message
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// OrderFinder loads order details
type OrderFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.OrderInfo, error)
}

// NotificationPublisher tells customers about status changes. Every status
// change is pushed to the order topic; arrival at delivery also sends an SMS.
type NotificationPublisher struct {
	push   TopicPusher
	sms    SMSSender
	orders OrderFinder
}

// NewNotificationPublisher creates a new notification publisher. sms and
// orders may be nil, which disables text messages.
func NewNotificationPublisher(push TopicPusher, sms SMSSender, orders OrderFinder) *NotificationPublisher {
	return &NotificationPublisher{push: push, sms: sms, orders: orders}
}

// OrderTopic is the FCM topic a customer app subscribes to for an order
func OrderTopic(orderID uuid.UUID) string {
	return "order_" + orderID.String()
}

// Publish sends notifications for status_change events
func (p *NotificationPublisher) Publish(ctx context.Context, event *models.Event) error {
	if event.Type != models.EventTypeStatusChange {
		return nil
	}

	title, body, ok := statusMessage(event)
	if !ok {
		return nil
	}

	data := map[string]string{
		"type":     string(event.Type),
		"order_id": event.OrderID.String(),
		"status":   string(event.Status),
	}
	if event.EstimatedArrivalTime != nil {
		data["estimated_arrival_time"] = event.EstimatedArrivalTime.UTC().Format("2006-01-02T15:04:05Z")
	}

	var errs []error
	if p.push != nil {
		if err := p.push.SendToTopic(ctx, OrderTopic(event.OrderID), title, body, data); err != nil {
			errs = append(errs, err)
		}
	}

	if event.Status == models.StatusAtDelivery && p.sms != nil && p.orders != nil {
		if err := p.sendArrivalSMS(ctx, event.OrderID); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (p *NotificationPublisher) sendArrivalSMS(ctx context.Context, orderID uuid.UUID) error {
	order, err := p.orders.FindByID(ctx, orderID)
	if errors.Is(err, repositories.ErrOrderNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order for sms: %w", err)
	}
	if order.CustomerPhone == "" {
		return nil
	}

	body := "Tu repartidor ha llegado a tu domicilio."
	if order.DeliveryAddress != "" {
		body = fmt.Sprintf("Tu repartidor ha llegado a %s.", order.DeliveryAddress)
	}
	return p.sms.Send(ctx, order.CustomerPhone, body)
}

func statusMessage(event *models.Event) (string, string, bool) {
	switch event.Status {
	case models.StatusEnRouteToPickup:
		return "Repartidor asignado", "Tu repartidor va en camino a recoger tu pedido.", true
	case models.StatusAtPickup:
		return "Recogiendo tu pedido", "Tu repartidor llegó al establecimiento.", true
	case models.StatusEnRouteToDelivery:
		body := "Tu pedido va en camino."
		if event.DistanceToDestination != nil {
			body = fmt.Sprintf("Tu pedido va en camino, a %s de distancia.", geo.FormatDistance(int(*event.DistanceToDestination)))
		}
		return "Pedido en camino", body, true
	case models.StatusAtDelivery:
		return "Tu repartidor llegó", "Tu repartidor está en la puerta.", true
	case models.StatusCompleted:
		return "Pedido entregado", "¡Gracias por tu compra!", true
	}
	return "", "", false
}

var (
	_ TopicPusher             = (*notificationServices.FCMService)(nil)
	_ SMSSender               = (*notificationServices.SMSService)(nil)
	_ OrderFinder             = (*repositories.OrderRepository)(nil)
	_ services.EventPublisher = (*NotificationPublisher)(nil)
)
