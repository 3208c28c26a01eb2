package models

import (
	"tacoshare-tracking-api/pkg/geo"

	"github.com/google/uuid"
)

// Order statuses owned by the order layer that tracking keeps in sync
const (
	OrderStatusInTransit = "in_transit"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// OrderInfo is the subset of an order the tracking core reads
type OrderInfo struct {
	ID               uuid.UUID       `json:"id"`
	DriverID         *uuid.UUID      `json:"driver_id,omitempty"`
	Status           string          `json:"status"`
	CustomerName     string          `json:"customer_name"`
	CustomerPhone    string          `json:"customer_phone"`
	PickupAddress    string          `json:"pickup_address"`
	PickupLocation   geo.Coordinates `json:"pickup_location"`
	DeliveryAddress  string          `json:"delivery_address"`
	DeliveryLocation geo.Coordinates `json:"delivery_location"`
}

// OrderStatusFor maps a tracking status to the order status it implies.
// The second result is false when the order layer needs no update.
func OrderStatusFor(s Status) (string, bool) {
	switch s {
	case StatusEnRouteToDelivery:
		return OrderStatusInTransit, true
	case StatusCompleted:
		return OrderStatusDelivered, true
	}
	return "", false
}
