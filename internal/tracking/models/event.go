package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened to a tracking
type EventType string

const (
	EventTypePositionUpdate    EventType = "position_update"
	EventTypeStatusChange      EventType = "status_change"
	EventTypeTrackingStarted   EventType = "tracking_started"
	EventTypeRouteRecalculated EventType = "route_recalculated"
)

// Event is emitted on every tracking mutation.
// Tracking is a snapshot taken when the event was produced.
type Event struct {
	ID                    uuid.UUID         `json:"id"`
	Type                  EventType         `json:"type" example:"position_update"`
	OrderID               uuid.UUID         `json:"order_id"`
	DeliveryPersonID      uuid.UUID         `json:"delivery_person_id"`
	PreviousStatus        *Status           `json:"previous_status,omitempty"`
	Status                Status            `json:"status"`
	Position              *Position         `json:"position,omitempty"`
	EstimatedArrivalTime  *time.Time        `json:"estimated_arrival_time,omitempty"`
	DistanceToDestination *float64          `json:"distance_to_destination,omitempty"`
	Tracking              *DeliveryTracking `json:"tracking"`
	Timestamp             time.Time         `json:"timestamp"`
}

// NewEvent builds an event from the current state of t
func NewEvent(eventType EventType, t *DeliveryTracking, previous *Status, at time.Time) *Event {
	snapshot := t.Clone()
	event := &Event{
		ID:                    uuid.New(),
		Type:                  eventType,
		OrderID:               t.OrderID,
		DeliveryPersonID:      t.DeliveryPersonID,
		Status:                t.Status,
		EstimatedArrivalTime:  snapshot.EstimatedArrivalTime,
		DistanceToDestination: snapshot.DistanceToDestination,
		Tracking:              snapshot,
		Timestamp:             at,
	}
	if previous != nil {
		prev := *previous
		event.PreviousStatus = &prev
	}
	if !t.CurrentPosition.Timestamp.IsZero() {
		pos := snapshot.CurrentPosition
		event.Position = &pos
	}
	return event
}

// EventResponse wraps an event in JSend format
type EventResponse struct {
	Status string `json:"status" example:"success"`
	Data   Event  `json:"data"`
}

// EventListResponse wraps events in JSend format
type EventListResponse struct {
	Status string  `json:"status" example:"success"`
	Data   []Event `json:"data"`
}
