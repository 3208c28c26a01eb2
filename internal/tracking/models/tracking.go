package models

import (
	"time"

	"tacoshare-tracking-api/pkg/geo"

	"github.com/google/uuid"
)

// Status is the delivery phase of a tracked order
type Status string

const (
	StatusEnRouteToPickup   Status = "en_route_to_pickup"
	StatusAtPickup          Status = "at_pickup"
	StatusEnRouteToDelivery Status = "en_route_to_delivery"
	StatusAtDelivery        Status = "at_delivery"
	StatusCompleted         Status = "completed"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusEnRouteToPickup, StatusAtPickup, StatusEnRouteToDelivery, StatusAtDelivery, StatusCompleted:
		return true
	}
	return false
}

// IsEnRoute reports whether proximity may move s forward automatically
func (s Status) IsEnRoute() bool {
	return s == StatusEnRouteToPickup || s == StatusEnRouteToDelivery
}

// Arrived returns the "at" status reached from an en-route status.
// Other statuses are returned unchanged.
func (s Status) Arrived() Status {
	switch s {
	case StatusEnRouteToPickup:
		return StatusAtPickup
	case StatusEnRouteToDelivery:
		return StatusAtDelivery
	}
	return s
}

// Position is the latest reading from a delivery person's device
type Position struct {
	Latitude  float64   `json:"latitude" example:"19.432608"`
	Longitude float64   `json:"longitude" example:"-99.133209"`
	Accuracy  *float64  `json:"accuracy,omitempty" example:"8.5"`
	Altitude  *float64  `json:"altitude,omitempty" example:"2240"`
	Heading   *float64  `json:"heading,omitempty" example:"45.5"`
	Speed     *float64  `json:"speed,omitempty" example:"9.7"`
	Timestamp time.Time `json:"timestamp" example:"2025-01-15T10:00:00Z"`
}

// Coordinates drops the sensor metadata
func (p Position) Coordinates() geo.Coordinates {
	return geo.Coordinates{Latitude: p.Latitude, Longitude: p.Longitude}
}

// DeliveryTracking is the live state of one order being delivered
type DeliveryTracking struct {
	OrderID               uuid.UUID       `json:"order_id"`
	DeliveryPersonID      uuid.UUID       `json:"delivery_person_id"`
	CurrentPosition       Position        `json:"current_position"`
	PickupLocation        geo.Coordinates `json:"pickup_location"`
	DeliveryLocation      geo.Coordinates `json:"delivery_location"`
	Route                 *geo.Route      `json:"route,omitempty"`
	EstimatedArrivalTime  *time.Time      `json:"estimated_arrival_time,omitempty"`
	DistanceToDestination *float64        `json:"distance_to_destination,omitempty" example:"1250"`
	Status                Status          `json:"status" example:"en_route_to_pickup"`
	StartedAt             time.Time       `json:"started_at"`
	LastUpdated           time.Time       `json:"last_updated"`
}

// Target returns the location the courier is currently heading to
func (t *DeliveryTracking) Target() geo.Coordinates {
	if t.Status == StatusEnRouteToPickup {
		return t.PickupLocation
	}
	return t.DeliveryLocation
}

// SetEstimate records ETA and distance from the same computation
func (t *DeliveryTracking) SetEstimate(eta time.Time, distanceMeters float64) {
	t.EstimatedArrivalTime = &eta
	t.DistanceToDestination = &distanceMeters
}

// Clone returns a copy that shares no mutable state with t.
// Routes are never mutated once assigned, so the pointer is shared.
func (t *DeliveryTracking) Clone() *DeliveryTracking {
	if t == nil {
		return nil
	}
	c := *t
	c.CurrentPosition = t.CurrentPosition.clone()
	if t.EstimatedArrivalTime != nil {
		eta := *t.EstimatedArrivalTime
		c.EstimatedArrivalTime = &eta
	}
	if t.DistanceToDestination != nil {
		d := *t.DistanceToDestination
		c.DistanceToDestination = &d
	}
	return &c
}

func (p Position) clone() Position {
	c := p
	c.Accuracy = cloneFloat(p.Accuracy)
	c.Altitude = cloneFloat(p.Altitude)
	c.Heading = cloneFloat(p.Heading)
	c.Speed = cloneFloat(p.Speed)
	return c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// UpdateLocationRequest represents a request to update the caller's position
type UpdateLocationRequest struct {
	Latitude  float64    `json:"latitude" example:"19.432608"`
	Longitude float64    `json:"longitude" example:"-99.133209"`
	Accuracy  *float64   `json:"accuracy,omitempty" example:"8.5"`
	Altitude  *float64   `json:"altitude,omitempty" example:"2240"`
	Heading   *float64   `json:"heading,omitempty" example:"45.5"`
	Speed     *float64   `json:"speed,omitempty" example:"9.7"`
	Timestamp *time.Time `json:"timestamp,omitempty" example:"2025-01-15T10:00:00Z"`
}

// ToPosition converts the request; a missing timestamp becomes now
func (r *UpdateLocationRequest) ToPosition(now time.Time) Position {
	p := Position{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Accuracy:  r.Accuracy,
		Altitude:  r.Altitude,
		Heading:   r.Heading,
		Speed:     r.Speed,
		Timestamp: now,
	}
	if r.Timestamp != nil && !r.Timestamp.IsZero() {
		p.Timestamp = *r.Timestamp
	}
	return p
}

// StartTrackingRequest starts tracking an order for a delivery person
type StartTrackingRequest struct {
	OrderID          uuid.UUID        `json:"order_id" binding:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	DeliveryPersonID *uuid.UUID       `json:"delivery_person_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	PickupLocation   *geo.Coordinates `json:"pickup_location,omitempty"`
	DeliveryLocation *geo.Coordinates `json:"delivery_location,omitempty"`
}

// UpdateStatusRequest overwrites the status of a tracking
type UpdateStatusRequest struct {
	Status Status `json:"status" binding:"required" example:"en_route_to_delivery"`
}

// RecalculateRouteRequest forces a new route; omitted locations reuse the stored ones
type RecalculateRouteRequest struct {
	PickupLocation   *geo.Coordinates `json:"pickup_location,omitempty"`
	DeliveryLocation *geo.Coordinates `json:"delivery_location,omitempty"`
}

// TrackingResponse wraps a tracking in JSend format
type TrackingResponse struct {
	Status string           `json:"status" example:"success"`
	Data   DeliveryTracking `json:"data"`
}

// TrackingListResponse wraps a list of trackings in JSend format
type TrackingListResponse struct {
	Status string             `json:"status" example:"success"`
	Data   []DeliveryTracking `json:"data"`
}

// PositionResponse wraps a position in JSend format
type PositionResponse struct {
	Status string   `json:"status" example:"success"`
	Data   Position `json:"data"`
}
