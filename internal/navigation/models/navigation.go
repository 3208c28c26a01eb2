package models

import (
	"time"

	"tacoshare-tracking-api/pkg/geo"

	"github.com/google/uuid"
)

// Capabilities is what the courier app may do given current connectivity.
// GPS and native navigation need no network and are always available.
type Capabilities struct {
	Online             bool `json:"online"`
	RecentlyBack       bool `json:"recently_back"`
	CanCalculateRoutes bool `json:"can_calculate_routes"`
	CanGeocode         bool `json:"can_geocode"`
	CanUseGPS          bool `json:"can_use_gps"`
	CanNavigate        bool `json:"can_navigate"`
}

// RouteSource tells where a planned route came from
type RouteSource string

const (
	RouteSourceProvider RouteSource = "provider"
	RouteSourceCache    RouteSource = "cache"
	RouteSourceOffline  RouteSource = "offline"
)

// RouteInfo summarizes a planned route for display
type RouteInfo struct {
	DistanceMeters  int    `json:"distance_meters" example:"12400"`
	DurationSeconds int    `json:"duration_seconds" example:"2700"`
	DistanceText    string `json:"distance_text" example:"12.4 km"`
	DurationText    string `json:"duration_text" example:"45 min"`
	// Approximate is set for straight-line routes built without the provider
	Approximate bool `json:"approximate"`
}

// PlannedRoute is a drawable route for a round.
// OptimizedOrder is the visiting order as indices into the round's stops.
type PlannedRoute struct {
	Coordinates    []geo.Coordinates `json:"coordinates"`
	Waypoints      []geo.Waypoint    `json:"waypoints"`
	Info           RouteInfo         `json:"info"`
	OptimizedOrder []int             `json:"optimized_order,omitempty"`
	Source         RouteSource       `json:"source" example:"provider"`
	ComputedAt     time.Time         `json:"computed_at"`
}

// CachedRoute is what is persisted after every successful provider route
type CachedRoute struct {
	Coordinates    []geo.Coordinates `json:"coordinates"`
	Waypoints      []geo.Waypoint    `json:"waypoints"`
	Info           RouteInfo         `json:"info"`
	OptimizedOrder []int             `json:"optimized_order,omitempty"`
	OrderIDs       []uuid.UUID       `json:"order_ids"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Order statuses that decide a step's status regardless of its position
const (
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Stop is one order to deliver during a round
type Stop struct {
	OrderID     uuid.UUID       `json:"order_id"`
	Location    geo.Coordinates `json:"location"`
	Address     string          `json:"address,omitempty" example:"Av. Paseo de la Reforma 222"`
	OrderStatus string          `json:"order_status,omitempty" example:"in_transit"`
	SkipReason  string          `json:"skip_reason,omitempty"`
}

// Round is the ordered set of deliveries a courier is working through.
// CurrentStep indexes the render order, not Stops.
type Round struct {
	ID               uuid.UUID     `json:"id"`
	DeliveryPersonID uuid.UUID     `json:"delivery_person_id"`
	Stops            []Stop        `json:"stops"`
	OptimizedOrder   []int         `json:"optimized_order,omitempty"`
	CurrentStep      int           `json:"current_step"`
	Route            *PlannedRoute `json:"route,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of r
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	c := *r
	c.Stops = append([]Stop(nil), r.Stops...)
	c.OptimizedOrder = append([]int(nil), r.OptimizedOrder...)
	if r.Route != nil {
		route := *r.Route
		c.Route = &route
	}
	return &c
}

// StepStatus is derived each time steps are rendered
type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusCurrent   StepStatus = "current"
	StepStatusPending   StepStatus = "pending"
)

// Step is a stop in render order
type Step struct {
	Index     int        `json:"index"`
	StopIndex int        `json:"stop_index"`
	Stop      Stop       `json:"stop"`
	Status    StepStatus `json:"status" example:"pending"`
}

// CachedTile is a map tile kept for offline use
type CachedTile struct {
	Tile        geo.Tile  `json:"tile"`
	Data        []byte    `json:"data"`
	ContentType string    `json:"content_type"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// StartRoundRequest starts a round for the calling courier
type StartRoundRequest struct {
	Stops []Stop `json:"stops" binding:"required"`
	// Position overrides the last position reported to the tracking store
	Position *geo.Coordinates `json:"position,omitempty"`
}

// SkipStepRequest skips the current step
type SkipStepRequest struct {
	Reason string `json:"reason" binding:"required" example:"Cliente no se encontraba"`
}

// ConnectivityReport lets a device tell the server it lost or regained network
type ConnectivityReport struct {
	Online bool `json:"online"`
}

// RoundView is a round together with its rendered steps
type RoundView struct {
	Round *Round `json:"round"`
	Steps []Step `json:"steps"`
}

// RoundResponse wraps a round view in JSend format
type RoundResponse struct {
	Status string    `json:"status" example:"success"`
	Data   RoundView `json:"data"`
}

// RouteResponse wraps a planned route in JSend format
type RouteResponse struct {
	Status string       `json:"status" example:"success"`
	Data   PlannedRoute `json:"data"`
}

// CapabilitiesResponse wraps capabilities in JSend format
type CapabilitiesResponse struct {
	Status string       `json:"status" example:"success"`
	Data   Capabilities `json:"data"`
}
