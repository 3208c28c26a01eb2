package models

import (
	"tacoshare-tracking-api/pkg/geo"
	"tacoshare-tracking-api/pkg/gmaps"
)

// RouteRequest asks for a route through ordered stops
type RouteRequest struct {
	Origin            *geo.Coordinates  `json:"origin" binding:"required"`
	Destination       *geo.Coordinates  `json:"destination" binding:"required"`
	Waypoints         []geo.Coordinates `json:"waypoints,omitempty"`
	OptimizeWaypoints bool              `json:"optimize_waypoints"`
	TravelMode        gmaps.TravelMode  `json:"travel_mode,omitempty" example:"driving"`
	AvoidTolls        bool              `json:"avoid_tolls,omitempty"`
	AvoidHighways     bool              `json:"avoid_highways,omitempty"`
	AvoidFerries      bool              `json:"avoid_ferries,omitempty"`
}

// ToProvider converts the request for the route client
func (r *RouteRequest) ToProvider() gmaps.RouteRequest {
	return gmaps.RouteRequest{
		Origin:            *r.Origin,
		Destination:       *r.Destination,
		Waypoints:         r.Waypoints,
		OptimizeWaypoints: r.OptimizeWaypoints,
		TravelMode:        r.TravelMode,
		AvoidTolls:        r.AvoidTolls,
		AvoidHighways:     r.AvoidHighways,
		AvoidFerries:      r.AvoidFerries,
	}
}

// RouteResult is a computed route ready to draw
type RouteResult struct {
	Route          *geo.Route        `json:"route"`
	Coordinates    []geo.Coordinates `json:"coordinates"`
	Waypoints      []geo.Waypoint    `json:"waypoints"`
	Bounds         geo.Bounds        `json:"bounds"`
	DistanceMeters int               `json:"distance_meters" example:"12400"`
	DistanceText   string            `json:"distance_text" example:"12.4 km"`
	DurationText   string            `json:"duration_text" example:"45 min"`
	OptimizedOrder []int             `json:"optimized_order,omitempty"`
}

// ValidateAddressRequest checks whether an address resolves
type ValidateAddressRequest struct {
	Address string `json:"address" binding:"required" example:"Av. Paseo de la Reforma 222, CDMX"`
}

// ETARequest estimates travel between two points
type ETARequest struct {
	From *geo.Coordinates `json:"from" binding:"required"`
	To   *geo.Coordinates `json:"to" binding:"required"`
}

// MatrixRequest asks for every origin/destination pair
type MatrixRequest struct {
	Origins      []geo.Coordinates `json:"origins" binding:"required"`
	Destinations []geo.Coordinates `json:"destinations" binding:"required"`
}

// RouteResponse wraps a route result in JSend format
type RouteResponse struct {
	Status string      `json:"status" example:"success"`
	Data   RouteResult `json:"data"`
}

// GeocodeResponse wraps geocode matches in JSend format
type GeocodeResponse struct {
	Status string                `json:"status" example:"success"`
	Data   []gmaps.GeocodeResult `json:"data"`
}

// ValidationResponse wraps an address validation in JSend format
type ValidationResponse struct {
	Status string                  `json:"status" example:"success"`
	Data   gmaps.AddressValidation `json:"data"`
}

// ETAResponse wraps an ETA in JSend format
type ETAResponse struct {
	Status string          `json:"status" example:"success"`
	Data   gmaps.ETAResult `json:"data"`
}

// MatrixResponse wraps a distance matrix in JSend format
type MatrixResponse struct {
	Status string               `json:"status" example:"success"`
	Data   gmaps.DistanceMatrix `json:"data"`
}
