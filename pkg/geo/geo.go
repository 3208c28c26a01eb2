// Package geo holds the coordinate, route and tile types shared by the
// tracking and navigation packages, together with the pure geometry helpers
// that operate on them. Nothing in this package performs I/O.
package geo

import (
	"fmt"
	"math"
	"time"
)

// Coordinates represents a fixed geographic point
type Coordinates struct {
	Latitude  float64 `json:"latitude" example:"19.432608"`
	Longitude float64 `json:"longitude" example:"-99.133209"`
}

// String returns the coordinates in "lat,lng" form, as mapping providers expect them
func (c Coordinates) String() string {
	return fmt.Sprintf("%f,%f", c.Latitude, c.Longitude)
}

// Valid reports whether the coordinates are within the WGS84 ranges
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Bounds is a lat/lng bounding box
type Bounds struct {
	NorthEast Coordinates `json:"north_east"`
	SouthWest Coordinates `json:"south_west"`
}

// Waypoint is a stop extracted from a computed route.
// OptimizedIndex is -1 for the starting point and 0..N-1 for stops.
type Waypoint struct {
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	Address        string  `json:"address"`
	OptimizedIndex int     `json:"optimized_index"`
}

// StartWaypointIndex marks the waypoint where a route begins
const StartWaypointIndex = -1

// Step is a single instruction inside a leg
type Step struct {
	Instructions   string        `json:"instructions,omitempty"`
	Polyline       string        `json:"polyline"`
	StartLocation  Coordinates   `json:"start_location"`
	EndLocation    Coordinates   `json:"end_location"`
	DistanceMeters int           `json:"distance_meters"`
	Duration       time.Duration `json:"duration" swaggertype:"integer"`
}

// Leg is the part of a route between two consecutive stops
type Leg struct {
	StartLocation     Coordinates   `json:"start_location"`
	EndLocation       Coordinates   `json:"end_location"`
	StartAddress      string        `json:"start_address,omitempty"`
	EndAddress        string        `json:"end_address,omitempty"`
	DistanceMeters    int           `json:"distance_meters"`
	DistanceText      string        `json:"distance_text,omitempty"`
	Duration          time.Duration `json:"duration" swaggertype:"integer"`
	DurationText      string        `json:"duration_text,omitempty"`
	DurationInTraffic time.Duration `json:"duration_in_traffic,omitempty" swaggertype:"integer"`
	Steps             []Step        `json:"steps,omitempty"`
}

// Route is a computed driving route.
// WaypointOrder is the provider's permutation of the intermediate waypoints,
// empty when optimization was not requested.
type Route struct {
	Summary          string `json:"summary,omitempty"`
	OverviewPolyline string `json:"overview_polyline,omitempty"`
	Legs             []Leg  `json:"legs"`
	WaypointOrder    []int  `json:"waypoint_order,omitempty"`
}

// DistanceMeters returns the sum of all leg distances
func (r *Route) DistanceMeters() int {
	total := 0
	for _, leg := range r.Legs {
		total += leg.DistanceMeters
	}
	return total
}

// Duration returns the sum of all leg durations
func (r *Route) Duration() time.Duration {
	var total time.Duration
	for _, leg := range r.Legs {
		total += leg.Duration
	}
	return total
}

// DurationInTraffic returns the traffic-aware duration, falling back to Duration
// for legs the provider returned no traffic data for
func (r *Route) DurationInTraffic() time.Duration {
	var total time.Duration
	for _, leg := range r.Legs {
		if leg.DurationInTraffic > 0 {
			total += leg.DurationInTraffic
			continue
		}
		total += leg.Duration
	}
	return total
}

// FormatDistance renders meters as a human string like "850 m" or "12.3 km"
func FormatDistance(meters int) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", meters)
	}
	return fmt.Sprintf("%.1f km", float64(meters)/1000)
}

// FormatDuration renders a duration as "25 min" or "1 h 5 min"
func FormatDuration(d time.Duration) string {
	minutes := int(math.Round(d.Minutes()))
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%d h", minutes/60)
	}
	return fmt.Sprintf("%d h %d min", minutes/60, minutes%60)
}
