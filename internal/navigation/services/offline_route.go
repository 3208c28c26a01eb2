package services

import (
	"time"

	"tacoshare-tracking-api/internal/navigation/models"
	"tacoshare-tracking-api/pkg/geo"
)

// Rough per-stop figures used when the provider cannot be asked.
// They are shown to couriers as approximations, never as measurements.
const (
	OfflineMetersPerStop   = 5000
	OfflineDurationPerStop = 15 * time.Minute
)

// GenerateOfflineRoute draws a straight line from position through every stop
// in the order given. Stops are not reordered since optimization needs the
// provider. Returns nil without a position or without stops.
func GenerateOfflineRoute(position *geo.Coordinates, stops []models.Stop, now time.Time) *models.PlannedRoute {
	if position == nil || len(stops) == 0 {
		return nil
	}

	coords := make([]geo.Coordinates, 0, len(stops)+1)
	coords = append(coords, *position)

	waypoints := make([]geo.Waypoint, 0, len(stops)+1)
	waypoints = append(waypoints, geo.Waypoint{
		Lat:            position.Latitude,
		Lng:            position.Longitude,
		OptimizedIndex: geo.StartWaypointIndex,
	})

	for i, stop := range stops {
		coords = append(coords, stop.Location)
		waypoints = append(waypoints, geo.Waypoint{
			Lat:            stop.Location.Latitude,
			Lng:            stop.Location.Longitude,
			Address:        stop.Address,
			OptimizedIndex: i,
		})
	}

	meters := OfflineMetersPerStop * len(stops)
	duration := OfflineDurationPerStop * time.Duration(len(stops))

	return &models.PlannedRoute{
		Coordinates: coords,
		Waypoints:   waypoints,
		Info: models.RouteInfo{
			DistanceMeters:  meters,
			DurationSeconds: int(duration.Seconds()),
			DistanceText:    "~" + geo.FormatDistance(meters) + " (aprox.)",
			DurationText:    "~" + geo.FormatDuration(duration) + " (aprox.)",
			Approximate:     true,
		},
		Source:     models.RouteSourceOffline,
		ComputedAt: now,
	}
}
