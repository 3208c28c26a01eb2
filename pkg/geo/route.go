package geo

// ExtractRouteCoordinates returns the drawable path of a route. The overview
// polyline is used when present; otherwise every step polyline is decoded and
// concatenated in leg/step order.
func ExtractRouteCoordinates(route *Route) []Coordinates {
	if route == nil {
		return []Coordinates{}
	}

	if route.OverviewPolyline != "" {
		if coords := DecodePolyline(route.OverviewPolyline); len(coords) > 0 {
			return coords
		}
	}

	coords := []Coordinates{}
	for _, leg := range route.Legs {
		for _, step := range leg.Steps {
			stepCoords := DecodePolyline(step.Polyline)
			// Consecutive steps share their boundary point
			if len(coords) > 0 && len(stepCoords) > 0 && coords[len(coords)-1] == stepCoords[0] {
				stepCoords = stepCoords[1:]
			}
			coords = append(coords, stepCoords...)
		}
	}
	return coords
}

// ExtractWaypoints returns len(legs)+1 waypoints: the start of the first leg
// with index -1 followed by the end of every leg with its 0-based leg index.
func ExtractWaypoints(route *Route) []Waypoint {
	if route == nil || len(route.Legs) == 0 {
		return []Waypoint{}
	}

	first := route.Legs[0]
	waypoints := make([]Waypoint, 0, len(route.Legs)+1)
	waypoints = append(waypoints, Waypoint{
		Lat:            first.StartLocation.Latitude,
		Lng:            first.StartLocation.Longitude,
		Address:        first.StartAddress,
		OptimizedIndex: StartWaypointIndex,
	})

	for i, leg := range route.Legs {
		waypoints = append(waypoints, Waypoint{
			Lat:            leg.EndLocation.Latitude,
			Lng:            leg.EndLocation.Longitude,
			Address:        leg.EndAddress,
			OptimizedIndex: i,
		})
	}
	return waypoints
}
