package gmaps

import (
	"context"
	"log/slog"

	"tacoshare-tracking-api/pkg/geo"

	"googlemaps.github.io/maps"
)

// TravelMode selects the provider routing profile
type TravelMode string

const (
	TravelModeDriving   TravelMode = "driving"
	TravelModeWalking   TravelMode = "walking"
	TravelModeBicycling TravelMode = "bicycling"
	TravelModeTransit   TravelMode = "transit"
)

// Valid reports whether m is a known travel mode (empty means driving)
func (m TravelMode) Valid() bool {
	switch m {
	case "", TravelModeDriving, TravelModeWalking, TravelModeBicycling, TravelModeTransit:
		return true
	}
	return false
}

func (m TravelMode) mapsMode() maps.Mode {
	switch m {
	case TravelModeWalking:
		return maps.TravelModeWalking
	case TravelModeBicycling:
		return maps.TravelModeBicycling
	case TravelModeTransit:
		return maps.TravelModeTransit
	default:
		return maps.TravelModeDriving
	}
}

// RouteRequest describes a linear route through ordered waypoints.
// The destination is always the last stop; only Waypoints may be reordered.
type RouteRequest struct {
	Origin            geo.Coordinates   `json:"origin"`
	Destination       geo.Coordinates   `json:"destination"`
	Waypoints         []geo.Coordinates `json:"waypoints,omitempty"`
	OptimizeWaypoints bool              `json:"optimize_waypoints"`
	TravelMode        TravelMode        `json:"travel_mode,omitempty" example:"driving"`
	AvoidTolls        bool              `json:"avoid_tolls,omitempty"`
	AvoidHighways     bool              `json:"avoid_highways,omitempty"`
	AvoidFerries      bool              `json:"avoid_ferries,omitempty"`
}

func (r *RouteRequest) avoid() []maps.Avoid {
	var avoid []maps.Avoid
	if r.AvoidTolls {
		avoid = append(avoid, maps.AvoidTolls)
	}
	if r.AvoidHighways {
		avoid = append(avoid, maps.AvoidHighways)
	}
	if r.AvoidFerries {
		avoid = append(avoid, maps.AvoidFerries)
	}
	return avoid
}

// CalculateOptimizedRoute computes a driving route from origin through the
// waypoints to destination. When OptimizeWaypoints is set the provider's
// permutation of the waypoints is returned in Route.WaypointOrder.
func (c *Client) CalculateOptimizedRoute(ctx context.Context, req RouteRequest) (*geo.Route, error) {
	const op = "directions"

	waypoints := make([]string, len(req.Waypoints))
	for i, wp := range req.Waypoints {
		waypoints[i] = wp.String()
	}

	dirReq := &maps.DirectionsRequest{
		Origin:      req.Origin.String(),
		Destination: req.Destination.String(),
		Waypoints:   waypoints,
		Optimize:    req.OptimizeWaypoints && len(waypoints) > 1,
		Mode:        req.TravelMode.mapsMode(),
		Avoid:       req.avoid(),
		Units:       maps.UnitsMetric,
	}

	var routes []maps.Route
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		routes, _, err = c.client.Directions(ctx, dirReq)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, &RouteProviderError{Op: op, Status: StatusZeroResults, Message: "no route returned"}
	}

	route := convertRoute(&routes[0])
	if !isPermutation(route.WaypointOrder, len(req.Waypoints)) {
		if len(route.WaypointOrder) > 0 {
			c.logger.Warn("ignoring invalid waypoint order",
				slog.Any("waypoint_order", route.WaypointOrder),
				slog.Int("waypoints", len(req.Waypoints)),
			)
		}
		route.WaypointOrder = nil
	}
	return route, nil
}

func convertRoute(r *maps.Route) *geo.Route {
	route := &geo.Route{
		Summary:          r.Summary,
		OverviewPolyline: r.OverviewPolyline.Points,
		Legs:             make([]geo.Leg, 0, len(r.Legs)),
	}
	if len(r.WaypointOrder) > 0 {
		route.WaypointOrder = append([]int(nil), r.WaypointOrder...)
	}

	for _, leg := range r.Legs {
		if leg == nil {
			continue
		}
		converted := geo.Leg{
			StartLocation:     fromLatLng(leg.StartLocation),
			EndLocation:       fromLatLng(leg.EndLocation),
			StartAddress:      leg.StartAddress,
			EndAddress:        leg.EndAddress,
			DistanceMeters:    leg.Distance.Meters,
			DistanceText:      leg.Distance.HumanReadable,
			Duration:          leg.Duration,
			DurationText:      geo.FormatDuration(leg.Duration),
			DurationInTraffic: leg.DurationInTraffic,
			Steps:             make([]geo.Step, 0, len(leg.Steps)),
		}
		for _, step := range leg.Steps {
			if step == nil {
				continue
			}
			converted.Steps = append(converted.Steps, geo.Step{
				Instructions:   step.HTMLInstructions,
				Polyline:       step.Polyline.Points,
				StartLocation:  fromLatLng(step.StartLocation),
				EndLocation:    fromLatLng(step.EndLocation),
				DistanceMeters: step.Distance.Meters,
				Duration:       step.Duration,
			})
		}
		route.Legs = append(route.Legs, converted)
	}
	return route
}

// isPermutation reports whether order is a permutation of [0, n)
func isPermutation(order []int, n int) bool {
	if len(order) != n || n == 0 {
		return false
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return false
		}
		seen[idx] = true
	}
	return true
}

func fromLatLng(ll maps.LatLng) geo.Coordinates {
	return geo.Coordinates{Latitude: ll.Lat, Longitude: ll.Lng}
}
