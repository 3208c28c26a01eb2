package services

import (
	"context"
	"log/slog"
	"time"

	"tacoshare-tracking-api/internal/navigation/models"
	"tacoshare-tracking-api/pkg/geo"
	"tacoshare-tracking-api/pkg/gmaps"

	"github.com/google/uuid"
)

// RouteProvider computes optimized routes
type RouteProvider interface {
	CalculateOptimizedRoute(ctx context.Context, req gmaps.RouteRequest) (*geo.Route, error)
}

// ConnectivitySource exposes the current capabilities and learns from provider calls
type ConnectivitySource interface {
	Capabilities() models.Capabilities
	ReportProviderResult(err error)
}

// RoutePlanner picks the best route available for a round: the provider
// route when online, else the cached route, else a straight-line approximation.
type RoutePlanner struct {
	routes       RouteProvider
	connectivity ConnectivitySource
	cache        *RouteCache
	timeout      time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewRoutePlanner creates a planner. routes may be nil when no provider is configured.
func NewRoutePlanner(routes RouteProvider, connectivity ConnectivitySource, cache *RouteCache, timeout time.Duration, logger *slog.Logger) *RoutePlanner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoutePlanner{
		routes:       routes,
		connectivity: connectivity,
		cache:        cache,
		timeout:      timeout,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "route_planner")),
	}
}

// PlanRound returns a route from position through stops. position may be nil
// when the courier has no GPS fix.
func (p *RoutePlanner) PlanRound(ctx context.Context, deliveryPersonID uuid.UUID, position *geo.Coordinates, stops []models.Stop) (*models.PlannedRoute, error) {
	if len(stops) == 0 {
		return nil, ErrNoStops
	}

	caps := p.connectivity.Capabilities()
	if caps.CanCalculateRoutes && position != nil && p.routes != nil {
		route, err := p.providerRoute(ctx, *position, stops)
		if err == nil {
			if p.cache != nil {
				if err := p.cache.Save(ctx, deliveryPersonID, route, orderIDs(stops)); err != nil {
					p.logger.Warn("failed to cache route", slog.String("delivery_person_id", deliveryPersonID.String()), slog.String("error", err.Error()))
				}
			}
			return route, nil
		}
		p.logger.Warn("provider route failed, using fallback",
			slog.String("delivery_person_id", deliveryPersonID.String()),
			slog.String("error", err.Error()),
		)
	}

	if p.cache != nil {
		cached, ok, err := p.cache.Load(ctx, deliveryPersonID)
		if err != nil {
			p.logger.Warn("route cache unavailable", slog.String("error", err.Error()))
		}
		if ok && sameOrders(cached.OrderIDs, stops) {
			return ToPlannedRoute(cached), nil
		}
	}

	if route := GenerateOfflineRoute(position, stops, p.now()); route != nil {
		return route, nil
	}
	return nil, ErrNoRouteAvailable
}

func (p *RoutePlanner) providerRoute(ctx context.Context, origin geo.Coordinates, stops []models.Stop) (*models.PlannedRoute, error) {
	last := len(stops) - 1
	req := gmaps.RouteRequest{
		Origin:      origin,
		Destination: stops[last].Location,
		TravelMode:  gmaps.TravelModeDriving,
	}
	for _, stop := range stops[:last] {
		req.Waypoints = append(req.Waypoints, stop.Location)
	}
	req.OptimizeWaypoints = len(req.Waypoints) > 1

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	route, err := p.routes.CalculateOptimizedRoute(callCtx, req)
	cancel()
	p.connectivity.ReportProviderResult(err)
	if err != nil {
		return nil, err
	}

	// The destination stays last; only intermediate stops are reordered
	var order []int
	if len(route.WaypointOrder) == last && last > 0 {
		order = append(append(order, route.WaypointOrder...), last)
	}

	duration := route.DurationInTraffic()
	return &models.PlannedRoute{
		Coordinates: geo.ExtractRouteCoordinates(route),
		Waypoints:   geo.ExtractWaypoints(route),
		Info: models.RouteInfo{
			DistanceMeters:  route.DistanceMeters(),
			DurationSeconds: int(duration.Seconds()),
			DistanceText:    geo.FormatDistance(route.DistanceMeters()),
			DurationText:    geo.FormatDuration(duration),
		},
		OptimizedOrder: order,
		Source:         models.RouteSourceProvider,
		ComputedAt:     p.now(),
	}, nil
}

func orderIDs(stops []models.Stop) []uuid.UUID {
	ids := make([]uuid.UUID, len(stops))
	for i, s := range stops {
		ids[i] = s.OrderID
	}
	return ids
}

// sameOrders reports whether the cached route was computed for these stops
func sameOrders(ids []uuid.UUID, stops []models.Stop) bool {
	if len(ids) != len(stops) {
		return false
	}
	for i, s := range stops {
		if ids[i] != s.OrderID {
			return false
		}
	}
	return true
}

var (
	_ RouteProvider      = (*gmaps.Client)(nil)
	_ ConnectivitySource = (*ConnectivityMonitor)(nil)
	_ RoundPlanner       = (*RoutePlanner)(nil)
)
