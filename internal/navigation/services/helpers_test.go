//nolint:errcheck // Test file - error checking not critical for test assertions
package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"tacoshare-tracking-api/internal/navigation/models"
	"tacoshare-tracking-api/internal/navigation/repositories"
	"tacoshare-tracking-api/pkg/geo"
	"tacoshare-tracking-api/pkg/gmaps"

	"github.com/google/uuid"
)

var (
	fixedNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	courier  = uuid.MustParse("00000000-0000-0000-0000-000000000007")
	origin   = geo.Coordinates{Latitude: 19.4326, Longitude: -99.1332}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStops(n int) []models.Stop {
	stops := make([]models.Stop, n)
	for i := range stops {
		stops[i] = models.Stop{
			OrderID:  uuid.New(),
			Location: geo.Coordinates{Latitude: 19.40 + float64(i)/100, Longitude: -99.15 - float64(i)/100},
			Address:  "Parada",
		}
	}
	return stops
}

// mockRouteProvider scripts provider answers
type mockRouteProvider struct {
	mu    sync.Mutex
	calls []gmaps.RouteRequest
	fn    func(req gmaps.RouteRequest) (*geo.Route, error)
}

func (m *mockRouteProvider) CalculateOptimizedRoute(_ context.Context, req gmaps.RouteRequest) (*geo.Route, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	return m.fn(req)
}

// fakeConnectivity returns fixed capabilities and records provider outcomes
type fakeConnectivity struct {
	mu       sync.Mutex
	online   bool
	reported []error
}

func (f *fakeConnectivity) Capabilities() models.Capabilities {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.Capabilities{
		Online:             f.online,
		CanCalculateRoutes: f.online,
		CanGeocode:         f.online,
		CanUseGPS:          true,
		CanNavigate:        true,
	}
}

func (f *fakeConnectivity) ReportProviderResult(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reported = append(f.reported, err)
}

func (f *fakeConnectivity) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

// routeThrough builds a provider route visiting every stop, one leg per stop
func routeThrough(from geo.Coordinates, stops []models.Stop, order []int) *geo.Route {
	route := &geo.Route{WaypointOrder: order}
	prev := from
	for _, stop := range stops {
		route.Legs = append(route.Legs, geo.Leg{
			StartLocation:  prev,
			EndLocation:    stop.Location,
			DistanceMeters: 2000,
			Duration:       6 * time.Minute,
		})
		prev = stop.Location
	}
	coords := []geo.Coordinates{from}
	for _, stop := range stops {
		coords = append(coords, stop.Location)
	}
	route.OverviewPolyline = geo.EncodePolyline(coords)
	return route
}

func newTestCache(store repositories.Store, now *time.Time) *RouteCache {
	c := NewRouteCache(store, DefaultRouteTTL, discardLogger())
	c.now = func() time.Time { return *now }
	return c
}
