package gmaps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tacoshare-tracking-api/pkg/geo"
)

const directionsOK = `{
  "status": "OK",
  "geocoded_waypoints": [],
  "routes": [{
    "summary": "Av. Paseo de la Reforma",
    "overview_polyline": {"points": "_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"},
    "waypoint_order": [1, 0],
    "legs": [
      {
        "distance": {"text": "1.2 km", "value": 1200},
        "duration": {"text": "5 mins", "value": 300},
        "start_location": {"lat": 19.4326, "lng": -99.1332},
        "end_location": {"lat": 19.4270, "lng": -99.1677},
        "start_address": "Zócalo",
        "end_address": "Ángel de la Independencia",
        "steps": [{
          "html_instructions": "Head west",
          "distance": {"text": "1.2 km", "value": 1200},
          "duration": {"text": "5 mins", "value": 300},
          "start_location": {"lat": 19.4326, "lng": -99.1332},
          "end_location": {"lat": 19.4270, "lng": -99.1677},
          "polyline": {"points": "_p~iF~ps|U"},
          "travel_mode": "DRIVING"
        }]
      },
      {
        "distance": {"text": "3.0 km", "value": 3000},
        "duration": {"text": "10 mins", "value": 600},
        "start_location": {"lat": 19.4270, "lng": -99.1677},
        "end_location": {"lat": 19.4204, "lng": -99.1819},
        "steps": []
      },
      {
        "distance": {"text": "2.0 km", "value": 2000},
        "duration": {"text": "8 mins", "value": 480},
        "start_location": {"lat": 19.4204, "lng": -99.1819},
        "end_location": {"lat": 19.3569, "lng": -99.1739},
        "steps": []
      }
    ]
  }]
}`

const etaOK = `{
  "status": "OK",
  "origin_addresses": ["A"],
  "destination_addresses": ["B"],
  "rows": [{"elements": [{
    "status": "OK",
    "distance": {"text": "6.4 km", "value": 6400},
    "duration": {"text": "18 mins", "value": 1080},
    "duration_in_traffic": {"text": "24 mins", "value": 1440}
  }]}]
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, attempts int) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		Timeout:      2 * time.Second,
		MaxAttempts:  attempts,
		RetryBackoff: time.Millisecond,
	}, testLogger())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func writeBody(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient(Config{}, nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestCalculateOptimizedRoute(t *testing.T) {
	var query atomic.Value
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/directions/json" {
			http.NotFound(w, r)
			return
		}
		query.Store(r.URL.Query())
		writeBody(w, directionsOK)
	}, 1)

	req := RouteRequest{
		Origin:            geo.Coordinates{Latitude: 19.4326, Longitude: -99.1332},
		Destination:       geo.Coordinates{Latitude: 19.3569, Longitude: -99.1739},
		Waypoints:         []geo.Coordinates{{Latitude: 19.4204, Longitude: -99.1819}, {Latitude: 19.4270, Longitude: -99.1677}},
		OptimizeWaypoints: true,
		AvoidTolls:        true,
		AvoidFerries:      true,
	}

	route, err := client.CalculateOptimizedRoute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("converts legs", func(t *testing.T) {
		if len(route.Legs) != 3 {
			t.Fatalf("expected 3 legs, got %d", len(route.Legs))
		}
		if route.DistanceMeters() != 6200 {
			t.Errorf("expected 6200m, got %d", route.DistanceMeters())
		}
		if route.Duration() != 1380*time.Second {
			t.Errorf("expected 1380s, got %v", route.Duration())
		}
		if route.Legs[0].Steps[0].Instructions != "Head west" {
			t.Errorf("unexpected step: %+v", route.Legs[0].Steps[0])
		}
		if route.Legs[0].StartAddress != "Zócalo" {
			t.Errorf("unexpected start address %q", route.Legs[0].StartAddress)
		}
	})

	t.Run("keeps provider waypoint order", func(t *testing.T) {
		if fmt.Sprint(route.WaypointOrder) != "[1 0]" {
			t.Errorf("expected [1 0], got %v", route.WaypointOrder)
		}
		if len(geo.ExtractWaypoints(route)) != 4 {
			t.Errorf("expected 4 waypoints")
		}
	})

	t.Run("sends optimize and avoid flags", func(t *testing.T) {
		q := fmt.Sprint(query.Load())
		if !strings.Contains(q, "optimize:true") {
			t.Errorf("expected optimize flag in query, got %s", q)
		}
		if !strings.Contains(q, "tolls") || !strings.Contains(q, "ferries") || strings.Contains(q, "highways") {
			t.Errorf("unexpected avoid flags in query %s", q)
		}
	})
}

func TestCalculateOptimizedRouteDropsInvalidOrder(t *testing.T) {
	body := strings.Replace(directionsOK, `"waypoint_order": [1, 0]`, `"waypoint_order": [1, 1]`, 1)
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, body)
	}, 1)

	route, err := client.CalculateOptimizedRoute(context.Background(), RouteRequest{
		Waypoints:         []geo.Coordinates{{}, {}},
		OptimizeWaypoints: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if route.WaypointOrder != nil {
		t.Errorf("expected invalid order to be dropped, got %v", route.WaypointOrder)
	}
}

func TestProviderErrors(t *testing.T) {
	t.Run("non-OK status becomes RouteProviderError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeBody(w, `{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid."}`)
		}, 3)

		_, err := client.CalculateOptimizedRoute(context.Background(), RouteRequest{})
		var rpe *RouteProviderError
		if !errors.As(err, &rpe) {
			t.Fatalf("expected RouteProviderError, got %v", err)
		}
		if rpe.Status != StatusRequestDenied || rpe.Op != "directions" {
			t.Errorf("unexpected error fields: %+v", rpe)
		}
		if IsUnreachable(err) {
			t.Error("denied request is not an unreachable provider")
		}
	})

	t.Run("rate limit is retried", func(t *testing.T) {
		var calls atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				writeBody(w, `{"status": "OVER_QUERY_LIMIT", "error_message": "slow down"}`)
				return
			}
			writeBody(w, etaOK)
		}, 3)

		eta, err := client.CalculateETA(context.Background(), geo.Coordinates{}, geo.Coordinates{Latitude: 1})
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 calls, got %d", calls.Load())
		}
		if eta.DurationMinutes != 18 {
			t.Errorf("expected 18 minutes, got %d", eta.DurationMinutes)
		}
	})

	t.Run("unreachable provider", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client, err := NewClient(Config{APIKey: "k", BaseURL: url, MaxAttempts: 2, RetryBackoff: time.Millisecond}, testLogger())
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		_, err = client.CalculateETA(context.Background(), geo.Coordinates{}, geo.Coordinates{})
		if !IsUnreachable(err) {
			t.Errorf("expected unreachable error, got %v", err)
		}
	})

	t.Run("timeout is unreachable", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			writeBody(w, etaOK)
		}, 1)
		client.timeout = 20 * time.Millisecond

		_, err := client.CalculateETA(context.Background(), geo.Coordinates{}, geo.Coordinates{})
		if !IsUnreachable(err) {
			t.Errorf("expected timeout to count as unreachable, got %v", err)
		}
	})
}

func TestCalculateETA(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/distancematrix/json" {
			http.NotFound(w, r)
			return
		}
		writeBody(w, etaOK)
	}, 1)

	eta, err := client.CalculateETA(context.Background(), geo.Coordinates{Latitude: 19.43, Longitude: -99.13}, geo.Coordinates{Latitude: 19.36, Longitude: -99.17})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eta.DurationMinutes != 18 || eta.DistanceKm != 6.4 || eta.DistanceMeters != 6400 {
		t.Errorf("unexpected eta: %+v", eta)
	}
	if eta.DurationWithTrafficMinutes == nil || *eta.DurationWithTrafficMinutes != 24 {
		t.Errorf("expected 24 minutes with traffic, got %v", eta.DurationWithTrafficMinutes)
	}
}

func TestCalculateETAShortLeg(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, `{"status": "OK", "rows": [{"elements": [{"status": "OK", "distance": {"text": "0.3 km", "value": 300}, "duration": {"text": "1 min", "value": 59}}]}]}`)
	}, 1)

	eta, err := client.CalculateETA(context.Background(), geo.Coordinates{}, geo.Coordinates{Latitude: 0.002})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eta.DurationMinutes != 1 {
		t.Errorf("expected 59s to count as 1 minute, got %d", eta.DurationMinutes)
	}
}

func TestRoundMinutes(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 0},
		{time.Second, 1},
		{59 * time.Second, 1},
		{89 * time.Second, 1},
		{90 * time.Second, 2},
		{18 * time.Minute, 18},
		{12*time.Minute + 29*time.Second, 12},
	}
	for _, tt := range tests {
		if got := roundMinutes(tt.in); got != tt.want {
			t.Errorf("roundMinutes(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCalculateETAElementStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, `{"status": "OK", "rows": [{"elements": [{"status": "ZERO_RESULTS"}]}]}`)
	}, 1)

	_, err := client.CalculateETA(context.Background(), geo.Coordinates{}, geo.Coordinates{})
	var rpe *RouteProviderError
	if !errors.As(err, &rpe) || rpe.Status != StatusZeroResults {
		t.Errorf("expected ZERO_RESULTS provider error, got %v", err)
	}
}

func TestCalculateDistanceMatrix(t *testing.T) {
	var mu sync.Mutex
	requests := 0

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()

		origins := strings.Split(r.URL.Query().Get("origins"), "|")
		var rows []string
		for _, origin := range origins {
			// Encode the origin latitude as the distance so ordering can be checked
			var lat, lng float64
			_, _ = fmt.Sscanf(origin, "%f,%f", &lat, &lng)
			rows = append(rows, fmt.Sprintf(
				`{"elements": [{"status": "OK", "distance": {"text": "", "value": %d}, "duration": {"text": "", "value": 60}}]}`,
				int(lat),
			))
		}
		writeBody(w, `{"status": "OK", "rows": [`+strings.Join(rows, ",")+`]}`)
	}, 1)

	origins := make([]geo.Coordinates, 60)
	for i := range origins {
		origins[i] = geo.Coordinates{Latitude: float64(i), Longitude: 0}
	}

	matrix, err := client.CalculateDistanceMatrix(context.Background(), origins, []geo.Coordinates{{Latitude: 1, Longitude: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 3 {
		t.Errorf("expected 3 batches of at most 25 origins, got %d requests", requests)
	}
	if len(matrix.Rows) != 60 {
		t.Fatalf("expected 60 rows, got %d", len(matrix.Rows))
	}
	for i, row := range matrix.Rows {
		if len(row) != 1 || row[0].DistanceMeters != i || row[0].DurationMinutes != 1 {
			t.Errorf("row %d out of order: %+v", i, row)
		}
	}

	if _, err := client.CalculateDistanceMatrix(context.Background(), origins, make([]geo.Coordinates, 26)); !errors.Is(err, ErrTooManyDestinations) {
		t.Errorf("expected ErrTooManyDestinations, got %v", err)
	}
}

func TestGeocoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("address") == "nowhere" {
			writeBody(w, `{"status": "ZERO_RESULTS", "results": []}`)
			return
		}
		writeBody(w, `{"status": "OK", "results": [{
			"formatted_address": "Av. Paseo de la Reforma 222, CDMX",
			"place_id": "abc",
			"types": ["street_address"],
			"geometry": {"location": {"lat": 19.4270, "lng": -99.1677}, "location_type": "ROOFTOP"}
		}]}`)
	}, 1)
	ctx := context.Background()

	t.Run("geocode address", func(t *testing.T) {
		results, err := client.GeocodeAddress(ctx, "Reforma 222")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 1 || results[0].Coordinates.Latitude != 19.4270 || results[0].LocationType != "ROOFTOP" {
			t.Errorf("unexpected results: %+v", results)
		}
	})

	t.Run("no match is a geocode failure", func(t *testing.T) {
		_, err := client.GeocodeAddress(ctx, "nowhere")
		if !errors.Is(err, ErrGeocodeFailure) {
			t.Errorf("expected ErrGeocodeFailure, got %v", err)
		}
	})

	t.Run("blank address", func(t *testing.T) {
		if _, err := client.GeocodeAddress(ctx, "   "); !errors.Is(err, ErrEmptyAddress) {
			t.Errorf("expected ErrEmptyAddress, got %v", err)
		}
	})

	t.Run("reverse geocode", func(t *testing.T) {
		results, err := client.ReverseGeocode(ctx, geo.Coordinates{Latitude: 19.4270, Longitude: -99.1677})
		if err != nil || len(results) == 0 {
			t.Fatalf("unexpected result %v, %v", results, err)
		}
	})

	t.Run("validate address", func(t *testing.T) {
		valid, err := client.ValidateAddress(ctx, "Reforma 222")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !valid.IsValid || valid.FormattedAddress == nil || valid.Coordinates == nil {
			t.Errorf("expected valid address, got %+v", valid)
		}

		invalid, err := client.ValidateAddress(ctx, "nowhere")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if invalid.IsValid || invalid.FormattedAddress != nil {
			t.Errorf("expected invalid address, got %+v", invalid)
		}
	})
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in     string
		status string
		ok     bool
	}{
		{"maps: OVER_QUERY_LIMIT - slow down", StatusOverQueryLimit, true},
		{"maps: ZERO_RESULTS - ", StatusZeroResults, true},
		{"maps: invalid request", "", false},
		{"dial tcp: refused", "", false},
	}
	for _, tt := range tests {
		status, _, ok := parseStatus(tt.in)
		if ok != tt.ok || status != tt.status {
			t.Errorf("parseStatus(%q) = %q, %v; want %q, %v", tt.in, status, ok, tt.status, tt.ok)
		}
	}
}
