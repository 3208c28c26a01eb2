package geo

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"
)

// Reference polyline from the encoding algorithm documentation
const samplePolyline = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

var samplePath = []Coordinates{
	{Latitude: 38.5, Longitude: -120.2},
	{Latitude: 40.7, Longitude: -120.95},
	{Latitude: 43.252, Longitude: -126.453},
}

func round5(v float64) float64 {
	return math.Round(v * 1e5)
}

func samePath(t *testing.T, got, want []Coordinates) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(got))
	}
	for i := range want {
		if round5(got[i].Latitude) != round5(want[i].Latitude) || round5(got[i].Longitude) != round5(want[i].Longitude) {
			t.Errorf("point %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestDecodePolyline(t *testing.T) {
	t.Run("decodes reference polyline", func(t *testing.T) {
		samePath(t, DecodePolyline(samplePolyline), samplePath)
	})

	t.Run("empty input", func(t *testing.T) {
		got := DecodePolyline("")
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", got)
		}
	})

	malformed := map[string]string{
		"truncated value":     "_p~iF~ps|U_",
		"byte outside range":  "_p~iF~ps|U !",
		"unpaired coordinate": "_p~iF",
	}
	for name, input := range malformed {
		t.Run(name, func(t *testing.T) {
			got := DecodePolyline(input)
			if len(got) != 0 {
				t.Errorf("expected empty result for %q, got %v", input, got)
			}
		})
	}
}

func TestPolylineRoundTrip(t *testing.T) {
	path := []Coordinates{
		{Latitude: 19.43261, Longitude: -99.13321},
		{Latitude: 19.42718, Longitude: -99.16772},
		{Latitude: 19.35694, Longitude: -99.17391},
		{Latitude: -33.86882, Longitude: 151.20929},
		{Latitude: 0, Longitude: 0},
	}

	samePath(t, DecodePolyline(EncodePolyline(path)), path)
}

func TestExtractRouteCoordinates(t *testing.T) {
	stepA := EncodePolyline(samplePath[:2])
	stepB := EncodePolyline(samplePath[1:])

	t.Run("prefers overview polyline", func(t *testing.T) {
		route := &Route{
			OverviewPolyline: samplePolyline,
			Legs:             []Leg{{Steps: []Step{{Polyline: stepA}}}},
		}
		samePath(t, ExtractRouteCoordinates(route), samplePath)
	})

	t.Run("falls back to step polylines in order", func(t *testing.T) {
		route := &Route{
			Legs: []Leg{
				{Steps: []Step{{Polyline: stepA}}},
				{Steps: []Step{{Polyline: stepB}}},
			},
		}
		samePath(t, ExtractRouteCoordinates(route), samplePath)
	})

	t.Run("malformed overview falls back to steps", func(t *testing.T) {
		route := &Route{
			OverviewPolyline: "_p~iF",
			Legs:             []Leg{{Steps: []Step{{Polyline: stepA}, {Polyline: stepB}}}},
		}
		samePath(t, ExtractRouteCoordinates(route), samplePath)
	})

	t.Run("nil route", func(t *testing.T) {
		if got := ExtractRouteCoordinates(nil); len(got) != 0 {
			t.Errorf("expected empty, got %v", got)
		}
	})
}

func TestExtractWaypoints(t *testing.T) {
	for legs := 1; legs <= 4; legs++ {
		route := &Route{}
		for i := 0; i < legs; i++ {
			route.Legs = append(route.Legs, Leg{
				StartLocation: Coordinates{Latitude: float64(i), Longitude: float64(i)},
				EndLocation:   Coordinates{Latitude: float64(i + 1), Longitude: float64(i + 1)},
			})
		}

		waypoints := ExtractWaypoints(route)
		if len(waypoints) != legs+1 {
			t.Fatalf("legs=%d: expected %d waypoints, got %d", legs, legs+1, len(waypoints))
		}

		starts := 0
		for i, wp := range waypoints {
			if wp.OptimizedIndex == StartWaypointIndex {
				starts++
				continue
			}
			if wp.OptimizedIndex != i-1 {
				t.Errorf("legs=%d: waypoint %d has index %d", legs, i, wp.OptimizedIndex)
			}
		}
		if starts != 1 {
			t.Errorf("legs=%d: expected exactly one start waypoint, got %d", legs, starts)
		}
		if waypoints[0].OptimizedIndex != StartWaypointIndex || waypoints[0].Lat != 0 {
			t.Errorf("legs=%d: first waypoint should be the start of leg 0, got %+v", legs, waypoints[0])
		}
	}
}

func TestCalculateRouteBounds(t *testing.T) {
	t.Run("empty input returns default box", func(t *testing.T) {
		b := CalculateRouteBounds(nil)
		if b != DefaultBounds() {
			t.Errorf("expected default bounds, got %+v", b)
		}
		if !b.Contains(DefaultCenter) {
			t.Error("default bounds should contain the default center")
		}
	})

	t.Run("min max box", func(t *testing.T) {
		b := CalculateRouteBounds(samplePath)
		want := Bounds{
			NorthEast: Coordinates{Latitude: 43.252, Longitude: -120.2},
			SouthWest: Coordinates{Latitude: 38.5, Longitude: -126.453},
		}
		if b != want {
			t.Errorf("expected %+v, got %+v", want, b)
		}
		for _, c := range samplePath {
			if !b.Contains(c) {
				t.Errorf("bounds should contain %v", c)
			}
		}
	})
}

func TestTileAt(t *testing.T) {
	formula := func(c Coordinates, z uint32) (uint32, uint32) {
		n := math.Exp2(float64(z))
		latRad := c.Latitude * math.Pi / 180
		x := math.Floor((c.Longitude + 180) / 360 * n)
		y := math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)
		return uint32(x), uint32(y)
	}

	points := []Coordinates{
		DefaultCenter,
		{Latitude: 40.4168, Longitude: -3.7038},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 51.5074, Longitude: -0.1278},
	}

	for _, p := range points {
		for _, z := range []uint32{0, 3, 10, 15} {
			tile := TileAt(p, z)
			wx, wy := formula(p, z)
			if tile.X != wx || tile.Y != wy || tile.Z != z {
				t.Errorf("%v z=%d: expected %d/%d/%d, got %s", p, z, z, wx, wy, tile)
			}
			if !tile.Valid() {
				t.Errorf("tile %s should be valid", tile)
			}
		}
	}
}

func TestTileAtGridEdges(t *testing.T) {
	tests := []struct {
		name string
		c    Coordinates
		want Tile
	}{
		{"antimeridian east", Coordinates{Latitude: 0.5, Longitude: 180}, Tile{X: 7, Y: 3, Z: 3}},
		{"antimeridian west", Coordinates{Latitude: 0.5, Longitude: -180}, Tile{X: 0, Y: 3, Z: 3}},
		{"past the antimeridian", Coordinates{Latitude: 0.5, Longitude: 190}, Tile{X: 7, Y: 3, Z: 3}},
		{"north pole", Coordinates{Latitude: 90, Longitude: 0}, Tile{X: 4, Y: 0, Z: 3}},
		{"south pole", Coordinates{Latitude: -90, Longitude: 0}, Tile{X: 4, Y: 7, Z: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TileAt(tt.c, 3)
			if got != tt.want {
				t.Errorf("TileAt(%v) = %s, want %s", tt.c, got, tt.want)
			}
			if !got.Valid() {
				t.Errorf("tile %s should be valid", got)
			}
		})
	}
}

func TestTilesForBoundsAcrossAntimeridian(t *testing.T) {
	b := Bounds{
		NorthEast: Coordinates{Latitude: 1, Longitude: -179.5},
		SouthWest: Coordinates{Latitude: -1, Longitude: 179.5},
	}

	got := TilesForBounds(b, 3, 0)
	want := []Tile{{X: 7, Y: 3, Z: 3}, {X: 0, Y: 3, Z: 3}, {X: 7, Y: 4, Z: 3}, {X: 0, Y: 4, Z: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TilesForBounds() = %v, want %v", got, want)
	}

	if whole := TilesForBounds(b, 0, 0); len(whole) != 1 {
		t.Errorf("expected the single z0 tile, got %v", whole)
	}
}

func TestTilesForBounds(t *testing.T) {
	b := Bounds{
		NorthEast: Coordinates{Latitude: 19.50, Longitude: -99.05},
		SouthWest: Coordinates{Latitude: 19.35, Longitude: -99.25},
	}

	tiles := TilesForBounds(b, 12, 0)
	nw := TileAt(Coordinates{Latitude: 19.50, Longitude: -99.25}, 12)
	se := TileAt(Coordinates{Latitude: 19.35, Longitude: -99.05}, 12)
	want := int((se.X - nw.X + 1) * (se.Y - nw.Y + 1))
	if len(tiles) != want {
		t.Fatalf("expected %d tiles, got %d", want, len(tiles))
	}
	if tiles[0] != nw || tiles[len(tiles)-1] != se {
		t.Errorf("expected tiles from %s to %s, got %s to %s", nw, se, tiles[0], tiles[len(tiles)-1])
	}

	if limited := TilesForBounds(b, 12, 2); len(limited) != 2 {
		t.Errorf("expected limit of 2 tiles, got %d", len(limited))
	}
}

func TestHaversineMeters(t *testing.T) {
	// 0.001 degrees of latitude is roughly 111 meters
	a := Coordinates{Latitude: 19.4326, Longitude: -99.1332}
	b := Coordinates{Latitude: 19.4336, Longitude: -99.1332}
	d := HaversineMeters(a, b)
	if d < 105 || d > 117 {
		t.Errorf("expected ~111m, got %f", d)
	}
	if HaversineMeters(a, a) != 0 {
		t.Error("distance to self should be 0")
	}
	if got := PathLengthMeters([]Coordinates{a, b, a}); math.Abs(got-2*d) > 0.01 {
		t.Errorf("expected path length %f, got %f", 2*d, got)
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		meters int
		want   string
	}{
		{850, "850 m"},
		{12345, "12.3 km"},
	}
	for _, tt := range tests {
		if got := FormatDistance(tt.meters); got != tt.want {
			t.Errorf("FormatDistance(%d) = %q, want %q", tt.meters, got, tt.want)
		}
	}

	durations := []struct {
		d    time.Duration
		want string
	}{
		{25 * time.Minute, "25 min"},
		{65 * time.Minute, "1 h 5 min"},
		{2 * time.Hour, "2 h"},
	}
	for _, tt := range durations {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRouteToGeoJSON(t *testing.T) {
	waypoints := []Waypoint{{Lat: 38.5, Lng: -120.2, OptimizedIndex: -1}, {Lat: 43.252, Lng: -126.453, OptimizedIndex: 0}}
	data, err := RouteToGeoJSON(samplePath, waypoints, map[string]any{"order_id": "42"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("invalid geojson: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 3 {
		t.Fatalf("expected collection with 3 features, got %s with %d", fc.Type, len(fc.Features))
	}
	if fc.Features[0].Geometry.Type != "LineString" || fc.Features[0].Properties["order_id"] != "42" {
		t.Errorf("unexpected route feature: %+v", fc.Features[0])
	}
	if fc.Features[1].Geometry.Type != "Point" {
		t.Errorf("expected waypoint point, got %s", fc.Features[1].Geometry.Type)
	}
}
