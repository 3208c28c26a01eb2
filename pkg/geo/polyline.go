package geo

import (
	"errors"
	"fmt"
	"log/slog"

	"googlemaps.github.io/maps"
)

// ErrMalformedPolyline is reported (never returned by DecodePolyline) when an
// encoded polyline cannot be decoded
var ErrMalformedPolyline = errors.New("malformed polyline")

// DecodePolyline decodes a Google encoded polyline (precision 1e-5).
// Malformed input yields an empty slice and a logged warning; partial
// provider responses are expected and must not break rendering.
func DecodePolyline(encoded string) []Coordinates {
	if encoded == "" {
		return []Coordinates{}
	}

	points, err := decodePolyline(encoded)
	if err != nil {
		slog.Warn("discarding polyline",
			slog.String("error", err.Error()),
			slog.Int("length", len(encoded)),
		)
		return []Coordinates{}
	}

	coords := make([]Coordinates, len(points))
	for i, p := range points {
		coords[i] = Coordinates{Latitude: p.Lat, Longitude: p.Lng}
	}
	return coords
}

// EncodePolyline encodes coordinates with the same algorithm DecodePolyline reads
func EncodePolyline(coords []Coordinates) string {
	path := make([]maps.LatLng, len(coords))
	for i, c := range coords {
		path[i] = maps.LatLng{Lat: c.Latitude, Lng: c.Longitude}
	}
	return maps.Encode(path)
}

func decodePolyline(encoded string) (points []maps.LatLng, err error) {
	if err := validatePolyline(encoded); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			points = nil
			err = fmt.Errorf("%w: %v", ErrMalformedPolyline, r)
		}
	}()

	points, err = maps.DecodePolyline(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPolyline, err)
	}
	return points, nil
}

// validatePolyline checks that every byte is in the encoding alphabet, that the
// input ends on a value boundary and that values come in lat/lng pairs.
func validatePolyline(encoded string) error {
	values := 0
	open := false
	for i := 0; i < len(encoded); i++ {
		b := int(encoded[i]) - 63
		if b < 0 || b > 63 {
			return fmt.Errorf("%w: invalid byte %q at offset %d", ErrMalformedPolyline, encoded[i], i)
		}
		open = b >= 0x20
		if !open {
			values++
		}
	}
	if open {
		return fmt.Errorf("%w: truncated value", ErrMalformedPolyline)
	}
	if values%2 != 0 {
		return fmt.Errorf("%w: unpaired coordinate", ErrMalformedPolyline)
	}
	return nil
}
