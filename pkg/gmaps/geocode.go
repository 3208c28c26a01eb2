package gmaps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tacoshare-tracking-api/pkg/geo"

	"googlemaps.github.io/maps"
)

// GeocodeResult is a single provider match
type GeocodeResult struct {
	FormattedAddress string          `json:"formatted_address" example:"Av. Paseo de la Reforma 222, Juárez, CDMX"`
	Coordinates      geo.Coordinates `json:"coordinates"`
	PlaceID          string          `json:"place_id,omitempty"`
	LocationType     string          `json:"location_type,omitempty" example:"ROOFTOP"`
	Types            []string        `json:"types,omitempty"`
}

// AddressValidation is the outcome of ValidateAddress
type AddressValidation struct {
	IsValid          bool             `json:"is_valid"`
	FormattedAddress *string          `json:"formatted_address,omitempty"`
	Coordinates      *geo.Coordinates `json:"coordinates,omitempty"`
}

// GeocodeAddress resolves a free-text address. An address with no match
// fails with ErrGeocodeFailure.
func (c *Client) GeocodeAddress(ctx context.Context, address string) ([]GeocodeResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrEmptyAddress
	}

	req := &maps.GeocodingRequest{Address: address}
	return c.geocode(ctx, "geocode", address, func(ctx context.Context) ([]maps.GeocodingResult, error) {
		return c.client.Geocode(ctx, req)
	})
}

// ReverseGeocode resolves coordinates to addresses
func (c *Client) ReverseGeocode(ctx context.Context, coords geo.Coordinates) ([]GeocodeResult, error) {
	req := &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: coords.Latitude, Lng: coords.Longitude},
	}
	return c.geocode(ctx, "reverse_geocode", coords.String(), func(ctx context.Context) ([]maps.GeocodingResult, error) {
		return c.client.ReverseGeocode(ctx, req)
	})
}

// ValidateAddress geocodes the address and reports whether it resolved.
// Provider failures are returned as errors; an unresolvable address is a
// valid answer with IsValid=false.
func (c *Client) ValidateAddress(ctx context.Context, address string) (*AddressValidation, error) {
	results, err := c.GeocodeAddress(ctx, address)
	if err != nil {
		if errors.Is(err, ErrGeocodeFailure) || errors.Is(err, ErrEmptyAddress) {
			return &AddressValidation{IsValid: false}, nil
		}
		return nil, err
	}

	best := results[0]
	return &AddressValidation{
		IsValid:          true,
		FormattedAddress: &best.FormattedAddress,
		Coordinates:      &best.Coordinates,
	}, nil
}

func (c *Client) geocode(
	ctx context.Context,
	op, query string,
	fn func(ctx context.Context) ([]maps.GeocodingResult, error),
) ([]GeocodeResult, error) {
	var raw []maps.GeocodingResult
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		raw, err = fn(ctx)
		return err
	})
	if err != nil {
		var rpe *RouteProviderError
		if errors.As(err, &rpe) && rpe.Status == StatusZeroResults {
			return nil, fmt.Errorf("%w: %s", ErrGeocodeFailure, query)
		}
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGeocodeFailure, query)
	}

	results := make([]GeocodeResult, len(raw))
	for i, r := range raw {
		results[i] = GeocodeResult{
			FormattedAddress: r.FormattedAddress,
			Coordinates:      fromLatLng(r.Geometry.Location),
			PlaceID:          r.PlaceID,
			LocationType:     r.Geometry.LocationType,
			Types:            r.Types,
		}
	}
	return results, nil
}
