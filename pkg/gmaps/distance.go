package gmaps

import (
	"context"
	"fmt"
	"math"
	"time"

	"tacoshare-tracking-api/pkg/geo"

	"golang.org/x/sync/errgroup"
	"googlemaps.github.io/maps"
)

const (
	// Google Maps API allows up to 25 origins or destinations per request
	maxPlacesPerRequest = 25
	// and at most 100 elements (origins x destinations)
	maxElementsPerRequest = 100
	// maxParallelBatches bounds concurrent matrix requests
	maxParallelBatches = 4
)

// ETAResult is the travel estimate between two points
type ETAResult struct {
	DurationMinutes            int     `json:"duration_minutes" example:"18"`
	DurationWithTrafficMinutes *int    `json:"duration_with_traffic_minutes,omitempty" example:"24"`
	DistanceKm                 float64 `json:"distance_km" example:"6.4"`
	DistanceMeters             int     `json:"distance_meters" example:"6400"`
}

// MatrixElement is one origin/destination pair of a distance matrix
type MatrixElement struct {
	Status          string  `json:"status" example:"OK"`
	DistanceMeters  int     `json:"distance_meters"`
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes int     `json:"duration_minutes"`
}

// DistanceMatrix holds Rows[origin][destination] in request order
type DistanceMatrix struct {
	Rows [][]MatrixElement `json:"rows"`
}

// CalculateETA estimates travel time and distance for a single pair,
// using current traffic where the provider has it.
func (c *Client) CalculateETA(ctx context.Context, from, to geo.Coordinates) (*ETAResult, error) {
	const op = "eta"

	req := &maps.DistanceMatrixRequest{
		Origins:       []string{from.String()},
		Destinations:  []string{to.String()},
		Mode:          maps.TravelModeDriving,
		Units:         maps.UnitsMetric,
		DepartureTime: "now",
	}

	var resp *maps.DistanceMatrixResponse
	err := c.call(ctx, op, func(ctx context.Context) error {
		var err error
		resp, err = c.client.DistanceMatrix(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 || resp.Rows[0].Elements[0] == nil {
		return nil, &RouteProviderError{Op: op, Status: StatusInvalidResponse, Message: "no distance data returned"}
	}

	element := resp.Rows[0].Elements[0]
	if element.Status != StatusOK {
		return nil, &RouteProviderError{Op: op, Status: element.Status, Message: "element status"}
	}

	result := &ETAResult{
		DurationMinutes: roundMinutes(element.Duration),
		DistanceMeters:  element.Distance.Meters,
		DistanceKm:      float64(element.Distance.Meters) / 1000.0,
	}
	if element.DurationInTraffic > 0 {
		minutes := roundMinutes(element.DurationInTraffic)
		result.DurationWithTrafficMinutes = &minutes
	}
	return result, nil
}

// CalculateDistanceMatrix computes distances from every origin to every
// destination. Origins are split into batches that run in parallel; results
// keep request order and failing pairs carry their element status.
func (c *Client) CalculateDistanceMatrix(ctx context.Context, origins, destinations []geo.Coordinates) (*DistanceMatrix, error) {
	if len(origins) == 0 || len(destinations) == 0 {
		return &DistanceMatrix{Rows: [][]MatrixElement{}}, nil
	}
	if len(destinations) > maxPlacesPerRequest {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyDestinations, len(destinations), maxPlacesPerRequest)
	}

	batchSize := maxElementsPerRequest / len(destinations)
	if batchSize > maxPlacesPerRequest {
		batchSize = maxPlacesPerRequest
	}

	destStrings := make([]string, len(destinations))
	for i, d := range destinations {
		destStrings[i] = d.String()
	}

	rows := make([][]MatrixElement, len(origins))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelBatches)
	for start := 0; start < len(origins); start += batchSize {
		end := min(start+batchSize, len(origins))
		g.Go(func() error {
			return c.processBatch(gctx, origins[start:end], destStrings, rows[start:end])
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &DistanceMatrix{Rows: rows}, nil
}

// processBatch fills out (one row per origin) from a single matrix request
func (c *Client) processBatch(ctx context.Context, batch []geo.Coordinates, destinations []string, out [][]MatrixElement) error {
	originStrings := make([]string, len(batch))
	for idx, loc := range batch {
		originStrings[idx] = loc.String()
	}

	req := &maps.DistanceMatrixRequest{
		Origins:      originStrings,
		Destinations: destinations,
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	}

	var resp *maps.DistanceMatrixResponse
	err := c.call(ctx, "distance_matrix", func(ctx context.Context) error {
		var err error
		resp, err = c.client.DistanceMatrix(ctx, req)
		return err
	})
	if err != nil {
		return err
	}

	for i := range out {
		row := make([]MatrixElement, len(destinations))
		for j := range row {
			row[j] = MatrixElement{Status: StatusNotFound}
			if i >= len(resp.Rows) || j >= len(resp.Rows[i].Elements) || resp.Rows[i].Elements[j] == nil {
				continue
			}
			element := resp.Rows[i].Elements[j]
			row[j].Status = element.Status
			if element.Status != StatusOK {
				continue
			}
			row[j].DistanceMeters = element.Distance.Meters
			row[j].DistanceKm = float64(element.Distance.Meters) / 1000.0
			row[j].DurationMinutes = roundMinutes(element.Duration)
		}
		out[i] = row
	}
	return nil
}

// roundMinutes rounds to the nearest minute. Any positive duration counts as
// at least one minute so a short leg never reads as already arrived.
func roundMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return max(1, int(math.Round(d.Minutes())))
}
