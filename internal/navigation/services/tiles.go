package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tacoshare-tracking-api/internal/navigation/models"
	"tacoshare-tracking-api/pkg/geo"

	"golang.org/x/sync/errgroup"
)

// DefaultTileURL is the public OpenStreetMap raster tile server
const DefaultTileURL = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"

// precacheWorkers bounds concurrent tile downloads
const precacheWorkers = 4

// maxTileBytes rejects anything larger than a sane raster tile
const maxTileBytes = 1 << 20

// TileFetcher downloads a single map tile
type TileFetcher interface {
	FetchTile(ctx context.Context, tile geo.Tile) (data []byte, contentType string, err error)
}

// HTTPTileFetcher fetches tiles from a z/x/y URL template
type HTTPTileFetcher struct {
	client      *http.Client
	urlTemplate string
	userAgent   string
}

// NewHTTPTileFetcher creates a fetcher. urlTemplate must contain {z}, {x} and {y}.
func NewHTTPTileFetcher(client *http.Client, urlTemplate, userAgent string) *HTTPTileFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if urlTemplate == "" {
		urlTemplate = DefaultTileURL
	}
	return &HTTPTileFetcher{client: client, urlTemplate: urlTemplate, userAgent: userAgent}
}

// TileURL expands the template for tile
func (f *HTTPTileFetcher) TileURL(tile geo.Tile) string {
	return strings.NewReplacer(
		"{z}", strconv.FormatUint(uint64(tile.Z), 10),
		"{x}", strconv.FormatUint(uint64(tile.X), 10),
		"{y}", strconv.FormatUint(uint64(tile.Y), 10),
	).Replace(f.urlTemplate)
}

// FetchTile downloads tile
func (f *HTTPTileFetcher) FetchTile(ctx context.Context, tile geo.Tile) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.TileURL(tile), nil)
	if err != nil {
		return nil, "", err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch tile %s: status %d", tile, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read tile %s: %w", tile, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return data, contentType, nil
}

// OnlineChecker reports whether the network is available
type OnlineChecker interface {
	Online() bool
}

// TileService serves map tiles from the cache, downloading them while online
type TileService struct {
	cache        *TileCache
	fetcher      TileFetcher
	connectivity OnlineChecker
	zooms        []uint32
	maxPerZoom   int
}

// NewTileService creates a tile service. zooms are the levels pre-cached along
// a route; maxPerZoom caps the tiles requested per level.
func NewTileService(cache *TileCache, fetcher TileFetcher, connectivity OnlineChecker, zooms []uint32, maxPerZoom int) *TileService {
	if len(zooms) == 0 {
		zooms = []uint32{13, 14, 15}
	}
	if maxPerZoom <= 0 {
		maxPerZoom = 25
	}
	return &TileService{
		cache:        cache,
		fetcher:      fetcher,
		connectivity: connectivity,
		zooms:        zooms,
		maxPerZoom:   maxPerZoom,
	}
}

// Get returns a tile, from the cache when possible
func (s *TileService) Get(ctx context.Context, tile geo.Tile) (*models.CachedTile, error) {
	if !tile.Valid() {
		return nil, ErrInvalidTile
	}

	cached, ok, err := s.cache.Get(ctx, tile)
	if err != nil {
		return nil, err
	}
	if ok {
		return cached, nil
	}

	if s.fetcher == nil || (s.connectivity != nil && !s.connectivity.Online()) {
		return nil, ErrTileUnavailable
	}

	data, contentType, err := s.fetcher.FetchTile(ctx, tile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTileUnavailable, err)
	}
	if err := s.cache.Put(ctx, tile, data, contentType); err != nil {
		return nil, err
	}
	return &models.CachedTile{Tile: tile, Data: data, ContentType: contentType}, nil
}

// Precache downloads the tiles covering bounds at zoom that are not cached yet.
// It returns how many tiles were stored.
func (s *TileService) Precache(ctx context.Context, bounds geo.Bounds, zoom uint32, limit int) (int, error) {
	if s.fetcher == nil || (s.connectivity != nil && !s.connectivity.Online()) {
		return 0, nil
	}

	tiles := geo.TilesForBounds(bounds, zoom, limit)
	stored := make([]bool, len(tiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(precacheWorkers)
	for i, tile := range tiles {
		g.Go(func() error {
			if _, ok, err := s.cache.Get(gctx, tile); err != nil || ok {
				return err
			}
			data, contentType, err := s.fetcher.FetchTile(gctx, tile)
			if err != nil {
				// A missing tile only degrades the offline map
				return nil
			}
			if err := s.cache.Put(gctx, tile, data, contentType); err != nil {
				return err
			}
			stored[i] = true
			return nil
		})
	}
	err := g.Wait()

	n := 0
	for _, ok := range stored {
		if ok {
			n++
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return n, err
	}
	return n, nil
}

// PrecacheRoute warms the cache around coords at every configured zoom
func (s *TileService) PrecacheRoute(ctx context.Context, coords []geo.Coordinates) (int, error) {
	if len(coords) == 0 {
		return 0, nil
	}
	bounds := geo.CalculateRouteBounds(coords)

	total := 0
	for _, zoom := range s.zooms {
		n, err := s.Precache(ctx, bounds, zoom, s.maxPerZoom)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

var (
	_ RoutePrecacher = (*TileService)(nil)
	_ TileFetcher    = (*HTTPTileFetcher)(nil)
	_ OnlineChecker  = (*ConnectivityMonitor)(nil)
)
