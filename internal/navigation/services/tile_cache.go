package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tacoshare-tracking-api/internal/navigation/models"
	"tacoshare-tracking-api/internal/navigation/repositories"
	"tacoshare-tracking-api/pkg/geo"
)

const (
	// DefaultTileTTL is how long a cached tile is served
	DefaultTileTTL = 7 * 24 * time.Hour
	// DefaultMaxTiles caps the number of cached tiles
	DefaultMaxTiles = 100

	tileIndexKey = "tile:index"
)

type tileIndexEntry struct {
	Key        string    `json:"key"`
	InsertedAt time.Time `json:"inserted_at"`
}

// TileCache keeps at most max tiles for offline use. When full, the tile
// inserted first is evicted. The insertion index lives in the store next to
// the tiles.
type TileCache struct {
	store repositories.Store
	ttl   time.Duration
	max   int
	now   func() time.Time

	mu sync.Mutex
}

// NewTileCache creates a tile cache over store
func NewTileCache(store repositories.Store, ttl time.Duration, maxTiles int) *TileCache {
	if ttl <= 0 {
		ttl = DefaultTileTTL
	}
	if maxTiles <= 0 {
		maxTiles = DefaultMaxTiles
	}
	return &TileCache{store: store, ttl: ttl, max: maxTiles, now: time.Now}
}

func tileKey(t geo.Tile) string {
	return repositories.GenerateKey(repositories.KeyPrefixTile, t.String())
}

// Put stores a tile. Re-inserting a tile refreshes its insertion time.
func (c *TileCache) Put(ctx context.Context, tile geo.Tile, data []byte, contentType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	key := tileKey(tile)

	value, err := json.Marshal(models.CachedTile{Tile: tile, Data: data, ContentType: contentType, FetchedAt: now})
	if err != nil {
		return fmt.Errorf("failed to marshal tile: %w", err)
	}
	if err := c.store.Set(ctx, key, value, c.ttl); err != nil {
		return err
	}

	index, err := c.loadIndex(ctx)
	if err != nil {
		return err
	}
	index = removeKey(index, key)
	index = append(index, tileIndexEntry{Key: key, InsertedAt: now})

	for len(index) > c.max {
		if err := c.store.Delete(ctx, index[0].Key); err != nil {
			return err
		}
		index = index[1:]
	}
	return c.saveIndex(ctx, index)
}

// Get returns a tile younger than the ttl
func (c *TileCache) Get(ctx context.Context, tile geo.Tile) (*models.CachedTile, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := tileKey(tile)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, c.forget(ctx, key)
	}

	var cached models.CachedTile
	if err := json.Unmarshal(data, &cached); err != nil || c.now().Sub(cached.FetchedAt) >= c.ttl {
		_ = c.store.Delete(ctx, key)
		return nil, false, c.forget(ctx, key)
	}
	return &cached, true, nil
}

// Len returns the number of indexed tiles
func (c *TileCache) Len(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index, err := c.loadIndex(ctx)
	return len(index), err
}

// forget drops key from the index if present
func (c *TileCache) forget(ctx context.Context, key string) error {
	index, err := c.loadIndex(ctx)
	if err != nil {
		return err
	}
	pruned := removeKey(index, key)
	if len(pruned) == len(index) {
		return nil
	}
	return c.saveIndex(ctx, pruned)
}

func (c *TileCache) loadIndex(ctx context.Context) ([]tileIndexEntry, error) {
	data, ok, err := c.store.Get(ctx, tileIndexKey)
	if err != nil || !ok {
		return nil, err
	}
	var index []tileIndexEntry
	if err := json.Unmarshal(data, &index); err != nil {
		// A corrupt index only loses eviction order
		return nil, nil
	}
	return index, nil
}

func (c *TileCache) saveIndex(ctx context.Context, index []tileIndexEntry) error {
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal tile index: %w", err)
	}
	return c.store.Set(ctx, tileIndexKey, data, 0)
}

func removeKey(index []tileIndexEntry, key string) []tileIndexEntry {
	out := index[:0:0]
	for _, e := range index {
		if e.Key != key {
			out = append(out, e)
		}
	}
	return out
}
