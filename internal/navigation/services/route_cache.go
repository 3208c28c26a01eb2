package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tacoshare-tracking-api/internal/navigation/models"
	"tacoshare-tracking-api/internal/navigation/repositories"

	"github.com/google/uuid"
)

// DefaultRouteTTL is how long a cached route stays usable
const DefaultRouteTTL = 24 * time.Hour

// RouteCache keeps the last provider route of each courier so a courier who
// goes offline mid-round keeps the precise route.
type RouteCache struct {
	store  repositories.Store
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewRouteCache creates a route cache over store
func NewRouteCache(store repositories.Store, ttl time.Duration, logger *slog.Logger) *RouteCache {
	if ttl <= 0 {
		ttl = DefaultRouteTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteCache{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With(slog.String("component", "route_cache")),
	}
}

func routeKey(deliveryPersonID uuid.UUID) string {
	return repositories.GenerateKey(repositories.KeyPrefixRoute, deliveryPersonID.String())
}

// Save stores route as the courier's latest, stamped with the current time
func (c *RouteCache) Save(ctx context.Context, deliveryPersonID uuid.UUID, route *models.PlannedRoute, orderIDs []uuid.UUID) error {
	entry := models.CachedRoute{
		Coordinates:    route.Coordinates,
		Waypoints:      route.Waypoints,
		Info:           route.Info,
		OptimizedOrder: route.OptimizedOrder,
		OrderIDs:       orderIDs,
		Timestamp:      c.now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cached route: %w", err)
	}

	// The store ttl only reclaims space; freshness is decided on read
	return c.store.Set(ctx, routeKey(deliveryPersonID), data, c.ttl+time.Minute)
}

// Load returns the cached route if it is younger than the ttl. Expired or
// unreadable entries are deleted and reported as a miss.
func (c *RouteCache) Load(ctx context.Context, deliveryPersonID uuid.UUID) (*models.CachedRoute, bool, error) {
	key := routeKey(deliveryPersonID)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	var entry models.CachedRoute
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("discarding unreadable cached route", slog.String("key", key), slog.String("error", err.Error()))
		_ = c.store.Delete(ctx, key)
		return nil, false, nil
	}

	if c.now().Sub(entry.Timestamp) >= c.ttl {
		_ = c.store.Delete(ctx, key)
		return nil, false, nil
	}

	return &entry, true, nil
}

// Clear removes the courier's cached route
func (c *RouteCache) Clear(ctx context.Context, deliveryPersonID uuid.UUID) error {
	return c.store.Delete(ctx, routeKey(deliveryPersonID))
}

// ToPlannedRoute returns the cached route exactly as it was computed
func ToPlannedRoute(entry *models.CachedRoute) *models.PlannedRoute {
	return &models.PlannedRoute{
		Coordinates:    entry.Coordinates,
		Waypoints:      entry.Waypoints,
		Info:           entry.Info,
		OptimizedOrder: entry.OptimizedOrder,
		Source:         models.RouteSourceCache,
		ComputedAt:     entry.Timestamp,
	}
}
