package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/pkg/geo"
	"tacoshare-tracking-api/pkg/gmaps"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RouteCalculator defines the provider calls the tracking store needs
type RouteCalculator interface {
	CalculateOptimizedRoute(ctx context.Context, req gmaps.RouteRequest) (*geo.Route, error)
	CalculateETA(ctx context.Context, from, to geo.Coordinates) (*gmaps.ETAResult, error)
}

// EventPublisher receives every event the store produces
type EventPublisher interface {
	Publish(ctx context.Context, event *models.Event) error
}

var _ RouteCalculator = (*gmaps.Client)(nil)

// Config holds tracking thresholds
type Config struct {
	// ArrivalThresholdMeters is the distance at which en-route trackings arrive
	ArrivalThresholdMeters float64

	// ProviderTimeout bounds each route/ETA computation
	ProviderTimeout time.Duration

	// MaxConcurrentETA bounds parallel ETA calls for one courier
	MaxConcurrentETA int
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		ArrivalThresholdMeters: 100,
		ProviderTimeout:        10 * time.Second,
		MaxConcurrentETA:       8,
	}
}

type trackingEntry struct {
	tracking   *models.DeliveryTracking
	generation uint64

	// ctx is cancelled when the tracking leaves the store
	ctx    context.Context
	cancel context.CancelFunc
}

// TrackingService is the in-memory registry of courier positions and active
// trackings. All state lives behind mu; updates for the same courier are
// serialized and provider calls never run while mu is held.
type TrackingService struct {
	routes    RouteCalculator
	publisher EventPublisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.RWMutex
	positions  map[uuid.UUID]models.Position
	trackings  map[uuid.UUID]*trackingEntry
	byCourier  map[uuid.UUID]map[uuid.UUID]struct{}
	generation uint64

	locksMu      sync.Mutex
	courierLocks map[uuid.UUID]*courierLock
}

// courierLock serializes work for one courier. refs counts holders and
// waiters; the entry is dropped when it reaches zero.
type courierLock struct {
	mu   sync.Mutex
	refs int
}

// NewTrackingService creates a new tracking service
func NewTrackingService(routes RouteCalculator, publisher EventPublisher, cfg Config, logger *slog.Logger) *TrackingService {
	defaults := DefaultConfig()
	if cfg.ArrivalThresholdMeters <= 0 {
		cfg.ArrivalThresholdMeters = defaults.ArrivalThresholdMeters
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = defaults.ProviderTimeout
	}
	if cfg.MaxConcurrentETA <= 0 {
		cfg.MaxConcurrentETA = defaults.MaxConcurrentETA
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TrackingService{
		routes:       routes,
		publisher:    publisher,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "tracking")),
		now:          time.Now,
		positions:    make(map[uuid.UUID]models.Position),
		trackings:    make(map[uuid.UUID]*trackingEntry),
		byCourier:    make(map[uuid.UUID]map[uuid.UUID]struct{}),
		courierLocks: make(map[uuid.UUID]*courierLock),
	}
}

type etaSnapshot struct {
	orderID    uuid.UUID
	generation uint64
	status     models.Status
	target     geo.Coordinates
	ctx        context.Context
}

type etaOutcome struct {
	result *gmaps.ETAResult
	err    error
}

// UpdateDeliveryPersonPosition records the latest position of a courier and
// refreshes ETA/distance for each of their trackings. Every tracking yields a
// position_update event; trackings that come within the arrival threshold
// while en route also yield a status_change. Provider failures keep the
// previous ETA/distance.
func (s *TrackingService) UpdateDeliveryPersonPosition(ctx context.Context, deliveryPersonID uuid.UUID, position models.Position) ([]*models.Event, error) {
	if !position.Coordinates().Valid() {
		return nil, ErrInvalidPosition
	}
	if position.Timestamp.IsZero() {
		position.Timestamp = s.now()
	}

	unlock := s.lockCourier(deliveryPersonID)
	defer unlock()

	s.mu.Lock()
	s.positions[deliveryPersonID] = position
	snapshots := make([]etaSnapshot, 0, len(s.byCourier[deliveryPersonID]))
	for orderID := range s.byCourier[deliveryPersonID] {
		entry := s.trackings[orderID]
		snapshots = append(snapshots, etaSnapshot{
			orderID:    orderID,
			generation: entry.generation,
			status:     entry.tracking.Status,
			target:     entry.tracking.Target(),
			ctx:        entry.ctx,
		})
	}
	s.mu.Unlock()

	if len(snapshots) == 0 {
		return []*models.Event{}, nil
	}

	outcomes := s.computeETAs(ctx, position.Coordinates(), snapshots)

	s.mu.Lock()
	now := s.now()
	events := make([]*models.Event, 0, len(snapshots))
	for i, snap := range snapshots {
		entry, ok := s.trackings[snap.orderID]
		if !ok || entry.generation != snap.generation {
			s.logger.Debug("discarding eta for removed tracking", slog.String("order_id", snap.orderID.String()))
			continue
		}

		t := entry.tracking
		t.CurrentPosition = position
		t.LastUpdated = now

		fresh := false
		outcome := outcomes[i]
		switch {
		case outcome.err != nil:
			s.logger.Warn("eta refresh failed, keeping last estimate",
				slog.String("order_id", snap.orderID.String()),
				slog.String("error", outcome.err.Error()),
			)
		case t.Status != snap.status:
			// Phase changed while the call was in flight; the target is stale
		default:
			t.SetEstimate(now.Add(etaDuration(outcome.result)), float64(outcome.result.DistanceMeters))
			fresh = true
		}

		events = append(events, models.NewEvent(models.EventTypePositionUpdate, t, nil, now))

		if fresh && t.Status.IsEnRoute() && *t.DistanceToDestination <= s.cfg.ArrivalThresholdMeters {
			previous := t.Status
			t.Status = previous.Arrived()
			s.logger.Info("courier arrived",
				slog.String("order_id", snap.orderID.String()),
				slog.String("status", string(t.Status)),
				slog.Float64("distance_meters", *t.DistanceToDestination),
			)
			events = append(events, models.NewEvent(models.EventTypeStatusChange, t, &previous, now))
		}
	}
	s.mu.Unlock()

	s.publish(ctx, events...)
	return events, nil
}

func (s *TrackingService) computeETAs(ctx context.Context, from geo.Coordinates, snapshots []etaSnapshot) []etaOutcome {
	outcomes := make([]etaOutcome, len(snapshots))

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrentETA)
	for i, snap := range snapshots {
		g.Go(func() error {
			callCtx, cancel := s.providerContext(ctx, snap.ctx)
			defer cancel()
			result, err := s.routes.CalculateETA(callCtx, from, snap.target)
			outcomes[i] = etaOutcome{result: result, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// StartDeliveryTracking creates the tracking for an order. The courier's
// position must already be known. The initial route goes from that position
// through pickup to delivery; if it cannot be computed the tracking is created
// without route or ETA. An existing tracking for the order is replaced.
func (s *TrackingService) StartDeliveryTracking(ctx context.Context, orderID, deliveryPersonID uuid.UUID, pickup, delivery geo.Coordinates) (*models.DeliveryTracking, error) {
	if !pickup.Valid() || !delivery.Valid() {
		return nil, ErrInvalidLocation
	}

	unlock := s.lockCourier(deliveryPersonID)
	defer unlock()

	position, ok := s.GetDeliveryPersonPosition(deliveryPersonID)
	if !ok {
		return nil, ErrPositionUnavailable
	}

	callCtx, cancel := s.providerContext(ctx, nil)
	route, routeErr := s.routes.CalculateOptimizedRoute(callCtx, gmaps.RouteRequest{
		Origin:            position.Coordinates(),
		Destination:       delivery,
		Waypoints:         []geo.Coordinates{pickup},
		OptimizeWaypoints: true,
		TravelMode:        gmaps.TravelModeDriving,
	})
	cancel()

	now := s.now()
	tracking := &models.DeliveryTracking{
		OrderID:          orderID,
		DeliveryPersonID: deliveryPersonID,
		CurrentPosition:  *position,
		PickupLocation:   pickup,
		DeliveryLocation: delivery,
		Status:           models.StatusEnRouteToPickup,
		StartedAt:        now,
		LastUpdated:      now,
	}

	if routeErr != nil {
		s.logger.Warn("initial route unavailable, tracking starts without estimate",
			slog.String("order_id", orderID.String()),
			slog.String("error", routeErr.Error()),
		)
	} else {
		tracking.Route = route
		// The first leg ends at the pickup
		if len(route.Legs) > 0 {
			leg := route.Legs[0]
			tracking.SetEstimate(now.Add(legDuration(leg)), float64(leg.DistanceMeters))
		}
	}

	s.mu.Lock()
	if _, exists := s.trackings[orderID]; exists {
		s.logger.Info("replacing existing tracking", slog.String("order_id", orderID.String()))
		s.removeLocked(orderID)
	}
	s.generation++
	entryCtx, entryCancel := context.WithCancel(context.Background())
	s.trackings[orderID] = &trackingEntry{
		tracking:   tracking,
		generation: s.generation,
		ctx:        entryCtx,
		cancel:     entryCancel,
	}
	if s.byCourier[deliveryPersonID] == nil {
		s.byCourier[deliveryPersonID] = make(map[uuid.UUID]struct{})
	}
	s.byCourier[deliveryPersonID][orderID] = struct{}{}
	event := models.NewEvent(models.EventTypeTrackingStarted, tracking, nil, now)
	snapshot := tracking.Clone()
	s.mu.Unlock()

	s.logger.Info("tracking started",
		slog.String("order_id", orderID.String()),
		slog.String("delivery_person_id", deliveryPersonID.String()),
		slog.Bool("has_route", tracking.Route != nil),
	)
	s.publish(ctx, event)
	return snapshot, nil
}

// UpdateDeliveryStatus overwrites the status of a tracking without checking
// the transition. Completing a tracking removes it from the store after the
// event is built.
func (s *TrackingService) UpdateDeliveryStatus(ctx context.Context, orderID uuid.UUID, status models.Status) (*models.Event, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	entry, ok := s.trackings[orderID]
	if !ok {
		s.mu.Unlock()
		s.logger.Info("status update for unknown tracking",
			slog.String("order_id", orderID.String()),
			slog.String("status", string(status)),
		)
		return nil, ErrTrackingNotFound
	}

	now := s.now()
	previous := entry.tracking.Status
	entry.tracking.Status = status
	entry.tracking.LastUpdated = now
	event := models.NewEvent(models.EventTypeStatusChange, entry.tracking, &previous, now)
	if status == models.StatusCompleted {
		s.removeLocked(orderID)
	}
	s.mu.Unlock()

	s.logger.Info("tracking status updated",
		slog.String("order_id", orderID.String()),
		slog.String("previous_status", string(previous)),
		slog.String("status", string(status)),
	)
	s.publish(ctx, event)
	return event, nil
}

// RecalculateRoute computes a fresh route from the courier's current position
// to the pickup (while en route to it) or the delivery location. Failures are
// logged and returned; the stored tracking is left untouched.
func (s *TrackingService) RecalculateRoute(ctx context.Context, orderID uuid.UUID, pickup, delivery geo.Coordinates) (*models.Event, error) {
	if !pickup.Valid() || !delivery.Valid() {
		return nil, ErrInvalidLocation
	}

	s.mu.RLock()
	entry, ok := s.trackings[orderID]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrTrackingNotFound
	}
	generation := entry.generation
	status := entry.tracking.Status
	origin := entry.tracking.CurrentPosition.Coordinates()
	entryCtx := entry.ctx
	s.mu.RUnlock()

	target := delivery
	if status == models.StatusEnRouteToPickup {
		target = pickup
	}

	callCtx, cancel := s.providerContext(ctx, entryCtx)
	route, err := s.routes.CalculateOptimizedRoute(callCtx, gmaps.RouteRequest{
		Origin:      origin,
		Destination: target,
		TravelMode:  gmaps.TravelModeDriving,
	})
	cancel()
	if err != nil {
		s.logger.Warn("route recalculation failed",
			slog.String("order_id", orderID.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("recalculate route for order %s: %w", orderID, err)
	}

	s.mu.Lock()
	entry, ok = s.trackings[orderID]
	if !ok || entry.generation != generation {
		s.mu.Unlock()
		return nil, ErrTrackingNotFound
	}
	if entry.tracking.Status != status {
		s.mu.Unlock()
		return nil, ErrTrackingChanged
	}

	now := s.now()
	t := entry.tracking
	t.Route = route
	t.PickupLocation = pickup
	t.DeliveryLocation = delivery
	t.LastUpdated = now
	t.SetEstimate(now.Add(route.DurationInTraffic()), float64(route.DistanceMeters()))
	event := models.NewEvent(models.EventTypeRouteRecalculated, t, nil, now)
	s.mu.Unlock()

	s.publish(ctx, event)
	return event, nil
}

// GetDeliveryTracking returns a copy of the tracking for an order
func (s *TrackingService) GetDeliveryTracking(orderID uuid.UUID) (*models.DeliveryTracking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.trackings[orderID]
	if !ok {
		return nil, false
	}
	return entry.tracking.Clone(), true
}

// GetDeliveryPersonTrackings returns copies of a courier's trackings, oldest first
func (s *TrackingService) GetDeliveryPersonTrackings(deliveryPersonID uuid.UUID) []*models.DeliveryTracking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trackings := make([]*models.DeliveryTracking, 0, len(s.byCourier[deliveryPersonID]))
	for orderID := range s.byCourier[deliveryPersonID] {
		trackings = append(trackings, s.trackings[orderID].tracking.Clone())
	}
	sort.Slice(trackings, func(i, j int) bool {
		if trackings[i].StartedAt.Equal(trackings[j].StartedAt) {
			return trackings[i].OrderID.String() < trackings[j].OrderID.String()
		}
		return trackings[i].StartedAt.Before(trackings[j].StartedAt)
	})
	return trackings
}

// GetDeliveryPersonPosition returns the last known position of a courier
func (s *TrackingService) GetDeliveryPersonPosition(deliveryPersonID uuid.UUID) (*models.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, ok := s.positions[deliveryPersonID]
	if !ok {
		return nil, false
	}
	return &position, true
}

// ActiveTrackingCount returns the number of trackings in the store
func (s *TrackingService) ActiveTrackingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trackings)
}

// ListTrackings returns a page of trackings ordered by start time together
// with the total number of trackings in the store
func (s *TrackingService) ListTrackings(offset, limit int) ([]*models.DeliveryTracking, int) {
	s.mu.RLock()
	all := make([]*models.DeliveryTracking, 0, len(s.trackings))
	for _, entry := range s.trackings {
		all = append(all, entry.tracking.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].StartedAt.Equal(all[j].StartedAt) {
			return all[i].OrderID.String() < all[j].OrderID.String()
		}
		return all[i].StartedAt.Before(all[j].StartedAt)
	})

	total := len(all)
	if offset >= total {
		return []*models.DeliveryTracking{}, total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total
}

// Close abandons every in-flight computation
func (s *TrackingService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.trackings {
		entry.cancel()
	}
}

// removeLocked deletes a tracking and cancels its computations. mu must be held.
func (s *TrackingService) removeLocked(orderID uuid.UUID) {
	entry, ok := s.trackings[orderID]
	if !ok {
		return
	}
	entry.cancel()
	delete(s.trackings, orderID)

	courierID := entry.tracking.DeliveryPersonID
	if orders, ok := s.byCourier[courierID]; ok {
		delete(orders, orderID)
		if len(orders) == 0 {
			delete(s.byCourier, courierID)
		}
	}
}

// lockCourier blocks until the courier's lock is held and returns its release
func (s *TrackingService) lockCourier(deliveryPersonID uuid.UUID) func() {
	s.locksMu.Lock()
	lock, ok := s.courierLocks[deliveryPersonID]
	if !ok {
		lock = &courierLock{}
		s.courierLocks[deliveryPersonID] = lock
	}
	lock.refs++
	s.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		s.locksMu.Lock()
		defer s.locksMu.Unlock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.courierLocks, deliveryPersonID)
		}
	}
}

// providerContext bounds a provider call by the configured timeout and, when
// entryCtx is set, by the lifetime of the owning tracking.
func (s *TrackingService) providerContext(ctx context.Context, entryCtx context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	if entryCtx == nil {
		return callCtx, cancel
	}
	stop := context.AfterFunc(entryCtx, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

func (s *TrackingService) publish(ctx context.Context, events ...*models.Event) {
	if s.publisher == nil {
		return
	}
	// Publishing outlives the request that triggered it
	ctx = context.WithoutCancel(ctx)
	for _, event := range events {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish tracking event",
				slog.String("event_id", event.ID.String()),
				slog.String("type", string(event.Type)),
				slog.String("order_id", event.OrderID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func etaDuration(eta *gmaps.ETAResult) time.Duration {
	minutes := eta.DurationMinutes
	if eta.DurationWithTrafficMinutes != nil {
		minutes = *eta.DurationWithTrafficMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func legDuration(leg geo.Leg) time.Duration {
	if leg.DurationInTraffic > 0 {
		return leg.DurationInTraffic
	}
	return leg.Duration
}
