package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tacoshare-tracking-api/internal/navigation/models"
	trackingModels "tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/pkg/geo"

	"github.com/google/uuid"
)

// RoundPlanner computes the route of a round
type RoundPlanner interface {
	PlanRound(ctx context.Context, deliveryPersonID uuid.UUID, position *geo.Coordinates, stops []models.Stop) (*models.PlannedRoute, error)
}

// TrackingCompleter closes the live tracking of a delivered order
type TrackingCompleter interface {
	GetDeliveryTracking(orderID uuid.UUID) (*trackingModels.DeliveryTracking, bool)
	UpdateDeliveryStatus(ctx context.Context, orderID uuid.UUID, status trackingModels.Status) (*trackingModels.Event, error)
}

// RoutePrecacher warms the tile cache along a route
type RoutePrecacher interface {
	PrecacheRoute(ctx context.Context, coords []geo.Coordinates) (int, error)
}

// RoundService keeps one round per courier and sequences its steps
type RoundService struct {
	planner   RoundPlanner
	cache     *RouteCache
	trackings TrackingCompleter
	tiles     RoutePrecacher
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.RWMutex
	rounds map[uuid.UUID]*models.Round
	wg     sync.WaitGroup
}

// NewRoundService creates a round service. cache, trackings and tiles may be nil.
func NewRoundService(planner RoundPlanner, cache *RouteCache, trackings TrackingCompleter, tiles RoutePrecacher, logger *slog.Logger) *RoundService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoundService{
		planner:   planner,
		cache:     cache,
		trackings: trackings,
		tiles:     tiles,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "rounds")),
		rounds:    make(map[uuid.UUID]*models.Round),
	}
}

// Start creates the courier's round, replacing any previous one. A round
// starts even when no route can be planned yet.
func (s *RoundService) Start(ctx context.Context, deliveryPersonID uuid.UUID, position *geo.Coordinates, stops []models.Stop) (*models.Round, error) {
	if err := validateStops(stops); err != nil {
		return nil, err
	}

	route, err := s.planner.PlanRound(ctx, deliveryPersonID, position, stops)
	if err != nil && !errors.Is(err, ErrNoRouteAvailable) {
		return nil, err
	}

	now := s.now()
	round := &models.Round{
		ID:               uuid.New(),
		DeliveryPersonID: deliveryPersonID,
		Stops:            append([]models.Stop(nil), stops...),
		Route:            route,
		StartedAt:        now,
		UpdatedAt:        now,
	}
	if route != nil {
		round.OptimizedOrder = route.OptimizedOrder
	}

	s.mu.Lock()
	s.rounds[deliveryPersonID] = round
	snapshot := round.Clone()
	s.mu.Unlock()

	s.logger.Info("round started",
		slog.String("delivery_person_id", deliveryPersonID.String()),
		slog.Int("stops", len(stops)),
		slog.Bool("has_route", route != nil),
	)

	if route != nil && s.tiles != nil {
		s.precache(route.Coordinates)
	}
	return snapshot, nil
}

// Current returns a copy of the courier's round
func (s *RoundService) Current(deliveryPersonID uuid.UUID) (*models.Round, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	round, ok := s.rounds[deliveryPersonID]
	if !ok {
		return nil, false
	}
	return round.Clone(), true
}

// Steps renders the courier's round
func (s *RoundService) Steps(deliveryPersonID uuid.UUID) ([]models.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	round, ok := s.rounds[deliveryPersonID]
	if !ok {
		return nil, ErrRoundNotFound
	}
	return RenderSteps(round), nil
}

// Route returns the round's route, planning it again when the round has no
// route yet or only an approximation and the courier position is now known.
func (s *RoundService) Route(ctx context.Context, deliveryPersonID uuid.UUID, position *geo.Coordinates) (*models.PlannedRoute, error) {
	s.mu.RLock()
	round, ok := s.rounds[deliveryPersonID]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrRoundNotFound
	}
	roundID := round.ID
	current := round.Route
	stops := append([]models.Stop(nil), round.Stops...)
	s.mu.RUnlock()

	if current != nil && (current.Source == models.RouteSourceProvider || position == nil) {
		return current, nil
	}

	route, err := s.planner.PlanRound(ctx, deliveryPersonID, position, stops)
	if err != nil {
		if current != nil {
			return current, nil
		}
		return nil, err
	}

	s.mu.Lock()
	if round, ok := s.rounds[deliveryPersonID]; ok && round.ID == roundID {
		round.Route = route
		// The visiting order is only adopted before the first step is handled
		if round.CurrentStep == 0 {
			round.OptimizedOrder = route.OptimizedOrder
		}
		round.UpdatedAt = s.now()
	}
	s.mu.Unlock()
	return route, nil
}

// CompleteCurrent marks the current step delivered and moves to the next one.
// The order's live tracking is completed too when it belongs to the same courier.
func (s *RoundService) CompleteCurrent(ctx context.Context, deliveryPersonID uuid.UUID) (*models.Round, error) {
	round, stop, err := s.advance(deliveryPersonID, func(stop *models.Stop) {
		stop.OrderStatus = models.OrderStatusDelivered
	})
	if err != nil {
		return nil, err
	}

	if s.trackings != nil {
		if tracking, ok := s.trackings.GetDeliveryTracking(stop.OrderID); ok && tracking.DeliveryPersonID == deliveryPersonID {
			if _, err := s.trackings.UpdateDeliveryStatus(ctx, stop.OrderID, trackingModels.StatusCompleted); err != nil {
				s.logger.Warn("failed to complete tracking",
					slog.String("order_id", stop.OrderID.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return round, nil
}

// SkipCurrent moves past the current step, recording why
func (s *RoundService) SkipCurrent(_ context.Context, deliveryPersonID uuid.UUID, reason string) (*models.Round, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrSkipReasonRequired
	}

	round, stop, err := s.advance(deliveryPersonID, func(stop *models.Stop) {
		stop.SkipReason = reason
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("round step skipped",
		slog.String("delivery_person_id", deliveryPersonID.String()),
		slog.String("order_id", stop.OrderID.String()),
		slog.String("reason", reason),
	)
	return round, nil
}

// End destroys the courier's round and its cached route
func (s *RoundService) End(ctx context.Context, deliveryPersonID uuid.UUID) error {
	s.mu.Lock()
	_, ok := s.rounds[deliveryPersonID]
	delete(s.rounds, deliveryPersonID)
	s.mu.Unlock()

	if !ok {
		return ErrRoundNotFound
	}

	if s.cache != nil {
		if err := s.cache.Clear(ctx, deliveryPersonID); err != nil {
			return fmt.Errorf("clear cached route: %w", err)
		}
	}
	s.logger.Info("round ended", slog.String("delivery_person_id", deliveryPersonID.String()))
	return nil
}

// Wait blocks until background tile pre-caching has finished
func (s *RoundService) Wait() {
	s.wg.Wait()
}

// advance applies mark to the current stop and moves CurrentStep by one
func (s *RoundService) advance(deliveryPersonID uuid.UUID, mark func(*models.Stop)) (*models.Round, models.Stop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[deliveryPersonID]
	if !ok {
		return nil, models.Stop{}, ErrRoundNotFound
	}

	order := renderOrder(round)
	if round.CurrentStep >= len(order) {
		return nil, models.Stop{}, ErrRoundFinished
	}

	stopIndex := order[round.CurrentStep]
	mark(&round.Stops[stopIndex])
	round.CurrentStep++
	round.UpdatedAt = s.now()
	return round.Clone(), round.Stops[stopIndex], nil
}

func (s *RoundService) precache(coords []geo.Coordinates) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := s.tiles.PrecacheRoute(ctx, coords)
		if err != nil {
			s.logger.Warn("tile precache failed", slog.String("error", err.Error()))
			return
		}
		s.logger.Debug("tiles precached", slog.Int("count", n))
	}()
}

// RenderSteps lists the stops in visiting order with their derived status
func RenderSteps(round *models.Round) []models.Step {
	order := renderOrder(round)
	steps := make([]models.Step, len(order))
	for i, stopIndex := range order {
		stop := round.Stops[stopIndex]
		steps[i] = models.Step{
			Index:     i,
			StopIndex: stopIndex,
			Stop:      stop,
			Status:    stepStatus(stop, i, round.CurrentStep),
		}
	}
	return steps
}

func stepStatus(stop models.Stop, index, current int) models.StepStatus {
	switch {
	case stop.OrderStatus == models.OrderStatusDelivered:
		return models.StepStatusCompleted
	case stop.OrderStatus == models.OrderStatusCancelled:
		return models.StepStatusSkipped
	case index < current:
		return models.StepStatusCompleted
	case index == current:
		return models.StepStatusCurrent
	}
	return models.StepStatusPending
}

// renderOrder indexes through the optimized permutation, falling back to
// input order when it is missing or not a permutation of the stops
func renderOrder(round *models.Round) []int {
	n := len(round.Stops)
	if isPermutation(round.OptimizedOrder, n) {
		return round.OptimizedOrder
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func isPermutation(order []int, n int) bool {
	if len(order) != n || n == 0 {
		return false
	}
	seen := make([]bool, n)
	for _, i := range order {
		if i < 0 || i >= n || seen[i] {
			return false
		}
		seen[i] = true
	}
	return true
}

func validateStops(stops []models.Stop) error {
	if len(stops) == 0 {
		return ErrNoStops
	}
	seen := make(map[uuid.UUID]struct{}, len(stops))
	for i, stop := range stops {
		if stop.OrderID == uuid.Nil || !stop.Location.Valid() {
			return fmt.Errorf("%w: stop %d", ErrInvalidStop, i)
		}
		if _, dup := seen[stop.OrderID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateStop, stop.OrderID)
		}
		seen[stop.OrderID] = struct{}{}
	}
	return nil
}
