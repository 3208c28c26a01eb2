//nolint:errcheck // Test file - error checking not critical for test assertions
package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"tacoshare-tracking-api/internal/navigation/models"
	"tacoshare-tracking-api/internal/navigation/repositories"
	trackingModels "tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/pkg/geo"

	"github.com/google/uuid"
)

// stubPlanner returns a fixed route
type stubPlanner struct {
	route *models.PlannedRoute
	err   error
	calls int
}

func (p *stubPlanner) PlanRound(context.Context, uuid.UUID, *geo.Coordinates, []models.Stop) (*models.PlannedRoute, error) {
	p.calls++
	return p.route, p.err
}

// fakeTrackings records completed orders. active maps an order to its courier.
type fakeTrackings struct {
	mu        sync.Mutex
	active    map[uuid.UUID]uuid.UUID
	completed []uuid.UUID
}

func (f *fakeTrackings) GetDeliveryTracking(orderID uuid.UUID) (*trackingModels.DeliveryTracking, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	courierID, ok := f.active[orderID]
	if !ok {
		return nil, false
	}
	return &trackingModels.DeliveryTracking{OrderID: orderID, DeliveryPersonID: courierID}, true
}

func (f *fakeTrackings) UpdateDeliveryStatus(_ context.Context, orderID uuid.UUID, status trackingModels.Status) (*trackingModels.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == trackingModels.StatusCompleted {
		f.completed = append(f.completed, orderID)
	}
	return &trackingModels.Event{OrderID: orderID}, nil
}

// countingPrecacher records pre-cached routes
type countingPrecacher struct {
	mu    sync.Mutex
	calls int
}

func (c *countingPrecacher) PrecacheRoute(context.Context, []geo.Coordinates) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 3, nil
}

func newTestRounds(planner RoundPlanner, trackings TrackingCompleter) *RoundService {
	s := NewRoundService(planner, nil, trackings, nil, discardLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func statuses(steps []models.Step) []models.StepStatus {
	out := make([]models.StepStatus, len(steps))
	for i, s := range steps {
		out[i] = s.Status
	}
	return out
}

func TestRenderSteps(t *testing.T) {
	stops := testStops(3)

	tests := []struct {
		name      string
		round     models.Round
		wantOrder []int
		want      []models.StepStatus
	}{
		{
			name:      "input order without permutation",
			round:     models.Round{Stops: stops},
			wantOrder: []int{0, 1, 2},
			want:      []models.StepStatus{models.StepStatusCurrent, models.StepStatusPending, models.StepStatusPending},
		},
		{
			name:      "optimized order",
			round:     models.Round{Stops: stops, OptimizedOrder: []int{2, 0, 1}, CurrentStep: 1},
			wantOrder: []int{2, 0, 1},
			want:      []models.StepStatus{models.StepStatusCompleted, models.StepStatusCurrent, models.StepStatusPending},
		},
		{
			name:      "invalid permutation falls back to input order",
			round:     models.Round{Stops: stops, OptimizedOrder: []int{0, 0, 1}},
			wantOrder: []int{0, 1, 2},
			want:      []models.StepStatus{models.StepStatusCurrent, models.StepStatusPending, models.StepStatusPending},
		},
		{
			name: "order status wins over position",
			round: models.Round{
				Stops: []models.Stop{
					{OrderID: stops[0].OrderID, OrderStatus: models.OrderStatusCancelled},
					{OrderID: stops[1].OrderID},
					{OrderID: stops[2].OrderID, OrderStatus: models.OrderStatusDelivered},
				},
			},
			wantOrder: []int{0, 1, 2},
			want:      []models.StepStatus{models.StepStatusSkipped, models.StepStatusPending, models.StepStatusCompleted},
		},
		{
			name:      "finished round",
			round:     models.Round{Stops: stops, CurrentStep: 3},
			wantOrder: []int{0, 1, 2},
			want:      []models.StepStatus{models.StepStatusCompleted, models.StepStatusCompleted, models.StepStatusCompleted},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps := RenderSteps(&tt.round)
			order := make([]int, len(steps))
			for i, s := range steps {
				order[i] = s.StopIndex
				if s.Index != i {
					t.Errorf("step %d has Index %d", i, s.Index)
				}
			}
			if !reflect.DeepEqual(order, tt.wantOrder) {
				t.Errorf("order = %v, want %v", order, tt.wantOrder)
			}
			if got := statuses(steps); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("statuses = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoundService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("adopts the planned order", func(t *testing.T) {
		stops := testStops(3)
		planner := &stubPlanner{route: &models.PlannedRoute{OptimizedOrder: []int{1, 0, 2}, Source: models.RouteSourceProvider}}
		s := newTestRounds(planner, nil)

		round, err := s.Start(ctx, courier, &origin, stops)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if !reflect.DeepEqual(round.OptimizedOrder, []int{1, 0, 2}) || round.CurrentStep != 0 {
			t.Errorf("round = %+v", round)
		}
		if round.DeliveryPersonID != courier || !round.StartedAt.Equal(fixedNow) {
			t.Errorf("round = %+v", round)
		}

		steps, _ := s.Steps(courier)
		if steps[0].Stop.OrderID != stops[1].OrderID {
			t.Error("first step should be the first stop of the optimized order")
		}
	})

	t.Run("starts without a route", func(t *testing.T) {
		s := newTestRounds(&stubPlanner{err: ErrNoRouteAvailable}, nil)
		round, err := s.Start(ctx, courier, nil, testStops(2))
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if round.Route != nil || round.OptimizedOrder != nil {
			t.Errorf("round = %+v", round)
		}
	})

	t.Run("validation", func(t *testing.T) {
		s := newTestRounds(&stubPlanner{}, nil)
		dup := testStops(2)
		dup[1].OrderID = dup[0].OrderID
		badLocation := testStops(1)
		badLocation[0].Location = geo.Coordinates{Latitude: 95}
		noOrder := testStops(1)
		noOrder[0].OrderID = uuid.Nil

		cases := map[string]struct {
			stops []models.Stop
			want  error
		}{
			"empty":        {nil, ErrNoStops},
			"duplicate":    {dup, ErrDuplicateStop},
			"bad location": {badLocation, ErrInvalidStop},
			"no order":     {noOrder, ErrInvalidStop},
		}
		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				if _, err := s.Start(ctx, courier, &origin, tc.stops); !errors.Is(err, tc.want) {
					t.Errorf("error = %v, want %v", err, tc.want)
				}
			})
		}
		if _, ok := s.Current(courier); ok {
			t.Error("invalid rounds must not be stored")
		}
	})

	t.Run("replaces previous round", func(t *testing.T) {
		s := newTestRounds(&stubPlanner{err: ErrNoRouteAvailable}, nil)
		first, _ := s.Start(ctx, courier, nil, testStops(2))
		second, _ := s.Start(ctx, courier, nil, testStops(1))

		current, ok := s.Current(courier)
		if !ok || current.ID != second.ID || current.ID == first.ID {
			t.Errorf("current round = %+v", current)
		}
	})

	t.Run("precaches tiles along the route", func(t *testing.T) {
		precacher := &countingPrecacher{}
		planner := &stubPlanner{route: &models.PlannedRoute{Coordinates: []geo.Coordinates{origin}, Source: models.RouteSourceProvider}}
		s := NewRoundService(planner, nil, nil, precacher, discardLogger())

		s.Start(ctx, courier, &origin, testStops(1))
		s.Wait()
		if precacher.calls != 1 {
			t.Errorf("precache calls = %d, want 1", precacher.calls)
		}
	})
}

func TestRoundService_Sequencing(t *testing.T) {
	ctx := context.Background()
	stops := testStops(3)
	trackings := &fakeTrackings{active: map[uuid.UUID]uuid.UUID{stops[1].OrderID: courier}}
	planner := &stubPlanner{route: &models.PlannedRoute{OptimizedOrder: []int{1, 0, 2}, Source: models.RouteSourceProvider}}
	s := newTestRounds(planner, trackings)

	s.Start(ctx, courier, &origin, stops)

	round, err := s.CompleteCurrent(ctx, courier)
	if err != nil {
		t.Fatalf("CompleteCurrent() error = %v", err)
	}
	if round.CurrentStep != 1 || round.Stops[1].OrderStatus != models.OrderStatusDelivered {
		t.Errorf("round = %+v", round)
	}
	if len(trackings.completed) != 1 || trackings.completed[0] != stops[1].OrderID {
		t.Errorf("completed trackings = %v", trackings.completed)
	}

	if _, err := s.SkipCurrent(ctx, courier, "   "); !errors.Is(err, ErrSkipReasonRequired) {
		t.Errorf("blank reason error = %v", err)
	}
	if current, _ := s.Current(courier); current.CurrentStep != 1 {
		t.Error("rejected skip must not advance the round")
	}

	round, err = s.SkipCurrent(ctx, courier, " Cliente ausente ")
	if err != nil {
		t.Fatalf("SkipCurrent() error = %v", err)
	}
	if round.CurrentStep != 2 || round.Stops[0].SkipReason != "Cliente ausente" {
		t.Errorf("round = %+v", round)
	}

	steps, _ := s.Steps(courier)
	want := []models.StepStatus{models.StepStatusCompleted, models.StepStatusCompleted, models.StepStatusCurrent}
	if got := statuses(steps); !reflect.DeepEqual(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}

	s.CompleteCurrent(ctx, courier)
	if _, err := s.CompleteCurrent(ctx, courier); !errors.Is(err, ErrRoundFinished) {
		t.Errorf("error = %v, want ErrRoundFinished", err)
	}
	if len(trackings.completed) != 1 {
		t.Error("orders without a live tracking must not be completed")
	}
}

func TestRoundService_CompleteLeavesOtherCouriersTrackings(t *testing.T) {
	ctx := context.Background()
	stops := testStops(1)
	trackings := &fakeTrackings{active: map[uuid.UUID]uuid.UUID{stops[0].OrderID: uuid.New()}}
	s := newTestRounds(&stubPlanner{err: ErrNoRouteAvailable}, trackings)

	s.Start(ctx, courier, &origin, stops)
	round, err := s.CompleteCurrent(ctx, courier)
	if err != nil {
		t.Fatalf("CompleteCurrent() error = %v", err)
	}
	if round.Stops[0].OrderStatus != models.OrderStatusDelivered {
		t.Errorf("stop status = %s, want delivered", round.Stops[0].OrderStatus)
	}
	if len(trackings.completed) != 0 {
		t.Errorf("completed trackings = %v, want none", trackings.completed)
	}
}

func TestRoundService_CurrentIsACopy(t *testing.T) {
	s := newTestRounds(&stubPlanner{err: ErrNoRouteAvailable}, nil)
	s.Start(context.Background(), courier, nil, testStops(2))

	round, _ := s.Current(courier)
	round.Stops[0].OrderStatus = models.OrderStatusDelivered
	round.CurrentStep = 5

	again, _ := s.Current(courier)
	if again.CurrentStep != 0 || again.Stops[0].OrderStatus != "" {
		t.Error("mutating a returned round changed the stored one")
	}
}

func TestRoundService_Route(t *testing.T) {
	ctx := context.Background()

	t.Run("replans an approximate route once a position is known", func(t *testing.T) {
		planner := &stubPlanner{err: ErrNoRouteAvailable}
		s := newTestRounds(planner, nil)
		s.Start(ctx, courier, nil, testStops(3))

		if _, err := s.Route(ctx, courier, nil); !errors.Is(err, ErrNoRouteAvailable) {
			t.Errorf("error = %v, want ErrNoRouteAvailable", err)
		}

		planner.err = nil
		planner.route = &models.PlannedRoute{OptimizedOrder: []int{2, 1, 0}, Source: models.RouteSourceProvider}
		route, err := s.Route(ctx, courier, &origin)
		if err != nil || route.Source != models.RouteSourceProvider {
			t.Fatalf("Route() = %+v, %v", route, err)
		}
		current, _ := s.Current(courier)
		if !reflect.DeepEqual(current.OptimizedOrder, []int{2, 1, 0}) {
			t.Errorf("OptimizedOrder = %v", current.OptimizedOrder)
		}

		calls := planner.calls
		s.Route(ctx, courier, &origin)
		if planner.calls != calls {
			t.Error("provider route should be reused")
		}
	})

	t.Run("keeps the visiting order once the round progressed", func(t *testing.T) {
		planner := &stubPlanner{route: &models.PlannedRoute{Source: models.RouteSourceOffline, Info: models.RouteInfo{Approximate: true}}}
		s := newTestRounds(planner, nil)
		s.Start(ctx, courier, &origin, testStops(3))
		s.CompleteCurrent(ctx, courier)

		planner.route = &models.PlannedRoute{OptimizedOrder: []int{2, 1, 0}, Source: models.RouteSourceProvider}
		s.Route(ctx, courier, &origin)

		current, _ := s.Current(courier)
		if current.OptimizedOrder != nil {
			t.Errorf("OptimizedOrder changed mid-round: %v", current.OptimizedOrder)
		}
		if current.Route.Source != models.RouteSourceProvider {
			t.Error("route itself should be refreshed")
		}
	})

	t.Run("unknown round", func(t *testing.T) {
		s := newTestRounds(&stubPlanner{}, nil)
		if _, err := s.Route(ctx, courier, nil); !errors.Is(err, ErrRoundNotFound) {
			t.Errorf("error = %v, want ErrRoundNotFound", err)
		}
	})
}

func TestRoundService_End(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	now := fixedNow
	cache := newTestCache(store, &now)
	stops := testStops(1)
	cache.Save(ctx, courier, GenerateOfflineRoute(&origin, stops, now), orderIDs(stops))

	s := NewRoundService(&stubPlanner{err: ErrNoRouteAvailable}, cache, nil, nil, discardLogger())
	s.Start(ctx, courier, nil, stops)

	if err := s.End(ctx, courier); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if _, ok := s.Current(courier); ok {
		t.Error("round still present after End")
	}
	if store.Len() != 0 {
		t.Error("cached route should be cleared")
	}
	if err := s.End(ctx, courier); !errors.Is(err, ErrRoundNotFound) {
		t.Errorf("second End error = %v, want ErrRoundNotFound", err)
	}
	if _, err := s.CompleteCurrent(ctx, courier); !errors.Is(err, ErrRoundNotFound) {
		t.Errorf("error = %v, want ErrRoundNotFound", err)
	}
}
