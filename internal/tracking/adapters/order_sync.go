package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/internal/tracking/repositories"
	"tacoshare-tracking-api/internal/tracking/services"

	"github.com/google/uuid"
)

// OrderUpdater is the part of the order repository written by tracking
type OrderUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateRouteInfo(ctx context.Context, id uuid.UUID, distanceKm float64, durationMins int) error
}

// OrderSyncPublisher writes advisory status and route estimates back to the
// order layer. Tracking keeps working without it; failures are only returned.
type OrderSyncPublisher struct {
	orders OrderUpdater
	logger *slog.Logger
}

// NewOrderSyncPublisher creates a new order sync publisher
func NewOrderSyncPublisher(orders OrderUpdater, logger *slog.Logger) *OrderSyncPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderSyncPublisher{orders: orders, logger: logger.With(slog.String("component", "order_sync"))}
}

// Publish reacts to status changes and new routes
func (p *OrderSyncPublisher) Publish(ctx context.Context, event *models.Event) error {
	switch event.Type {
	case models.EventTypeStatusChange:
		status, ok := models.OrderStatusFor(event.Status)
		if !ok {
			return nil
		}
		if err := p.orders.UpdateStatus(ctx, event.OrderID, status); err != nil {
			if errors.Is(err, repositories.ErrOrderNotFound) {
				p.logger.Debug("order not tracked by order layer", slog.String("order_id", event.OrderID.String()))
				return nil
			}
			return fmt.Errorf("sync order status: %w", err)
		}

	case models.EventTypeTrackingStarted, models.EventTypeRouteRecalculated:
		t := event.Tracking
		if t == nil || t.Route == nil {
			return nil
		}
		km := math.Round(float64(t.Route.DistanceMeters())/100) / 10
		minutes := int(math.Ceil(t.Route.DurationInTraffic().Minutes()))
		if err := p.orders.UpdateRouteInfo(ctx, event.OrderID, km, minutes); err != nil && !errors.Is(err, repositories.ErrOrderNotFound) {
			return fmt.Errorf("sync order route: %w", err)
		}
	}
	return nil
}

var (
	_ OrderUpdater            = (*repositories.OrderRepository)(nil)
	_ services.EventPublisher = (*OrderSyncPublisher)(nil)
)
