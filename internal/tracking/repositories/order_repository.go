package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tacoshare-tracking-api/internal/tracking/models"

	"github.com/google/uuid"
)

// ErrOrderNotFound is returned when no order row matches
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository reads and annotates orders owned by the order layer
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindByID loads the locations and contact of an order
func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.OrderInfo, error) {
	query := `
		SELECT id, driver_id, status, customer_name, customer_phone,
			pickup_address, pickup_latitude, pickup_longitude,
			delivery_address, delivery_latitude, delivery_longitude
		FROM orders
		WHERE id = $1
	`

	var order models.OrderInfo
	var driverID uuid.NullUUID
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&driverID,
		&order.Status,
		&order.CustomerName,
		&order.CustomerPhone,
		&order.PickupAddress,
		&order.PickupLocation.Latitude,
		&order.PickupLocation.Longitude,
		&order.DeliveryAddress,
		&order.DeliveryLocation.Latitude,
		&order.DeliveryLocation.Longitude,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	if driverID.Valid {
		order.DriverID = &driverID.UUID
	}
	return &order, nil
}

// UpdateStatus updates the order status
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return checkAffected(result)
}

// UpdateRouteInfo updates the distance and estimated duration for an order
func (r *OrderRepository) UpdateRouteInfo(ctx context.Context, id uuid.UUID, distanceKm float64, durationMins int) error {
	query := `
		UPDATE orders
		SET distance_km = $1, estimated_duration_minutes = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, distanceKm, durationMins, id)
	if err != nil {
		return fmt.Errorf("failed to update route info: %w", err)
	}

	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}
