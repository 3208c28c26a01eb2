//nolint:errcheck // Test file - error checking not critical for test assertions
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/internal/tracking/repositories"
	"tacoshare-tracking-api/internal/tracking/services"
	"tacoshare-tracking-api/pkg/geo"
	"tacoshare-tracking-api/pkg/gmaps"
	"tacoshare-tracking-api/pkg/middleware"

	"github.com/google/uuid"
)

// Test status constants
const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

// mockTrackingManager is a simple mock for testing
type mockTrackingManager struct {
	startFn       func(ctx context.Context, orderID, courierID uuid.UUID, pickup, delivery geo.Coordinates) (*models.DeliveryTracking, error)
	updateFn      func(ctx context.Context, orderID uuid.UUID, status models.Status) (*models.Event, error)
	recalculateFn func(ctx context.Context, orderID uuid.UUID, pickup, delivery geo.Coordinates) (*models.Event, error)
	getFn         func(orderID uuid.UUID) (*models.DeliveryTracking, bool)
	listFn        func(offset, limit int) ([]*models.DeliveryTracking, int)
}

func (m *mockTrackingManager) StartDeliveryTracking(ctx context.Context, orderID, courierID uuid.UUID, pickup, delivery geo.Coordinates) (*models.DeliveryTracking, error) {
	if m.startFn != nil {
		return m.startFn(ctx, orderID, courierID, pickup, delivery)
	}
	return nil, nil
}

func (m *mockTrackingManager) UpdateDeliveryStatus(ctx context.Context, orderID uuid.UUID, status models.Status) (*models.Event, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, orderID, status)
	}
	return nil, nil
}

func (m *mockTrackingManager) RecalculateRoute(ctx context.Context, orderID uuid.UUID, pickup, delivery geo.Coordinates) (*models.Event, error) {
	if m.recalculateFn != nil {
		return m.recalculateFn(ctx, orderID, pickup, delivery)
	}
	return nil, nil
}

func (m *mockTrackingManager) GetDeliveryTracking(orderID uuid.UUID) (*models.DeliveryTracking, bool) {
	if m.getFn != nil {
		return m.getFn(orderID)
	}
	return nil, false
}

func (m *mockTrackingManager) ListTrackings(offset, limit int) ([]*models.DeliveryTracking, int) {
	if m.listFn != nil {
		return m.listFn(offset, limit)
	}
	return nil, 0
}

type mockOrderLookup struct {
	findFn func(ctx context.Context, id uuid.UUID) (*models.OrderInfo, error)
}

func (m *mockOrderLookup) FindByID(ctx context.Context, id uuid.UUID) (*models.OrderInfo, error) {
	return m.findFn(ctx, id)
}

var (
	orderID   = uuid.MustParse("00000000-0000-0000-0000-000000000042")
	driverID  = uuid.MustParse("00000000-0000-0000-0000-000000000007")
	otherID   = uuid.MustParse("00000000-0000-0000-0000-000000000099")
	pickupLoc = geo.Coordinates{Latitude: 19.4326, Longitude: -99.1332}
	dropLoc   = geo.Coordinates{Latitude: 19.4200, Longitude: -99.1600}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTracking() *models.DeliveryTracking {
	return &models.DeliveryTracking{
		OrderID:          orderID,
		DeliveryPersonID: driverID,
		PickupLocation:   pickupLoc,
		DeliveryLocation: dropLoc,
		Status:           models.StatusEnRouteToPickup,
		StartedAt:        time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

// newRequest builds a request authenticated as the given user
func newRequest(method, target string, body any, userID uuid.UUID, role string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, middleware.UserRoleKey, role)
	return req.WithContext(ctx)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestStartTracking(t *testing.T) {
	t.Run("driver starts tracking for themself", func(t *testing.T) {
		var gotCourier uuid.UUID
		mock := &mockTrackingManager{
			startFn: func(_ context.Context, _, courierID uuid.UUID, _, _ geo.Coordinates) (*models.DeliveryTracking, error) {
				gotCourier = courierID
				return sampleTracking(), nil
			},
		}
		h := NewTrackingHandler(mock, nil, testLogger())

		body := map[string]any{
			"order_id":           orderID,
			"delivery_person_id": otherID,
			"pickup_location":    pickupLoc,
			"delivery_location":  dropLoc,
		}
		w := httptest.NewRecorder()
		h.StartTracking(w, newRequest(http.MethodPost, "/api/v1/trackings", body, driverID, middleware.RoleDriver))

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if gotCourier != driverID {
			t.Errorf("courier = %s, want the calling driver", gotCourier)
		}
		if decode(t, w)["status"] != statusSuccess {
			t.Error("expected success")
		}
	})

	t.Run("missing locations come from the order", func(t *testing.T) {
		var gotPickup, gotDelivery geo.Coordinates
		var gotCourier uuid.UUID
		mock := &mockTrackingManager{
			startFn: func(_ context.Context, _, courierID uuid.UUID, pickup, delivery geo.Coordinates) (*models.DeliveryTracking, error) {
				gotCourier, gotPickup, gotDelivery = courierID, pickup, delivery
				return sampleTracking(), nil
			},
		}
		assigned := driverID
		orders := &mockOrderLookup{findFn: func(context.Context, uuid.UUID) (*models.OrderInfo, error) {
			return &models.OrderInfo{ID: orderID, DriverID: &assigned, PickupLocation: pickupLoc, DeliveryLocation: dropLoc}, nil
		}}
		h := NewTrackingHandler(mock, orders, testLogger())

		w := httptest.NewRecorder()
		h.StartTracking(w, newRequest(http.MethodPost, "/api/v1/trackings", map[string]any{"order_id": orderID}, uuid.New(), middleware.RoleAdmin))

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if gotCourier != driverID || gotPickup != pickupLoc || gotDelivery != dropLoc {
			t.Errorf("unexpected start arguments %s %v %v", gotCourier, gotPickup, gotDelivery)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		orders := &mockOrderLookup{findFn: func(context.Context, uuid.UUID) (*models.OrderInfo, error) {
			return nil, repositories.ErrOrderNotFound
		}}
		h := NewTrackingHandler(&mockTrackingManager{}, orders, testLogger())

		w := httptest.NewRecorder()
		h.StartTracking(w, newRequest(http.MethodPost, "/api/v1/trackings", map[string]any{"order_id": orderID}, driverID, middleware.RoleDriver))

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("position unavailable", func(t *testing.T) {
		mock := &mockTrackingManager{
			startFn: func(context.Context, uuid.UUID, uuid.UUID, geo.Coordinates, geo.Coordinates) (*models.DeliveryTracking, error) {
				return nil, services.ErrPositionUnavailable
			},
		}
		h := NewTrackingHandler(mock, nil, testLogger())

		body := map[string]any{"order_id": orderID, "pickup_location": pickupLoc, "delivery_location": dropLoc}
		w := httptest.NewRecorder()
		h.StartTracking(w, newRequest(http.MethodPost, "/api/v1/trackings", body, driverID, middleware.RoleDriver))

		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
		if decode(t, w)["status"] != statusFail {
			t.Error("expected fail")
		}
	})

	t.Run("driver cannot take over another courier's tracking", func(t *testing.T) {
		started := false
		mock := &mockTrackingManager{
			getFn: func(uuid.UUID) (*models.DeliveryTracking, bool) {
				tracking := sampleTracking()
				tracking.DeliveryPersonID = otherID
				return tracking, true
			},
			startFn: func(context.Context, uuid.UUID, uuid.UUID, geo.Coordinates, geo.Coordinates) (*models.DeliveryTracking, error) {
				started = true
				return sampleTracking(), nil
			},
		}
		h := NewTrackingHandler(mock, nil, testLogger())

		body := map[string]any{"order_id": orderID, "pickup_location": pickupLoc, "delivery_location": dropLoc}
		w := httptest.NewRecorder()
		h.StartTracking(w, newRequest(http.MethodPost, "/api/v1/trackings", body, driverID, middleware.RoleDriver))

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
		if started {
			t.Error("tracking must not be replaced")
		}
	})

	t.Run("driver cannot start an order assigned to someone else", func(t *testing.T) {
		started := false
		mock := &mockTrackingManager{
			startFn: func(context.Context, uuid.UUID, uuid.UUID, geo.Coordinates, geo.Coordinates) (*models.DeliveryTracking, error) {
				started = true
				return sampleTracking(), nil
			},
		}
		assigned := otherID
		orders := &mockOrderLookup{findFn: func(context.Context, uuid.UUID) (*models.OrderInfo, error) {
			return &models.OrderInfo{ID: orderID, DriverID: &assigned, PickupLocation: pickupLoc, DeliveryLocation: dropLoc}, nil
		}}
		h := NewTrackingHandler(mock, orders, testLogger())

		body := map[string]any{"order_id": orderID, "pickup_location": pickupLoc, "delivery_location": dropLoc}
		w := httptest.NewRecorder()
		h.StartTracking(w, newRequest(http.MethodPost, "/api/v1/trackings", body, driverID, middleware.RoleDriver))

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
		if started {
			t.Error("tracking must not be started")
		}
	})

	t.Run("driver restarts their own tracking", func(t *testing.T) {
		mock := &mockTrackingManager{
			getFn: func(uuid.UUID) (*models.DeliveryTracking, bool) {
				return sampleTracking(), true
			},
			startFn: func(context.Context, uuid.UUID, uuid.UUID, geo.Coordinates, geo.Coordinates) (*models.DeliveryTracking, error) {
				return sampleTracking(), nil
			},
		}
		h := NewTrackingHandler(mock, nil, testLogger())

		body := map[string]any{"order_id": orderID, "pickup_location": pickupLoc, "delivery_location": dropLoc}
		w := httptest.NewRecorder()
		h.StartTracking(w, newRequest(http.MethodPost, "/api/v1/trackings", body, driverID, middleware.RoleDriver))

		if w.Code != http.StatusCreated {
			t.Errorf("status = %d, want 201", w.Code)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		h := NewTrackingHandler(&mockTrackingManager{}, nil, testLogger())
		w := httptest.NewRecorder()
		h.StartTracking(w, newRequest(http.MethodPost, "/api/v1/trackings", "{invalid", driverID, middleware.RoleDriver))
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("missing order id", func(t *testing.T) {
		h := NewTrackingHandler(&mockTrackingManager{}, nil, testLogger())
		w := httptest.NewRecorder()
		h.StartTracking(w, newRequest(http.MethodPost, "/api/v1/trackings", map[string]any{}, driverID, middleware.RoleDriver))
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestGetTracking(t *testing.T) {
	mock := &mockTrackingManager{
		getFn: func(id uuid.UUID) (*models.DeliveryTracking, bool) {
			if id == orderID {
				return sampleTracking(), true
			}
			return nil, false
		},
	}
	h := NewTrackingHandler(mock, nil, testLogger())

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"found", orderID.String(), http.StatusOK},
		{"not found", otherID.String(), http.StatusNotFound},
		{"invalid id", "not-a-uuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(http.MethodGet, "/api/v1/trackings/"+tt.id, nil, driverID, middleware.RoleCustomer)
			req.SetPathValue("order_id", tt.id)
			w := httptest.NewRecorder()
			h.GetTracking(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestListTrackings(t *testing.T) {
	var gotOffset, gotLimit int
	mock := &mockTrackingManager{
		listFn: func(offset, limit int) ([]*models.DeliveryTracking, int) {
			gotOffset, gotLimit = offset, limit
			return []*models.DeliveryTracking{sampleTracking()}, 21
		},
	}
	h := NewTrackingHandler(mock, nil, testLogger())

	w := httptest.NewRecorder()
	h.ListTrackings(w, newRequest(http.MethodGet, "/api/v1/trackings?page=2&limit=10", nil, uuid.New(), middleware.RoleAdmin))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotOffset != 10 || gotLimit != 10 {
		t.Errorf("offset/limit = %d/%d, want 10/10", gotOffset, gotLimit)
	}
	data := decode(t, w)["data"].(map[string]any)
	pagination := data["pagination"].(map[string]any)
	if pagination["total_pages"].(float64) != 3 {
		t.Errorf("unexpected pagination %v", pagination)
	}

	w = httptest.NewRecorder()
	h.ListTrackings(w, newRequest(http.MethodGet, "/api/v1/trackings?limit=500", nil, uuid.New(), middleware.RoleAdmin))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	found := func(uuid.UUID) (*models.DeliveryTracking, bool) { return sampleTracking(), true }

	t.Run("owner updates status", func(t *testing.T) {
		var got models.Status
		mock := &mockTrackingManager{
			getFn: found,
			updateFn: func(_ context.Context, _ uuid.UUID, status models.Status) (*models.Event, error) {
				got = status
				return models.NewEvent(models.EventTypeStatusChange, sampleTracking(), nil, time.Now()), nil
			},
		}
		h := NewTrackingHandler(mock, nil, testLogger())

		req := newRequest(http.MethodPatch, "/", map[string]any{"status": "at_pickup"}, driverID, middleware.RoleDriver)
		req.SetPathValue("order_id", orderID.String())
		w := httptest.NewRecorder()
		h.UpdateStatus(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if got != models.StatusAtPickup {
			t.Errorf("status passed = %s", got)
		}
	})

	t.Run("other driver is forbidden", func(t *testing.T) {
		h := NewTrackingHandler(&mockTrackingManager{getFn: found}, nil, testLogger())

		req := newRequest(http.MethodPatch, "/", map[string]any{"status": "at_pickup"}, otherID, middleware.RoleDriver)
		req.SetPathValue("order_id", orderID.String())
		w := httptest.NewRecorder()
		h.UpdateStatus(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		mock := &mockTrackingManager{
			getFn: found,
			updateFn: func(context.Context, uuid.UUID, models.Status) (*models.Event, error) {
				return nil, services.ErrInvalidStatus
			},
		}
		h := NewTrackingHandler(mock, nil, testLogger())

		req := newRequest(http.MethodPatch, "/", map[string]any{"status": "teleported"}, driverID, middleware.RoleDriver)
		req.SetPathValue("order_id", orderID.String())
		w := httptest.NewRecorder()
		h.UpdateStatus(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestRecalculateRoute(t *testing.T) {
	found := func(uuid.UUID) (*models.DeliveryTracking, bool) { return sampleTracking(), true }

	t.Run("stored locations are reused", func(t *testing.T) {
		var gotPickup, gotDelivery geo.Coordinates
		mock := &mockTrackingManager{
			getFn: found,
			recalculateFn: func(_ context.Context, _ uuid.UUID, pickup, delivery geo.Coordinates) (*models.Event, error) {
				gotPickup, gotDelivery = pickup, delivery
				return models.NewEvent(models.EventTypeRouteRecalculated, sampleTracking(), nil, time.Now()), nil
			},
		}
		h := NewTrackingHandler(mock, nil, testLogger())

		newDrop := geo.Coordinates{Latitude: 19.41, Longitude: -99.17}
		req := newRequest(http.MethodPost, "/", map[string]any{"delivery_location": newDrop}, driverID, middleware.RoleDriver)
		req.SetPathValue("order_id", orderID.String())
		w := httptest.NewRecorder()
		h.RecalculateRoute(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if gotPickup != pickupLoc || gotDelivery != newDrop {
			t.Errorf("unexpected locations %v %v", gotPickup, gotDelivery)
		}
	})

	t.Run("provider failure is a bad gateway", func(t *testing.T) {
		mock := &mockTrackingManager{
			getFn: found,
			recalculateFn: func(context.Context, uuid.UUID, geo.Coordinates, geo.Coordinates) (*models.Event, error) {
				return nil, &gmaps.RouteProviderError{Op: "directions", Status: gmaps.StatusUnreachable}
			},
		}
		h := NewTrackingHandler(mock, nil, testLogger())

		req := newRequest(http.MethodPost, "/", nil, driverID, middleware.RoleDriver)
		req.SetPathValue("order_id", orderID.String())
		w := httptest.NewRecorder()
		h.RecalculateRoute(w, req)

		if w.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", w.Code)
		}
		if decode(t, w)["status"] != statusError {
			t.Error("expected error")
		}
	})

	t.Run("tracking changed", func(t *testing.T) {
		mock := &mockTrackingManager{
			getFn: found,
			recalculateFn: func(context.Context, uuid.UUID, geo.Coordinates, geo.Coordinates) (*models.Event, error) {
				return nil, errors.Join(services.ErrTrackingChanged)
			},
		}
		h := NewTrackingHandler(mock, nil, testLogger())

		req := newRequest(http.MethodPost, "/", nil, driverID, middleware.RoleDriver)
		req.SetPathValue("order_id", orderID.String())
		w := httptest.NewRecorder()
		h.RecalculateRoute(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})
}

func TestGetRouteGeoJSON(t *testing.T) {
	withRoute := sampleTracking()
	withRoute.Route = &geo.Route{
		OverviewPolyline: geo.EncodePolyline([]geo.Coordinates{pickupLoc, dropLoc}),
		Legs:             []geo.Leg{{StartLocation: pickupLoc, EndLocation: dropLoc, DistanceMeters: 3000}},
	}

	t.Run("returns a feature collection", func(t *testing.T) {
		h := NewTrackingHandler(&mockTrackingManager{
			getFn: func(uuid.UUID) (*models.DeliveryTracking, bool) { return withRoute, true },
		}, nil, testLogger())

		req := newRequest(http.MethodGet, "/", nil, driverID, middleware.RoleCustomer)
		req.SetPathValue("order_id", orderID.String())
		w := httptest.NewRecorder()
		h.GetRouteGeoJSON(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
			t.Errorf("content type = %s", ct)
		}
		if decode(t, w)["type"] != "FeatureCollection" {
			t.Error("expected a FeatureCollection")
		}
	})

	t.Run("no route yet", func(t *testing.T) {
		h := NewTrackingHandler(&mockTrackingManager{
			getFn: func(uuid.UUID) (*models.DeliveryTracking, bool) { return sampleTracking(), true },
		}, nil, testLogger())

		req := newRequest(http.MethodGet, "/", nil, driverID, middleware.RoleCustomer)
		req.SetPathValue("order_id", orderID.String())
		w := httptest.NewRecorder()
		h.GetRouteGeoJSON(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}
