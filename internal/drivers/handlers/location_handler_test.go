//nolint:errcheck // Test file - error checking not critical for test assertions
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/internal/tracking/services"
	"tacoshare-tracking-api/pkg/middleware"

	"github.com/google/uuid"
)

type mockPositionStore struct {
	updateFn    func(ctx context.Context, id uuid.UUID, p models.Position) ([]*models.Event, error)
	positionFn  func(id uuid.UUID) (*models.Position, bool)
	trackingsFn func(id uuid.UUID) []*models.DeliveryTracking
}

func (m *mockPositionStore) UpdateDeliveryPersonPosition(ctx context.Context, id uuid.UUID, p models.Position) ([]*models.Event, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, p)
	}
	return nil, nil
}

func (m *mockPositionStore) GetDeliveryPersonPosition(id uuid.UUID) (*models.Position, bool) {
	if m.positionFn != nil {
		return m.positionFn(id)
	}
	return nil, false
}

func (m *mockPositionStore) GetDeliveryPersonTrackings(id uuid.UUID) []*models.DeliveryTracking {
	if m.trackingsFn != nil {
		return m.trackingsFn(id)
	}
	return []*models.DeliveryTracking{}
}

var (
	driverID = uuid.MustParse("00000000-0000-0000-0000-000000000007")
	fixedNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
)

func asDriver(req *http.Request) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, driverID)
	ctx = context.WithValue(ctx, middleware.UserRoleKey, middleware.RoleDriver)
	return req.WithContext(ctx)
}

func TestUpdateMyLocation(t *testing.T) {
	t.Run("missing timestamp becomes now", func(t *testing.T) {
		var got models.Position
		var gotID uuid.UUID
		store := &mockPositionStore{
			updateFn: func(_ context.Context, id uuid.UUID, p models.Position) ([]*models.Event, error) {
				gotID, got = id, p
				return nil, nil
			},
		}
		h := NewLocationHandler(store)
		h.now = func() time.Time { return fixedNow }

		body, _ := json.Marshal(map[string]any{"latitude": 19.43, "longitude": -99.13, "speed": 8.2})
		req := asDriver(httptest.NewRequest(http.MethodPatch, "/api/v1/drivers/me/location", bytes.NewReader(body)))
		w := httptest.NewRecorder()
		h.UpdateMyLocation(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if gotID != driverID {
			t.Errorf("position stored for %s", gotID)
		}
		if !got.Timestamp.Equal(fixedNow) {
			t.Errorf("timestamp = %v, want %v", got.Timestamp, fixedNow)
		}
		if got.Speed == nil || *got.Speed != 8.2 {
			t.Errorf("speed not forwarded: %v", got.Speed)
		}

		var resp struct {
			Status string               `json:"status"`
			Data   LocationUpdateResult `json:"data"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Data.Events == nil {
			t.Error("events should be an empty list, not null")
		}
	})

	t.Run("out of range coordinates", func(t *testing.T) {
		store := &mockPositionStore{
			updateFn: func(context.Context, uuid.UUID, models.Position) ([]*models.Event, error) {
				return nil, services.ErrInvalidPosition
			},
		}
		h := NewLocationHandler(store)

		body, _ := json.Marshal(map[string]any{"latitude": 123.0, "longitude": 0})
		req := asDriver(httptest.NewRequest(http.MethodPatch, "/api/v1/drivers/me/location", bytes.NewReader(body)))
		w := httptest.NewRecorder()
		h.UpdateMyLocation(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		h := NewLocationHandler(&mockPositionStore{})
		req := asDriver(httptest.NewRequest(http.MethodPatch, "/api/v1/drivers/me/location", bytes.NewBufferString("{")))
		w := httptest.NewRecorder()
		h.UpdateMyLocation(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		h := NewLocationHandler(&mockPositionStore{})
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/drivers/me/location", bytes.NewBufferString("{}"))
		w := httptest.NewRecorder()
		h.UpdateMyLocation(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})
}

func TestGetMyLocation(t *testing.T) {
	t.Run("unknown position", func(t *testing.T) {
		h := NewLocationHandler(&mockPositionStore{})
		w := httptest.NewRecorder()
		h.GetMyLocation(w, asDriver(httptest.NewRequest(http.MethodGet, "/api/v1/drivers/me/location", nil)))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("known position", func(t *testing.T) {
		h := NewLocationHandler(&mockPositionStore{
			positionFn: func(uuid.UUID) (*models.Position, bool) {
				return &models.Position{Latitude: 19.43, Longitude: -99.13, Timestamp: fixedNow}, true
			},
		})
		w := httptest.NewRecorder()
		h.GetMyLocation(w, asDriver(httptest.NewRequest(http.MethodGet, "/api/v1/drivers/me/location", nil)))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}

func TestGetMyTrackings(t *testing.T) {
	h := NewLocationHandler(&mockPositionStore{
		trackingsFn: func(id uuid.UUID) []*models.DeliveryTracking {
			return []*models.DeliveryTracking{{OrderID: uuid.New(), DeliveryPersonID: id}}
		},
	})
	w := httptest.NewRecorder()
	h.GetMyTrackings(w, asDriver(httptest.NewRequest(http.MethodGet, "/api/v1/drivers/me/trackings", nil)))

	var resp struct {
		Status string                    `json:"status"`
		Data   []models.DeliveryTracking `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].DeliveryPersonID != driverID {
		t.Errorf("unexpected trackings %+v", resp.Data)
	}
}
