package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/internal/tracking/services"
	"tacoshare-tracking-api/pkg/httpx"
	"tacoshare-tracking-api/pkg/middleware"

	"github.com/google/uuid"
)

// PositionStore is the part of the tracking store a courier talks to
type PositionStore interface {
	UpdateDeliveryPersonPosition(ctx context.Context, deliveryPersonID uuid.UUID, position models.Position) ([]*models.Event, error)
	GetDeliveryPersonPosition(deliveryPersonID uuid.UUID) (*models.Position, bool)
	GetDeliveryPersonTrackings(deliveryPersonID uuid.UUID) []*models.DeliveryTracking
}

// LocationHandler handles driver location-related HTTP requests
type LocationHandler struct {
	store PositionStore
	now   func() time.Time
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(store PositionStore) *LocationHandler {
	return &LocationHandler{store: store, now: time.Now}
}

// LocationUpdateResult is returned after a position report
type LocationUpdateResult struct {
	Position models.Position `json:"position"`
	Events   []*models.Event `json:"events"`
}

// UpdateMyLocation godoc
//
//	@Summary		Update my location
//	@Description	Report the current driver's real-time position. Every active tracking of the driver is refreshed.
//	@Tags			drivers
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.UpdateLocationRequest	true	"Location details"
//	@Success		200		{object}	httpx.JSendSuccess				"Location updated successfully"
//	@Failure		400		{object}	httpx.JSendFail					"Validation failed"
//	@Failure		401		{object}	httpx.JSendError				"Unauthorized"
//	@Failure		429		{object}	httpx.JSendError				"Too many requests"
//	@Failure		500		{object}	httpx.JSendError				"Internal server error"
//	@Security		BearerAuth
//	@Router			/drivers/me/location [patch]
func (h *LocationHandler) UpdateMyLocation(w http.ResponseWriter, r *http.Request) {
	// Get driver ID from context
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "ID de usuario inválido")
		return
	}

	// Parse request body
	var req models.UpdateLocationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"body": "Formato de solicitud inválido",
		})
		return
	}

	position := req.ToPosition(h.now())
	events, err := h.store.UpdateDeliveryPersonPosition(r.Context(), userID, position)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPosition) {
			httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
				"position": "Coordenadas fuera de rango",
			})
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, "Error al actualizar la ubicación")
		return
	}

	if events == nil {
		events = []*models.Event{}
	}
	httpx.RespondSuccess(w, http.StatusOK, LocationUpdateResult{Position: position, Events: events})
}

// GetMyLocation godoc
//
//	@Summary		Get my location
//	@Description	Get the current driver's last reported position
//	@Tags			drivers
//	@Produce		json
//	@Success		200	{object}	models.PositionResponse	"Location retrieved successfully"
//	@Failure		401	{object}	httpx.JSendError		"Unauthorized"
//	@Failure		404	{object}	httpx.JSendFail			"Location not found"
//	@Security		BearerAuth
//	@Router			/drivers/me/location [get]
func (h *LocationHandler) GetMyLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "ID de usuario inválido")
		return
	}

	position, found := h.store.GetDeliveryPersonPosition(userID)
	if !found {
		httpx.RespondFail(w, http.StatusNotFound, map[string]any{
			"position": "No se ha reportado la ubicación del repartidor",
		})
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, position)
}

// GetMyTrackings godoc
//
//	@Summary		Get my trackings
//	@Description	List the active trackings of the current driver, oldest first
//	@Tags			drivers
//	@Produce		json
//	@Success		200	{object}	models.TrackingListResponse	"Trackings retrieved successfully"
//	@Failure		401	{object}	httpx.JSendError			"Unauthorized"
//	@Security		BearerAuth
//	@Router			/drivers/me/trackings [get]
func (h *LocationHandler) GetMyTrackings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "ID de usuario inválido")
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, h.store.GetDeliveryPersonTrackings(userID))
}

var _ PositionStore = (*services.TrackingService)(nil)
