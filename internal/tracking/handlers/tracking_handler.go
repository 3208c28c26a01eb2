package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/internal/tracking/repositories"
	"tacoshare-tracking-api/internal/tracking/services"
	"tacoshare-tracking-api/pkg/geo"
	"tacoshare-tracking-api/pkg/gmaps"
	"tacoshare-tracking-api/pkg/httpx"
	"tacoshare-tracking-api/pkg/middleware"

	"github.com/google/uuid"
)

// TrackingManager is the part of the tracking store exposed over HTTP
type TrackingManager interface {
	StartDeliveryTracking(ctx context.Context, orderID, deliveryPersonID uuid.UUID, pickup, delivery geo.Coordinates) (*models.DeliveryTracking, error)
	UpdateDeliveryStatus(ctx context.Context, orderID uuid.UUID, status models.Status) (*models.Event, error)
	RecalculateRoute(ctx context.Context, orderID uuid.UUID, pickup, delivery geo.Coordinates) (*models.Event, error)
	GetDeliveryTracking(orderID uuid.UUID) (*models.DeliveryTracking, bool)
	ListTrackings(offset, limit int) ([]*models.DeliveryTracking, int)
}

// OrderLookup resolves locations and the assigned courier of an order
type OrderLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.OrderInfo, error)
}

// TrackingHandler handles delivery tracking HTTP requests
type TrackingHandler struct {
	service TrackingManager
	orders  OrderLookup
	logger  *slog.Logger
}

// NewTrackingHandler creates a new tracking handler. orders may be nil, in
// which case start requests must carry both locations and the courier.
func NewTrackingHandler(service TrackingManager, orders OrderLookup, logger *slog.Logger) *TrackingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackingHandler{service: service, orders: orders, logger: logger}
}

// StartTracking godoc
//
//	@Summary		Start tracking an order
//	@Description	Creates the live tracking of an order. Missing locations and courier are read from the order.
//	@Tags			trackings
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.StartTrackingRequest			true	"Tracking details"
//	@Success		201		{object}	models.TrackingResponse				"Tracking started"
//	@Failure		400		{object}	httpx.JSendFailInvalidJSON			"Invalid request"
//	@Failure		401		{object}	httpx.JSendError					"Unauthorized"
//	@Failure		403		{object}	httpx.JSendError					"Order belongs to another courier"
//	@Failure		404		{object}	httpx.JSendFail						"Order not found"
//	@Failure		409		{object}	httpx.JSendFailPositionUnavailable	"Courier position unknown"
//	@Failure		500		{object}	httpx.JSendError					"Internal server error"
//	@Security		BearerAuth
//	@Router			/trackings [post]
func (h *TrackingHandler) StartTracking(w http.ResponseWriter, r *http.Request) {
	var req models.StartTrackingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"error": "Cuerpo de solicitud inválido",
		})
		return
	}

	if errs := httpx.ValidateStruct(&req); errs != nil {
		httpx.RespondFail(w, http.StatusBadRequest, errs)
		return
	}

	courierID, pickup, delivery, ok := h.resolveStart(w, r, &req)
	if !ok {
		return
	}

	tracking, err := h.service.StartDeliveryTracking(r.Context(), req.OrderID, courierID, pickup, delivery)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	httpx.RespondSuccess(w, http.StatusCreated, tracking)
}

// resolveStart fills in what the request left out. Drivers always start
// trackings for themselves and only for orders that are not someone else's.
func (h *TrackingHandler) resolveStart(w http.ResponseWriter, r *http.Request, req *models.StartTrackingRequest) (uuid.UUID, geo.Coordinates, geo.Coordinates, bool) {
	var courierID uuid.UUID
	if req.DeliveryPersonID != nil {
		courierID = *req.DeliveryPersonID
	}
	isDriver := middleware.GetUserRole(r.Context()) == middleware.RoleDriver
	if isDriver {
		userID, _ := middleware.GetUserID(r.Context())
		courierID = userID
		if existing, found := h.service.GetDeliveryTracking(req.OrderID); found && existing.DeliveryPersonID != userID {
			respondStartForbidden(w)
			return uuid.Nil, geo.Coordinates{}, geo.Coordinates{}, false
		}
	}

	var pickup, delivery geo.Coordinates
	if req.PickupLocation != nil {
		pickup = *req.PickupLocation
	}
	if req.DeliveryLocation != nil {
		delivery = *req.DeliveryLocation
	}

	complete := courierID != uuid.Nil && req.PickupLocation != nil && req.DeliveryLocation != nil
	if complete && (!isDriver || h.orders == nil) {
		return courierID, pickup, delivery, true
	}

	if h.orders == nil {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"order_id": "Se requieren ubicaciones de recogida, entrega y repartidor",
		})
		return uuid.Nil, pickup, delivery, false
	}

	order, err := h.orders.FindByID(r.Context(), req.OrderID)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			httpx.RespondFail(w, http.StatusNotFound, map[string]any{
				"order_id": "Orden no encontrada",
			})
			return uuid.Nil, pickup, delivery, false
		}
		h.logger.Error("failed to load order", slog.String("order_id", req.OrderID.String()), slog.String("error", err.Error()))
		httpx.RespondError(w, http.StatusInternalServerError, "Error al obtener la orden")
		return uuid.Nil, pickup, delivery, false
	}

	if isDriver && order.DriverID != nil && *order.DriverID != courierID {
		respondStartForbidden(w)
		return uuid.Nil, pickup, delivery, false
	}

	if req.PickupLocation == nil {
		pickup = order.PickupLocation
	}
	if req.DeliveryLocation == nil {
		delivery = order.DeliveryLocation
	}
	if courierID == uuid.Nil {
		if order.DriverID == nil {
			httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
				"delivery_person_id": "La orden no tiene repartidor asignado",
			})
			return uuid.Nil, pickup, delivery, false
		}
		courierID = *order.DriverID
	}
	return courierID, pickup, delivery, true
}

func respondStartForbidden(w http.ResponseWriter) {
	httpx.RespondError(w, http.StatusForbidden, "La orden está asignada a otro repartidor")
}

// GetTracking godoc
//
//	@Summary		Get a tracking
//	@Description	Returns the live tracking of an order
//	@Tags			trackings
//	@Produce		json
//	@Param			order_id	path		string							true	"Order ID (UUID)"
//	@Success		200			{object}	models.TrackingResponse			"Tracking retrieved"
//	@Failure		400			{object}	httpx.JSendFailOrderIDInvalid	"Invalid order ID"
//	@Failure		404			{object}	httpx.JSendFailTrackingNotFound	"Tracking not found"
//	@Security		BearerAuth
//	@Router			/trackings/{order_id} [get]
func (h *TrackingHandler) GetTracking(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	tracking, found := h.service.GetDeliveryTracking(orderID)
	if !found {
		respondTrackingNotFound(w)
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, tracking)
}

// ListTrackings godoc
//
//	@Summary		List active trackings
//	@Description	Returns a page of active trackings ordered by start time
//	@Tags			trackings
//	@Produce		json
//	@Param			page	query		int					false	"Page number"		default(1)
//	@Param			limit	query		int					false	"Items per page"	default(20)
//	@Success		200		{object}	httpx.JSendSuccess	"Trackings retrieved"
//	@Failure		400		{object}	httpx.JSendFail		"Invalid pagination"
//	@Failure		403		{object}	httpx.JSendError	"Forbidden"
//	@Security		BearerAuth
//	@Router			/trackings [get]
func (h *TrackingHandler) ListTrackings(w http.ResponseWriter, r *http.Request) {
	params, err := httpx.ParsePaginationParams(r)
	if err != nil {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"pagination": err.Error(),
		})
		return
	}

	trackings, total := h.service.ListTrackings(params.Offset, params.Limit)
	meta := httpx.BuildPaginationMetadata(params.Page, params.Limit, total, "/api/v1/trackings")
	httpx.RespondSuccessWithPagination(w, http.StatusOK, trackings, meta)
}

// UpdateStatus godoc
//
//	@Summary		Update tracking status
//	@Description	Overwrites the status of a tracking. Completing it removes the tracking.
//	@Tags			trackings
//	@Accept			json
//	@Produce		json
//	@Param			order_id	path		string							true	"Order ID (UUID)"
//	@Param			request		body		models.UpdateStatusRequest		true	"New status"
//	@Success		200			{object}	models.EventResponse			"Status updated"
//	@Failure		400			{object}	httpx.JSendFail					"Invalid status"
//	@Failure		403			{object}	httpx.JSendError				"Forbidden"
//	@Failure		404			{object}	httpx.JSendFailTrackingNotFound	"Tracking not found"
//	@Security		BearerAuth
//	@Router			/trackings/{order_id}/status [patch]
func (h *TrackingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req models.UpdateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"error": "Cuerpo de solicitud inválido",
		})
		return
	}
	if errs := httpx.ValidateStruct(&req); errs != nil {
		httpx.RespondFail(w, http.StatusBadRequest, errs)
		return
	}

	if _, ok := h.ownedTracking(w, r, orderID); !ok {
		return
	}

	event, err := h.service.UpdateDeliveryStatus(r.Context(), orderID, req.Status)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, event)
}

// RecalculateRoute godoc
//
//	@Summary		Recalculate route
//	@Description	Computes a fresh route from the courier's position. Omitted locations keep their stored values.
//	@Tags			trackings
//	@Accept			json
//	@Produce		json
//	@Param			order_id	path		string							true	"Order ID (UUID)"
//	@Param			request		body		models.RecalculateRouteRequest	false	"Updated locations"
//	@Success		200			{object}	models.EventResponse			"Route recalculated"
//	@Failure		404			{object}	httpx.JSendFailTrackingNotFound	"Tracking not found"
//	@Failure		409			{object}	httpx.JSendFail					"Tracking changed"
//	@Failure		502			{object}	httpx.JSendError				"Route provider failure"
//	@Security		BearerAuth
//	@Router			/trackings/{order_id}/recalculate [post]
func (h *TrackingHandler) RecalculateRoute(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req models.RecalculateRouteRequest
	// The body is optional
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"error": "Cuerpo de solicitud inválido",
		})
		return
	}

	tracking, ok := h.ownedTracking(w, r, orderID)
	if !ok {
		return
	}

	pickup, delivery := tracking.PickupLocation, tracking.DeliveryLocation
	if req.PickupLocation != nil {
		pickup = *req.PickupLocation
	}
	if req.DeliveryLocation != nil {
		delivery = *req.DeliveryLocation
	}

	event, err := h.service.RecalculateRoute(r.Context(), orderID, pickup, delivery)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, event)
}

// GetRouteGeoJSON godoc
//
//	@Summary		Get route as GeoJSON
//	@Description	Returns the tracking's route path and stops as a GeoJSON FeatureCollection
//	@Tags			trackings
//	@Produce		application/geo+json
//	@Param			order_id	path		string							true	"Order ID (UUID)"
//	@Success		200			{object}	object							"FeatureCollection"
//	@Failure		404			{object}	httpx.JSendFailTrackingNotFound	"Tracking or route not found"
//	@Security		BearerAuth
//	@Router			/trackings/{order_id}/route.geojson [get]
func (h *TrackingHandler) GetRouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	tracking, found := h.service.GetDeliveryTracking(orderID)
	if !found {
		respondTrackingNotFound(w)
		return
	}
	if tracking.Route == nil {
		httpx.RespondFail(w, http.StatusNotFound, map[string]any{
			"route": "El seguimiento no tiene ruta calculada",
		})
		return
	}

	body, err := geo.RouteToGeoJSON(
		geo.ExtractRouteCoordinates(tracking.Route),
		geo.ExtractWaypoints(tracking.Route),
		map[string]any{
			"order_id": tracking.OrderID.String(),
			"status":   string(tracking.Status),
		},
	)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, "Error al generar GeoJSON")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ownedTracking loads the tracking and rejects drivers acting on someone else's order
func (h *TrackingHandler) ownedTracking(w http.ResponseWriter, r *http.Request, orderID uuid.UUID) (*models.DeliveryTracking, bool) {
	tracking, found := h.service.GetDeliveryTracking(orderID)
	if !found {
		respondTrackingNotFound(w)
		return nil, false
	}
	if middleware.GetUserRole(r.Context()) == middleware.RoleDriver {
		userID, _ := middleware.GetUserID(r.Context())
		if tracking.DeliveryPersonID != userID {
			httpx.RespondError(w, http.StatusForbidden, "No tienes permiso para modificar este seguimiento")
			return nil, false
		}
	}
	return tracking, true
}

func (h *TrackingHandler) respondServiceError(w http.ResponseWriter, err error) {
	var providerErr *gmaps.RouteProviderError
	switch {
	case errors.Is(err, services.ErrTrackingNotFound):
		respondTrackingNotFound(w)
	case errors.Is(err, services.ErrPositionUnavailable):
		httpx.RespondFail(w, http.StatusConflict, map[string]any{
			"position": "No se ha reportado la ubicación del repartidor",
		})
	case errors.Is(err, services.ErrInvalidStatus):
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"status": "Estado de seguimiento inválido",
		})
	case errors.Is(err, services.ErrInvalidLocation):
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"location": "Ubicación de recogida o entrega inválida",
		})
	case errors.Is(err, services.ErrTrackingChanged):
		httpx.RespondFail(w, http.StatusConflict, map[string]any{
			"status": "El seguimiento cambió mientras se calculaba la ruta",
		})
	case errors.As(err, &providerErr):
		httpx.RespondError(w, http.StatusBadGateway, "No se pudo calcular la ruta")
	default:
		h.logger.Error("tracking request failed", slog.String("error", err.Error()))
		httpx.RespondError(w, http.StatusInternalServerError, "Error interno del servidor")
	}
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(r.PathValue("order_id"))
	if err != nil {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"order_id": "Formato de ID de orden inválido",
		})
		return uuid.Nil, false
	}
	return orderID, true
}

func respondTrackingNotFound(w http.ResponseWriter) {
	httpx.RespondFail(w, http.StatusNotFound, map[string]any{
		"order_id": "No hay seguimiento activo para esta orden",
	})
}

var (
	_ TrackingManager = (*services.TrackingService)(nil)
	_ OrderLookup     = (*repositories.OrderRepository)(nil)
)
