package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"tacoshare-tracking-api/internal/geocoding/models"
	navModels "tacoshare-tracking-api/internal/navigation/models"
	navServices "tacoshare-tracking-api/internal/navigation/services"
	"tacoshare-tracking-api/pkg/geo"
	"tacoshare-tracking-api/pkg/gmaps"
	"tacoshare-tracking-api/pkg/httpx"
)

// maxWaypoints is the provider limit for intermediate stops
const maxWaypoints = 25

// MapsClient is the part of the route client exposed over HTTP
type MapsClient interface {
	CalculateOptimizedRoute(ctx context.Context, req gmaps.RouteRequest) (*geo.Route, error)
	GeocodeAddress(ctx context.Context, address string) ([]gmaps.GeocodeResult, error)
	ReverseGeocode(ctx context.Context, coords geo.Coordinates) ([]gmaps.GeocodeResult, error)
	ValidateAddress(ctx context.Context, address string) (*gmaps.AddressValidation, error)
	CalculateETA(ctx context.Context, from, to geo.Coordinates) (*gmaps.ETAResult, error)
	CalculateDistanceMatrix(ctx context.Context, origins, destinations []geo.Coordinates) (*gmaps.DistanceMatrix, error)
}

// ProviderGate gates calls on connectivity and learns from their outcome
type ProviderGate interface {
	Capabilities() navModels.Capabilities
	ReportProviderResult(err error)
}

// GeoHandler handles geocoding and routing HTTP requests
type GeoHandler struct {
	maps   MapsClient
	gate   ProviderGate
	logger *slog.Logger
}

// NewGeoHandler creates a new geo handler. gate may be nil.
func NewGeoHandler(maps MapsClient, gate ProviderGate, logger *slog.Logger) *GeoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeoHandler{maps: maps, gate: gate, logger: logger}
}

// CalculateRoute godoc
//
//	@Summary		Calculate a route
//	@Description	Computes a route from origin through the waypoints to destination. The destination is never reordered.
//	@Tags			geo
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.RouteRequest		true	"Route request"
//	@Success		200		{object}	models.RouteResponse	"Route calculated"
//	@Failure		400		{object}	httpx.JSendFail			"Invalid request"
//	@Failure		502		{object}	httpx.JSendError		"Route provider failure"
//	@Failure		503		{object}	httpx.JSendError		"Provider offline"
//	@Security		BearerAuth
//	@Router			/geo/route [post]
func (h *GeoHandler) CalculateRoute(w http.ResponseWriter, r *http.Request) {
	var req models.RouteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if errs := validateRoute(&req); errs != nil {
		httpx.RespondFail(w, http.StatusBadRequest, errs)
		return
	}

	if !h.canRoute(w) {
		return
	}

	route, err := h.maps.CalculateOptimizedRoute(r.Context(), req.ToProvider())
	h.report(err)
	if err != nil {
		h.respondProviderError(w, err)
		return
	}

	coords := geo.ExtractRouteCoordinates(route)
	result := models.RouteResult{
		Route:          route,
		Coordinates:    coords,
		Waypoints:      geo.ExtractWaypoints(route),
		Bounds:         geo.CalculateRouteBounds(coords),
		DistanceMeters: route.DistanceMeters(),
		DistanceText:   geo.FormatDistance(route.DistanceMeters()),
		DurationText:   geo.FormatDuration(route.DurationInTraffic()),
		OptimizedOrder: route.WaypointOrder,
	}

	httpx.RespondSuccess(w, http.StatusOK, result)
}

// Geocode godoc
//
//	@Summary		Geocode an address
//	@Description	Resolves a free-text address to coordinates
//	@Tags			geo
//	@Produce		json
//	@Param			address	query		string					true	"Address"
//	@Success		200		{object}	models.GeocodeResponse	"Matches"
//	@Failure		400		{object}	httpx.JSendFail			"Missing address"
//	@Failure		404		{object}	httpx.JSendFail			"Address not found"
//	@Failure		503		{object}	httpx.JSendError		"Provider offline"
//	@Security		BearerAuth
//	@Router			/geo/geocode [get]
func (h *GeoHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"address": "El campo address es requerido",
		})
		return
	}

	if !h.canGeocode(w) {
		return
	}

	results, err := h.maps.GeocodeAddress(r.Context(), address)
	h.report(err)
	if err != nil {
		h.respondProviderError(w, err)
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, results)
}

// ReverseGeocode godoc
//
//	@Summary		Reverse geocode
//	@Description	Resolves coordinates to addresses
//	@Tags			geo
//	@Produce		json
//	@Param			lat	query		number					true	"Latitude"
//	@Param			lng	query		number					true	"Longitude"
//	@Success		200	{object}	models.GeocodeResponse	"Matches"
//	@Failure		400	{object}	httpx.JSendFail			"Invalid coordinates"
//	@Failure		404	{object}	httpx.JSendFail			"Nothing found"
//	@Failure		503	{object}	httpx.JSendError		"Provider offline"
//	@Security		BearerAuth
//	@Router			/geo/reverse [get]
func (h *GeoHandler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	coords := geo.Coordinates{Latitude: lat, Longitude: lng}
	if latErr != nil || lngErr != nil || !coords.Valid() {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"coordinates": "Coordenadas inválidas",
		})
		return
	}

	if !h.canGeocode(w) {
		return
	}

	results, err := h.maps.ReverseGeocode(r.Context(), coords)
	h.report(err)
	if err != nil {
		h.respondProviderError(w, err)
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, results)
}

// ValidateAddress godoc
//
//	@Summary		Validate an address
//	@Description	Reports whether an address resolves. An unresolvable address is not an error.
//	@Tags			geo
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.ValidateAddressRequest	true	"Address"
//	@Success		200		{object}	models.ValidationResponse		"Validation result"
//	@Failure		400		{object}	httpx.JSendFail					"Missing address"
//	@Failure		503		{object}	httpx.JSendError				"Provider offline"
//	@Security		BearerAuth
//	@Router			/geo/validate [post]
func (h *GeoHandler) ValidateAddress(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateAddressRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if !h.canGeocode(w) {
		return
	}

	result, err := h.maps.ValidateAddress(r.Context(), req.Address)
	h.report(err)
	if err != nil {
		h.respondProviderError(w, err)
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, result)
}

// CalculateETA godoc
//
//	@Summary		Estimate arrival
//	@Description	Travel time and distance between two points, with traffic when available
//	@Tags			geo
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.ETARequest	true	"Points"
//	@Success		200		{object}	models.ETAResponse	"Estimate"
//	@Failure		400		{object}	httpx.JSendFail		"Invalid request"
//	@Failure		502		{object}	httpx.JSendError	"Route provider failure"
//	@Failure		503		{object}	httpx.JSendError	"Provider offline"
//	@Security		BearerAuth
//	@Router			/geo/eta [post]
func (h *GeoHandler) CalculateETA(w http.ResponseWriter, r *http.Request) {
	var req models.ETARequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !req.From.Valid() || !req.To.Valid() {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"coordinates": "Coordenadas inválidas",
		})
		return
	}

	if !h.canRoute(w) {
		return
	}

	eta, err := h.maps.CalculateETA(r.Context(), *req.From, *req.To)
	h.report(err)
	if err != nil {
		h.respondProviderError(w, err)
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, eta)
}

// CalculateMatrix godoc
//
//	@Summary		Distance matrix
//	@Description	Distance and duration for every origin/destination pair, in request order
//	@Tags			geo
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.MatrixRequest	true	"Origins and destinations"
//	@Success		200		{object}	models.MatrixResponse	"Matrix"
//	@Failure		400		{object}	httpx.JSendFail			"Invalid request"
//	@Failure		502		{object}	httpx.JSendError		"Route provider failure"
//	@Failure		503		{object}	httpx.JSendError		"Provider offline"
//	@Security		BearerAuth
//	@Router			/geo/matrix [post]
func (h *GeoHandler) CalculateMatrix(w http.ResponseWriter, r *http.Request) {
	var req models.MatrixRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if !allValid(req.Origins) || !allValid(req.Destinations) {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"coordinates": "Coordenadas inválidas",
		})
		return
	}

	if !h.canRoute(w) {
		return
	}

	matrix, err := h.maps.CalculateDistanceMatrix(r.Context(), req.Origins, req.Destinations)
	h.report(err)
	if err != nil {
		h.respondProviderError(w, err)
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, matrix)
}

func (h *GeoHandler) canRoute(w http.ResponseWriter) bool {
	if h.gate != nil && !h.gate.Capabilities().CanCalculateRoutes {
		httpx.RespondError(w, http.StatusServiceUnavailable, "Cálculo de rutas no disponible sin conexión")
		return false
	}
	return true
}

func (h *GeoHandler) canGeocode(w http.ResponseWriter) bool {
	if h.gate != nil && !h.gate.Capabilities().CanGeocode {
		httpx.RespondError(w, http.StatusServiceUnavailable, "Geocodificación no disponible sin conexión")
		return false
	}
	return true
}

func (h *GeoHandler) report(err error) {
	if h.gate != nil {
		h.gate.ReportProviderResult(err)
	}
}

func (h *GeoHandler) respondProviderError(w http.ResponseWriter, err error) {
	var providerErr *gmaps.RouteProviderError
	switch {
	case errors.Is(err, gmaps.ErrEmptyAddress):
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"address": "El campo address es requerido",
		})
	case errors.Is(err, gmaps.ErrGeocodeFailure):
		httpx.RespondFail(w, http.StatusNotFound, map[string]any{
			"address": "No se pudo geocodificar la dirección",
		})
	case errors.Is(err, gmaps.ErrTooManyDestinations):
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"destinations": "Demasiados destinos para una sola solicitud",
		})
	case errors.Is(err, gmaps.ErrMissingAPIKey):
		httpx.RespondError(w, http.StatusServiceUnavailable, "Servicio de mapas no configurado")
	case gmaps.IsRateLimited(err):
		httpx.RespondError(w, http.StatusTooManyRequests, "Límite de solicitudes al proveedor de mapas excedido")
	case errors.As(err, &providerErr):
		h.logger.Warn("route provider failure",
			slog.String("op", providerErr.Op),
			slog.String("status", providerErr.Status),
		)
		httpx.RespondError(w, http.StatusBadGateway, "Error del proveedor de mapas")
	default:
		h.logger.Error("geo request failed", slog.String("error", err.Error()))
		httpx.RespondError(w, http.StatusInternalServerError, "Error interno del servidor")
	}
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(r, v); err != nil {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"error": "Cuerpo de solicitud inválido",
		})
		return false
	}
	if errs := httpx.ValidateStruct(v); errs != nil {
		httpx.RespondFail(w, http.StatusBadRequest, errs)
		return false
	}
	return true
}

func validateRoute(req *models.RouteRequest) map[string]any {
	errs := make(map[string]any)
	if !req.Origin.Valid() {
		errs["origin"] = "Origen inválido"
	}
	if !req.Destination.Valid() {
		errs["destination"] = "Destino inválido"
	}
	if !allValid(req.Waypoints) {
		errs["waypoints"] = "Parada intermedia inválida"
	}
	if len(req.Waypoints) > maxWaypoints {
		errs["waypoints"] = "Máximo 25 paradas intermedias"
	}
	if !req.TravelMode.Valid() {
		errs["travel_mode"] = "Modo de viaje inválido"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func allValid(coords []geo.Coordinates) bool {
	for _, c := range coords {
		if !c.Valid() {
			return false
		}
	}
	return true
}

var (
	_ MapsClient   = (*gmaps.Client)(nil)
	_ ProviderGate = (*navServices.ConnectivityMonitor)(nil)
)
