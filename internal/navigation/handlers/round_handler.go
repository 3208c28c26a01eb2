package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"tacoshare-tracking-api/internal/navigation/models"
	"tacoshare-tracking-api/internal/navigation/services"
	trackingModels "tacoshare-tracking-api/internal/tracking/models"
	trackingServices "tacoshare-tracking-api/internal/tracking/services"
	"tacoshare-tracking-api/pkg/geo"
	"tacoshare-tracking-api/pkg/httpx"
	"tacoshare-tracking-api/pkg/middleware"

	"github.com/google/uuid"
)

// RoundManager sequences the delivery rounds of couriers
type RoundManager interface {
	Start(ctx context.Context, deliveryPersonID uuid.UUID, position *geo.Coordinates, stops []models.Stop) (*models.Round, error)
	Current(deliveryPersonID uuid.UUID) (*models.Round, bool)
	Route(ctx context.Context, deliveryPersonID uuid.UUID, position *geo.Coordinates) (*models.PlannedRoute, error)
	CompleteCurrent(ctx context.Context, deliveryPersonID uuid.UUID) (*models.Round, error)
	SkipCurrent(ctx context.Context, deliveryPersonID uuid.UUID, reason string) (*models.Round, error)
	End(ctx context.Context, deliveryPersonID uuid.UUID) error
}

// PositionSource returns the last position a courier reported
type PositionSource interface {
	GetDeliveryPersonPosition(deliveryPersonID uuid.UUID) (*trackingModels.Position, bool)
}

// RoundHandler handles the calling courier's delivery round
type RoundHandler struct {
	rounds    RoundManager
	positions PositionSource
	logger    *slog.Logger
}

// NewRoundHandler creates a new round handler
func NewRoundHandler(rounds RoundManager, positions PositionSource, logger *slog.Logger) *RoundHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoundHandler{rounds: rounds, positions: positions, logger: logger}
}

// StartRound godoc
//
//	@Summary		Start a delivery round
//	@Description	Starts a round for the authenticated courier, replacing the current one. The route is planned from the given or last reported position.
//	@Tags			rounds
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.StartRoundRequest	true	"Stops to deliver"
//	@Success		201		{object}	models.RoundResponse		"Round started"
//	@Failure		400		{object}	httpx.JSendFail				"Invalid stops"
//	@Failure		401		{object}	httpx.JSendError			"Unauthorized"
//	@Security		BearerAuth
//	@Router			/rounds [post]
func (h *RoundHandler) StartRound(w http.ResponseWriter, r *http.Request) {
	courierID, ok := requireCourier(w, r)
	if !ok {
		return
	}

	var req models.StartRoundRequest
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

	position := req.Position
	if position != nil && !position.Valid() {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"position": "Ubicación inválida",
		})
		return
	}
	if position == nil {
		position = h.lastPosition(courierID)
	}

	round, err := h.rounds.Start(r.Context(), courierID, position, req.Stops)
	if err != nil {
		h.respondRoundError(w, err)
		return
	}

	h.respondRound(w, http.StatusCreated, round)
}

// GetCurrentRound godoc
//
//	@Summary		Get the current round
//	@Description	Returns the courier's round with its steps in visiting order
//	@Tags			rounds
//	@Produce		json
//	@Success		200	{object}	models.RoundResponse	"Round retrieved"
//	@Failure		404	{object}	httpx.JSendFail			"No active round"
//	@Security		BearerAuth
//	@Router			/rounds/current [get]
func (h *RoundHandler) GetCurrentRound(w http.ResponseWriter, r *http.Request) {
	courierID, ok := requireCourier(w, r)
	if !ok {
		return
	}

	round, found := h.rounds.Current(courierID)
	if !found {
		respondRoundNotFound(w)
		return
	}

	h.respondRound(w, http.StatusOK, round)
}

// GetRoundRoute godoc
//
//	@Summary		Get the round route
//	@Description	Returns the best route available: provider, cached or a straight-line approximation
//	@Tags			rounds
//	@Produce		json
//	@Success		200	{object}	models.RouteResponse	"Route retrieved"
//	@Failure		404	{object}	httpx.JSendFail			"No active round"
//	@Failure		409	{object}	httpx.JSendFail			"No route available"
//	@Security		BearerAuth
//	@Router			/rounds/current/route [get]
func (h *RoundHandler) GetRoundRoute(w http.ResponseWriter, r *http.Request) {
	courierID, ok := requireCourier(w, r)
	if !ok {
		return
	}

	route, err := h.rounds.Route(r.Context(), courierID, h.lastPosition(courierID))
	if err != nil {
		h.respondRoundError(w, err)
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, route)
}

// CompleteStep godoc
//
//	@Summary		Complete the current step
//	@Description	Marks the current stop delivered and moves to the next one
//	@Tags			rounds
//	@Produce		json
//	@Success		200	{object}	models.RoundResponse	"Step completed"
//	@Failure		404	{object}	httpx.JSendFail			"No active round"
//	@Failure		409	{object}	httpx.JSendFail			"Round already finished"
//	@Security		BearerAuth
//	@Router			/rounds/current/complete [post]
func (h *RoundHandler) CompleteStep(w http.ResponseWriter, r *http.Request) {
	courierID, ok := requireCourier(w, r)
	if !ok {
		return
	}

	round, err := h.rounds.CompleteCurrent(r.Context(), courierID)
	if err != nil {
		h.respondRoundError(w, err)
		return
	}

	h.respondRound(w, http.StatusOK, round)
}

// SkipStep godoc
//
//	@Summary		Skip the current step
//	@Description	Moves past the current stop. A reason is required.
//	@Tags			rounds
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.SkipStepRequest	true	"Skip reason"
//	@Success		200		{object}	models.RoundResponse	"Step skipped"
//	@Failure		400		{object}	httpx.JSendFail			"Missing reason"
//	@Failure		404		{object}	httpx.JSendFail			"No active round"
//	@Failure		409		{object}	httpx.JSendFail			"Round already finished"
//	@Security		BearerAuth
//	@Router			/rounds/current/skip [post]
func (h *RoundHandler) SkipStep(w http.ResponseWriter, r *http.Request) {
	courierID, ok := requireCourier(w, r)
	if !ok {
		return
	}

	var req models.SkipStepRequest
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

	round, err := h.rounds.SkipCurrent(r.Context(), courierID, req.Reason)
	if err != nil {
		h.respondRoundError(w, err)
		return
	}

	h.respondRound(w, http.StatusOK, round)
}

// EndRound godoc
//
//	@Summary		End the current round
//	@Description	Destroys the round and its cached route
//	@Tags			rounds
//	@Produce		json
//	@Success		200	{object}	httpx.JSendSuccess	"Round ended"
//	@Failure		404	{object}	httpx.JSendFail		"No active round"
//	@Security		BearerAuth
//	@Router			/rounds/current [delete]
func (h *RoundHandler) EndRound(w http.ResponseWriter, r *http.Request) {
	courierID, ok := requireCourier(w, r)
	if !ok {
		return
	}

	if err := h.rounds.End(r.Context(), courierID); err != nil {
		h.respondRoundError(w, err)
		return
	}

	httpx.RespondSuccess(w, http.StatusOK, map[string]any{
		"message": "Ronda finalizada",
	})
}

func (h *RoundHandler) lastPosition(courierID uuid.UUID) *geo.Coordinates {
	if h.positions == nil {
		return nil
	}
	pos, ok := h.positions.GetDeliveryPersonPosition(courierID)
	if !ok {
		return nil
	}
	coords := pos.Coordinates()
	return &coords
}

func (h *RoundHandler) respondRound(w http.ResponseWriter, code int, round *models.Round) {
	httpx.RespondSuccess(w, code, models.RoundView{
		Round: round,
		Steps: services.RenderSteps(round),
	})
}

func (h *RoundHandler) respondRoundError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrRoundNotFound):
		respondRoundNotFound(w)
	case errors.Is(err, services.ErrNoStops):
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"stops": "La ronda necesita al menos una parada",
		})
	case errors.Is(err, services.ErrInvalidStop):
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"stops": "Parada con orden o ubicación inválida",
		})
	case errors.Is(err, services.ErrDuplicateStop):
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"stops": "La misma orden aparece más de una vez",
		})
	case errors.Is(err, services.ErrSkipReasonRequired):
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"reason": "Se requiere un motivo para omitir la parada",
		})
	case errors.Is(err, services.ErrRoundFinished):
		httpx.RespondFail(w, http.StatusConflict, map[string]any{
			"round": "La ronda ya no tiene paradas pendientes",
		})
	case errors.Is(err, services.ErrNoRouteAvailable):
		httpx.RespondFail(w, http.StatusConflict, map[string]any{
			"route": "No hay ruta disponible sin conexión ni ubicación del repartidor",
		})
	default:
		h.logger.Error("round request failed", slog.String("error", err.Error()))
		httpx.RespondError(w, http.StatusInternalServerError, "Error interno del servidor")
	}
}

func requireCourier(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	courierID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httpx.RespondError(w, http.StatusUnauthorized, "ID de usuario inválido")
		return uuid.Nil, false
	}
	return courierID, true
}

func respondRoundNotFound(w http.ResponseWriter) {
	httpx.RespondFail(w, http.StatusNotFound, map[string]any{
		"round": "No hay una ronda activa",
	})
}

var (
	_ RoundManager   = (*services.RoundService)(nil)
	_ PositionSource = (*trackingServices.TrackingService)(nil)
)
