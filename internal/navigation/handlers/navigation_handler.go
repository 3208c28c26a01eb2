package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"tacoshare-tracking-api/internal/navigation/models"
	"tacoshare-tracking-api/internal/navigation/services"
	"tacoshare-tracking-api/pkg/geo"
	"tacoshare-tracking-api/pkg/httpx"
)

// ConnectivityState exposes and overrides the provider connectivity
type ConnectivityState interface {
	Capabilities() models.Capabilities
	SetOnline(online bool)
}

// TileProvider serves map tiles for offline use
type TileProvider interface {
	Get(ctx context.Context, tile geo.Tile) (*models.CachedTile, error)
}

// NavigationHandler serves capabilities and map tiles
type NavigationHandler struct {
	connectivity ConnectivityState
	tiles        TileProvider
	logger       *slog.Logger
}

// NewNavigationHandler creates a new navigation handler. tiles may be nil.
func NewNavigationHandler(connectivity ConnectivityState, tiles TileProvider, logger *slog.Logger) *NavigationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NavigationHandler{connectivity: connectivity, tiles: tiles, logger: logger}
}

// GetCapabilities godoc
//
//	@Summary		Get navigation capabilities
//	@Description	Returns what the courier app can do with the current provider connectivity
//	@Tags			navigation
//	@Produce		json
//	@Success		200	{object}	models.CapabilitiesResponse	"Capabilities"
//	@Security		BearerAuth
//	@Router			/navigation/capabilities [get]
func (h *NavigationHandler) GetCapabilities(w http.ResponseWriter, _ *http.Request) {
	httpx.RespondSuccess(w, http.StatusOK, h.connectivity.Capabilities())
}

// ReportConnectivity godoc
//
//	@Summary		Override connectivity
//	@Description	Records a connectivity change detected outside the probe
//	@Tags			navigation
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.ConnectivityReport	true	"Connectivity state"
//	@Success		200		{object}	models.CapabilitiesResponse	"Capabilities after the change"
//	@Failure		400		{object}	httpx.JSendFailInvalidJSON	"Invalid request"
//	@Failure		403		{object}	httpx.JSendError			"Forbidden"
//	@Security		BearerAuth
//	@Router			/navigation/connectivity [post]
func (h *NavigationHandler) ReportConnectivity(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectivityReport
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"error": "Cuerpo de solicitud inválido",
		})
		return
	}

	h.connectivity.SetOnline(req.Online)
	httpx.RespondSuccess(w, http.StatusOK, h.connectivity.Capabilities())
}

// GetTile godoc
//
//	@Summary		Get a map tile
//	@Description	Returns a raster tile, served from the offline cache when possible
//	@Tags			navigation
//	@Produce		png
//	@Param			z	path		int					true	"Zoom"
//	@Param			x	path		int					true	"Column"
//	@Param			y	path		string				true	"Row, optionally with .png"
//	@Success		200	{file}		binary				"Tile image"
//	@Failure		400	{object}	httpx.JSendFail		"Invalid tile"
//	@Failure		503	{object}	httpx.JSendError	"Tile not cached while offline"
//	@Security		BearerAuth
//	@Router			/tiles/{z}/{x}/{y} [get]
func (h *NavigationHandler) GetTile(w http.ResponseWriter, r *http.Request) {
	tile, err := parseTile(r)
	if err != nil {
		httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
			"tile": "Coordenadas de tile inválidas",
		})
		return
	}

	if h.tiles == nil {
		httpx.RespondError(w, http.StatusServiceUnavailable, "Servicio de mapas no configurado")
		return
	}

	cached, err := h.tiles.Get(r.Context(), tile)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidTile):
			httpx.RespondFail(w, http.StatusBadRequest, map[string]any{
				"tile": "Coordenadas de tile inválidas",
			})
		case errors.Is(err, services.ErrTileUnavailable):
			httpx.RespondError(w, http.StatusServiceUnavailable, "Tile no disponible sin conexión")
		default:
			h.logger.Error("tile request failed", slog.String("tile", tile.String()), slog.String("error", err.Error()))
			httpx.RespondError(w, http.StatusInternalServerError, "Error interno del servidor")
		}
		return
	}

	w.Header().Set("Content-Type", cached.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(cached.Data)
}

func parseTile(r *http.Request) (geo.Tile, error) {
	z, err := strconv.ParseUint(r.PathValue("z"), 10, 32)
	if err != nil {
		return geo.Tile{}, err
	}
	x, err := strconv.ParseUint(r.PathValue("x"), 10, 32)
	if err != nil {
		return geo.Tile{}, err
	}
	y, err := strconv.ParseUint(strings.TrimSuffix(r.PathValue("y"), ".png"), 10, 32)
	if err != nil {
		return geo.Tile{}, err
	}

	tile := geo.Tile{X: uint32(x), Y: uint32(y), Z: uint32(z)}
	if !tile.Valid() {
		return geo.Tile{}, fmt.Errorf("tile %s out of range", tile)
	}
	return tile, nil
}

var (
	_ ConnectivityState = (*services.ConnectivityMonitor)(nil)
	_ TileProvider      = (*services.TileService)(nil)
)
