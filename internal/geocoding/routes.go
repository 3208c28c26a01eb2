package geocoding

import (
	"net/http"

	"tacoshare-tracking-api/internal/geocoding/handlers"
	"tacoshare-tracking-api/pkg/middleware"
)

// RegisterRoutes registers geocoding and routing routes. limit throttles
// provider-bound requests per user and may be nil.
func RegisterRoutes(mux *http.ServeMux, handler *handlers.GeoHandler, jwtSecret string, limit func(http.Handler) http.Handler) {
	auth := middleware.RequireAuth(jwtSecret)
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	protect := func(h http.HandlerFunc) http.Handler {
		return middleware.ChainFunc(h, auth, limit)
	}

	mux.Handle("POST /api/v1/geo/route", protect(handler.CalculateRoute))
	mux.Handle("GET /api/v1/geo/geocode", protect(handler.Geocode))
	mux.Handle("GET /api/v1/geo/reverse", protect(handler.ReverseGeocode))
	mux.Handle("POST /api/v1/geo/validate", protect(handler.ValidateAddress))
	mux.Handle("POST /api/v1/geo/eta", protect(handler.CalculateETA))
	mux.Handle("POST /api/v1/geo/matrix", protect(handler.CalculateMatrix))
}
