package drivers

import (
	"net/http"

	"tacoshare-tracking-api/internal/drivers/handlers"
	"tacoshare-tracking-api/pkg/middleware"
)

// RegisterRoutes registers all driver routes. limit throttles position
// reports per courier and may be nil.
func RegisterRoutes(mux *http.ServeMux, locationHandler *handlers.LocationHandler, jwtSecret string, limit func(http.Handler) http.Handler) {
	auth := middleware.RequireAuth(jwtSecret)
	driverOnly := middleware.RequireRole(middleware.RoleDriver)
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	// Protected routes (drivers only). auth must run before the limiter keys on the user.
	mux.Handle("PATCH /api/v1/drivers/me/location", middleware.Chain(
		http.HandlerFunc(locationHandler.UpdateMyLocation), auth, driverOnly, limit,
	))
	mux.Handle("GET /api/v1/drivers/me/location", auth(driverOnly(http.HandlerFunc(locationHandler.GetMyLocation))))
	mux.Handle("GET /api/v1/drivers/me/trackings", auth(driverOnly(http.HandlerFunc(locationHandler.GetMyTrackings))))
}
