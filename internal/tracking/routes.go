package tracking

import (
	"net/http"

	"tacoshare-tracking-api/internal/tracking/handlers"
	"tacoshare-tracking-api/pkg/middleware"
)

// RegisterRoutes registers all tracking routes
func RegisterRoutes(mux *http.ServeMux, handler *handlers.TrackingHandler, jwtSecret string) {
	auth := middleware.RequireAuth(jwtSecret)
	drivers := middleware.RequireRole(middleware.RoleDriver)
	admins := middleware.RequireRole(middleware.RoleAdmin)

	// Any authenticated caller can follow a tracking
	mux.Handle("GET /api/v1/trackings/{order_id}", auth(http.HandlerFunc(handler.GetTracking)))
	mux.Handle("GET /api/v1/trackings/{order_id}/route.geojson", auth(http.HandlerFunc(handler.GetRouteGeoJSON)))

	// Drivers (and admins) drive the lifecycle
	mux.Handle("POST /api/v1/trackings", auth(drivers(http.HandlerFunc(handler.StartTracking))))
	mux.Handle("PATCH /api/v1/trackings/{order_id}/status", auth(drivers(http.HandlerFunc(handler.UpdateStatus))))
	mux.Handle("POST /api/v1/trackings/{order_id}/recalculate", auth(drivers(http.HandlerFunc(handler.RecalculateRoute))))

	// Admin only
	mux.Handle("GET /api/v1/trackings", auth(admins(http.HandlerFunc(handler.ListTrackings))))
}
