package navigation

import (
	"net/http"

	"tacoshare-tracking-api/internal/navigation/handlers"
	"tacoshare-tracking-api/pkg/middleware"
)

// RegisterRoutes registers round, capability and tile routes
func RegisterRoutes(mux *http.ServeMux, rounds *handlers.RoundHandler, nav *handlers.NavigationHandler, jwtSecret string) {
	auth := middleware.RequireAuth(jwtSecret)
	drivers := middleware.RequireRole(middleware.RoleDriver)
	admins := middleware.RequireRole(middleware.RoleAdmin)

	// Rounds belong to the authenticated courier
	mux.Handle("POST /api/v1/rounds", auth(drivers(http.HandlerFunc(rounds.StartRound))))
	mux.Handle("GET /api/v1/rounds/current", auth(drivers(http.HandlerFunc(rounds.GetCurrentRound))))
	mux.Handle("DELETE /api/v1/rounds/current", auth(drivers(http.HandlerFunc(rounds.EndRound))))
	mux.Handle("GET /api/v1/rounds/current/route", auth(drivers(http.HandlerFunc(rounds.GetRoundRoute))))
	mux.Handle("POST /api/v1/rounds/current/complete", auth(drivers(http.HandlerFunc(rounds.CompleteStep))))
	mux.Handle("POST /api/v1/rounds/current/skip", auth(drivers(http.HandlerFunc(rounds.SkipStep))))

	mux.Handle("GET /api/v1/navigation/capabilities", auth(http.HandlerFunc(nav.GetCapabilities)))
	mux.Handle("POST /api/v1/navigation/connectivity", auth(admins(http.HandlerFunc(nav.ReportConnectivity))))
	mux.Handle("GET /api/v1/tiles/{z}/{x}/{y}", auth(http.HandlerFunc(nav.GetTile)))
}
