package websockets

import (
	"net/http"

	"tacoshare-tracking-api/internal/websockets/handlers"
	"tacoshare-tracking-api/pkg/middleware"
)

// RegisterRoutes registers all WebSocket routes
func RegisterRoutes(mux *http.ServeMux, handler *handlers.WSHandler, jwtSecret string) {
	wsAuth := middleware.WebSocketAuth(jwtSecret)

	// General connection; drivers are subscribed to their own channel
	mux.Handle("GET /ws", wsAuth(http.HandlerFunc(handler.HandleConnection)))

	// Order-specific channel
	mux.Handle("GET /ws/orders/{order_id}", wsAuth(http.HandlerFunc(handler.HandleOrderChannel)))

	// Driver-specific channel
	mux.Handle("GET /ws/drivers/{driver_id}", wsAuth(http.HandlerFunc(handler.HandleDriverChannel)))
}
