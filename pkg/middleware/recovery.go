// Package middleware provides HTTP middleware functions for the API.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"tacoshare-tracking-api/pkg/httpx"
)

// Recovery returns a middleware that recovers from panics.
// It logs the panic with stack trace and returns a 500 error response.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.Error("panic recovered",
						slog.Any("error", err),
						slog.String("request_id", GetRequestID(r.Context())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("remote_addr", r.RemoteAddr),
						slog.String("stack", string(debug.Stack())),
					)

					// Don't expose internal error details to client
					httpx.RespondError(w, http.StatusInternalServerError, "Ocurrió un error inesperado")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
