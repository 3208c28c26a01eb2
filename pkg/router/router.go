// Package router provides system-level route registration for health checks and API documentation
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"tacoshare-tracking-api/docs"
	"tacoshare-tracking-api/pkg/httpx"

	scalargo "github.com/bdpiprava/scalar-go"
)

const (
	protocolHTTPS = "https"
	protocolHTTP  = "http"

	healthTimeout = 3 * time.Second
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// SystemConfig configures the system routes
type SystemConfig struct {
	// Checks are run by the health endpoint, keyed by component name
	Checks map[string]HealthCheck

	// DocsDir holds swagger.json for the Scalar UI
	DocsDir string

	Logger *slog.Logger
}

// RegisterSystemRoutes registers system-level routes (health, docs)
func RegisterSystemRoutes(mux *http.ServeMux, cfg SystemConfig) {
	if cfg.DocsDir == "" {
		cfg.DocsDir = "./docs"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	health := handleHealth(cfg.Checks)
	mux.HandleFunc("GET /health", health)
	mux.HandleFunc("GET /api/v1/health", health)

	mux.HandleFunc("GET /swagger/doc.json", handleSwaggerJSON)
	mux.HandleFunc("GET /docs", handleScalarDocs(cfg.DocsDir, cfg.Logger))
}

// HealthResponse is the health endpoint payload
type HealthResponse struct {
	Status     string            `json:"status" example:"healthy"`
	Components map[string]string `json:"components"`
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Reports API liveness and the state of each dependency. Degraded dependencies do not fail the check.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	httpx.JSendSuccess	"API is running"
//	@Router			/health [get]
func handleHealth(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := HealthResponse{Status: "healthy", Components: make(map[string]string, len(names))}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Components[name] = "error: " + err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Components[name] = "ok"
		}

		httpx.RespondSuccess(w, http.StatusOK, resp)
	}
}

// requestScheme returns https unless the request comes from localhost
func requestScheme(r *http.Request) string {
	isLocal := strings.HasPrefix(r.Host, "localhost:") ||
		r.Host == "localhost" ||
		strings.HasPrefix(r.Host, "127.0.0.1")
	if isLocal && r.Header.Get("X-Forwarded-Proto") != protocolHTTPS {
		return protocolHTTP
	}
	return protocolHTTPS
}

// capitalizeFirst capitalizes the first letter of a string
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// handleSwaggerJSON serves the API specification with host, scheme and tag
// names adjusted to the request
func handleSwaggerJSON(w http.ResponseWriter, r *http.Request) {
	var spec map[string]any
	if err := json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &spec); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, "Especificación de la API inválida")
		return
	}

	spec["host"] = r.Host
	spec["schemes"] = []string{requestScheme(r)}

	if tags, ok := spec["tags"].([]any); ok {
		for _, tag := range tags {
			if tagMap, ok := tag.(map[string]any); ok {
				if name, ok := tagMap["name"].(string); ok {
					tagMap["name"] = capitalizeFirst(name)
				}
			}
		}
	}

	if paths, ok := spec["paths"].(map[string]any); ok {
		for _, pathItem := range paths {
			pathMap, ok := pathItem.(map[string]any)
			if !ok {
				continue
			}
			for _, op := range pathMap {
				operation, ok := op.(map[string]any)
				if !ok {
					continue
				}
				if opTags, ok := operation["tags"].([]any); ok {
					for i, tag := range opTags {
						if tagStr, ok := tag.(string); ok {
							opTags[i] = capitalizeFirst(tagStr)
						}
					}
				}
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	//nolint:errcheck // Response write errors are not recoverable
	json.NewEncoder(w).Encode(spec)
}

// handleScalarDocs serves the Scalar API documentation UI
func handleScalarDocs(dir string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		html, err := scalargo.NewV2(
			scalargo.WithSpecDir(dir),
			scalargo.WithBaseFileName("swagger.json"),
			scalargo.WithTheme(scalargo.ThemeAlternate),
			scalargo.WithDarkMode(),
			scalargo.WithLayout(scalargo.LayoutModern),
			scalargo.WithMetaDataOpts(
				scalargo.WithTitle("TacoShare Tracking API - Documentation"),
				scalargo.WithKeyValue("defaultOpenAllTags", true),
				scalargo.WithKeyValue("expandAllResponses", true),
				scalargo.WithKeyValue("showToolbar", "localhost"),
				scalargo.WithKeyValue("operationTitleSource", "summary"),
				scalargo.WithKeyValue("persistAuth", false),
				scalargo.WithKeyValue("orderSchemaPropertiesBy", "alpha"),
			),
			scalargo.WithSidebarVisibility(true),
			scalargo.WithDefaultFonts(),
		)
		if err != nil {
			logger.Error("error generating documentation", slog.String("error", err.Error()))
			httpx.RespondError(w, http.StatusInternalServerError, fmt.Sprintf("Error generando la documentación: %v", err))
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		//nolint:errcheck // Response write errors are not recoverable
		fmt.Fprint(w, html)
	}
}
