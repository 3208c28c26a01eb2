package adapters

import (
	"context"
	"fmt"
	"log/slog"

	"tacoshare-tracking-api/internal/tracking/models"
	"tacoshare-tracking-api/internal/tracking/services"
	"tacoshare-tracking-api/pkg/geo"
	"tacoshare-tracking-api/pkg/storage"
)

// ObjectUploader stores a blob and returns its URL
type ObjectUploader interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// ArchivePublisher stores the route of every completed tracking as GeoJSON
type ArchivePublisher struct {
	uploader ObjectUploader
	prefix   string
	logger   *slog.Logger
}

// NewArchivePublisher creates a new archive publisher writing under prefix
func NewArchivePublisher(uploader ObjectUploader, prefix string, logger *slog.Logger) *ArchivePublisher {
	if prefix == "" {
		prefix = "routes"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchivePublisher{
		uploader: uploader,
		prefix:   prefix,
		logger:   logger.With(slog.String("component", "route_archive")),
	}
}

// ArchiveKey is the object key of an archived route
func ArchiveKey(prefix string, event *models.Event) string {
	return fmt.Sprintf("%s/%s/%s.geojson", prefix, event.Timestamp.UTC().Format("2006/01/02"), event.OrderID)
}

// Publish archives the final snapshot when a tracking completes
func (p *ArchivePublisher) Publish(ctx context.Context, event *models.Event) error {
	if event.Type != models.EventTypeStatusChange || event.Status != models.StatusCompleted {
		return nil
	}
	t := event.Tracking
	if t == nil || t.Route == nil {
		return nil
	}

	coords := geo.ExtractRouteCoordinates(t.Route)
	if len(coords) == 0 {
		return nil
	}

	props := map[string]any{
		"order_id":           t.OrderID.String(),
		"delivery_person_id": t.DeliveryPersonID.String(),
		"started_at":         t.StartedAt,
		"completed_at":       event.Timestamp,
		"distance_meters":    t.Route.DistanceMeters(),
		"path_length_meters": geo.PathLengthMeters(coords),
	}
	body, err := geo.RouteToGeoJSON(coords, geo.ExtractWaypoints(t.Route), props)
	if err != nil {
		return fmt.Errorf("encode route archive: %w", err)
	}

	key := ArchiveKey(p.prefix, event)
	url, err := p.uploader.PutObject(ctx, key, body, "application/geo+json")
	if err != nil {
		return fmt.Errorf("upload route archive: %w", err)
	}

	p.logger.Info("route archived",
		slog.String("order_id", t.OrderID.String()),
		slog.String("key", key),
		slog.String("url", url),
	)
	return nil
}

var (
	_ ObjectUploader          = (*storage.R2Client)(nil)
	_ services.EventPublisher = (*ArchivePublisher)(nil)
)
