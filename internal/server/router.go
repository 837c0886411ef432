package server

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"

	"github.com/maruel/imladris/internal/server/handlers"
	"github.com/maruel/imladris/internal/storage"
)

// NewRouter creates and configures the HTTP router. meter may be nil.
func NewRouter(items *storage.ItemService, version string, meter metric.Meter) http.Handler {
	mux := http.NewServeMux()

	// Initialize handlers
	itemHandler := handlers.NewItemHandler(items)
	healthHandler := handlers.NewHealthHandler(items.Cache(), version)

	// Health check
	mux.Handle("GET /api/health", Wrap(healthHandler.Health))

	// Cached reads
	mux.Handle("GET /api/items", Wrap(itemHandler.ListItems))
	mux.Handle("GET /api/items/{id}", Wrap(itemHandler.GetItem))
	mux.Handle("GET /api/tags", Wrap(itemHandler.ListTags))

	// Writes
	mux.Handle("POST /api/items", Wrap(itemHandler.CreateItem))
	mux.Handle("POST /api/images", Wrap(itemHandler.CreateImage))
	mux.Handle("DELETE /api/items/{id}", Wrap(itemHandler.DeleteItem))

	// Live row queries
	mux.Handle("POST /api/items/query", Wrap(itemHandler.Query))
	mux.Handle("POST /api/items/update", Wrap(itemHandler.Update))
	mux.Handle("POST /api/items/delete", Wrap(itemHandler.Delete))

	var m *requestMetrics
	if meter != nil {
		var err error
		if m, err = newRequestMetrics(meter); err != nil {
			slog.Warn("Failed to create request metrics", "err", err)
		}
	}
	return LogRequests(m)(mux)
}
