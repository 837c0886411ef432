package handlers

import (
	"context"

	"github.com/maruel/imladris/internal/models"
	"github.com/maruel/imladris/internal/storage"
)

// HealthHandler reports the state of the item cache.
type HealthHandler struct {
	cache   *storage.Cache
	version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(cache *storage.Cache, version string) *HealthHandler {
	return &HealthHandler{cache: cache, version: version}
}

// Health returns the health status of the server. It never triggers a
// rebuild.
func (h *HealthHandler) Health(ctx context.Context, req models.HealthRequest) (*models.HealthResponse, error) {
	resp := &models.HealthResponse{Status: "ok", Stale: h.cache.Stale(), Version: h.version}
	if snap := h.cache.Snapshot(); snap != nil {
		resp.Items = snap.Len()
		resp.BuiltAt = snap.BuiltAt()
	} else {
		resp.Status = "starting"
	}
	return resp, nil
}
