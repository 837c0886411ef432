package utils

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// RespondJSON sends a JSON response with the given status code.
func RespondJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// The status is already written, log only
		slog.WarnContext(ctx, "Failed to encode response", "err", err)
	}
}
