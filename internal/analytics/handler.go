package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// SnapshotSource lists persisted stats snapshots, newest first.
type SnapshotSource interface {
	ListSnapshots(ctx context.Context, limit int) ([]AggregatedStats, error)
}

type Handler struct {
	aggregator *Aggregator
	history    SnapshotSource
	logger     *slog.Logger
}

// NewHandler creates the analytics query handler. history may be nil when
// snapshot persistence is not configured.
func NewHandler(aggregator *Aggregator, history SnapshotSource) *Handler {
	return &Handler{
		aggregator: aggregator,
		history:    history,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

// History serves persisted snapshots so a freshly restarted aggregator can
// still show the long-term picture.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 24
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	snapshots := []AggregatedStats{}
	if h.history != nil {
		var err error
		snapshots, err = h.history.ListSnapshots(r.Context(), limit)
		if err != nil {
			h.logger.Error("failed to list snapshots", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "snapshot query failed"})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snapshots); err != nil {
		h.logger.Error("failed to write history response", "error", err)
	}
}
