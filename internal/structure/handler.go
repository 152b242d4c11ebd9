package structure

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	pkgerrors "github.com/sjando/jolecule/pkg/errors"
	"github.com/sjando/jolecule/pkg/logger"
)

// Handler serves derived loader artifacts over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "structure-handler"),
	}
}

// Artifact handles GET /pdb/{file} for .js paths. Fetch diagnostics come
// back as 200 javascript comments; only local failures surface as errors.
func (h *Handler) Artifact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	structureID := strings.TrimSuffix(r.PathValue("file"), ".js")
	text, err := h.service.Loader(ctx, structureID)
	if err != nil {
		log.Error("loader failed", "structure_id", structureID, "error", err)
		h.writeError(w, pkgerrors.HTTPStatusCode(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/javascript")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, text); err != nil {
		log.Warn("writing artifact failed", "structure_id", structureID, "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
