package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sjando/jolecule/internal/analytics"
	"github.com/sjando/jolecule/internal/user"
	pkgerrors "github.com/sjando/jolecule/pkg/errors"
	"github.com/sjando/jolecule/pkg/logger"
	"github.com/sjando/jolecule/pkg/metrics"
	"github.com/sjando/jolecule/pkg/middleware"
)

// Storage is the persistence surface the handler needs.
type Storage interface {
	Save(ctx context.Context, v *View) error
	Delete(ctx context.Context, pdbID, viewID string) error
	List(ctx context.Context, pdbID string) ([]View, error)
}

// EventTracker publishes usage events. *collector.BatchCollector satisfies it.
type EventTracker interface {
	Track(key string, value any)
}

type Handler struct {
	store   Storage
	events  EventTracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHandler creates the view CRUD handler. events and m may be nil.
func NewHandler(store Storage, events EventTracker, m *metrics.Metrics) *Handler {
	return &Handler{
		store:   store,
		events:  events,
		metrics: m,
		logger:  slog.Default().With("component", "view-handler"),
	}
}

// Save handles POST /ajax/new_view. The response body is empty; the client
// only checks the status.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		h.countSave("error")
		h.writeError(w, http.StatusBadRequest, "malformed form data")
		return
	}
	v, err := ParseForm(r.PostForm)
	if err != nil {
		h.countSave("error")
		h.writeError(w, pkgerrors.HTTPStatusCode(err), err.Error())
		return
	}

	nickname := user.FromRequest(r)
	v.Creator = nickname
	v.Modifier = nickname

	if err := h.store.Save(ctx, &v); err != nil {
		log.Error("saving view failed", "pdb_id", v.PDBID, "view_id", v.ID, "error", err)
		h.countSave("error")
		h.writeError(w, pkgerrors.HTTPStatusCode(err), "saving view failed")
		return
	}

	h.countSave("ok")
	h.track(analytics.ViewEvent{
		Type:      analytics.EventViewSaved,
		PDBID:     v.PDBID,
		ViewID:    v.ID,
		User:      nickname,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})
	log.Info("view saved", "pdb_id", v.PDBID, "view_id", v.ID, "user", nickname)
	w.WriteHeader(http.StatusOK)
}

// Delete handles POST /ajax/pdb/delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed form data")
		return
	}
	pdbID := r.PostForm.Get("pdb_id")
	viewID := r.PostForm.Get("id")
	if pdbID == "" || viewID == "" {
		h.writeError(w, http.StatusBadRequest, "pdb_id and id are required")
		return
	}

	if err := h.store.Delete(ctx, pdbID, viewID); err != nil {
		if !errors.Is(err, pkgerrors.ErrViewNotFound) {
			log.Error("deleting view failed", "pdb_id", pdbID, "view_id", viewID, "error", err)
		}
		h.writeError(w, pkgerrors.HTTPStatusCode(err), err.Error())
		return
	}

	h.track(analytics.ViewEvent{
		Type:      analytics.EventViewDeleted,
		PDBID:     pdbID,
		ViewID:    viewID,
		User:      user.FromRequest(r),
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(ctx),
	})
	log.Info("view deleted", "pdb_id", pdbID, "view_id", viewID)
	w.WriteHeader(http.StatusOK)
}

// List handles GET /ajax/pdb/{pdb_id}, returning every saved view for a
// structure shaped for the calling user.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	pdbID := r.PathValue("pdb_id")
	if pdbID == "" {
		h.writeError(w, http.StatusBadRequest, "pdb id is required")
		return
	}

	views, err := h.store.List(ctx, pdbID)
	if err != nil {
		log.Error("listing views failed", "pdb_id", pdbID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "listing views failed")
		return
	}

	nickname := user.FromRequest(r)
	out := make([]View, len(views))
	for i, v := range views {
		out[i] = v.ForCaller(nickname)
	}
	h.writeJSON(w, http.StatusOK, out)
}

// User handles GET /ajax/user, returning the caller's nickname as plain
// text.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, user.FromRequest(r))
}

func (h *Handler) track(event analytics.ViewEvent) {
	if h.events != nil {
		h.events.Track("view", event)
	}
}

func (h *Handler) countSave(status string) {
	if h.metrics != nil {
		h.metrics.ViewSavesTotal.WithLabelValues(status).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
