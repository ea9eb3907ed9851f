// Package diag exposes the client's local diagnostics endpoint: liveness,
// a JSON view of the reconciler state, and Prometheus metrics. It binds to
// localhost by default and carries no order data beyond what the client
// already holds.
package diag

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liftme/liftme-go/internal/auth"
	"github.com/liftme/liftme-go/internal/reconciler"
	"github.com/liftme/liftme-go/pkg/utils"
)

type SnapshotProvider interface {
	Snapshot() reconciler.Snapshot
}

type Handler struct {
	logger  *slog.Logger
	rec     SnapshotProvider
	session *auth.Session
	started time.Time
}

func NewHandler(logger *slog.Logger, rec SnapshotProvider, session *auth.Session) *Handler {
	return &Handler{
		logger:  logger.With(slog.String("handler", "diag")),
		rec:     rec,
		session: session,
		started: time.Now(),
	}
}

func (h *Handler) Init(r chi.Router) {
	r.Get("/healthz", h.health)
	r.Get("/status", h.status)
	r.Handle("/metrics", promhttp.Handler())
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

type statusResponse struct {
	Uptime        string              `json:"uptime"`
	Authenticated bool                `json:"authenticated"`
	TokenExpires  *time.Time          `json:"tokenExpires,omitempty"`
	State         reconciler.Snapshot `json:"state"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Uptime: time.Since(h.started).Round(time.Second).String(),
		State:  h.rec.Snapshot(),
	}
	if h.session != nil {
		resp.Authenticated = h.session.Authenticated()
		if exp := h.session.ExpiresAt(); !exp.IsZero() {
			resp.TokenExpires = &exp
		}
	}
	utils.WriteJSON(w, resp, http.StatusOK)
}
