package diag_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftme/liftme-go/internal/diag"
	"github.com/liftme/liftme-go/internal/entities"
	"github.com/liftme/liftme-go/internal/reconciler"
)

type stubProvider struct {
	snap reconciler.Snapshot
}

func (s stubProvider) Snapshot() reconciler.Snapshot { return s.snap }

func TestDiagHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := stubProvider{snap: reconciler.Snapshot{
		Role:  entities.RoleCustomer,
		Phase: reconciler.PhaseSearching,
		Order: &entities.Order{ID: "ord-7", Status: entities.StatusNew},
	}}

	h := diag.NewHandler(logger, provider, nil)
	r := chi.NewRouter()
	h.Init(r)

	t.Run("healthz", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"ok"`)
	})

	t.Run("status", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)

		var resp struct {
			Authenticated bool                `json:"authenticated"`
			State         reconciler.Snapshot `json:"state"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.False(t, resp.Authenticated)
		assert.Equal(t, reconciler.PhaseSearching, resp.State.Phase)
		require.NotNil(t, resp.State.Order)
		assert.Equal(t, "ord-7", resp.State.Order.ID)
	})

	t.Run("metrics", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "go_goroutines")
	})
}
