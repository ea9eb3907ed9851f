package diag

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/liftme/liftme-go/internal/geo"
	"github.com/liftme/liftme-go/pkg/utils"
)

// GeoHandler gives local frontends address search, reverse geocoding, routing
// and marker clustering without talking to MapTiler or OSRM themselves; the
// daemon holds the API key and the response cache.
type GeoHandler struct {
	logger   *slog.Logger
	geocoder *geo.Geocoder
	router   *geo.Router
}

func NewGeoHandler(logger *slog.Logger, geocoder *geo.Geocoder, router *geo.Router) *GeoHandler {
	return &GeoHandler{
		logger:   logger.With(slog.String("handler", "geo")),
		geocoder: geocoder,
		router:   router,
	}
}

func (h *GeoHandler) Init(r chi.Router) {
	r.Get("/geo/search", h.search)
	r.Get("/geo/reverse", h.reverse)
	r.Get("/geo/route", h.route)
	r.Post("/geo/cluster", h.cluster)
}

func (h *GeoHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		utils.WriteError(w, "q is required", http.StatusBadRequest)
		return
	}

	places, err := h.geocoder.Search(r.Context(), query)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "address search failed", slog.Any("error", err))
		utils.WriteError(w, "address search failed", http.StatusBadGateway)
		return
	}
	utils.WriteJSON(w, places, http.StatusOK)
}

func (h *GeoHandler) reverse(w http.ResponseWriter, r *http.Request) {
	coord, ok := parseCoord(r, "lat", "lon")
	if !ok {
		utils.WriteError(w, "lat and lon are required", http.StatusBadRequest)
		return
	}

	address, err := h.geocoder.Reverse(r.Context(), coord)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "reverse geocode failed", slog.Any("error", err))
		utils.WriteError(w, "reverse geocode failed", http.StatusBadGateway)
		return
	}
	if address == "" {
		utils.WriteError(w, "no address at this point", http.StatusNotFound)
		return
	}
	utils.WriteJSON(w, map[string]string{"address": address}, http.StatusOK)
}

func (h *GeoHandler) route(w http.ResponseWriter, r *http.Request) {
	from, okFrom := parseCoord(r, "fromLat", "fromLon")
	to, okTo := parseCoord(r, "toLat", "toLon")
	if !okFrom || !okTo {
		utils.WriteError(w, "fromLat, fromLon, toLat and toLon are required", http.StatusBadRequest)
		return
	}

	route, err := h.router.Driving(r.Context(), from, to)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "routing failed", slog.Any("error", err))
		utils.WriteError(w, "routing failed", http.StatusBadGateway)
		return
	}
	utils.WriteJSON(w, route, http.StatusOK)
}

type clusterRequest struct {
	Points []geo.Coordinate `json:"points"`
	Cell   float64          `json:"cell"`
}

func (h *GeoHandler) cluster(w http.ResponseWriter, r *http.Request) {
	var req clusterRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid body", http.StatusBadRequest)
		return
	}
	utils.WriteJSON(w, geo.ClusterPoints(req.Points, req.Cell), http.StatusOK)
}

func parseCoord(r *http.Request, latKey, lonKey string) (geo.Coordinate, bool) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get(latKey), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get(lonKey), 64)
	if errLat != nil || errLon != nil {
		return geo.Coordinate{}, false
	}
	return geo.Coordinate{Lat: lat, Lon: lon}, true
}
