package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/liftme/liftme-go/internal/config"
)

// Route is a driving route between two points.
type Route struct {
	Points      []Coordinate `json:"points"`
	DistanceKm  float64      `json:"distanceKm"`
	DurationMin int          `json:"durationMin"`
}

var ErrNoRoute = errors.New("no route found")

// Router computes driving routes through an OSRM instance.
type Router struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewRouter(logger *slog.Logger, cfg config.Geo) *Router {
	return &Router{
		baseURL:    strings.TrimRight(cfg.OSRMURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With(slog.String("component", "router")),
	}
}

// Driving returns the best driving route from from to to, with the full
// geometry for drawing on a map.
func (r *Router) Driving(ctx context.Context, from, to Coordinate) (Route, error) {
	endpoint := fmt.Sprintf(
		"%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		r.baseURL, from.Lon, from.Lat, to.Lon, to.Lat,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Route{}, fmt.Errorf("build route request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Route{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Route{}, fmt.Errorf("routing error %d", resp.StatusCode)
	}

	var payload struct {
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
			Geometry struct {
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Route{}, fmt.Errorf("decode route response: %w", err)
	}
	if len(payload.Routes) == 0 {
		return Route{}, ErrNoRoute
	}

	best := payload.Routes[0]
	points := make([]Coordinate, 0, len(best.Geometry.Coordinates))
	for _, c := range best.Geometry.Coordinates {
		if len(c) < 2 {
			continue
		}
		points = append(points, Coordinate{Lat: c[1], Lon: c[0]})
	}

	return Route{
		Points:      points,
		DistanceKm:  best.Distance / 1000,
		DurationMin: int(math.Round(best.Duration / 60)),
	}, nil
}
