package geo_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftme/liftme-go/internal/config"
	"github.com/liftme/liftme-go/internal/geo"
	"github.com/liftme/liftme-go/pkg/cache"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const searchResponse = `{
	"features": [
		{"place_name": "проспект Абая 10, Алматы", "center": [76.889, 43.238]},
		{"text": "Абая", "geometry": {"coordinates": [76.9, 43.24]}},
		{"text": "без координат"}
	]
}`

func TestGeocoder_Search(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		w.Write([]byte(searchResponse))
	}))
	defer srv.Close()

	geocoder := geo.NewGeocoder(discardLogger(), config.Geo{
		MapTilerURL: srv.URL,
		MapTilerKey: "test-key",
		Language:    "ru",
		Country:     "KZ",
		CityHint:    "Алматы",
	}, cache.NewLRUCache(8, time.Minute))

	places, err := geocoder.Search(context.Background(), "Абая 10")
	require.NoError(t, err)
	require.Len(t, places, 2, "feature without coordinates is skipped")
	assert.Equal(t, "проспект Абая 10, Алматы", places[0].Label)
	assert.InDelta(t, 43.238, places[0].Lat, 1e-9)
	assert.InDelta(t, 76.889, places[0].Lon, 1e-9)

	// Second identical search is served from cache.
	_, err = geocoder.Search(context.Background(), "Абая 10")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// Blank query short-circuits without a request.
	places, err = geocoder.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, places)
	assert.Equal(t, 1, calls)
}

func TestGeocoder_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features": [{"place_name": "улица Сатпаева 22"}]}`))
	}))
	defer srv.Close()

	geocoder := geo.NewGeocoder(discardLogger(), config.Geo{
		MapTilerURL: srv.URL,
		Language:    "ru",
		Country:     "KZ",
	}, nil)

	address, err := geocoder.Reverse(context.Background(), geo.Coordinate{Lat: 43.23, Lon: 76.91})
	require.NoError(t, err)
	assert.Equal(t, "улица Сатпаева 22", address)
}

func TestGeocoder_ReverseNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features": []}`))
	}))
	defer srv.Close()

	geocoder := geo.NewGeocoder(discardLogger(), config.Geo{MapTilerURL: srv.URL}, nil)

	address, err := geocoder.Reverse(context.Background(), geo.Coordinate{})
	require.NoError(t, err)
	assert.Empty(t, address)
}

const routeResponse = `{
	"routes": [
		{
			"distance": 12500,
			"duration": 1080,
			"geometry": {"coordinates": [[76.889, 43.238], [76.9, 43.24]]}
		}
	]
}`

func TestRouter_Driving(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/route/v1/driving/")
		w.Write([]byte(routeResponse))
	}))
	defer srv.Close()

	router := geo.NewRouter(discardLogger(), config.Geo{OSRMURL: srv.URL})

	route, err := router.Driving(context.Background(),
		geo.Coordinate{Lat: 43.238, Lon: 76.889},
		geo.Coordinate{Lat: 43.24, Lon: 76.9},
	)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, route.DistanceKm, 1e-9)
	assert.Equal(t, 18, route.DurationMin)
	require.Len(t, route.Points, 2)
	// GeoJSON is lon,lat; Points are lat,lon.
	assert.InDelta(t, 43.238, route.Points[0].Lat, 1e-9)
	assert.InDelta(t, 76.889, route.Points[0].Lon, 1e-9)
}

func TestRouter_NoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"routes": []}`))
	}))
	defer srv.Close()

	router := geo.NewRouter(discardLogger(), config.Geo{OSRMURL: srv.URL})

	_, err := router.Driving(context.Background(), geo.Coordinate{}, geo.Coordinate{Lat: 1, Lon: 1})
	assert.ErrorIs(t, err, geo.ErrNoRoute)
}

func TestClusterPoints(t *testing.T) {
	points := []geo.Coordinate{
		{Lat: 43.2380, Lon: 76.8890},
		{Lat: 43.2382, Lon: 76.8892},
		{Lat: 43.3000, Lon: 76.9500},
	}

	clusters := geo.ClusterPoints(points, 0.01)
	require.Len(t, clusters, 2)

	var total int
	for _, c := range clusters {
		total += c.Count
	}
	assert.Equal(t, 3, total)

	assert.Nil(t, geo.ClusterPoints(nil, 0.01))
}
