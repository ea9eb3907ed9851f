package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/liftme/liftme-go/internal/config"
	"github.com/liftme/liftme-go/pkg/cache"
)

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Place is a geocoding hit for the address autocomplete.
type Place struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// Geocoder resolves addresses through the MapTiler geocoding API. Lookups are
// cached, the autocomplete fires on every keystroke.
type Geocoder struct {
	baseURL    string
	key        string
	language   string
	country    string
	cityHint   string
	httpClient *http.Client
	logger     *slog.Logger
	cache      *cache.LRUCache
}

func NewGeocoder(logger *slog.Logger, cfg config.Geo, cache *cache.LRUCache) *Geocoder {
	return &Geocoder{
		baseURL:    strings.TrimRight(cfg.MapTilerURL, "/"),
		key:        cfg.MapTilerKey,
		language:   cfg.Language,
		country:    cfg.Country,
		cityHint:   cfg.CityHint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With(slog.String("component", "geocoder")),
		cache:      cache,
	}
}

// Search returns up to five autocomplete candidates for a partial address.
// The city hint is appended to bias results, mirroring how the order form
// searches within the user's city.
func (g *Geocoder) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	searchText := query
	if g.cityHint != "" {
		searchText = query + ", " + g.cityHint
	}

	endpoint := fmt.Sprintf("%s/%s.json?%s", g.baseURL, url.PathEscape(searchText), g.query(5))

	var payload featureCollection
	if err := g.fetch(ctx, "search:"+searchText, endpoint, &payload); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(payload.Features))
	for _, f := range payload.Features {
		lon, lat, ok := f.center()
		if !ok {
			continue
		}
		places = append(places, Place{Label: f.label(), Lat: lat, Lon: lon})
	}
	return places, nil
}

// Reverse turns coordinates into a display address. An empty string, not an
// error, comes back when nothing is found; the UI just shows the raw point.
func (g *Geocoder) Reverse(ctx context.Context, coord Coordinate) (string, error) {
	endpoint := fmt.Sprintf("%s/%f,%f.json?%s", g.baseURL, coord.Lon, coord.Lat, g.query(1))

	var payload featureCollection
	if err := g.fetch(ctx, fmt.Sprintf("reverse:%f,%f", coord.Lat, coord.Lon), endpoint, &payload); err != nil {
		return "", err
	}
	if len(payload.Features) == 0 {
		return "", nil
	}
	return payload.Features[0].label(), nil
}

func (g *Geocoder) query(limit int) string {
	q := url.Values{}
	q.Set("key", g.key)
	q.Set("language", g.language)
	q.Set("limit", fmt.Sprint(limit))
	q.Set("country", g.country)
	return q.Encode()
}

func (g *Geocoder) fetch(ctx context.Context, cacheKey, endpoint string, out any) error {
	if g.cache != nil {
		if data, ok := g.cache.Get(cacheKey); ok {
			return json.Unmarshal(data, out)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoding error %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read geocode response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode geocode response: %w", err)
	}

	if g.cache != nil {
		g.cache.Set(cacheKey, data)
	}
	return nil
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Text      string    `json:"text"`
	PlaceName string    `json:"place_name"`
	Center    []float64 `json:"center"`
	Geometry  struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

func (f feature) label() string {
	if f.PlaceName != "" {
		return f.PlaceName
	}
	return f.Text
}

// center returns lon, lat in GeoJSON ordering.
func (f feature) center() (float64, float64, bool) {
	if len(f.Center) >= 2 {
		return f.Center[0], f.Center[1], true
	}
	if len(f.Geometry.Coordinates) >= 2 {
		return f.Geometry.Coordinates[0], f.Geometry.Coordinates[1], true
	}
	return 0, 0, false
}
