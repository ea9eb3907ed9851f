package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `validate:"required,oneof=development stage production"`
	Role string `validate:"required,oneof=customer driver"`

	API  API  `validate:"required"`
	Poll Poll `validate:"required"`
	Geo  Geo  `validate:"required"`
	Diag Diag

	Cache Cache

	// Login credentials are optional; when set, the daemon signs in on start
	// if no stored token survives.
	Login Login

	TokenFile string `validate:"required"`
}

type Login struct {
	Phone    string
	Password string
}

type API struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

type Poll struct {
	// Interval between active-order polls. SearchTimeout is purely a UI
	// affordance, the reconciler keeps polling after it expires.
	Interval      time.Duration `validate:"gt=0"`
	SearchTimeout time.Duration `validate:"gt=0"`
}

type Geo struct {
	MapTilerKey string
	MapTilerURL string `validate:"required,url"`
	OSRMURL     string `validate:"required,url"`
	Language    string `validate:"required"`
	Country     string `validate:"required"`
	CityHint    string
}

type Diag struct {
	Host           string `validate:"omitempty,hostname|ip"`
	Port           string `validate:"omitempty,number"`
	AllowedOrigins []string
}

type Cache struct {
	Capacity int           `validate:"gte=1"`
	TTL      time.Duration `validate:"gt=0"`
}

func New() Config {
	return Config{
		Env:  env("ENV", "development"),
		Role: env("ROLE", "customer"),

		API: API{
			BaseURL: env("API_BASE_URL", "http://localhost:5001/api"),
			Timeout: envDuration("API_TIMEOUT", 10*time.Second),
		},

		Poll: Poll{
			Interval:      envDuration("POLL_INTERVAL", 5*time.Second),
			SearchTimeout: envDuration("SEARCH_TIMEOUT", 3*time.Minute),
		},

		Geo: Geo{
			MapTilerKey: env("MAPTILER_KEY", ""),
			MapTilerURL: env("MAPTILER_URL", "https://api.maptiler.com/geocoding"),
			OSRMURL:     env("OSRM_URL", "https://router.project-osrm.org"),
			Language:    env("GEO_LANGUAGE", "ru"),
			Country:     env("GEO_COUNTRY", "KZ"),
			CityHint:    env("GEO_CITY_HINT", "Алматы"),
		},

		Diag: Diag{
			Host:           env("DIAG_HOST", "localhost"),
			Port:           env("DIAG_PORT", "8090"),
			AllowedOrigins: strings.Split(env("DIAG_ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		},

		Cache: Cache{
			Capacity: envInt("GEO_CACHE_CAPACITY", 256),
			TTL:      envDuration("GEO_CACHE_TTL", 10*time.Minute),
		},

		Login: Login{
			Phone:    env("LOGIN_PHONE", ""),
			Password: env("LOGIN_PASSWORD", ""),
		},

		TokenFile: env("TOKEN_FILE", defaultTokenFile()),
	}
}

// DevServer configures the local stub gateway binary.
type DevServer struct {
	Host            string `validate:"omitempty,hostname|ip"`
	Port            string `validate:"required,number"`
	Secret          string `validate:"required"`
	AllowedOrigins  []string
	AutoAssign      bool
	AutoAssignDelay time.Duration `validate:"gt=0"`
}

func NewDevServer() DevServer {
	return DevServer{
		Host:            env("DEV_HOST", "localhost"),
		Port:            env("DEV_PORT", "5001"),
		Secret:          env("DEV_JWT_SECRET", "liftme-dev-secret"),
		AllowedOrigins:  strings.Split(env("DEV_ALLOWED_ORIGINS", "*"), ","),
		AutoAssign:      env("DEV_AUTO_ASSIGN", "") == "true",
		AutoAssignDelay: envDuration("DEV_AUTO_ASSIGN_DELAY", 15*time.Second),
	}
}

func (c DevServer) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func (c Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".liftme-token"
	}
	return dir + "/liftme/token"
}

func env(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if len(fallback) == 0 {
		return ""
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}
