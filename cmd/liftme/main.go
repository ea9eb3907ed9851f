package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/liftme/liftme-go/internal/api"
	"github.com/liftme/liftme-go/internal/app"
	"github.com/liftme/liftme-go/internal/auth"
	"github.com/liftme/liftme-go/internal/config"
	"github.com/liftme/liftme-go/internal/diag"
	"github.com/liftme/liftme-go/internal/entities"
	"github.com/liftme/liftme-go/internal/geo"
	"github.com/liftme/liftme-go/internal/reconciler"
	"github.com/liftme/liftme-go/pkg/cache"
)

func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	session := auth.NewSession(logger, auth.NewFileTokenStore(conf.TokenFile))
	if err := session.Restore(); err != nil {
		logger.Warn("session restore failed", slog.Any("error", err))
	}

	client := api.New(logger, conf.API.BaseURL, conf.API.Timeout, session)

	geoCache := cache.NewLRUCache(conf.Cache.Capacity, conf.Cache.TTL)
	geocoder := geo.NewGeocoder(logger, conf.Geo, geoCache)
	router := geo.NewRouter(logger, conf.Geo)

	role := entities.Role(strings.ToUpper(conf.Role))
	rec := reconciler.New(logger, client, reconciler.Config{
		Role:          role,
		PollInterval:  conf.Poll.Interval,
		SearchTimeout: conf.Poll.SearchTimeout,
	}, eventLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	account := auth.NewManager(logger, client, session)
	if !session.Authenticated() && conf.Login.Phone != "" {
		if _, err := account.Login(ctx, conf.Login.Phone, conf.Login.Password); err != nil {
			logger.Warn("sign-in failed", slog.Any("error", err))
		}
	}

	if role == entities.RoleDriver && session.Authenticated() {
		if err := loadDriverProfile(ctx, client, rec); err != nil {
			logger.Warn("driver profile load failed", slog.Any("error", err))
		}
	}

	diagHandler := diag.NewHandler(logger, rec, session)
	geoHandler := diag.NewGeoHandler(logger, geocoder, router)

	app := app.New(logger, conf.Diag)
	app.SetHTTPHandlers(diagHandler, geoHandler)
	app.SetRunners(rec, &janitorRunner{cache: geoCache})

	app.Start(ctx)
	<-ctx.Done()
	app.Stop()
}

func init() {
	godotenv.Load()
}

// loadDriverProfile fetches the profile and vehicle in parallel; both gate
// going online.
func loadDriverProfile(ctx context.Context, client *api.Client, rec *reconciler.Reconciler) error {
	var (
		user    entities.User
		vehicle *entities.DriverVehicle
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = client.Me(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		vehicle, err = client.DriverVehicle(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	rec.SetDriverProfile(vehicle, user.DriverDocsCompleted)
	return nil
}

func eventLogger(logger *slog.Logger) reconciler.Listener {
	return func(e reconciler.Event) {
		attrs := []any{slog.String("type", string(e.Type)), slog.String("phase", string(e.Phase))}
		if e.Order != nil {
			attrs = append(attrs, slog.String("order_id", e.Order.ID))
		}
		logger.Info("reconciler event", attrs...)
	}
}

type janitorRunner struct {
	cache  *cache.LRUCache
	cancel context.CancelFunc
}

func (j *janitorRunner) Start(ctx context.Context) error {
	ctx, j.cancel = context.WithCancel(ctx)
	j.cache.StartJanitor(ctx)
	return nil
}

func (j *janitorRunner) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}
