package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/liftme/liftme-go/internal/config"
	"github.com/liftme/liftme-go/internal/devserver"
	"github.com/liftme/liftme-go/internal/middleware"
)

func main() {
	conf := config.NewDevServer()
	logger := newLogger(os.Getenv("ENV"))
	panicIfErr("invalid config", conf.Validate())

	store := devserver.NewStore()
	handler := devserver.NewHandler(logger, store, []byte(conf.Secret))

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: conf.AllowedOrigins,
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
	}))
	handler.Init(router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if conf.AutoAssign {
		assigner := devserver.NewAutoAssigner(logger, store, conf.AutoAssignDelay)
		go assigner.Run(ctx)
	}

	srv := &http.Server{
		Handler: router,
		Addr:    net.JoinHostPort(conf.Host, conf.Port),
	}

	go func() {
		logger.Info("dev gateway listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start http server", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown http server", slog.Any("error", err))
	}
	logger.Info("dev gateway stopped")
}

func init() {
	godotenv.Load()
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
