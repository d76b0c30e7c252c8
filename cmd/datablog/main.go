package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"datablog/internal/config"
	"datablog/internal/csrf"
	"datablog/internal/handler"
	"datablog/internal/password"
	"datablog/internal/service"
	"datablog/internal/storage"
	"datablog/internal/token"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to yaml config")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	lgr := setupLogger(cfg.Env)

	st, err := storage.NewPostgresStorage(cfg.DB.DbURL)
	if err != nil {
		lgr.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	guard, err := csrf.NewGuard(cfg.Auth.CSRFSecret)
	if err != nil {
		lgr.Error("failed to init csrf guard", slog.Any("error", err))
		os.Exit(1)
	}

	hasher := password.NewBcryptHasher(cfg.Auth.BcryptCost)
	tokens := token.NewService(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	srvc := service.NewService(st, hasher, tokens, lgr)
	h := handler.NewHandler(srvc, tokens, guard, cfg, lgr)

	if cfg.Env == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	lgr.Info("started datablog auth service", slog.String("address", cfg.HTTPServer.Address))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		lgr.Error("shutdown failed", slog.Any("error", err))
	}

	lgr.Info("stopped datablog auth service")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}
	return log
}
