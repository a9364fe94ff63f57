package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"heartbridge-api/auth"
	"heartbridge-api/config"
	"heartbridge-api/handlers"
	"heartbridge-api/ranking"
	"heartbridge-api/routes"
	"heartbridge-api/store"
	"heartbridge-api/workflow"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}
	gin.SetMode(cfg.GinMode)

	db, err := config.OpenDB(cfg.Database)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	st := store.New(db)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenDuration)
	gate := auth.NewGate(tokens, st)
	accounts := auth.NewService(st, tokens, logger)
	engine := workflow.New(st, gate, workflow.Config{
		RetryOnConflict: cfg.Workflow.RetryOnConflict,
		Weights: ranking.Weights{
			CompletedTask: cfg.Ranking.CompletedTaskWeight,
			AverageRating: cfg.Ranking.AverageRatingWeight,
		},
		RankingLimit: cfg.Ranking.Limit,
		Logger:       logger,
	})

	ctx := context.Background()
	if _, err := accounts.BootstrapAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		logger.Error("failed to bootstrap admin account", "err", err)
		os.Exit(1)
	}

	h := handlers.New(engine, accounts, logger)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(h, gate, logger, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr, "env", cfg.Env, "db_driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}
	if err := config.CloseDB(db); err != nil {
		logger.Error("error closing database", "err", err)
	}
	logger.Info("server exited")
}
