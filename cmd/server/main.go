package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/open-tabletop/server/internal/config"
	"github.com/open-tabletop/server/internal/game"
	"github.com/open-tabletop/server/internal/games/tictactoe"
	"github.com/open-tabletop/server/internal/logging"
	"github.com/open-tabletop/server/internal/server"
	"github.com/open-tabletop/server/internal/stats"
)

func main() {
	// Load .env file for local development. Try multiple paths to handle
	// different ways of running the app.
	envPaths := []string{".env", "../../.env", "../.env"}
	var envLoaded bool
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			slog.Info("loaded environment from", "path", path)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		slog.Warn("no .env file found in any expected location, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("invalid environment configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.DevelopmentMode); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	log := logging.GetLogger()

	registry := game.NewRegistry()
	registry.Register(tictactoe.Name, func(args json.RawMessage, seats int) (game.Logic, error) {
		return tictactoe.New(args, seats)
	})

	recorder := buildRecorder(cfg, log)

	srv := server.New(registry, recorder, []string{cfg.AllowedOrigins}, log)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.AllowedOrigins}
	corsConfig.AllowCredentials = true
	engine := srv.Engine()
	engine.Use(cors.New(corsConfig))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	go func() {
		log.Info("tabletop server starting", zap.String("port", cfg.Port))
		srv.MarkReady()
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownTimeout := time.Duration(cfg.RoomCleanupGraceSeconds+5) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Close(ctx); err != nil {
		log.Error("rooms did not close cleanly", zap.Error(err))
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("http server forced to shutdown", zap.Error(err))
	}

	log.Info("server exiting")
}

func buildRecorder(cfg *config.Config, log *zap.Logger) stats.Recorder {
	if cfg.StatsDSN == "" {
		log.Info("STATS_DSN not set, match history disabled")
		return stats.NullRecorder{}
	}
	recorder, err := stats.NewGormRecorder(cfg.StatsDSN)
	if err != nil {
		log.Error("failed to initialize stats recorder, falling back to null recorder", zap.Error(err))
		return stats.NullRecorder{}
	}
	return recorder
}
