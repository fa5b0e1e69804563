// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/partyroom/internal/auth"
	"github.com/jason-s-yu/partyroom/internal/cache"
	"github.com/jason-s-yu/partyroom/internal/config"
	"github.com/jason-s-yu/partyroom/internal/database"
	"github.com/jason-s-yu/partyroom/internal/handlers"
	"github.com/jason-s-yu/partyroom/internal/lobby"
	"github.com/jason-s-yu/partyroom/internal/middleware"
	"github.com/jason-s-yu/partyroom/internal/realtime"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if priv, pub := os.Getenv("JWT_PRIVATE_KEY_PATH"), os.Getenv("JWT_PUBLIC_KEY_PATH"); priv != "" && pub != "" {
		if err := auth.InitFromPath(priv, pub); err != nil {
			logger.WithError(err).Fatal("load signing keys")
		}
	} else if err := auth.Init(); err != nil {
		logger.WithError(err).Fatal("generate signing keys")
	}

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()
	if err := database.SeedCatalog(ctx, store); err != nil {
		logger.WithError(err).Fatal("seed card catalog")
	}

	var (
		transport realtime.Transport
		stats     lobby.StatsRecorder
	)
	switch cfg.TransportDriver {
	case "redis":
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Fatal("connect redis")
		}
		defer closeRedis(rdb, logger)
		transport = realtime.NewRedisTransport(rdb, logger)
		stats = cache.NewStatsQueue(rdb, cfg.StatsQueue)
	default:
		transport = realtime.NewHub(logger)
	}

	mgr := lobby.NewManager(database.NewNotifyingStore(store, transport, logger), transport, stats, logger, lobby.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		MaxPlayers:        cfg.MaxPlayers,
		ChildGames:        cfg.ChildGames,
		CreekGameID:       database.CreekGameID,
	})

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)

	mux.HandleFunc("GET /ping", handlers.PingHandler)
	mux.Handle("GET /rooms/{code}", logged(handlers.RoomInfoHandler(logger, mgr)))
	mux.Handle("GET /room/ws", logged(handlers.RoomWSHandler(logger, mgr)))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("http shutdown")
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":      srv.Addr,
		"store":     cfg.StoreDriver,
		"transport": cfg.TransportDriver,
	}).Info("partyroom server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("partyroom server stopped")
}

// openStore returns the configured Store and its release func.
func openStore(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (database.Store, func()) {
	if cfg.StoreDriver != "postgres" {
		return database.NewMemoryStore(), func() {}
	}
	pool, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.WithError(err).Fatal("connect postgres")
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		logger.WithError(err).Fatal("migrate schema")
	}
	return database.NewPostgresStore(pool), pool.Close
}

func closeRedis(rdb *redis.Client, logger logrus.FieldLogger) {
	if err := rdb.Close(); err != nil {
		logger.WithError(err).Warn("close redis")
	}
}
