// cmd/historian/main.go drains finished-session stats from Redis into Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/jason-s-yu/partyroom/internal/cache"
	"github.com/jason-s-yu/partyroom/internal/config"
	"github.com/jason-s-yu/partyroom/internal/database"
	"github.com/jason-s-yu/partyroom/internal/historian"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.WithError(err).Fatal("connect postgres")
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.WithError(err).Fatal("migrate schema")
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("connect redis")
	}
	defer rdb.Close()

	svc := historian.New(
		cache.NewStatsQueue(rdb, cfg.StatsQueue),
		database.NewPostgresStore(pool),
		logger.WithField("queue", cfg.StatsQueue),
		cfg.HistorianBatchSize,
		cfg.HistorianFlush,
	)
	svc.Run(ctx)
}
