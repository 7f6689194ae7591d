// Command populate fills the database with random sample letters.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/letter-service/internal/config"
	"github.com/spec-kit/letter-service/internal/observability"
	"github.com/spec-kit/letter-service/internal/persistence"
	"github.com/spec-kit/letter-service/internal/repository"
	"github.com/spec-kit/letter-service/internal/seed"
)

func main() {
	count := flag.Int("count", 100, "number of letters to create")
	seedValue := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil || pg.PoolHandle() == nil {
		logger.Fatal("postgres unavailable", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	logger.Info("generating letters", zap.Int("count", *count))
	created, err := seed.Populate(ctx, repository.NewLetterRepository(pg.PoolHandle()), seed.NewGenerator(*seedValue, time.Now()), *count, logger)
	if err != nil {
		logger.Fatal("populate failed", zap.Int("created", created), zap.Error(err))
	}
	logger.Info("letters created", zap.Int("created", created))
}
