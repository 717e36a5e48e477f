package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rtm-python/est/internal/app"
	"github.com/rtm-python/est/internal/config"
	"github.com/rtm-python/est/internal/extension"
	"github.com/rtm-python/est/internal/infra/bunstore"
	"github.com/rtm-python/est/internal/infra/memory"
	"github.com/rtm-python/est/internal/infra/migrations"
	"github.com/rtm-python/est/internal/infra/postgres"
	"github.com/rtm-python/est/internal/infra/redis"
	"github.com/rtm-python/est/internal/logging"
	"github.com/rtm-python/est/internal/metrics"
	"github.com/rtm-python/est/internal/rating"
	"go.uber.org/zap"
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
}

// buildService assembles the service from config. The returned cleanup
// releases every connection that was opened.
func buildService(ctx context.Context, cfg config.Config, log *zap.Logger, reg prometheus.Registerer) (*app.TestingService, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*app.TestingService, func(), error) {
		cleanup()
		return nil, nil, err
	}

	var (
		store  app.Store
		source rating.Source
		loader app.TestRepository
	)
	if cfg.Database.URL == "" {
		log.Warn("database url not configured, using in-memory store")
		mem := memory.NewStore()
		store, source, loader = mem, mem, mem.Tests()
	} else {
		db, err := bunstore.Open(cfg.Driver(), cfg.Database.URL, log.Named("sql"))
		if err != nil {
			return fail(err)
		}
		cleanups = append(cleanups, func() { _ = db.Close() })
		if _, err := migrations.Apply(ctx, db); err != nil {
			return fail(fmt.Errorf("migrate: %w", err))
		}
		bs := bunstore.NewStore(db)
		store, source, loader = bs, bs, bs.Tests()
	}

	if cfg.Driver() == "postgres" && cfg.Database.URL != "" {
		primary, err := pgxpool.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		cleanups = append(cleanups, primary.Close)
		loader = postgres.NewTestLoader(primary)

		replica := primary
		if cfg.ReplicaURL() != cfg.Database.URL {
			if replica, err = pgxpool.Connect(ctx, cfg.ReplicaURL()); err != nil {
				return fail(fmt.Errorf("connect replica: %w", err))
			}
			cleanups = append(cleanups, replica.Close)
		}
		source = postgres.NewActivityReader(replica)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	ratingTTL := config.TTLDuration(cfg.Rating.CacheTTL, 5*time.Second)
	var (
		tests   app.TestRepository = memory.NewTestCache(loader, catalogTTL)
		ratings app.Ratings        = rating.NewEngine(source)
	)
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cleanups = append(cleanups, func() { _ = client.Close() })
		tests = redis.NewTestRepository(client, loader, config.TTLDuration(cfg.Redis.TTL, catalogTTL))
		ratings = redis.NewRatingCache(client, ratings, ratingTTL)
	}

	service := app.NewTestingService(store, tests, extension.Default(), ratings, app.Options{
		Log:          log.Named("play"),
		Metrics:      metrics.NewRecorder(reg),
		PausePenalty: config.TTLDuration(cfg.Session.PausePenalty, 0),
		BindBatch:    cfg.Session.BindBatch,
	})
	return service, cleanup, nil
}
