package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/priceform/backend-pricing/internal/config"
	"github.com/priceform/backend-pricing/internal/lock"
	"github.com/priceform/backend-pricing/internal/obs"
	"github.com/priceform/backend-pricing/internal/scan"
	"github.com/priceform/backend-pricing/internal/template"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "pricing"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	scanner := &scan.Scanner{
		Store:  template.NewStore(pool),
		Cache:  template.NewCache(redisClient, cfg.SnapshotTTL),
		Locker: lock.Locker{R: redisClient},
		Log:    logger,
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	asynqRedis := asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Username: redisOpts.Username,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(scan.TypeCollisionScan, scanner.HandleCollisionScan)

	server := asynq.NewServer(asynqRedis, asynq.Config{
		Concurrency: 2,
		Logger:      asynqZerolog{logger},
	})
	scheduler := asynq.NewScheduler(asynqRedis, &asynq.SchedulerOpts{
		Logger: asynqZerolog{logger},
	})
	interval := "@every " + cfg.ScanInterval.String()
	if _, err := scheduler.Register(interval, scan.NewCollisionScanTask()); err != nil {
		logger.Fatal().Err(err).Msg("register collision scan schedule")
	}

	errs := make(chan error, 2)
	go func() { errs <- server.Run(mux) }()
	go func() { errs <- scheduler.Run() }()

	logger.Info().Str("interval", cfg.ScanInterval.String()).Msg("worker starting")
	select {
	case <-ctx.Done():
	case err := <-errs:
		if err != nil {
			logger.Error().Err(err).Msg("worker stopped with error")
		}
	}
	scheduler.Shutdown()
	server.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

// asynqZerolog adapts zerolog to asynq's logger interface.
type asynqZerolog struct {
	l zerolog.Logger
}

func (a asynqZerolog) Debug(args ...interface{}) { a.l.Debug().Msgf("%v", args) }
func (a asynqZerolog) Info(args ...interface{})  { a.l.Info().Msgf("%v", args) }
func (a asynqZerolog) Warn(args ...interface{})  { a.l.Warn().Msgf("%v", args) }
func (a asynqZerolog) Error(args ...interface{}) { a.l.Error().Msgf("%v", args) }
func (a asynqZerolog) Fatal(args ...interface{}) { a.l.Fatal().Msgf("%v", args) }

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
