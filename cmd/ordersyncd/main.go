package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	levelds "github.com/ipfs/go-ds-leveldb"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/merchstats/ordersync/pkg/cache"
	"github.com/merchstats/ordersync/pkg/logging"
	"github.com/merchstats/ordersync/pkg/product"
	"github.com/merchstats/ordersync/pkg/queue"
	"github.com/merchstats/ordersync/pkg/upstream"
	"github.com/merchstats/ordersync/pkg/worker"
)

// volatilePingInterval is how often the daemon probes the volatile tier
// so a recovered Redis flips the cache back out of degraded mode.
const volatilePingInterval = 15 * time.Second

func main() {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: getEnv("LOG_PRETTY", "") == "true",
	})

	// Configuration from environment
	port := getEnv("PORT", "8080")
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	dataDir := getEnv("DATA_DIR", "./data")

	apiCfg := upstream.DefaultConfig(
		getEnv("API_URL", ""),
		getEnv("API_USERNAME", ""),
		getEnv("API_PASSWORD", ""),
	)
	apiCfg.TargetProducts = splitList(getEnv("TARGET_PRODUCTS", ""))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis backs both the volatile cache tier and the job queue.
	redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("addr", redisURL).Msg("Connected to Redis")

	ds, err := levelds.NewDatastore(dataDir, nil)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", dataDir).Msg("Failed to open datastore")
	}
	defer ds.Close()

	apiClient, err := upstream.New(apiCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid upstream configuration")
	}

	volatileStore := cache.NewVolatileStore(redisClient)
	persistentStore := cache.NewPersistentStore(ds)
	coord, err := cache.NewCoordinator(
		volatileStore,
		persistentStore,
		worker.NewUpstreamSource(apiClient),
		cache.DefaultTTLConfig(),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build cache coordinator")
	}

	products := product.NewStore(ds)
	jobs := queue.NewQueue(redisClient)

	pool := worker.NewPool(jobs, worker.NewHandlers(coord, apiClient, products))
	pool.Start(ctx)
	defer pool.Stop()

	if interval := getEnv("SYNC_INTERVAL", ""); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			logger.Fatal().Err(err).Str("value", interval).Msg("Invalid SYNC_INTERVAL")
		}
		sched := queue.NewScheduler(jobs, d)
		sched.Start(ctx)
		defer sched.Stop()
	}

	go pingLoop(ctx, volatileStore)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newServer(coord, products, jobs, volatileStore).routes(),
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	shutdown(logger, srv)
}

func shutdown(logger zerolog.Logger, srv *http.Server) {
	logger.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
}

// pingLoop keeps the volatile tier's connection state fresh.
func pingLoop(ctx context.Context, store *cache.VolatileStore) {
	ticker := time.NewTicker(volatilePingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = store.Ping(ctx)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
