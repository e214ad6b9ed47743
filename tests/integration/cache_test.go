package integration

import (
	"context"
	"testing"
	"time"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/merchstats/ordersync/internal/testutil"
	"github.com/merchstats/ordersync/pkg/cache"
	"github.com/merchstats/ordersync/pkg/product"
	"github.com/merchstats/ordersync/pkg/queue"
	"github.com/merchstats/ordersync/pkg/upstream"
	"github.com/merchstats/ordersync/pkg/worker"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// setupStack wires the full cache stack against a containerized Redis and
// the mock transaction API.
func setupStack(t *testing.T, redisClient *redis.Client, mock *testutil.MockTransact, targets ...string) (*cache.Coordinator, *cache.VolatileStore, *upstream.Client) {
	t.Helper()

	cfg := upstream.DefaultConfig(mock.URL(), "user", "pass")
	cfg.TargetProducts = targets
	apiClient, err := upstream.New(cfg)
	if err != nil {
		t.Fatalf("upstream.New failed: %v", err)
	}

	volatileStore := cache.NewVolatileStore(redisClient)
	coord, err := cache.NewCoordinator(
		volatileStore,
		cache.NewPersistentStore(dssync.MutexWrap(datastore.NewMapDatastore())),
		worker.NewUpstreamSource(apiClient),
		cache.DefaultTTLConfig(),
	)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	return coord, volatileStore, apiClient
}

func TestTieredReads(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockTransact()
	defer mock.Close()
	mock.SetCatalog(map[string]map[string]string{
		"2142": testutil.CatalogProduct("Starter Kit", "SK-01", "7", "49.99", "12.50"),
	})

	coord, _, _ := setupStack(t, redisClient, mock, "2142")
	ctx := context.Background()

	// Cold read: both tiers miss, one upstream call.
	if _, err := coord.Get(ctx, cache.TypeCatalog, ""); err != nil {
		t.Fatalf("cold Get failed: %v", err)
	}
	if got := mock.GetPathCount("/product_index"); got != 1 {
		t.Fatalf("catalog requests after cold read = %d, want 1", got)
	}

	// Warm read: served by the volatile tier, no further upstream calls.
	if _, err := coord.Get(ctx, cache.TypeCatalog, ""); err != nil {
		t.Fatalf("warm Get failed: %v", err)
	}
	if got := mock.GetPathCount("/product_index"); got != 1 {
		t.Errorf("catalog requests after warm read = %d, want 1", got)
	}

	// Drop the volatile copy: the persistent tier answers and backfills.
	if err := redisClient.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("FlushDB failed: %v", err)
	}
	if _, err := coord.Get(ctx, cache.TypeCatalog, ""); err != nil {
		t.Fatalf("Get after flush failed: %v", err)
	}
	if got := mock.GetPathCount("/product_index"); got != 1 {
		t.Errorf("catalog requests after persistent hit = %d, want 1", got)
	}
	if n, _ := redisClient.Exists(ctx, cache.BuildKey(cache.TypeCatalog, "")).Result(); n != 1 {
		t.Error("persistent hit should backfill the volatile tier")
	}
}

func TestInvalidationForcesRefetch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockTransact()
	defer mock.Close()
	mock.SetOrderFind([]string{"100", "101"})

	coord, _, _ := setupStack(t, redisClient, mock)
	ctx := context.Background()

	if _, err := coord.Get(ctx, cache.TypeOrderRevenue, "2142"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := coord.Invalidate(ctx, cache.Pattern(cache.TypeOrderRevenue)); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	// Both tiers must observe a true miss.
	if _, err := coord.Get(ctx, cache.TypeOrderRevenue, "2142"); err != nil {
		t.Fatalf("Get after invalidate failed: %v", err)
	}
	if got := mock.GetPathCount("/order_find"); got != 2 {
		t.Errorf("order_find requests = %d, want 2 after invalidation", got)
	}
}

func TestVolatileOutageDegrades(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockTransact()
	defer mock.Close()
	mock.SetCatalog(map[string]map[string]string{
		"2142": testutil.CatalogProduct("Starter Kit", "SK-01", "7", "49.99", "12.50"),
	})

	coord, volatileStore, _ := setupStack(t, redisClient, mock, "2142")
	ctx := context.Background()

	if _, err := coord.Get(ctx, cache.TypeCatalog, ""); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Simulate a Redis outage: reads still succeed via the persistent tier.
	volatileStore.SetConnected(false)
	if _, err := coord.Get(ctx, cache.TypeCatalog, ""); err != nil {
		t.Fatalf("Get during outage failed: %v", err)
	}
	if got := mock.GetPathCount("/product_index"); got != 1 {
		t.Errorf("catalog requests during outage = %d, want 1 (persistent hit)", got)
	}

	// Recovery via ping restores the fast path.
	if err := volatileStore.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if !volatileStore.Connected() {
		t.Error("ping should restore the connection state")
	}
}

func TestJobLifecycleThroughPool(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockTransact()
	defer mock.Close()
	mock.SetCatalog(map[string]map[string]string{
		"2142": testutil.CatalogProduct("Starter Kit", "SK-01", "7", "49.99", "12.50"),
	})
	mock.SetOrderFind([]string{"100", "101"})
	mock.SetOrderView(25.50, 2)

	coord, _, apiClient := setupStack(t, redisClient, mock, "2142")
	products := product.NewStore(dssync.MutexWrap(datastore.NewMapDatastore()))
	jobs := queue.NewQueue(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := worker.NewPool(jobs, worker.NewHandlers(coord, apiClient, products))
	pool.Start(ctx)
	defer pool.Stop()

	job, err := jobs.Enqueue(ctx, queue.SyncRequest{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		got, err := jobs.Job(ctx, job.ID)
		if err != nil {
			t.Fatalf("Job failed: %v", err)
		}
		if got.Status == queue.StatusCompleted {
			if got.Progress != 100 {
				t.Errorf("Progress = %d, want 100", got.Progress)
			}
			rec, err := products.Get(ctx, "2142")
			if err != nil {
				t.Fatalf("product record missing after sync: %v", err)
			}
			if rec.GrossRevenue != 51.00 {
				t.Errorf("GrossRevenue = %v, want 51.00", rec.GrossRevenue)
			}
			return
		}
		if got.Status == queue.StatusFailed {
			t.Fatalf("job failed: %s", got.Error)
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatal("sync job did not complete in time")
}
