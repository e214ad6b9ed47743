package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client, skipping when no local
// Redis is reachable.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   14, // separate DB for queue tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewQueue_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewQueue should panic with nil redis client")
		}
	}()
	NewQueue(nil)
}

func TestQueue_EnqueueAndClaim(t *testing.T) {
	q := NewQueue(setupTestRedis(t))
	ctx := context.Background()

	job, err := q.Enqueue(ctx, SyncRequest{ProductIDs: []string{"2142"}})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("Enqueue should assign a job ID")
	}
	if job.Status != StatusWaiting {
		t.Errorf("Status = %q, want %q", job.Status, StatusWaiting)
	}

	claimed, err := q.Claim(ctx, CategorySync, time.Second)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("Claim returned no job")
	}
	if claimed.ID != job.ID {
		t.Errorf("claimed ID = %q, want %q", claimed.ID, job.ID)
	}
	if claimed.Status != StatusActive {
		t.Errorf("claimed status = %q, want %q", claimed.Status, StatusActive)
	}
	if claimed.StartedAt.IsZero() {
		t.Error("Claim should stamp StartedAt")
	}

	req, ok := claimed.Request.(SyncRequest)
	if !ok {
		t.Fatalf("request type = %T, want SyncRequest", claimed.Request)
	}
	if len(req.ProductIDs) != 1 || req.ProductIDs[0] != "2142" {
		t.Errorf("ProductIDs = %v, want [2142]", req.ProductIDs)
	}
}

func TestQueue_ClaimTimeout(t *testing.T) {
	q := NewQueue(setupTestRedis(t))

	start := time.Now()
	job, err := q.Claim(context.Background(), CategoryCleanup, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if job != nil {
		t.Errorf("Claim = %+v, want nil on timeout", job)
	}
	if time.Since(start) < 100*time.Millisecond {
		t.Error("Claim should block for the timeout")
	}
}

func TestQueue_ClaimIsExclusive(t *testing.T) {
	q := NewQueue(setupTestRedis(t))
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, AnalyticsRequest{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	first, err := q.Claim(ctx, CategoryAnalytics, time.Second)
	if err != nil || first == nil {
		t.Fatalf("first Claim = (%v, %v), want a job", first, err)
	}
	second, err := q.Claim(ctx, CategoryAnalytics, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("second Claim failed: %v", err)
	}
	if second != nil {
		t.Error("one job must not be claimable twice")
	}
}

func TestQueue_ProgressIsMonotonic(t *testing.T) {
	q := NewQueue(setupTestRedis(t))
	ctx := context.Background()

	job, err := q.Enqueue(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := q.UpdateProgress(ctx, job.ID, 60); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	// Lower and out-of-range updates are ignored or clamped.
	if err := q.UpdateProgress(ctx, job.ID, 30); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	got, err := q.Job(ctx, job.ID)
	if err != nil {
		t.Fatalf("Job failed: %v", err)
	}
	if got.Progress != 60 {
		t.Errorf("Progress = %d, want 60 (no backwards movement)", got.Progress)
	}

	if err := q.UpdateProgress(ctx, job.ID, 150); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	got, _ = q.Job(ctx, job.ID)
	if got.Progress != 100 {
		t.Errorf("Progress = %d, want clamped to 100", got.Progress)
	}
}

func TestQueue_CompleteLifecycle(t *testing.T) {
	q := NewQueue(setupTestRedis(t))
	ctx := context.Background()

	job, err := q.Enqueue(ctx, CleanupRequest{Scope: ScopeExpired})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := q.Claim(ctx, CategoryCleanup, time.Second); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	result := map[string]int{"expiredRemoved": 4}
	if err := q.Complete(ctx, job.ID, result); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	got, err := q.Job(ctx, job.ID)
	if err != nil {
		t.Fatalf("Job failed: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.Progress != 100 {
		t.Errorf("Progress = %d, want 100", got.Progress)
	}
	if got.CompletedAt.IsZero() {
		t.Error("Complete should stamp CompletedAt")
	}
	if string(got.Result) == "" {
		t.Error("Complete should store the result")
	}

	stats, err := q.QueueStats(ctx)
	if err != nil {
		t.Fatalf("QueueStats failed: %v", err)
	}
	if stats.Active[CategoryCleanup] != 0 {
		t.Error("completed job should leave the active set")
	}
}

func TestQueue_Fail(t *testing.T) {
	q := NewQueue(setupTestRedis(t))
	ctx := context.Background()

	job, err := q.Enqueue(ctx, SyncRequest{})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := q.Claim(ctx, CategorySync, time.Second); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := q.Fail(ctx, job.ID, "upstream down"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	got, err := q.Job(ctx, job.ID)
	if err != nil {
		t.Fatalf("Job failed: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, StatusFailed)
	}
	if got.Error != "upstream down" {
		t.Errorf("Error = %q, want the failure reason", got.Error)
	}
}

func TestQueue_JobNotFound(t *testing.T) {
	q := NewQueue(setupTestRedis(t))
	if _, err := q.Job(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Job = %v, want ErrJobNotFound", err)
	}
}

func TestQueue_Stats(t *testing.T) {
	q := NewQueue(setupTestRedis(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ctx, SyncRequest{}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}
	if _, err := q.Enqueue(ctx, AnalyticsRequest{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := q.Claim(ctx, CategorySync, time.Second); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	stats, err := q.QueueStats(ctx)
	if err != nil {
		t.Fatalf("QueueStats failed: %v", err)
	}
	if stats.Waiting[CategorySync] != 2 {
		t.Errorf("sync waiting = %d, want 2", stats.Waiting[CategorySync])
	}
	if stats.Active[CategorySync] != 1 {
		t.Errorf("sync active = %d, want 1", stats.Active[CategorySync])
	}
	if stats.Waiting[CategoryAnalytics] != 1 {
		t.Errorf("analytics waiting = %d, want 1", stats.Waiting[CategoryAnalytics])
	}
}

func TestQueue_WaitingGaugeFollowsStatsPoll(t *testing.T) {
	q := NewQueue(setupTestRedis(t))
	ctx := context.Background()

	gauge := JobsWaiting.WithLabelValues(string(CategorySync))
	before := promtestutil.ToFloat64(gauge)

	for i := 0; i < 2; i++ {
		if _, err := q.Enqueue(ctx, SyncRequest{}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	// Enqueue and Claim leave the gauge alone; only the stats poll moves
	// it, from the actual list depth.
	if got := promtestutil.ToFloat64(gauge); got != before {
		t.Errorf("gauge = %v after enqueue, want unchanged %v", got, before)
	}

	stats, err := q.QueueStats(ctx)
	if err != nil {
		t.Fatalf("QueueStats failed: %v", err)
	}
	if got := promtestutil.ToFloat64(gauge); got != float64(stats.Waiting[CategorySync]) {
		t.Errorf("gauge = %v, want %v from the stats poll", got, stats.Waiting[CategorySync])
	}
}

func TestScheduler_EnqueuesImmediately(t *testing.T) {
	q := NewQueue(setupTestRedis(t))
	ctx := context.Background()

	sched := NewScheduler(q, time.Hour)
	sched.Start(ctx)
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := q.QueueStats(ctx)
		if err != nil {
			t.Fatalf("QueueStats failed: %v", err)
		}
		if stats.Waiting[CategorySync] == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("scheduler should enqueue a sync job on start")
}

func TestNewScheduler_Panics(t *testing.T) {
	q := NewQueue(setupTestRedis(t))
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewScheduler should panic on a non-positive interval")
		}
	}()
	NewScheduler(q, 0)
}
