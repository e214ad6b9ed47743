package product

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(dssync.MutexWrap(datastore.NewMapDatastore()))
}

func TestNewStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewStore should panic with nil datastore")
		}
	}()
	NewStore(nil)
}

func TestStore_UpsertAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	rec := Record{
		ID:           "2142",
		Name:         "Starter Kit",
		SKU:          "SK-01",
		Price:        49.99,
		GrossRevenue: 1000,
		TotalOrders:  10,
		Active:       true,
	}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "2142")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Starter Kit" || got.GrossRevenue != 1000 {
		t.Errorf("Get = %+v, want the upserted record", got)
	}
	if got.LastUpdated.IsZero() {
		t.Error("Upsert should stamp LastUpdated")
	}
}

func TestStore_UpsertReplacesWholesale(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, Record{ID: "1", Name: "Old", GrossRevenue: 500, Active: true}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	// The replacement omits GrossRevenue; it must not survive the upsert.
	if err := store.Upsert(ctx, Record{ID: "1", Name: "New", Active: true}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "New" || got.GrossRevenue != 0 {
		t.Errorf("Get = %+v, want fields replaced wholesale", got)
	}
}

func TestStore_UpsertRequiresID(t *testing.T) {
	store := setupStore(t)
	if err := store.Upsert(context.Background(), Record{}); err == nil {
		t.Error("Upsert should reject an empty product ID")
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := setupStore(t)
	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestStore_ListActiveSortedByRevenue(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	records := []Record{
		{ID: "low", GrossRevenue: 100, Active: true},
		{ID: "high", GrossRevenue: 900, Active: true},
		{ID: "mid", GrossRevenue: 500, Active: true},
		{ID: "inactive", GrossRevenue: 9999, Active: false},
	}
	for _, rec := range records {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List returned %d records, want 3 (inactive excluded)", len(got))
	}
	for i, want := range []string{"high", "mid", "low"} {
		if got[i].ID != want {
			t.Errorf("List[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
}

func TestStore_Find(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := store.Upsert(ctx, Record{ID: id, Active: true}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := store.Find(ctx, []string{"3", "missing", "1"})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Find returned %d records, want 2", len(got))
	}
	if got[0].ID != "3" || got[1].ID != "1" {
		t.Errorf("Find order = [%s, %s], want requested order with missing skipped", got[0].ID, got[1].ID)
	}
}

func TestStore_Deactivate(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	rec := Record{ID: "1", Active: true, LastUpdated: time.Now().Add(-time.Hour)}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Deactivate(ctx, "1"); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	got, err := store.Get(ctx, "1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Active {
		t.Error("record should be inactive")
	}

	listed, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 0 {
		t.Errorf("List returned %d records, want 0 after deactivation", len(listed))
	}
}
