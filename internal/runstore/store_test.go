package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	store := NewRedisStore(client, time.Hour)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return store, mr
}

func sampleRun(id string) *Run {
	return &Run{
		ID:        id,
		Profile:   "webinar-attended",
		Source:    "upload:report.csv",
		Status:    StatusSucceeded,
		Rows:      42,
		Report:    json.RawMessage(`{"run_id":"` + id + `"}`),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func testStoreRoundTrip(t *testing.T, store Store) {
	ctx := context.Background()

	run := sampleRun("run-1")
	artifacts := &Artifacts{
		Dataset:  []byte("Webinar Date,Category\n01/06/2025,ACCA\n"),
		Payloads: []byte(`{"users":[],"events":[]}`),
	}
	if err := store.SaveRun(ctx, run, artifacts); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Profile != run.Profile || got.Status != run.Status || got.Rows != run.Rows {
		t.Errorf("GetRun = %+v", got)
	}

	dataset, err := store.GetDataset(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if string(dataset) != string(artifacts.Dataset) {
		t.Errorf("dataset = %q", dataset)
	}

	payloads, err := store.GetPayloads(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetPayloads: %v", err)
	}
	if string(payloads) != string(artifacts.Payloads) {
		t.Errorf("payloads = %q", payloads)
	}

	if _, err := store.GetRun(ctx, "missing"); err != ErrRunNotFound {
		t.Errorf("GetRun(missing) = %v, want ErrRunNotFound", err)
	}
}

func testStoreListOrder(t *testing.T, store Store) {
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := store.SaveRun(ctx, sampleRun(fmt.Sprintf("run-%d", i)), nil); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if runs[0].ID != "run-3" || runs[1].ID != "run-2" {
		t.Errorf("order = %s, %s, want newest first", runs[0].ID, runs[1].ID)
	}
}

func testStoreFailedRunHasNoDataset(t *testing.T, store Store) {
	ctx := context.Background()

	run := sampleRun("run-failed")
	run.Status = StatusFailed
	run.Error = "gate A schema mismatch: missing columns: Phone"
	if err := store.SaveRun(ctx, run, nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	if _, err := store.GetDataset(ctx, "run-failed"); err != ErrNoDataset {
		t.Errorf("GetDataset = %v, want ErrNoDataset", err)
	}
}

func testStoreProcessedKeys(t *testing.T, store Store) {
	ctx := context.Background()

	ok, err := store.IsProcessed(ctx, "exports/report.csv")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if ok {
		t.Error("fresh key already processed")
	}

	if err := store.MarkProcessed(ctx, "exports/report.csv"); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	ok, err = store.IsProcessed(ctx, "exports/report.csv")
	if err != nil {
		t.Fatalf("IsProcessed: %v", err)
	}
	if !ok {
		t.Error("marked key not processed")
	}
}

func TestMemoryStore(t *testing.T) {
	t.Run("round trip", func(t *testing.T) { testStoreRoundTrip(t, NewMemoryStore()) })
	t.Run("list order", func(t *testing.T) { testStoreListOrder(t, NewMemoryStore()) })
	t.Run("failed run", func(t *testing.T) { testStoreFailedRunHasNoDataset(t, NewMemoryStore()) })
	t.Run("processed keys", func(t *testing.T) { testStoreProcessedKeys(t, NewMemoryStore()) })
}

func TestRedisStore(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		store, _ := setupRedisStore(t)
		testStoreRoundTrip(t, store)
	})
	t.Run("list order", func(t *testing.T) {
		store, _ := setupRedisStore(t)
		testStoreListOrder(t, store)
	})
	t.Run("failed run", func(t *testing.T) {
		store, _ := setupRedisStore(t)
		testStoreFailedRunHasNoDataset(t, store)
	})
	t.Run("processed keys", func(t *testing.T) {
		store, _ := setupRedisStore(t)
		testStoreProcessedKeys(t, store)
	})
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	if err := store.SaveRun(ctx, sampleRun("run-ttl"), nil); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := store.GetRun(ctx, "run-ttl"); err != ErrRunNotFound {
		t.Errorf("GetRun after TTL = %v, want ErrRunNotFound", err)
	}

	// The index still holds the id; listing skips the expired run.
	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("runs after TTL = %d, want 0", len(runs))
	}
}

func TestMemoryStoreCap(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < memoryStoreCap+10; i++ {
		if err := store.SaveRun(ctx, sampleRun(fmt.Sprintf("run-%d", i)), nil); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != memoryStoreCap {
		t.Errorf("stored runs = %d, want cap %d", len(runs), memoryStoreCap)
	}
	if _, err := store.GetRun(ctx, "run-0"); err != ErrRunNotFound {
		t.Errorf("oldest run survived the cap: %v", err)
	}
}
