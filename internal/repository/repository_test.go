package repository

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/martout2002/JBbot/internal/database"
)

// testPool connects to TEST_DATABASE_URL and starts from empty tables.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE subscribers, checkpoint_times`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func TestSubscriber_AddTwiceListsOnce(t *testing.T) {
	repo := NewSubscriberRepository(testPool(t))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := repo.Add(ctx, 111); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	ids, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != 111 {
		t.Errorf("List() = %v, want [111]", ids)
	}
}

func TestSubscriber_RemoveNonMember(t *testing.T) {
	repo := NewSubscriberRepository(testPool(t))
	ctx := context.Background()

	if err := repo.Add(ctx, 222); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := repo.Remove(ctx, 999); err != nil {
		t.Fatalf("Remove() error = %v, want nil for non-member", err)
	}

	ids, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != 222 {
		t.Errorf("List() = %v, want [222]", ids)
	}
}

func TestSubscriber_RemoveAndCount(t *testing.T) {
	repo := NewSubscriberRepository(testPool(t))
	ctx := context.Background()

	repo.Add(ctx, 1)
	repo.Add(ctx, 2)
	if err := repo.Remove(ctx, 1); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestCheckpoint_UpsertInsertsThenUpdates(t *testing.T) {
	repo := NewCheckpointRepository(testPool(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, "Tuas", "12 mins to JB"); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if err := repo.Upsert(ctx, "Tuas", "15 mins to JB"); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	states, err := repo.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("LoadAll() returned %d rows, want 1", len(states))
	}
	if states["Tuas"] != "15 mins to JB" {
		t.Errorf("Tuas = %q, want %q", states["Tuas"], "15 mins to JB")
	}
}

func TestCheckpoint_GetMissing(t *testing.T) {
	repo := NewCheckpointRepository(testPool(t))

	_, found, err := repo.Get(context.Background(), "Woodlands")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true for never-observed checkpoint")
	}
}
