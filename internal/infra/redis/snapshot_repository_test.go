package redis

import (
	"context"
	"testing"

	"team-quiz-service/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSnapshotRepositoryStoresHashPerQuestion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	repo := NewSnapshotRepository(newClient(mr), "")

	snap, err := repo.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(snap) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap)
	}

	answer := "3600"
	in := domain.Snapshot{
		1: {"Red": {0: {Answer: &answer, Rating: 2}}},
		2: {"Red": {0: {}}},
	}
	if err := repo.SaveSnapshot(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	fields, err := mr.HKeys(DefaultKey)
	if err != nil || len(fields) != 2 {
		t.Fatalf("expected 2 hash fields, got %v err=%v", fields, err)
	}

	out, err := repo.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rec := out[1]["Red"][0]
	if rec.Answer == nil || *rec.Answer != "3600" || rec.Rating != 2 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if out[2]["Red"][0].Answer != nil {
		t.Fatalf("expected unset answer to stay nil")
	}
}

func TestSnapshotRepositoryReplacesStaleFields(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	repo := NewSnapshotRepository(newClient(mr), "test:answers")

	if err := repo.SaveSnapshot(ctx, domain.Snapshot{1: {}, 9: {}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SaveSnapshot(ctx, domain.Snapshot{1: {}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if mr.HGet("test:answers", "9") != "" {
		t.Fatalf("expected stale question field to be removed")
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
