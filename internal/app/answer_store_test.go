package app

import (
	"context"
	"errors"
	"testing"

	"team-quiz-service/internal/domain"
	"team-quiz-service/internal/grading"
	"team-quiz-service/internal/infra/memory"
)

func TestNewAnswerStoreBackfillsMissingTriples(t *testing.T) {
	catalog := domain.Catalog{Questions: []domain.Question{
		{ID: 1, Type: domain.TypeText, Subquestions: []domain.Subquestion{{Answer: "a"}, {Answer: "b"}}},
		{ID: 2, Type: domain.TypeNumber, Subquestions: []domain.Subquestion{{Answer: "7"}}},
	}}
	teams := []domain.Team{{Name: "Red"}, {Name: "Blue"}}

	kept := "a"
	repo := memory.NewSeededSnapshotRepository(domain.Snapshot{
		1: {"Red": {0: {Answer: &kept, Rating: 1}}},
	})

	store, err := NewAnswerStore(context.Background(), catalog, teams, repo, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	snap := store.Snapshot()
	count := 0
	for _, q := range catalog.Questions {
		for _, team := range teams {
			for idx := range q.Subquestions {
				if _, ok := snap[q.ID][team.Name][idx]; !ok {
					t.Fatalf("missing record %d/%s/%d", q.ID, team.Name, idx)
				}
				count++
			}
		}
	}
	if count != 6 {
		t.Fatalf("expected 6 records, got %d", count)
	}

	rec, err := store.Get(1, "Red", 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Answer == nil || *rec.Answer != "a" || rec.Rating != 1 {
		t.Fatalf("expected persisted record to survive load, got %+v", rec)
	}
}

func TestAnswerStoreWritesThrough(t *testing.T) {
	ctx := context.Background()
	catalog := domain.Catalog{Questions: []domain.Question{
		{ID: 1, Type: domain.TypeText, Subquestions: []domain.Subquestion{{Answer: "a"}, {Answer: "b"}}},
	}}
	repo := memory.NewSnapshotRepository()
	store, err := NewAnswerStore(ctx, catalog, []domain.Team{{Name: "Red"}}, repo, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := store.SetAnswer(ctx, 1, "Red", 1, "b", 1); err != nil {
		t.Fatalf("set answer: %v", err)
	}
	if err := store.SetRating(ctx, 1, "Red", 1, 0); err != nil {
		t.Fatalf("set rating: %v", err)
	}
	if repo.Saves() != 2 {
		t.Fatalf("expected 2 snapshot writes, got %d", repo.Saves())
	}

	persisted, _ := repo.LoadSnapshot(ctx)
	rec := persisted[1]["Red"][1]
	if rec.Answer == nil || *rec.Answer != "b" || rec.Rating != 0 {
		t.Fatalf("unexpected persisted record: %+v", rec)
	}
}

func TestAnswerStoreRejectsUnknownKeys(t *testing.T) {
	ctx := context.Background()
	catalog := domain.Catalog{Questions: []domain.Question{
		{ID: 1, Type: domain.TypeText, Subquestions: []domain.Subquestion{{Answer: "a"}}},
	}}
	store, err := NewAnswerStore(ctx, catalog, []domain.Team{{Name: "Red"}}, memory.NewSnapshotRepository(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Get(2, "Red", 0); !errors.Is(err, domain.ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
	if _, err := store.Get(1, "Blue", 0); !errors.Is(err, domain.ErrUnknownTeam) {
		t.Fatalf("expected ErrUnknownTeam, got %v", err)
	}
	err = store.SetAnswers(ctx, 1, "Red", map[int]grading.Result{0: {Value: "a"}, 3: {Value: "x"}})
	if !errors.Is(err, domain.ErrUnknownSubquestion) {
		t.Fatalf("expected ErrUnknownSubquestion, got %v", err)
	}
	rec, _ := store.Get(1, "Red", 0)
	if rec.Answer != nil {
		t.Fatalf("rejected batch must not write valid indexes either")
	}
}
