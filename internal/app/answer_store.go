package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"team-quiz-service/internal/domain"
	"team-quiz-service/internal/grading"
	"team-quiz-service/internal/metrics"
)

// SnapshotRepository persists the full answer table. LoadSnapshot returns an empty
// snapshot and no error when nothing has been stored yet.
type SnapshotRepository interface {
	LoadSnapshot(ctx context.Context) (domain.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error
}

// AnswerStore holds one AnswerRecord per (question, team, subquestion) triple and
// writes the whole table through to the repository on every mutation.
type AnswerStore struct {
	mu      sync.RWMutex
	catalog domain.Catalog
	teams   map[string]struct{}
	table   domain.Snapshot
	repo    SnapshotRepository
	metrics *metrics.Metrics
}

// NewAnswerStore loads the persisted snapshot and back-fills an empty record for
// every triple that is missing from it.
func NewAnswerStore(ctx context.Context, catalog domain.Catalog, teams []domain.Team, repo SnapshotRepository, m *metrics.Metrics) (*AnswerStore, error) {
	table, err := repo.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if table == nil {
		table = domain.Snapshot{}
	}

	s := &AnswerStore{
		catalog: catalog,
		teams:   make(map[string]struct{}, len(teams)),
		table:   table,
		repo:    repo,
		metrics: m,
	}
	for _, t := range teams {
		s.teams[t.Name] = struct{}{}
	}

	for _, q := range catalog.Questions {
		byTeam, ok := table[q.ID]
		if !ok {
			byTeam = make(map[string]map[int]domain.AnswerRecord, len(teams))
			table[q.ID] = byTeam
		}
		for _, t := range teams {
			subs, ok := byTeam[t.Name]
			if !ok {
				subs = make(map[int]domain.AnswerRecord, len(q.Subquestions))
				byTeam[t.Name] = subs
			}
			for idx := range q.Subquestions {
				if _, ok := subs[idx]; !ok {
					subs[idx] = domain.AnswerRecord{}
				}
			}
		}
	}
	return s, nil
}

// Get returns the record for one triple.
func (s *AnswerStore) Get(questionID int, team string, idx int) (domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkLocked(questionID, team, idx); err != nil {
		return domain.AnswerRecord{}, err
	}
	return copyRecord(s.table[questionID][team][idx]), nil
}

// ForTeam returns a team's records for one question, ordered by subquestion index.
func (s *AnswerStore) ForTeam(questionID int, team string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkLocked(questionID, team, 0); err != nil {
		return nil, err
	}
	return s.forTeamLocked(questionID, team), nil
}

// ForQuestion returns every configured team's records for one question.
func (s *AnswerStore) ForQuestion(questionID int) (map[string][]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.catalog.Question(questionID); !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrUnknownQuestion, questionID)
	}
	out := make(map[string][]domain.AnswerRecord, len(s.teams))
	for team := range s.teams {
		out[team] = s.forTeamLocked(questionID, team)
	}
	return out, nil
}

// Snapshot returns a deep copy of the whole table.
func (s *AnswerStore) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Clone()
}

// SetAnswer stores a graded value for one triple.
func (s *AnswerStore) SetAnswer(ctx context.Context, questionID int, team string, idx int, value string, rating int) error {
	return s.SetAnswers(ctx, questionID, team, map[int]grading.Result{idx: {Value: value, Rating: rating}})
}

// SetAnswers stores several graded subanswers of one question as a single
// mutation: either all of them are persisted or none is.
func (s *AnswerStore) SetAnswers(ctx context.Context, questionID int, team string, results map[int]grading.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx := range results {
		if err := s.checkLocked(questionID, team, idx); err != nil {
			return err
		}
	}

	subs := s.table[questionID][team]
	previous := make(map[int]domain.AnswerRecord, len(results))
	for idx, res := range results {
		previous[idx] = subs[idx]
		value := res.Value
		subs[idx] = domain.AnswerRecord{Answer: &value, Rating: res.Rating}
	}

	if err := s.persistLocked(ctx); err != nil {
		for idx, rec := range previous {
			subs[idx] = rec
		}
		return err
	}
	return nil
}

// SetRating overrides the rating of one triple and leaves its value untouched.
func (s *AnswerStore) SetRating(ctx context.Context, questionID int, team string, idx int, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(questionID, team, idx); err != nil {
		return err
	}
	subs := s.table[questionID][team]
	previous := subs[idx]
	rec := previous
	rec.Rating = rating
	subs[idx] = rec

	if err := s.persistLocked(ctx); err != nil {
		subs[idx] = previous
		return err
	}
	return nil
}

func (s *AnswerStore) persistLocked(ctx context.Context) error {
	start := time.Now()
	err := s.repo.SaveSnapshot(ctx, s.table)
	s.metrics.ObserveSnapshotWrite(start, err)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *AnswerStore) checkLocked(questionID int, team string, idx int) error {
	q, ok := s.catalog.Question(questionID)
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrUnknownQuestion, questionID)
	}
	if _, ok := s.teams[team]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownTeam, team)
	}
	if idx < 0 || idx >= len(q.Subquestions) {
		return fmt.Errorf("%w: question %d has no subquestion %d", domain.ErrUnknownSubquestion, questionID, idx)
	}
	return nil
}

func (s *AnswerStore) forTeamLocked(questionID int, team string) []domain.AnswerRecord {
	q, _ := s.catalog.Question(questionID)
	subs := s.table[questionID][team]
	out := make([]domain.AnswerRecord, len(q.Subquestions))
	for idx := range q.Subquestions {
		out[idx] = copyRecord(subs[idx])
	}
	return out
}

func copyRecord(rec domain.AnswerRecord) domain.AnswerRecord {
	if rec.Answer != nil {
		v := *rec.Answer
		rec.Answer = &v
	}
	return rec
}
