package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"team-quiz-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the hash holding the answer snapshot.
const DefaultKey = "quiz:answers"

// SnapshotRepository stores the answer table in a Redis hash, one field per
// question: HSET quiz:answers {questionID} {json team->subquestion->record}.
// A save replaces the whole hash inside MULTI/EXEC.
type SnapshotRepository struct {
	client *redis.Client
	key    string
}

func NewSnapshotRepository(client *redis.Client, key string) *SnapshotRepository {
	if key == "" {
		key = DefaultKey
	}
	return &SnapshotRepository{client: client, key: key}
}

func (r *SnapshotRepository) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.key, err)
	}
	snap := make(domain.Snapshot, len(fields))
	for field, raw := range fields {
		qid, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("snapshot field %q is not a question id", field)
		}
		var teams map[string]map[int]domain.AnswerRecord
		if err := json.Unmarshal([]byte(raw), &teams); err != nil {
			return nil, fmt.Errorf("decode question %d: %w", qid, err)
		}
		snap[qid] = teams
	}
	return snap, nil
}

func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	values := make(map[string]any, len(snap))
	for qid, teams := range snap {
		data, err := json.Marshal(teams)
		if err != nil {
			return fmt.Errorf("encode question %d: %w", qid, err)
		}
		values[strconv.Itoa(qid)] = data
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
