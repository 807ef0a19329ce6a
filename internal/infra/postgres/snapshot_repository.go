package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"team-quiz-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// SnapshotRepository keeps the answer table as a single JSONB row that is
// upserted on every save.
type SnapshotRepository struct {
	pool *pgxpool.Pool
	name string
}

func NewSnapshotRepository(pool *pgxpool.Pool, name string) *SnapshotRepository {
	return &SnapshotRepository{pool: pool, name: name}
}

func (r *SnapshotRepository) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM answer_snapshots WHERE name=$1`, r.name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap := domain.Snapshot{}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO answer_snapshots (name, data, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		r.name, string(data))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
