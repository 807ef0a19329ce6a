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

// CatalogLoader loads the quiz catalog JSONB document from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
	name string
}

func NewCatalogLoader(pool *pgxpool.Pool, name string) *CatalogLoader {
	return &CatalogLoader{pool: pool, name: name}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quiz_catalog WHERE name=$1`, l.name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Catalog{}, fmt.Errorf("%w: catalog %q not found", domain.ErrInvalidCatalog, l.name)
	}
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	var c domain.Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Catalog{}, fmt.Errorf("unmarshal catalog: %w", err)
	}
	return c, nil
}

// StoreCatalog upserts c under the loader's catalog name.
func (l *CatalogLoader) StoreCatalog(ctx context.Context, c domain.Catalog) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO quiz_catalog (name, data) VALUES ($1, $2::jsonb)
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data`,
		l.name, string(data))
	if err != nil {
		return fmt.Errorf("store catalog: %w", err)
	}
	return nil
}
