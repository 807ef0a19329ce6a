package cli

import (
	"context"
	"fmt"

	"team-quiz-service/internal/app"
	"team-quiz-service/internal/catalog"
	"team-quiz-service/internal/config"
	"team-quiz-service/internal/domain"
	"team-quiz-service/internal/infra/file"
	"team-quiz-service/internal/infra/memory"
	pgstore "team-quiz-service/internal/infra/postgres"
	redisstore "team-quiz-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// backends holds the optional external connections the config asks for.
type backends struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Storage.Backend == "postgres" || cfg.Quiz.Source == "postgres" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
	}
	if cfg.Storage.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			b.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.redis = client
	}
	return b, nil
}

func (b *backends) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

func loadCatalog(ctx context.Context, cfg config.Config, b *backends) (domain.Catalog, error) {
	var loader catalog.Loader = catalog.NewFileLoader(cfg.Quiz.CatalogPath)
	if cfg.Quiz.Source == "postgres" {
		loader = pgstore.NewCatalogLoader(b.pool, cfg.Quiz.CatalogName)
	}
	return catalog.Load(ctx, loader)
}

func snapshotRepository(cfg config.Config, b *backends) app.SnapshotRepository {
	switch cfg.Storage.Backend {
	case "redis":
		return redisstore.NewSnapshotRepository(b.redis, cfg.Redis.Key)
	case "postgres":
		return pgstore.NewSnapshotRepository(b.pool, cfg.Quiz.CatalogName)
	case "memory":
		return memory.NewSnapshotRepository()
	default:
		return file.NewSnapshotRepository(cfg.Storage.SnapshotPath)
	}
}
