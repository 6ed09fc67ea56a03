package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"rentscout/models"
)

// PostgresStore remembers which listings each saved search has already
// reported.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS seen_listings (
			search_id     TEXT NOT NULL,
			record_id     TEXT NOT NULL,
			type_slug     TEXT,
			bedrooms      DOUBLE PRECISION,
			price         DOUBLE PRECISION,
			raw           JSONB,
			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (search_id, record_id)
		);
		CREATE INDEX IF NOT EXISTS idx_seen_listings_last_seen ON seen_listings (search_id, last_seen_at);
	`)
	return err
}

// MarkSeen records records for searchID and returns the ids that had not
// been seen before, in input order.
func (s *PostgresStore) MarkSeen(ctx context.Context, searchID string, records []models.PropertyRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO seen_listings (search_id, record_id, type_slug, bedrooms, price, raw)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (search_id, record_id) DO UPDATE SET
			type_slug = EXCLUDED.type_slug,
			bedrooms = EXCLUDED.bedrooms,
			price = EXCLUDED.price,
			raw = EXCLUDED.raw,
			last_seen_at = NOW()
		RETURNING (xmax = 0) AS inserted`

	batch := &pgx.Batch{}
	for _, rec := range records {
		raw, err := json.Marshal(rec.Raw)
		if err != nil {
			return nil, fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
		batch.Queue(query, searchID, rec.ID, rec.TypeSlug, nullable(rec.Bedrooms), nullable(rec.Price), raw)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	var fresh []string
	for _, rec := range records {
		var inserted bool
		if err := results.QueryRow().Scan(&inserted); err != nil {
			return nil, fmt.Errorf("mark %s seen: %w", rec.ID, err)
		}
		if inserted {
			fresh = append(fresh, rec.ID)
		}
	}
	return fresh, nil
}

// PruneSeen forgets listings not seen since before, across all searches.
func (s *PostgresStore) PruneSeen(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM seen_listings WHERE last_seen_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
