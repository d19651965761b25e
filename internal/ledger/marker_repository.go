package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/shortreg/internal/domain"
)

type postgresMarkerStore struct {
	pool *pgxpool.Pool
}

// NewPostgresMarkerStore wires the last-processed marker store backed by
// pgxpool. One scalar marker is kept per key space.
func NewPostgresMarkerStore(pool *pgxpool.Pool) MarkerStore {
	return &postgresMarkerStore{pool: pool}
}

func (s *postgresMarkerStore) LastProcessed(ctx context.Context, keySpace domain.KeySpace) (string, error) {
	if s.pool == nil {
		return "", fmt.Errorf("marker store not initialized")
	}

	var marker string
	err := s.pool.QueryRow(
		ctx,
		`SELECT last_processed FROM ingest_markers WHERE key_space = $1`,
		string(keySpace),
	).Scan(&marker)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last-processed marker: %w", err)
	}
	return marker, nil
}

func (s *postgresMarkerStore) Commit(ctx context.Context, keySpace domain.KeySpace, marker string) error {
	if s.pool == nil {
		return fmt.Errorf("marker store not initialized")
	}

	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO ingest_markers (key_space, last_processed, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key_space) DO UPDATE SET last_processed = EXCLUDED.last_processed, updated_at = now()`,
		string(keySpace),
		marker,
	)
	if err != nil {
		return fmt.Errorf("failed to commit marker: %w", err)
	}
	return nil
}
