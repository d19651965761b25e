package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/shortreg/internal/domain"
)

type postgresRunLog struct {
	pool *pgxpool.Pool
}

// NewPostgresRunLog wires the per-cycle audit log backed by pgxpool.
func NewPostgresRunLog(pool *pgxpool.Pool) RunLog {
	return &postgresRunLog{pool: pool}
}

func (r *postgresRunLog) Record(ctx context.Context, run IngestRun) error {
	if r.pool == nil {
		return fmt.Errorf("run log not initialized")
	}

	var errorMessage any
	if run.ErrorMessage != "" {
		errorMessage = run.ErrorMessage
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO ingest_runs
			(id, key_space, snapshot_version, rows_total, rows_dropped, events_proposed, events_inserted, error_message, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID,
		string(run.KeySpace),
		run.SnapshotVersion,
		run.RowsTotal,
		run.RowsDropped,
		run.EventsProposed,
		run.EventsInserted,
		errorMessage,
		run.StartedAt,
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record ingest run: %w", err)
	}
	return nil
}

func (r *postgresRunLog) List(ctx context.Context, keySpace domain.KeySpace, limit int) ([]IngestRun, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("run log not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, key_space, snapshot_version, rows_total, rows_dropped, events_proposed, events_inserted, error_message, started_at, completed_at
		 FROM ingest_runs
		 WHERE key_space = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		string(keySpace),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest runs: %w", err)
	}
	defer rows.Close()

	runs := []IngestRun{}
	for rows.Next() {
		var (
			run          IngestRun
			keySpaceText string
			errorMessage pgtype.Text
			startedAt    pgtype.Timestamptz
			completedAt  pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&run.ID,
			&keySpaceText,
			&run.SnapshotVersion,
			&run.RowsTotal,
			&run.RowsDropped,
			&run.EventsProposed,
			&run.EventsInserted,
			&errorMessage,
			&startedAt,
			&completedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan ingest run: %w", scanErr)
		}

		run.KeySpace = domain.KeySpace(keySpaceText)
		if errorMessage.Valid {
			run.ErrorMessage = errorMessage.String
		}
		if startedAt.Valid {
			run.StartedAt = startedAt.Time
		}
		if completedAt.Valid {
			run.CompletedAt = completedAt.Time
		}
		runs = append(runs, run)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate ingest runs: %w", rowsErr)
	}
	return runs, nil
}
