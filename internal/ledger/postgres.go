package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/shortreg/internal/domain"
)

type postgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger wires the change-event ledger backed by pgxpool.
func NewPostgresLedger(pool *pgxpool.Pool) Ledger {
	return &postgresLedger{pool: pool}
}

const insertEventSQL = `INSERT INTO change_events
	(key_space, holder, issuer, isin, snapshot_version, kind, company_name, old_percent, new_percent, effective_date)
 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
 ON CONFLICT (key_space, holder, issuer, isin, snapshot_version) DO NOTHING`

func (l *postgresLedger) Append(ctx context.Context, keySpace domain.KeySpace, events []domain.ChangeEvent) (int, error) {
	if l.pool == nil {
		return 0, fmt.Errorf("ledger not initialized")
	}
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted := 0
	for _, event := range events {
		tag, execErr := tx.Exec(
			ctx,
			insertEventSQL,
			string(keySpace),
			event.Key.Holder,
			event.Key.Issuer,
			event.Key.ISIN,
			event.SnapshotVersion,
			string(event.Kind),
			event.CompanyName,
			event.OldPercent,
			event.NewPercent,
			event.EffectiveDate,
		)
		if execErr != nil {
			return 0, fmt.Errorf("failed to insert change event for %s: %w", event.Key, execErr)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return inserted, nil
}

func (l *postgresLedger) Query(ctx context.Context, keySpace domain.KeySpace, key domain.EntityKey, asOf string) ([]domain.ChangeEvent, error) {
	if l.pool == nil {
		return nil, fmt.Errorf("ledger not initialized")
	}

	query := `SELECT holder, issuer, isin, snapshot_version, kind, company_name, old_percent, new_percent, effective_date
		 FROM change_events
		 WHERE key_space = $1 AND holder = $2 AND issuer = $3 AND isin = $4`
	args := []any{string(keySpace), key.Holder, key.Issuer, key.ISIN}
	if asOf != "" {
		query += ` AND snapshot_version <= $5`
		args = append(args, asOf)
	}
	query += ` ORDER BY snapshot_version ASC`

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query change events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (l *postgresLedger) QueryAll(ctx context.Context, keySpace domain.KeySpace) ([]domain.ChangeEvent, error) {
	if l.pool == nil {
		return nil, fmt.Errorf("ledger not initialized")
	}

	rows, err := l.pool.Query(
		ctx,
		`SELECT holder, issuer, isin, snapshot_version, kind, company_name, old_percent, new_percent, effective_date
		 FROM change_events
		 WHERE key_space = $1
		 ORDER BY snapshot_version ASC, recorded_at ASC`,
		string(keySpace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query change events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (l *postgresLedger) QueryRange(ctx context.Context, keySpace domain.KeySpace, from, to time.Time) ([]domain.ChangeEvent, error) {
	if l.pool == nil {
		return nil, fmt.Errorf("ledger not initialized")
	}

	rows, err := l.pool.Query(
		ctx,
		`SELECT holder, issuer, isin, snapshot_version, kind, company_name, old_percent, new_percent, effective_date
		 FROM change_events
		 WHERE key_space = $1 AND effective_date >= $2 AND effective_date <= $3
		 ORDER BY snapshot_version ASC, recorded_at ASC`,
		string(keySpace),
		from,
		to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query change events by range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]domain.ChangeEvent, error) {
	events := []domain.ChangeEvent{}
	for rows.Next() {
		var (
			event         domain.ChangeEvent
			kind          string
			effectiveDate pgtype.Date
		)
		if err := rows.Scan(
			&event.Key.Holder,
			&event.Key.Issuer,
			&event.Key.ISIN,
			&event.SnapshotVersion,
			&kind,
			&event.CompanyName,
			&event.OldPercent,
			&event.NewPercent,
			&effectiveDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan change event: %w", err)
		}
		event.Kind = domain.EventKind(kind)
		if effectiveDate.Valid {
			event.EffectiveDate = effectiveDate.Time.UTC()
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate change events: %w", err)
	}
	return events, nil
}
