package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/shortreg/internal/domain"
)

// Ledger is the append-only change-event store. Appending an event whose
// (key, snapshot version) identity already exists is a silent no-op, never
// an error; rows are never mutated or deleted.
type Ledger interface {
	// Append inserts the cycle's events in one transaction and reports how
	// many rows were actually inserted (duplicates excluded).
	Append(ctx context.Context, keySpace domain.KeySpace, events []domain.ChangeEvent) (int, error)
	// Query returns all events for one key ordered by snapshot version
	// ascending. A non-empty asOf bounds the result to versions <= asOf.
	Query(ctx context.Context, keySpace domain.KeySpace, key domain.EntityKey, asOf string) ([]domain.ChangeEvent, error)
	// QueryAll returns every event in a key space ordered by snapshot
	// version ascending, then insertion order. Used to fold last known state.
	QueryAll(ctx context.Context, keySpace domain.KeySpace) ([]domain.ChangeEvent, error)
	// QueryRange returns events whose effective date falls within [from, to]
	// ordered by snapshot version ascending. Used by the export surface.
	QueryRange(ctx context.Context, keySpace domain.KeySpace, from, to time.Time) ([]domain.ChangeEvent, error)
}

// MarkerStore persists the last-processed snapshot marker per key space.
type MarkerStore interface {
	LastProcessed(ctx context.Context, keySpace domain.KeySpace) (string, error)
	Commit(ctx context.Context, keySpace domain.KeySpace, marker string) error
}

// IngestRun is one cycle's audit record.
type IngestRun struct {
	ID              uuid.UUID
	KeySpace        domain.KeySpace
	SnapshotVersion string
	RowsTotal       int
	RowsDropped     int
	EventsProposed  int
	EventsInserted  int
	ErrorMessage    string
	StartedAt       time.Time
	CompletedAt     time.Time
}

// RunLog records cycle outcomes for operators.
type RunLog interface {
	Record(ctx context.Context, run IngestRun) error
	List(ctx context.Context, keySpace domain.KeySpace, limit int) ([]IngestRun, error)
}
