package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/shortreg/internal/diff"
	"github.com/rpattn/shortreg/internal/domain"
	"github.com/rpattn/shortreg/internal/gate"
	"github.com/rpattn/shortreg/internal/ledger"
	"github.com/rpattn/shortreg/internal/snapshot"
)

// Source is the boundary to the external fetch layer: it knows how to read
// the remote publication marker and download the snapshot rows.
type Source interface {
	FetchMarker(ctx context.Context) (string, error)
	FetchRows(ctx context.Context) ([]snapshot.RawRow, error)
}

// Sink receives each cycle's committed events in emission order. This is
// the boundary to the excluded notification layer; delivery failures are
// logged but never fail the cycle, since the ledger is already durable.
type Sink interface {
	Publish(ctx context.Context, keySpace domain.KeySpace, events []domain.ChangeEvent) error
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	RunID           uuid.UUID
	SnapshotVersion string
	Skipped         bool
	Unpublished     bool
	Events          []domain.ChangeEvent
	EventsInserted  int
	RowsTotal       int
	RowsDropped     int
}

// Poller runs one key space's ingestion loop. Cycles are strictly
// sequential: the next gate check can only observe state from a fully
// committed previous cycle, which is the entire ordering guarantee.
type Poller struct {
	keySpace    domain.KeySpace
	source      Source
	gate        *gate.Gate
	normalizer  *snapshot.Normalizer
	engine      *diff.Engine
	synthesizer *diff.DropSynthesizer
	events      ledger.Ledger
	runs        ledger.RunLog
	sink        Sink

	pollInterval     time.Duration
	unpublishedRetry time.Duration
	now              func() time.Time
}

type Option func(*Poller)

func WithPollInterval(interval time.Duration) Option {
	return func(p *Poller) {
		if interval > 0 {
			p.pollInterval = interval
		}
	}
}

// WithUnpublishedRetry sets the short retry delay used when the register
// reports the unpublished sentinel, distinct from the normal poll interval.
func WithUnpublishedRetry(retry time.Duration) Option {
	return func(p *Poller) {
		if retry > 0 {
			p.unpublishedRetry = retry
		}
	}
}

func WithSink(sink Sink) Option {
	return func(p *Poller) {
		if sink != nil {
			p.sink = sink
		}
	}
}

func WithEngine(engine *diff.Engine) Option {
	return func(p *Poller) {
		if engine != nil {
			p.engine = engine
		}
	}
}

func WithClosurePolicy(policy diff.ClosurePolicy) Option {
	return func(p *Poller) {
		p.synthesizer = diff.NewDropSynthesizer(policy)
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

func New(
	keySpace domain.KeySpace,
	source Source,
	markerGate *gate.Gate,
	events ledger.Ledger,
	runs ledger.RunLog,
	opts ...Option,
) *Poller {
	p := &Poller{
		keySpace:         keySpace,
		source:           source,
		gate:             markerGate,
		normalizer:       snapshot.NewNormalizer(keySpace),
		engine:           diff.NewEngine(),
		synthesizer:      diff.NewDropSynthesizer(diff.ConservativeClosure{}),
		events:           events,
		runs:             runs,
		sink:             noopSink{},
		pollInterval:     15 * time.Minute,
		unpublishedRetry: 30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until the context is cancelled. Cycle errors are logged and the
// loop keeps going; the next scheduled cycle retries automatically.
func (p *Poller) Run(ctx context.Context) error {
	log.Printf("[poller] %s: starting, poll interval %s", p.keySpace, p.pollInterval)

	for {
		result, err := p.RunCycle(ctx)

		delay := p.pollInterval
		switch {
		case err != nil && errors.Is(err, context.Canceled):
			return err
		case err != nil:
			log.Printf("[poller] %s: cycle failed: %v", p.keySpace, err)
		case result.Unpublished:
			delay = p.unpublishedRetry
		case result.Skipped:
			// Marker unchanged, nothing to do.
		default:
			log.Printf("[poller] %s: version %s, %d events (%d inserted)",
				p.keySpace, result.SnapshotVersion, len(result.Events), result.EventsInserted)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunCycle executes one full ingestion cycle: gate check, fetch, normalize,
// diff plus drop synthesis, idempotent append, marker commit, then sink
// publication. Any failure before the append step discards the cycle's
// computation and leaves the marker untouched, so the next poll retries the
// same snapshot version.
func (p *Poller) RunCycle(ctx context.Context) (CycleResult, error) {
	result := CycleResult{RunID: uuid.New()}
	startedAt := p.now()

	remoteMarker, err := p.source.FetchMarker(ctx)
	if err != nil {
		return result, fmt.Errorf("marker fetch failed: %w", err)
	}

	proceed, err := p.gate.ShouldIngest(ctx, remoteMarker)
	if errors.Is(err, gate.ErrUnpublished) {
		result.Unpublished = true
		return result, nil
	}
	if err != nil {
		return result, err
	}
	if !proceed {
		result.Skipped = true
		return result, nil
	}
	result.SnapshotVersion = remoteMarker

	rows, err := p.source.FetchRows(ctx)
	if err != nil {
		return result, fmt.Errorf("snapshot fetch failed: %w", err)
	}

	normalized, err := p.normalizer.Normalize(rows, remoteMarker)
	result.RowsTotal = normalized.Total
	result.RowsDropped = normalized.Dropped
	if err != nil {
		p.recordRun(ctx, result, startedAt, err)
		return result, err
	}
	for _, warning := range normalized.Warnings {
		log.Printf("[poller] %s: row %d dropped: %s", p.keySpace, warning.RowNumber, warning.Message)
	}

	history, err := p.events.QueryAll(ctx, p.keySpace)
	if err != nil {
		return result, fmt.Errorf("failed to load event history: %w", err)
	}
	previous := domain.FoldLastKnown(history)

	events := p.engine.Diff(previous, normalized.Snapshot)
	drops, err := p.synthesizer.Synthesize(previous, normalized.Snapshot, remoteMarker)
	if err != nil {
		p.recordRun(ctx, result, startedAt, err)
		return result, fmt.Errorf("drop synthesis failed: %w", err)
	}
	events = append(events, drops...)
	result.Events = events

	inserted, err := p.events.Append(ctx, p.keySpace, events)
	if err != nil {
		p.recordRun(ctx, result, startedAt, err)
		return result, fmt.Errorf("ledger append failed: %w", err)
	}
	result.EventsInserted = inserted

	// Marker commit is deliberately last: a crash between append and commit
	// re-runs the cycle, and the idempotent ledger absorbs the duplicates.
	if err := p.gate.Commit(ctx, remoteMarker); err != nil {
		p.recordRun(ctx, result, startedAt, err)
		return result, fmt.Errorf("marker commit failed: %w", err)
	}

	p.recordRun(ctx, result, startedAt, nil)

	if len(events) > 0 {
		if err := p.sink.Publish(ctx, p.keySpace, events); err != nil {
			log.Printf("[poller] %s: sink publish failed: %v", p.keySpace, err)
		}
	}
	return result, nil
}

func (p *Poller) recordRun(ctx context.Context, result CycleResult, startedAt time.Time, runErr error) {
	run := ledger.IngestRun{
		ID:              result.RunID,
		KeySpace:        p.keySpace,
		SnapshotVersion: result.SnapshotVersion,
		RowsTotal:       result.RowsTotal,
		RowsDropped:     result.RowsDropped,
		EventsProposed:  len(result.Events),
		EventsInserted:  result.EventsInserted,
		StartedAt:       startedAt,
		CompletedAt:     p.now(),
	}
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}
	if err := p.runs.Record(ctx, run); err != nil {
		log.Printf("[poller] %s: failed to record ingest run: %v", p.keySpace, err)
	}
}

type noopSink struct{}

func (noopSink) Publish(context.Context, domain.KeySpace, []domain.ChangeEvent) error {
	return nil
}
