package diff

import (
	"math"

	"github.com/rpattn/shortreg/internal/domain"
)

// DefaultEpsilon absorbs floating-point round-trip noise from the source
// export formats. Differences at or below it are not real changes.
const DefaultEpsilon = 1e-5

// Engine computes change events between the last known per-key state and a
// new canonical snapshot. It proposes events only; it never touches the
// ledger, which keeps the diff pure and testable in isolation.
type Engine struct {
	epsilon float64
}

type Option func(*Engine)

// WithEpsilon overrides the percent comparison threshold.
func WithEpsilon(epsilon float64) Option {
	return func(e *Engine) {
		if epsilon > 0 {
			e.epsilon = epsilon
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	engine := &Engine{epsilon: DefaultEpsilon}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Diff emits one Created event per key new to the state, and one Updated
// event per known key whose percent moved by more than epsilon or whose
// effective date changed. Events come out in the order keys were first seen
// in the current snapshot, so re-running the same snapshot re-derives a
// byte-identical sequence.
func (e *Engine) Diff(previous *domain.StateSet, current *domain.CanonicalSnapshot) []domain.ChangeEvent {
	var events []domain.ChangeEvent

	for _, key := range current.Keys() {
		record, _ := current.Get(key)

		prev, known := previous.Get(key)
		if !known {
			events = append(events, domain.ChangeEvent{
				Key:             key,
				CompanyName:     record.CompanyName,
				Kind:            domain.EventCreated,
				OldPercent:      0.0,
				NewPercent:      record.Percent,
				EffectiveDate:   record.EffectiveDate,
				SnapshotVersion: record.SnapshotVersion,
			})
			continue
		}

		percentMoved := math.Abs(record.Percent-prev.Percent) > e.epsilon
		dateMoved := !record.EffectiveDate.Equal(prev.EffectiveDate)
		if !percentMoved && !dateMoved {
			continue
		}

		events = append(events, domain.ChangeEvent{
			Key:             key,
			CompanyName:     record.CompanyName,
			Kind:            domain.EventUpdated,
			OldPercent:      prev.Percent,
			NewPercent:      record.Percent,
			EffectiveDate:   record.EffectiveDate,
			SnapshotVersion: record.SnapshotVersion,
		})
	}

	return events
}
