package diff

import (
	"github.com/rpattn/shortreg/internal/domain"
)

// ClosurePolicy decides whether a key that vanished from the current
// snapshot should be closed. Closure on disappearance is an inference, not
// a fact the register ever states, so the rule is swappable: a future
// source could distinguish "confirmed closed" from "missing this cycle".
type ClosurePolicy interface {
	ShouldClose(prev domain.PositionState, snapshotVersion string) bool
}

// ConservativeClosure closes a vanished key only when its last known percent
// is nonzero and its last snapshot version is strictly older than the
// current one. When the version comparison is ambiguous (not strictly
// older), synthesis is skipped rather than guessed.
type ConservativeClosure struct{}

func (ConservativeClosure) ShouldClose(prev domain.PositionState, snapshotVersion string) bool {
	return prev.Percent != 0.0 && prev.SnapshotVersion < snapshotVersion
}

// DropSynthesizer emits synthetic Closed events for keys present in the last
// known state but silently absent from the current snapshot.
type DropSynthesizer struct {
	policy ClosurePolicy
}

func NewDropSynthesizer(policy ClosurePolicy) *DropSynthesizer {
	if policy == nil {
		policy = ConservativeClosure{}
	}
	return &DropSynthesizer{policy: policy}
}

// Synthesize walks the previous state in its stable key order and closes
// every vanished key the policy approves. A key already at percent 0 is
// never re-closed, so an entity that stays absent across many cycles
// produces exactly one Closed event. The closed event's effective date is
// the snapshot version's calendar date, since the source gives no better
// signal for when the position actually ended.
func (d *DropSynthesizer) Synthesize(previous *domain.StateSet, current *domain.CanonicalSnapshot, snapshotVersion string) ([]domain.ChangeEvent, error) {
	effectiveDate, err := domain.VersionDate(snapshotVersion)
	if err != nil {
		return nil, err
	}

	var events []domain.ChangeEvent
	for _, key := range previous.Keys() {
		if current.Has(key) {
			continue
		}

		prev, _ := previous.Get(key)
		if !d.policy.ShouldClose(prev, snapshotVersion) {
			continue
		}

		events = append(events, domain.ChangeEvent{
			Key:             key,
			CompanyName:     prev.CompanyName,
			Kind:            domain.EventClosed,
			OldPercent:      prev.Percent,
			NewPercent:      0.0,
			EffectiveDate:   effectiveDate,
			SnapshotVersion: snapshotVersion,
		})
	}
	return events, nil
}
