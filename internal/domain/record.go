package domain

import "time"

// CanonicalRecord is the deduplicated state of one EntityKey within one
// snapshot. At most one record exists per (key, snapshot version); when the
// source file repeats a key, the later row wins.
type CanonicalRecord struct {
	Key             EntityKey
	CompanyName     string
	Percent         float64
	EffectiveDate   time.Time
	SnapshotVersion string
}

// CanonicalSnapshot holds one snapshot's canonical records keyed by entity,
// remembering the order keys were first seen in the source file. Downstream
// consumers rely on that order for stable event emission.
type CanonicalSnapshot struct {
	records map[EntityKey]CanonicalRecord
	order   []EntityKey
}

func NewCanonicalSnapshot() *CanonicalSnapshot {
	return &CanonicalSnapshot{records: make(map[EntityKey]CanonicalRecord)}
}

// Put inserts or overwrites the record for its key. Overwrites keep the
// key's original position in the first-seen order.
func (s *CanonicalSnapshot) Put(record CanonicalRecord) {
	if _, seen := s.records[record.Key]; !seen {
		s.order = append(s.order, record.Key)
	}
	s.records[record.Key] = record
}

func (s *CanonicalSnapshot) Get(key EntityKey) (CanonicalRecord, bool) {
	record, ok := s.records[key]
	return record, ok
}

func (s *CanonicalSnapshot) Has(key EntityKey) bool {
	_, ok := s.records[key]
	return ok
}

// Keys returns entity keys in first-seen order.
func (s *CanonicalSnapshot) Keys() []EntityKey {
	return s.order
}

func (s *CanonicalSnapshot) Len() int {
	return len(s.records)
}

// PositionState is the last known state of one EntityKey, folded from the
// ledger. A closed key stays present with Percent 0 so a later re-entry
// diffs against 0 rather than looking brand new.
type PositionState struct {
	CompanyName     string
	Percent         float64
	EffectiveDate   time.Time
	SnapshotVersion string
}

// StateSet maps entity keys to their last known state, preserving the order
// keys first appeared in the event history.
type StateSet struct {
	states map[EntityKey]PositionState
	order  []EntityKey
}

func NewStateSet() *StateSet {
	return &StateSet{states: make(map[EntityKey]PositionState)}
}

func (s *StateSet) Put(key EntityKey, state PositionState) {
	if _, seen := s.states[key]; !seen {
		s.order = append(s.order, key)
	}
	s.states[key] = state
}

func (s *StateSet) Get(key EntityKey) (PositionState, bool) {
	state, ok := s.states[key]
	return state, ok
}

func (s *StateSet) Keys() []EntityKey {
	return s.order
}

func (s *StateSet) Len() int {
	return len(s.states)
}

// FoldLastKnown rebuilds per-key last known state from an event sequence
// ordered by snapshot version ascending. Last write wins per key; Closed
// events fold to percent 0 rather than removing the key. The state is a pure
// function of the ledger, never long-lived process memory, so a restarted
// ingester picks up exactly where the ledger says it should.
func FoldLastKnown(events []ChangeEvent) *StateSet {
	states := NewStateSet()
	for _, event := range events {
		states.Put(event.Key, PositionState{
			CompanyName:     event.CompanyName,
			Percent:         event.NewPercent,
			EffectiveDate:   event.EffectiveDate,
			SnapshotVersion: event.SnapshotVersion,
		})
	}
	return states
}
