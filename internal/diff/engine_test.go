package diff

import (
	"testing"
	"time"

	"github.com/rpattn/shortreg/internal/domain"
)

func date(value string) time.Time {
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return ts.UTC()
}

func snapshotOf(records ...domain.CanonicalRecord) *domain.CanonicalSnapshot {
	snapshot := domain.NewCanonicalSnapshot()
	for _, record := range records {
		snapshot.Put(record)
	}
	return snapshot
}

func TestDiffEmitsCreatedForUnknownKey(t *testing.T) {
	engine := NewEngine()
	current := snapshotOf(domain.CanonicalRecord{
		Key:             domain.IssuerKey("AAA"),
		Percent:         2.0,
		EffectiveDate:   date("2024-01-01"),
		SnapshotVersion: "2024-01-01 10:00",
	})

	events := engine.Diff(domain.NewStateSet(), current)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != domain.EventCreated {
		t.Fatalf("expected created event, got %s", events[0].Kind)
	}
	if events[0].OldPercent != 0.0 {
		t.Fatalf("created event must carry old percent 0, got %v", events[0].OldPercent)
	}
	if events[0].NewPercent != 2.0 {
		t.Fatalf("unexpected new percent %v", events[0].NewPercent)
	}
}

func TestDiffEpsilonTieBreak(t *testing.T) {
	engine := NewEngine()
	key := domain.IssuerKey("AAA")
	effective := date("2024-01-01")

	previous := domain.NewStateSet()
	previous.Put(key, domain.PositionState{
		Percent:         1.0,
		EffectiveDate:   effective,
		SnapshotVersion: "2024-01-01 10:00",
	})

	// 1e-6 is below the epsilon and must not produce an event.
	noisy := snapshotOf(domain.CanonicalRecord{
		Key:             key,
		Percent:         1.0 + 1e-6,
		EffectiveDate:   effective,
		SnapshotVersion: "2024-01-02 10:00",
	})
	if events := engine.Diff(previous, noisy); len(events) != 0 {
		t.Fatalf("expected no events for sub-epsilon change, got %d", len(events))
	}

	// 2e-5 clears the epsilon and must produce an update.
	moved := snapshotOf(domain.CanonicalRecord{
		Key:             key,
		Percent:         1.0 + 2e-5,
		EffectiveDate:   effective,
		SnapshotVersion: "2024-01-02 10:00",
	})
	events := engine.Diff(previous, moved)
	if len(events) != 1 {
		t.Fatalf("expected 1 event for supra-epsilon change, got %d", len(events))
	}
	if events[0].Kind != domain.EventUpdated {
		t.Fatalf("expected updated event, got %s", events[0].Kind)
	}
}

func TestDiffDateChangeAloneTriggersUpdate(t *testing.T) {
	engine := NewEngine()
	key := domain.IssuerKey("AAA")

	previous := domain.NewStateSet()
	previous.Put(key, domain.PositionState{
		Percent:         1.0,
		EffectiveDate:   date("2024-01-01"),
		SnapshotVersion: "2024-01-01 10:00",
	})

	current := snapshotOf(domain.CanonicalRecord{
		Key:             key,
		Percent:         1.0,
		EffectiveDate:   date("2024-01-03"),
		SnapshotVersion: "2024-01-03 10:00",
	})

	events := engine.Diff(previous, current)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != domain.EventUpdated {
		t.Fatalf("expected updated event, got %s", events[0].Kind)
	}
}

func TestDiffPreservesFirstSeenOrder(t *testing.T) {
	engine := NewEngine()
	current := snapshotOf(
		domain.CanonicalRecord{Key: domain.IssuerKey("CCC"), Percent: 1.0, EffectiveDate: date("2024-01-01"), SnapshotVersion: "v1"},
		domain.CanonicalRecord{Key: domain.IssuerKey("AAA"), Percent: 2.0, EffectiveDate: date("2024-01-01"), SnapshotVersion: "v1"},
		domain.CanonicalRecord{Key: domain.IssuerKey("BBB"), Percent: 3.0, EffectiveDate: date("2024-01-01"), SnapshotVersion: "v1"},
	)

	events := engine.Diff(domain.NewStateSet(), current)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	want := []string{"CCC", "AAA", "BBB"}
	for idx, issuer := range want {
		if events[idx].Key.Issuer != issuer {
			t.Fatalf("event %d: expected issuer %s, got %s", idx, issuer, events[idx].Key.Issuer)
		}
	}
}

// A key closed at 0 that reappears diffs against the folded 0 state, so the
// literal outcome is an update from 0 to the new value, not a creation.
func TestDiffReentryAfterClosureIsUpdatedFromZero(t *testing.T) {
	engine := NewEngine()
	key := domain.IssuerKey("AAA")

	previous := domain.NewStateSet()
	previous.Put(key, domain.PositionState{
		Percent:         0.0,
		EffectiveDate:   date("2024-01-05"),
		SnapshotVersion: "2024-01-05 10:00",
	})

	current := snapshotOf(domain.CanonicalRecord{
		Key:             key,
		Percent:         4.0,
		EffectiveDate:   date("2024-01-10"),
		SnapshotVersion: "2024-01-10 10:00",
	})

	events := engine.Diff(previous, current)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != domain.EventUpdated {
		t.Fatalf("re-entry must be updated, got %s", events[0].Kind)
	}
	if events[0].OldPercent != 0.0 || events[0].NewPercent != 4.0 {
		t.Fatalf("expected 0 -> 4 transition, got %v -> %v", events[0].OldPercent, events[0].NewPercent)
	}
}

func TestWithEpsilonOverride(t *testing.T) {
	engine := NewEngine(WithEpsilon(0.5))
	key := domain.IssuerKey("AAA")

	previous := domain.NewStateSet()
	previous.Put(key, domain.PositionState{
		Percent:         1.0,
		EffectiveDate:   date("2024-01-01"),
		SnapshotVersion: "v1",
	})

	current := snapshotOf(domain.CanonicalRecord{
		Key:             key,
		Percent:         1.4,
		EffectiveDate:   date("2024-01-01"),
		SnapshotVersion: "v2",
	})

	if events := engine.Diff(previous, current); len(events) != 0 {
		t.Fatalf("expected change below custom epsilon to be ignored, got %d events", len(events))
	}
}
