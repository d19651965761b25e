package diff

import (
	"testing"

	"github.com/rpattn/shortreg/internal/domain"
)

func TestSynthesizeClosesVanishedKey(t *testing.T) {
	synthesizer := NewDropSynthesizer(nil)
	key := domain.IssuerKey("AAA")

	previous := domain.NewStateSet()
	previous.Put(key, domain.PositionState{
		CompanyName:     "Example AB",
		Percent:         3.5,
		EffectiveDate:   date("2024-01-01"),
		SnapshotVersion: "2024-01-01 10:00",
	})

	events, err := synthesizer.Synthesize(previous, domain.NewCanonicalSnapshot(), "2024-01-02 10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 closed event, got %d", len(events))
	}

	closed := events[0]
	if closed.Kind != domain.EventClosed {
		t.Fatalf("expected closed event, got %s", closed.Kind)
	}
	if closed.OldPercent != 3.5 || closed.NewPercent != 0.0 {
		t.Fatalf("expected 3.5 -> 0 transition, got %v -> %v", closed.OldPercent, closed.NewPercent)
	}
	if !closed.EffectiveDate.Equal(date("2024-01-02")) {
		t.Fatalf("closed event must carry the snapshot version's date, got %v", closed.EffectiveDate)
	}
	if closed.CompanyName != "Example AB" {
		t.Fatalf("closed event must carry the last known company name, got %q", closed.CompanyName)
	}
}

func TestSynthesizeDoesNotRecloseZeroPercentKey(t *testing.T) {
	synthesizer := NewDropSynthesizer(nil)
	key := domain.IssuerKey("AAA")

	// Already closed in an earlier cycle; still absent now.
	previous := domain.NewStateSet()
	previous.Put(key, domain.PositionState{
		Percent:         0.0,
		SnapshotVersion: "2024-01-02 10:00",
	})

	events, err := synthesizer.Synthesize(previous, domain.NewCanonicalSnapshot(), "2024-01-03 10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("a closed key must not be re-closed, got %d events", len(events))
	}
}

func TestSynthesizeSkipsWhenVersionNotStrictlyNewer(t *testing.T) {
	synthesizer := NewDropSynthesizer(nil)
	key := domain.IssuerKey("AAA")

	previous := domain.NewStateSet()
	previous.Put(key, domain.PositionState{
		Percent:         2.0,
		SnapshotVersion: "2024-01-02 10:00",
	})

	// Same version again: the guard is ambiguous, so synthesis is skipped.
	events, err := synthesizer.Synthesize(previous, domain.NewCanonicalSnapshot(), "2024-01-02 10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected conservative skip, got %d events", len(events))
	}
}

func TestSynthesizeIgnoresKeysStillPresent(t *testing.T) {
	synthesizer := NewDropSynthesizer(nil)
	key := domain.IssuerKey("AAA")

	previous := domain.NewStateSet()
	previous.Put(key, domain.PositionState{
		Percent:         2.0,
		SnapshotVersion: "2024-01-01 10:00",
	})

	current := domain.NewCanonicalSnapshot()
	current.Put(domain.CanonicalRecord{
		Key:             key,
		Percent:         2.0,
		EffectiveDate:   date("2024-01-02"),
		SnapshotVersion: "2024-01-02 10:00",
	})

	events, err := synthesizer.Synthesize(previous, current, "2024-01-02 10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("present keys must never be closed, got %d events", len(events))
	}
}

type alwaysClose struct{}

func (alwaysClose) ShouldClose(domain.PositionState, string) bool { return true }

func TestSynthesizeHonoursCustomPolicy(t *testing.T) {
	synthesizer := NewDropSynthesizer(alwaysClose{})
	key := domain.IssuerKey("AAA")

	previous := domain.NewStateSet()
	previous.Put(key, domain.PositionState{
		Percent:         0.0,
		SnapshotVersion: "2024-01-02 10:00",
	})

	events, err := synthesizer.Synthesize(previous, domain.NewCanonicalSnapshot(), "2024-01-02 10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("custom policy should have closed the key, got %d events", len(events))
	}
}
