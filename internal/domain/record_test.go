package domain

import (
	"testing"
	"time"
)

func date(value string) time.Time {
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return ts.UTC()
}

func TestCanonicalSnapshotKeepsFirstSeenOrderOnOverwrite(t *testing.T) {
	snapshot := NewCanonicalSnapshot()
	snapshot.Put(CanonicalRecord{Key: IssuerKey("AAA"), Percent: 1.0})
	snapshot.Put(CanonicalRecord{Key: IssuerKey("BBB"), Percent: 2.0})
	snapshot.Put(CanonicalRecord{Key: IssuerKey("AAA"), Percent: 3.0})

	if snapshot.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", snapshot.Len())
	}

	keys := snapshot.Keys()
	if keys[0] != IssuerKey("AAA") || keys[1] != IssuerKey("BBB") {
		t.Fatalf("unexpected key order: %v", keys)
	}

	record, ok := snapshot.Get(IssuerKey("AAA"))
	if !ok {
		t.Fatalf("expected record for AAA")
	}
	if record.Percent != 3.0 {
		t.Fatalf("expected later row to win, got percent %v", record.Percent)
	}
}

func TestFoldLastKnownLastWriteWins(t *testing.T) {
	key := IssuerKey("AAA")
	events := []ChangeEvent{
		{Key: key, Kind: EventCreated, NewPercent: 1.5, SnapshotVersion: "2024-01-01 10:00"},
		{Key: key, Kind: EventUpdated, OldPercent: 1.5, NewPercent: 2.5, SnapshotVersion: "2024-01-02 10:00"},
	}

	states := FoldLastKnown(events)
	state, ok := states.Get(key)
	if !ok {
		t.Fatalf("expected state for key")
	}
	if state.Percent != 2.5 {
		t.Fatalf("expected folded percent 2.5, got %v", state.Percent)
	}
	if state.SnapshotVersion != "2024-01-02 10:00" {
		t.Fatalf("unexpected folded version %q", state.SnapshotVersion)
	}
}

func TestFoldLastKnownKeepsClosedKeysAtZero(t *testing.T) {
	key := IssuerKey("AAA")
	events := []ChangeEvent{
		{Key: key, Kind: EventCreated, NewPercent: 3.5, SnapshotVersion: "2024-01-01 10:00"},
		{Key: key, Kind: EventClosed, OldPercent: 3.5, NewPercent: 0.0, SnapshotVersion: "2024-01-02 10:00"},
	}

	states := FoldLastKnown(events)
	state, ok := states.Get(key)
	if !ok {
		t.Fatalf("closed key must remain present in folded state")
	}
	if state.Percent != 0.0 {
		t.Fatalf("closed key must fold to percent 0, got %v", state.Percent)
	}
}

func TestParseVersionTime(t *testing.T) {
	ts, err := ParseVersionTime("2024-03-05 14:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.Hour() != 14 || ts.Minute() != 30 {
		t.Fatalf("unexpected time: %v", ts)
	}

	if _, err := ParseVersionTime("not a timestamp"); err == nil {
		t.Fatalf("expected error for garbage version")
	}
}

func TestVersionDateTruncatesToMidnightUTC(t *testing.T) {
	day, err := VersionDate("2024-03-05 14:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !day.Equal(date("2024-03-05")) {
		t.Fatalf("expected 2024-03-05, got %v", day)
	}
}
