package snapshot

import (
	"errors"
	"testing"

	"github.com/rpattn/shortreg/internal/domain"
)

func TestNormalizeLatestRowWinsKeepingFirstSeenOrder(t *testing.T) {
	normalizer := NewNormalizer(domain.KeySpaceAggregate)
	rows := []RawRow{
		{Issuer: "AAA", CompanyName: "Alpha AB", Percent: "1,5", EffectiveDate: "2024-01-01"},
		{Issuer: "BBB", CompanyName: "Beta AB", Percent: "2.0", EffectiveDate: "2024-01-01"},
		{Issuer: "AAA", CompanyName: "Alpha AB", Percent: "1,8", EffectiveDate: "2024-01-02"},
	}

	result, err := normalizer.Normalize(rows, "2024-01-02 10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 3 || result.Dropped != 0 {
		t.Fatalf("unexpected counters: %+v", result)
	}
	if result.Snapshot.Len() != 2 {
		t.Fatalf("expected 2 canonical records, got %d", result.Snapshot.Len())
	}

	keys := result.Snapshot.Keys()
	if keys[0] != domain.IssuerKey("AAA") || keys[1] != domain.IssuerKey("BBB") {
		t.Fatalf("unexpected key order: %v", keys)
	}

	record, _ := result.Snapshot.Get(domain.IssuerKey("AAA"))
	if record.Percent != 1.8 {
		t.Fatalf("later row must win, got percent %v", record.Percent)
	}
	if record.SnapshotVersion != "2024-01-02 10:00" {
		t.Fatalf("unexpected snapshot version %q", record.SnapshotVersion)
	}
}

func TestNormalizeParsesSwedishDecimalCommas(t *testing.T) {
	normalizer := NewNormalizer(domain.KeySpaceAggregate)
	rows := []RawRow{
		{Issuer: "AAA", Percent: "0,63", EffectiveDate: "2024-01-01"},
	}

	result, err := normalizer.Normalize(rows, "2024-01-01 10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record, _ := result.Snapshot.Get(domain.IssuerKey("AAA"))
	if record.Percent != 0.63 {
		t.Fatalf("expected 0.63, got %v", record.Percent)
	}
}

func TestNormalizeDropsBadRowsAndCountsWarnings(t *testing.T) {
	normalizer := NewNormalizer(domain.KeySpaceAggregate)
	rows := []RawRow{
		{Issuer: "AAA", Percent: "1.5", EffectiveDate: "2024-01-01"},
		{Issuer: "BBB", Percent: "not a number", EffectiveDate: "2024-01-01"},
		{Issuer: "CCC", Percent: "2.0", EffectiveDate: "yesterday-ish"},
		{Issuer: "", Percent: "2.0", EffectiveDate: "2024-01-01"},
	}

	result, err := normalizer.Normalize(rows, "2024-01-01 10:00")
	if err != nil {
		t.Fatalf("partial row failures must not fail the cycle: %v", err)
	}
	if result.Dropped != 3 {
		t.Fatalf("expected 3 dropped rows, got %d", result.Dropped)
	}
	if len(result.Warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d", len(result.Warnings))
	}
	if result.Snapshot.Len() != 1 {
		t.Fatalf("expected 1 surviving record, got %d", result.Snapshot.Len())
	}
}

func TestNormalizeEscalatesWhenNothingSurvives(t *testing.T) {
	normalizer := NewNormalizer(domain.KeySpaceAggregate)
	rows := []RawRow{
		{Issuer: "AAA", Percent: "??", EffectiveDate: "2024-01-01"},
		{Issuer: "BBB", Percent: "??", EffectiveDate: "2024-01-01"},
	}

	_, err := normalizer.Normalize(rows, "2024-01-01 10:00")
	if !errors.Is(err, ErrStructuralParse) {
		t.Fatalf("expected structural parse error, got %v", err)
	}
}

func TestNormalizeEmptyInputIsNotStructuralFailure(t *testing.T) {
	normalizer := NewNormalizer(domain.KeySpaceAggregate)

	result, err := normalizer.Normalize(nil, "2024-01-01 10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Snapshot.Len() != 0 {
		t.Fatalf("expected empty snapshot, got %d records", result.Snapshot.Len())
	}
}

func TestNormalizePositionsKeySpace(t *testing.T) {
	normalizer := NewNormalizer(domain.KeySpacePositions)
	rows := []RawRow{
		{Holder: "Fund One", Issuer: "AAA", ISIN: "SE0000000001", CompanyName: "Alpha AB", Percent: "0.7", EffectiveDate: "2024-01-01"},
		{Issuer: "AAA", ISIN: "SE0000000001", Percent: "0.7", EffectiveDate: "2024-01-01"},
	}

	result, err := normalizer.Normalize(rows, "2024-01-01 10:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Dropped != 1 {
		t.Fatalf("row without holder must be dropped, got %d dropped", result.Dropped)
	}

	key := domain.HolderKey("Fund One", "AAA", "SE0000000001")
	if _, ok := result.Snapshot.Get(key); !ok {
		t.Fatalf("expected record under holder key")
	}
}
