package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/shortreg/internal/domain"
)

// ErrStructuralParse is returned when every row of a non-empty snapshot
// fails to parse, which signals a broken export rather than noisy rows. The
// cycle must abort without writing so the same snapshot is retried.
var ErrStructuralParse = errors.New("snapshot failed structural parse")

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	time.RFC3339,
}

// RowWarning records one dropped source row.
type RowWarning struct {
	RowNumber int
	Message   string
}

// Result summarizes one normalization pass.
type Result struct {
	Snapshot *domain.CanonicalSnapshot
	Total    int
	Dropped  int
	Warnings []RowWarning
}

// Normalizer turns raw source rows into one canonical record per entity key.
type Normalizer struct {
	keySpace domain.KeySpace
}

func NewNormalizer(keySpace domain.KeySpace) *Normalizer {
	return &Normalizer{keySpace: keySpace}
}

// Normalize deduplicates raw rows into a canonical snapshot. When a key
// repeats, the later row overwrites the earlier one (latest wins, matching
// the source's noisy exports) while the key keeps its first-seen position.
// Rows with unparseable percent or date values are dropped and counted; if
// nothing survives a non-empty input, the failure is structural and the
// whole snapshot is rejected.
func (n *Normalizer) Normalize(rows []RawRow, snapshotVersion string) (Result, error) {
	result := Result{
		Snapshot: domain.NewCanonicalSnapshot(),
		Total:    len(rows),
	}

	for idx, row := range rows {
		record, err := n.canonicalize(row, snapshotVersion)
		if err != nil {
			result.Dropped++
			result.Warnings = append(result.Warnings, RowWarning{
				RowNumber: idx + 1,
				Message:   err.Error(),
			})
			continue
		}
		result.Snapshot.Put(record)
	}

	if result.Total > 0 && result.Snapshot.Len() == 0 {
		return result, fmt.Errorf("%w: all %d rows dropped", ErrStructuralParse, result.Total)
	}
	return result, nil
}

func (n *Normalizer) canonicalize(row RawRow, snapshotVersion string) (domain.CanonicalRecord, error) {
	key, err := n.deriveKey(row)
	if err != nil {
		return domain.CanonicalRecord{}, err
	}

	percent, err := parsePercent(row.Percent)
	if err != nil {
		return domain.CanonicalRecord{}, err
	}

	effectiveDate, err := parseDate(row.EffectiveDate)
	if err != nil {
		return domain.CanonicalRecord{}, err
	}

	return domain.CanonicalRecord{
		Key:             key,
		CompanyName:     strings.TrimSpace(row.CompanyName),
		Percent:         percent,
		EffectiveDate:   effectiveDate,
		SnapshotVersion: snapshotVersion,
	}, nil
}

func (n *Normalizer) deriveKey(row RawRow) (domain.EntityKey, error) {
	if strings.TrimSpace(row.Issuer) == "" {
		return domain.EntityKey{}, errors.New("missing issuer LEI")
	}

	switch n.keySpace {
	case domain.KeySpacePositions:
		if strings.TrimSpace(row.Holder) == "" {
			return domain.EntityKey{}, errors.New("missing position holder")
		}
		return domain.HolderKey(row.Holder, row.Issuer, row.ISIN), nil
	default:
		return domain.IssuerKey(row.Issuer), nil
	}
}

// parsePercent accepts both decimal points and the register's Swedish-style
// decimal commas. Values are fractional disclosure percentages as published;
// no rounding is applied here.
func parsePercent(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimSuffix(cleaned, "%")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0, errors.New("empty percent value")
	}

	percent, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable percent %q", raw)
	}
	return percent, nil
}

func parseDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, errors.New("empty effective date")
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable effective date %q", raw)
}
