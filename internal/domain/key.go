package domain

import "strings"

// KeySpace identifies one independent disclosure stream. The register
// publishes two files with different subject granularity, and each stream
// keeps its own ledger rows and last-processed marker.
type KeySpace string

const (
	// KeySpaceAggregate covers the issuer-level aggregate file: one row per
	// issuer, summing all positions above the disclosure threshold.
	KeySpaceAggregate KeySpace = "aggregate"
	// KeySpacePositions covers the holder-specific file: one row per
	// (holder, issuer, instrument) position.
	KeySpacePositions KeySpace = "positions"
)

// EntityKey identifies one disclosure subject within a key space. Aggregate
// keys carry only the issuer LEI; position keys add the reporting holder and
// the instrument ISIN. Keys are comparable and used directly as map keys.
type EntityKey struct {
	Holder string
	Issuer string
	ISIN   string
}

// IssuerKey builds an aggregate-stream key from an issuer LEI.
func IssuerKey(lei string) EntityKey {
	return EntityKey{Issuer: strings.TrimSpace(lei)}
}

// HolderKey builds a position-stream key from holder name, issuer LEI and
// instrument ISIN.
func HolderKey(holder, lei, isin string) EntityKey {
	return EntityKey{
		Holder: strings.TrimSpace(holder),
		Issuer: strings.TrimSpace(lei),
		ISIN:   strings.TrimSpace(isin),
	}
}

func (k EntityKey) String() string {
	parts := make([]string, 0, 3)
	if k.Holder != "" {
		parts = append(parts, k.Holder)
	}
	parts = append(parts, k.Issuer)
	if k.ISIN != "" {
		parts = append(parts, k.ISIN)
	}
	return strings.Join(parts, "/")
}
