package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/shortreg/internal/domain"
	"github.com/rpattn/shortreg/internal/ledger"
)

// Unpublished is the sentinel marker meaning the register has not published
// a timestamp yet. The caller should retry on a short interval rather than
// back off.
const Unpublished = ""

// ErrUnpublished is returned when the remote marker is the unpublished
// sentinel. It signals "try again soon", not failure.
var ErrUnpublished = errors.New("register timestamp not yet published")

// Gate decides whether a new ingestion cycle should run by comparing the
// remote version marker to the persisted last-processed marker. The gate
// itself is pure except for Commit, which the caller invokes only as the
// final step of a successful cycle: a crash mid-cycle leaves the old marker
// in place and causes a safe idempotent re-run, never a silent skip.
type Gate struct {
	keySpace domain.KeySpace
	markers  ledger.MarkerStore
}

func New(keySpace domain.KeySpace, markers ledger.MarkerStore) *Gate {
	return &Gate{keySpace: keySpace, markers: markers}
}

// ShouldIngest reports whether remoteMarker warrants a new cycle. It returns
// ErrUnpublished for the sentinel and false for an already-processed marker.
func (g *Gate) ShouldIngest(ctx context.Context, remoteMarker string) (bool, error) {
	if strings.TrimSpace(remoteMarker) == Unpublished {
		return false, ErrUnpublished
	}

	last, err := g.markers.LastProcessed(ctx, g.keySpace)
	if err != nil {
		return false, fmt.Errorf("failed to load last-processed marker: %w", err)
	}
	return remoteMarker != last, nil
}

// Commit persists remoteMarker as the new last-processed value.
func (g *Gate) Commit(ctx context.Context, remoteMarker string) error {
	return g.markers.Commit(ctx, g.keySpace, remoteMarker)
}
