package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventKind classifies a change event.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventClosed  EventKind = "closed"
)

// ChangeEvent is one immutable historical fact about a disclosure subject.
// (Key, SnapshotVersion) is the stable identity: re-deriving the same event
// from the same snapshot produces an identical value, which is what makes
// idempotent ledger insertion work.
type ChangeEvent struct {
	Key             EntityKey
	CompanyName     string
	Kind            EventKind
	OldPercent      float64
	NewPercent      float64
	EffectiveDate   time.Time
	SnapshotVersion string
}

var versionLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ParseVersionTime parses a snapshot version marker into a timestamp. The
// register publishes markers as local timestamp strings whose lexical order
// matches their chronological order.
func ParseVersionTime(version string) (time.Time, error) {
	trimmed := strings.TrimSpace(version)
	for _, layout := range versionLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized snapshot version %q", version)
}

// VersionDate returns the calendar date of a snapshot version marker,
// truncated to midnight UTC.
func VersionDate(version string) (time.Time, error) {
	ts, err := ParseVersionTime(version)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
}
