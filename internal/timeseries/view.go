package timeseries

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/shortreg/internal/domain"
	"github.com/rpattn/shortreg/internal/ledger"
)

// Point is one daily bucket of the reconstructed series.
type Point struct {
	Date    time.Time `json:"date"`
	Percent float64   `json:"percent"`
}

// View reconstructs a regular daily series from the ledger on demand. It
// performs no writes and keeps no cache; every reconstruction is a pure
// read over the event history, so it is trivially restartable.
type View struct {
	events ledger.Ledger
}

func NewView(events ledger.Ledger) *View {
	return &View{events: events}
}

// Reconstruct buckets a key's events by calendar day over [from, to],
// keeping the last value observed on or before each day and carrying it
// forward across days with no event. Days before the first event have no
// value to fill from and are excluded.
func (v *View) Reconstruct(ctx context.Context, keySpace domain.KeySpace, key domain.EntityKey, from, to time.Time) ([]Point, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is before %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	events, err := v.events.Query(ctx, keySpace, key, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load events for %s: %w", key, err)
	}
	if len(events) == 0 {
		return []Point{}, nil
	}

	// Events arrive ordered by snapshot version; later events on the same
	// day overwrite earlier ones.
	byDay := make(map[time.Time]float64)
	first := time.Time{}
	for _, event := range events {
		day := truncateDay(event.EffectiveDate)
		byDay[day] = event.NewPercent
		if first.IsZero() || day.Before(first) {
			first = day
		}
	}

	start := truncateDay(from)
	end := truncateDay(to)

	// Seed the carried value with the latest observation before the range.
	var carried float64
	var haveValue bool
	for day := first; day.Before(start); day = day.AddDate(0, 0, 1) {
		if value, ok := byDay[day]; ok {
			carried = value
			haveValue = true
		}
	}

	points := []Point{}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if value, ok := byDay[day]; ok {
			carried = value
			haveValue = true
		}
		if !haveValue {
			continue
		}
		points = append(points, Point{Date: day, Percent: carried})
	}
	return points, nil
}

func truncateDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
