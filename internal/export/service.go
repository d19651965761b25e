package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rpattn/shortreg/internal/domain"
	"github.com/rpattn/shortreg/internal/ledger"
)

// Service streams ledger events as CSV for a date range. It reads the
// ledger only; exports can be regenerated at any time.
type Service struct {
	events ledger.Ledger
}

func NewService(events ledger.Ledger) *Service {
	return &Service{events: events}
}

var csvHeader = []string{
	"key_space", "holder", "issuer_lei", "isin", "company_name",
	"kind", "old_percent", "new_percent", "effective_date", "snapshot_version",
}

// WriteCSV writes all events in a key space whose effective date falls
// within [from, to], ordered by snapshot version ascending, and returns the
// number of data rows written.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer, keySpace domain.KeySpace, from, to time.Time) (int, error) {
	events, err := s.events.QueryRange(ctx, keySpace, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to load events for export: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, event := range events {
		record := []string{
			string(keySpace),
			event.Key.Holder,
			event.Key.Issuer,
			event.Key.ISIN,
			event.CompanyName,
			string(event.Kind),
			strconv.FormatFloat(event.OldPercent, 'f', -1, 64),
			strconv.FormatFloat(event.NewPercent, 'f', -1, 64),
			event.EffectiveDate.Format("2006-01-02"),
			event.SnapshotVersion,
		}
		if err := writer.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	return len(events), nil
}
