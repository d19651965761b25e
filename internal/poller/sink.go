package poller

import (
	"context"
	"log"

	"github.com/rpattn/shortreg/internal/domain"
)

// LogSink announces changes for a tracked set of company names. It stands in
// for the real notification layer; with an empty tracked set every change is
// announced.
type LogSink struct {
	tracked map[string]struct{}
}

func NewLogSink(trackedCompanies []string) *LogSink {
	sink := &LogSink{tracked: make(map[string]struct{}, len(trackedCompanies))}
	for _, name := range trackedCompanies {
		sink.tracked[name] = struct{}{}
	}
	return sink
}

func (s *LogSink) Publish(_ context.Context, keySpace domain.KeySpace, events []domain.ChangeEvent) error {
	for _, event := range events {
		if len(s.tracked) > 0 {
			if _, ok := s.tracked[event.CompanyName]; !ok {
				continue
			}
		}
		log.Printf("[notify] %s: %s %s %.2f%% -> %.2f%% (as of %s)",
			keySpace, event.Kind, event.Key, event.OldPercent, event.NewPercent,
			event.EffectiveDate.Format("2006-01-02"))
	}
	return nil
}
