package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rpattn/shortreg/internal/domain"
	"github.com/rpattn/shortreg/internal/export"
	"github.com/rpattn/shortreg/internal/ledger"
	"github.com/rpattn/shortreg/internal/timeseries"
)

// Handler serves the read-side API: event queries, forward-filled time
// series and CSV export. All endpoints read the ledger only.
type Handler struct {
	events   ledger.Ledger
	view     *timeseries.View
	exporter *export.Service
}

func NewHandler(events ledger.Ledger, view *timeseries.View, exporter *export.Service) *Handler {
	return &Handler{events: events, view: view, exporter: exporter}
}

// Routes registers the API endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/events", h.handleEvents)
	mux.HandleFunc("/timeseries", h.handleTimeSeries)
	mux.HandleFunc("/export.csv", h.handleExport)
}

type eventPayload struct {
	Holder          string  `json:"holder,omitempty"`
	Issuer          string  `json:"issuer"`
	ISIN            string  `json:"isin,omitempty"`
	CompanyName     string  `json:"companyName,omitempty"`
	Kind            string  `json:"kind"`
	OldPercent      float64 `json:"oldPercent"`
	NewPercent      float64 `json:"newPercent"`
	EffectiveDate   string  `json:"effectiveDate"`
	SnapshotVersion string  `json:"snapshotVersion"`
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	keySpace, key, err := subjectFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := h.events.Query(r.Context(), keySpace, key, r.URL.Query().Get("asOf"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	payload := make([]eventPayload, 0, len(events))
	for _, event := range events {
		payload = append(payload, eventPayload{
			Holder:          event.Key.Holder,
			Issuer:          event.Key.Issuer,
			ISIN:            event.Key.ISIN,
			CompanyName:     event.CompanyName,
			Kind:            string(event.Kind),
			OldPercent:      event.OldPercent,
			NewPercent:      event.NewPercent,
			EffectiveDate:   event.EffectiveDate.Format("2006-01-02"),
			SnapshotVersion: event.SnapshotVersion,
		})
	}
	writeJSON(w, payload)
}

func (h *Handler) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	keySpace, key, err := subjectFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	from, to, err := rangeFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := h.view.Reconstruct(r.Context(), keySpace, key, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, points)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	keySpace, err := keySpaceFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	from, to, err := rangeFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fileName := fmt.Sprintf("%s_%s_%s.csv", keySpace, from.Format("2006-01-02"), to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	if _, err := h.exporter.WriteCSV(r.Context(), w, keySpace, from, to); err != nil {
		// Headers are already out; the truncated body is the best signal left.
		fmt.Fprintf(w, "\nexport failed: %v\n", err)
	}
}

func keySpaceFromQuery(r *http.Request) (domain.KeySpace, error) {
	switch r.URL.Query().Get("space") {
	case "", string(domain.KeySpaceAggregate):
		return domain.KeySpaceAggregate, nil
	case string(domain.KeySpacePositions):
		return domain.KeySpacePositions, nil
	default:
		return "", fmt.Errorf("unknown key space %q", r.URL.Query().Get("space"))
	}
}

func subjectFromQuery(r *http.Request) (domain.KeySpace, domain.EntityKey, error) {
	keySpace, err := keySpaceFromQuery(r)
	if err != nil {
		return "", domain.EntityKey{}, err
	}

	query := r.URL.Query()
	issuer := query.Get("issuer")
	if issuer == "" {
		return "", domain.EntityKey{}, fmt.Errorf("issuer parameter is required")
	}

	if keySpace == domain.KeySpacePositions {
		holder := query.Get("holder")
		if holder == "" {
			return "", domain.EntityKey{}, fmt.Errorf("holder parameter is required for the positions space")
		}
		return keySpace, domain.HolderKey(holder, issuer, query.Get("isin")), nil
	}
	return keySpace, domain.IssuerKey(issuer), nil
}

func rangeFromQuery(r *http.Request) (time.Time, time.Time, error) {
	query := r.URL.Query()

	from, err := time.Parse("2006-01-02", query.Get("from"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date: %v", err)
	}
	to, err := time.Parse("2006-01-02", query.Get("to"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date: %v", err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to date precedes from date")
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
