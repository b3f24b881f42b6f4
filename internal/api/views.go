package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kalambet/stagelog/internal/journal"
)

// parseRange reads range, anchor and shift from the query. Defaults are the
// month containing today with no shift.
func parseRange(r *http.Request, today journal.Date) (journal.Range, error) {
	q := r.URL.Query()
	rng := journal.Range{Kind: journal.RangeMonth, Anchor: today}

	if s := q.Get("range"); s != "" {
		k, err := journal.ParseRangeKind(s)
		if err != nil {
			return journal.Range{}, err
		}
		rng.Kind = k
	}
	if s := q.Get("anchor"); s != "" {
		d, err := journal.ParseDate(s)
		if err != nil {
			return journal.Range{}, fmt.Errorf("invalid anchor %q", s)
		}
		rng.Anchor = d
	}
	if s := q.Get("shift"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return journal.Range{}, fmt.Errorf("invalid shift %q", s)
		}
		rng.Anchor = journal.ShiftAnchor(rng, n)
	}
	return rng, nil
}

// parseYearMonth reads year and month from the query, defaulting to the
// month containing today.
func parseYearMonth(r *http.Request, today journal.Date) (int, time.Month, error) {
	year, month := today.Year(), today.Month()
	q := r.URL.Query()
	if s := q.Get("year"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year %q", s)
		}
		year = v
	}
	if s := q.Get("month"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 12 {
			return 0, 0, fmt.Errorf("invalid month %q: must be 1-12", s)
		}
		month = time.Month(v)
	}
	return year, month, nil
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rng, err := parseRange(r, deps.Shows.Today())
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		rep, err := deps.Shows.Stats(r.Context(), rng)
		if err != nil {
			serviceError(w, err, "compute stats")
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

func handleBadges(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		badges, err := deps.Shows.Badges(r.Context())
		if err != nil {
			serviceError(w, err, "evaluate badges")
			return
		}
		writeJSON(w, http.StatusOK, badges)
	}
}

func handleCalendar(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, month, err := parseYearMonth(r, deps.Shows.Today())
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		cal, err := deps.Shows.Calendar(r.Context(), year, month)
		if err != nil {
			serviceError(w, err, "build calendar")
			return
		}
		writeJSON(w, http.StatusOK, cal)
	}
}

// handleSummary answers with a {success, data|error} envelope. Generation
// problems are already folded into the summary text.
func handleSummary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, month, err := parseYearMonth(r, deps.Shows.Today())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
			return
		}
		recs, err := deps.Shows.WatchedInMonth(r.Context(), year, month)
		if err != nil {
			deps.Logger.Error("loading month for summary", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
			return
		}
		res := deps.Summarizer.Summarize(r.Context(), fmt.Sprintf("%04d-%02d", year, month), recs)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": res})
	}
}
