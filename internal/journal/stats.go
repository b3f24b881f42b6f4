package journal

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// UnknownVenue labels records without a location in venue distributions.
const UnknownVenue = "Unknown"

// RangeKind is the granularity of a statistics range.
type RangeKind string

const (
	RangeDay   RangeKind = "day"
	RangeMonth RangeKind = "month"
	RangeYear  RangeKind = "year"
)

// ParseRangeKind validates a range kind name.
func ParseRangeKind(s string) (RangeKind, error) {
	switch k := RangeKind(s); k {
	case RangeDay, RangeMonth, RangeYear:
		return k, nil
	}
	return "", fmt.Errorf("unknown range kind %q", s)
}

// Range is the day, month or year containing Anchor.
type Range struct {
	Kind   RangeKind `json:"kind"`
	Anchor Date      `json:"anchor"`
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d Date) bool {
	switch r.Kind {
	case RangeDay:
		return d == r.Anchor
	case RangeMonth:
		return d.Year() == r.Anchor.Year() && d.Month() == r.Anchor.Month()
	case RangeYear:
		return d.Year() == r.Anchor.Year()
	}
	return false
}

// Label renders the range for headings: 2024-01-15, 2024-01 or 2024.
func (r Range) Label() string {
	switch r.Kind {
	case RangeMonth:
		return r.Anchor.Format("2006-01")
	case RangeYear:
		return r.Anchor.Format("2006")
	}
	return r.Anchor.String()
}

// ShiftAnchor moves the anchor by delta days, months or years depending on
// the range kind.
func ShiftAnchor(r Range, delta int) Date {
	switch r.Kind {
	case RangeMonth:
		return r.Anchor.AddMonths(delta)
	case RangeYear:
		return r.Anchor.AddYears(delta)
	}
	return r.Anchor.AddDays(delta)
}

// VenueCount is one entry of a venue distribution.
type VenueCount struct {
	Venue string `json:"venue"`
	Count int    `json:"count"`
}

// Stats summarizes the watched shows of a range.
type Stats struct {
	Range             Range        `json:"range"`
	TotalShows        int          `json:"totalShows"`
	TotalSpent        float64      `json:"totalSpent"`
	UniqueShows       int          `json:"uniqueShows"`
	VenueDistribution []VenueCount `json:"venueDistribution"`
	// Records are the counted shows, most recent first.
	Records []Record `json:"records"`
}

// Aggregate computes statistics over records already watched as of today
// whose date falls in rng. Venues are listed in first-seen input order.
func Aggregate(records []Record, rng Range, today Date) (Stats, []MalformedDate) {
	all, warnings := classifyAll(records, today)

	st := Stats{Range: rng, VenueDistribution: []VenueCount{}, Records: []Record{}}
	spent := decimal.Zero
	titles := make(map[string]struct{})
	venues := make(map[string]int)
	var in []classified

	for _, c := range all {
		if c.status != StatusWatched || !rng.Contains(c.date) {
			continue
		}
		in = append(in, c)
		st.TotalShows++
		spent = spent.Add(decimal.NewFromFloat(c.rec.Price.Float64()))
		titles[c.rec.Title] = struct{}{}

		venue := strings.TrimSpace(c.rec.Location)
		if venue == "" {
			venue = UnknownVenue
		}
		if i, ok := venues[venue]; ok {
			st.VenueDistribution[i].Count++
		} else {
			venues[venue] = len(st.VenueDistribution)
			st.VenueDistribution = append(st.VenueDistribution, VenueCount{Venue: venue, Count: 1})
		}
	}

	st.TotalSpent = spent.InexactFloat64()
	st.UniqueShows = len(titles)

	slices.SortStableFunc(in, func(a, b classified) int { return b.date.Compare(a.date) })
	for _, c := range in {
		st.Records = append(st.Records, c.rec)
	}
	return st, warnings
}

// SumPrices adds up the prices of records exactly.
func SumPrices(records []Record) float64 {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(decimal.NewFromFloat(r.Price.Float64()))
	}
	return total.InexactFloat64()
}
