package shows

import (
	"context"
	"fmt"
	"time"

	"github.com/kalambet/stagelog/internal/journal"
)

// View is an ordered list of records plus the records left out because of
// a malformed date.
type View struct {
	Records  []journal.Record        `json:"records"`
	Count    int                     `json:"count"`
	Warnings []journal.MalformedDate `json:"warnings"`
}

func newView(recs []journal.Record, warnings []journal.MalformedDate) View {
	if recs == nil {
		recs = []journal.Record{}
	}
	if warnings == nil {
		warnings = []journal.MalformedDate{}
	}
	return View{Records: recs, Count: len(recs), Warnings: warnings}
}

// Upcoming lists shows that have not happened yet, soonest first.
func (s *Service) Upcoming(ctx context.Context) (View, error) {
	return s.project(ctx, journal.BucketUpcoming)
}

// History lists watched shows, most recent first.
func (s *Service) History(ctx context.Context) (View, error) {
	return s.project(ctx, journal.BucketHistory)
}

func (s *Service) project(ctx context.Context, b journal.Bucket) (View, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return View{}, fmt.Errorf("listing records: %w", err)
	}
	out, warnings := journal.Project(recs, b, s.Today())
	s.warn(string(b), warnings)
	return newView(out, warnings), nil
}

// Search lists the records mentioning keyword in stored order.
func (s *Service) Search(ctx context.Context, keyword string) (View, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return View{}, fmt.Errorf("listing records: %w", err)
	}
	return newView(journal.Search(recs, keyword), nil), nil
}

// StatsReport is the statistics of a range together with the anchors of
// its neighbours for navigation.
type StatsReport struct {
	journal.Stats
	Label    string                  `json:"label"`
	Previous journal.Date            `json:"previous"`
	Next     journal.Date            `json:"next"`
	Warnings []journal.MalformedDate `json:"warnings"`
}

// Stats aggregates the watched shows of rng.
func (s *Service) Stats(ctx context.Context, rng journal.Range) (StatsReport, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return StatsReport{}, fmt.Errorf("listing records: %w", err)
	}
	st, warnings := journal.Aggregate(recs, rng, s.Today())
	s.warn("stats", warnings)
	if warnings == nil {
		warnings = []journal.MalformedDate{}
	}
	return StatsReport{
		Stats:    st,
		Label:    rng.Label(),
		Previous: journal.ShiftAnchor(rng, -1),
		Next:     journal.ShiftAnchor(rng, 1),
		Warnings: warnings,
	}, nil
}

// BadgeStatus is an evaluated badge with its display data.
type BadgeStatus struct {
	journal.BadgeInfo
	Earned bool `json:"earned"`
}

// Badges evaluates the badge catalog over every record.
func (s *Service) Badges(ctx context.Context) ([]BadgeStatus, error) {
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	badges, warnings := journal.EvaluateBadges(recs, s.Today())
	s.warn("badges", warnings)

	out := make([]BadgeStatus, len(badges))
	for i, b := range badges {
		info, _ := journal.LookupBadge(b.ID)
		out[i] = BadgeStatus{BadgeInfo: info, Earned: b.Earned}
	}
	return out, nil
}

// CalendarMonth is a month grid and the month's totals.
type CalendarMonth struct {
	journal.Grid
	TotalShows int                     `json:"totalShows"`
	TotalSpent float64                 `json:"totalSpent"`
	Warnings   []journal.MalformedDate `json:"warnings"`
}

// Calendar lays out month of year with the watched shows on their days.
func (s *Service) Calendar(ctx context.Context, year int, month time.Month) (CalendarMonth, error) {
	if month < time.January || month > time.December {
		return CalendarMonth{}, &journal.ValidationError{Fields: []journal.FieldError{{Field: "month", Message: "must be 1-12"}}}
	}
	recs, err := s.store.List(ctx)
	if err != nil {
		return CalendarMonth{}, fmt.Errorf("listing records: %w", err)
	}
	g, warnings := journal.BuildMonth(year, month, recs, s.Today())
	s.warn("calendar", warnings)
	if warnings == nil {
		warnings = []journal.MalformedDate{}
	}
	shows, spent := g.Totals()
	return CalendarMonth{Grid: g, TotalShows: shows, TotalSpent: spent, Warnings: warnings}, nil
}

// WatchedInMonth returns the shows of month already watched, most recent
// first.
func (s *Service) WatchedInMonth(ctx context.Context, year int, month time.Month) ([]journal.Record, error) {
	rep, err := s.Stats(ctx, journal.Range{Kind: journal.RangeMonth, Anchor: journal.NewDate(year, month, 1)})
	if err != nil {
		return nil, err
	}
	return rep.Records, nil
}
