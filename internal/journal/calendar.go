package journal

import "time"

// Day is one calendar cell for a day of the month.
type Day struct {
	Date      string   `json:"date"`
	Day       int      `json:"day"`
	Records   []Record `json:"records"`
	HasRecord bool     `json:"hasRecord"`
	Primary   *Record  `json:"primary,omitempty"`
	Multiple  bool     `json:"multiple"`
}

// Grid is a month laid out for a Sunday-first calendar.
type Grid struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	// Leading is the number of blank cells before day 1.
	Leading int   `json:"leading"`
	Days    []Day `json:"days"`
}

// Cells returns the grid as a flat sequence, nil for leading blanks.
func (g Grid) Cells() []*Day {
	cells := make([]*Day, g.Leading, g.Leading+len(g.Days))
	for i := range g.Days {
		cells = append(cells, &g.Days[i])
	}
	return cells
}

// Totals returns the number of shows on the grid and what they cost.
func (g Grid) Totals() (shows int, spent float64) {
	var recs []Record
	for _, d := range g.Days {
		recs = append(recs, d.Records...)
	}
	return len(recs), SumPrices(recs)
}

// BuildMonth lays out month of year with the shows already watched as of
// today placed on their days. Upcoming shows never appear on the grid.
func BuildMonth(year int, month time.Month, records []Record, today Date) (Grid, []MalformedDate) {
	first := NewDate(year, month, 1)
	n := DaysInMonth(first.Year(), first.Month())
	g := Grid{
		Year:    first.Year(),
		Month:   first.Month(),
		Leading: int(first.Weekday()),
		Days:    make([]Day, n),
	}
	for i := range g.Days {
		d := NewDate(g.Year, g.Month, i+1)
		g.Days[i] = Day{Date: d.String(), Day: i + 1, Records: []Record{}}
	}

	all, warnings := classifyAll(records, today)
	for _, c := range all {
		if c.status != StatusWatched || c.date.Year() != g.Year || c.date.Month() != g.Month {
			continue
		}
		cell := &g.Days[c.date.Day()-1]
		cell.Records = append(cell.Records, c.rec)
	}
	for i := range g.Days {
		cell := &g.Days[i]
		cell.HasRecord = len(cell.Records) > 0
		cell.Multiple = len(cell.Records) > 1
		if cell.HasRecord {
			p := cell.Records[0]
			cell.Primary = &p
		}
	}
	return g, warnings
}
