package journal

import "github.com/shopspring/decimal"

// BadgeID identifies an achievement.
type BadgeID string

const (
	BadgeFirst BadgeID = "first"
	BadgeFan   BadgeID = "fan"
	BadgeRich  BadgeID = "rich"
	BadgeNight BadgeID = "night"
	BadgeEarly BadgeID = "early"
)

const (
	fanThreshold  = 10
	nightHour     = 22
	richThreshold = 2000
)

// Badge is the result of evaluating one achievement.
type Badge struct {
	ID     BadgeID `json:"id"`
	Earned bool    `json:"earned"`
}

// BadgeInfo is the display data of a badge.
type BadgeInfo struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Color       string  `json:"color"`
}

// BadgeCatalog lists every badge in evaluation order.
var BadgeCatalog = []BadgeInfo{
	{BadgeFirst, "初入剧场", "Watched your first show", "ticket", "amber"},
	{BadgeFan, "资深剧迷", "Watched 10 shows", "star", "purple"},
	{BadgeRich, "黄金座席", "Spent 2000 or more on tickets", "crown", "yellow"},
	{BadgeNight, "夜猫子", "Went to a show starting at 22:00 or later", "moon", "indigo"},
	{BadgeEarly, "早鸟", "Has a show coming up", "sunrise", "orange"},
}

// LookupBadge returns the catalog entry for id.
func LookupBadge(id BadgeID) (BadgeInfo, bool) {
	for _, b := range BadgeCatalog {
		if b.ID == id {
			return b, true
		}
	}
	return BadgeInfo{}, false
}

// EvaluateBadges evaluates the whole catalog against every record. The
// rich and night predicates do not depend on dates, so records with a
// malformed date still count toward them.
func EvaluateBadges(records []Record, today Date) ([]Badge, []MalformedDate) {
	all, warnings := classifyAll(records, today)

	watched, upcoming := 0, 0
	for _, c := range all {
		if c.status == StatusWatched {
			watched++
		} else {
			upcoming++
		}
	}

	spent := decimal.Zero
	night := false
	for _, r := range records {
		spent = spent.Add(decimal.NewFromFloat(r.Price.Float64()))
		if h, ok := r.Hour(); ok && h >= nightHour {
			night = true
		}
	}

	earned := map[BadgeID]bool{
		BadgeFirst: watched >= 1,
		BadgeFan:   watched >= fanThreshold,
		BadgeRich:  spent.GreaterThanOrEqual(decimal.NewFromInt(richThreshold)),
		BadgeNight: night,
		BadgeEarly: upcoming > 0,
	}

	out := make([]Badge, len(BadgeCatalog))
	for i, b := range BadgeCatalog {
		out[i] = Badge{ID: b.ID, Earned: earned[b.ID]}
	}
	return out, warnings
}
