package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/shows"
)

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// mdCell escapes text for a markdown table cell.
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func recordsMarkdown(title string, recs []journal.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if len(recs) == 0 {
		b.WriteString("_No shows._\n")
		return b.String()
	}
	b.WriteString("| Date | Time | Title | Venue | Price | Status | ID |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			r.Date, r.Time, mdCell(r.Title), mdCell(r.Location), money(r.Price.Float64()), r.Status, r.ID)
	}
	return b.String()
}

func warningsMarkdown(warnings []journal.MalformedDate) string {
	if len(warnings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n> Skipped records with unreadable dates:\n")
	for _, w := range warnings {
		fmt.Fprintf(&b, "> - %s (%q)\n", w.RecordID, w.Value)
	}
	return b.String()
}

func statsMarkdown(rep shows.StatsReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Stats for %s\n\n", rep.Label)
	fmt.Fprintf(&b, "- **Shows watched:** %d\n", rep.TotalShows)
	fmt.Fprintf(&b, "- **Spent:** %s\n", money(rep.TotalSpent))
	fmt.Fprintf(&b, "- **Different titles:** %d\n", rep.UniqueShows)

	if len(rep.VenueDistribution) > 0 {
		b.WriteString("\n## Venues\n\n| Venue | Shows |\n|---|---|\n")
		for _, v := range rep.VenueDistribution {
			fmt.Fprintf(&b, "| %s | %d |\n", mdCell(v.Venue), v.Count)
		}
	}
	if len(rep.Records) > 0 {
		b.WriteString("\n## Log\n\n")
		for _, r := range rep.Records {
			fmt.Fprintf(&b, "- %s %s @ %s (%s)\n", r.Date, r.Title, r.Location, money(r.Price.Float64()))
		}
	}
	fmt.Fprintf(&b, "\n_Previous: %s · Next: %s_\n", rep.Previous, rep.Next)
	b.WriteString(warningsMarkdown(rep.Warnings))
	return b.String()
}

func badgesMarkdown(badges []shows.BadgeStatus) string {
	var b strings.Builder
	b.WriteString("# Badges\n\n")
	for _, badge := range badges {
		mark := "☐"
		if badge.Earned {
			mark = "☑"
		}
		fmt.Fprintf(&b, "- %s **%s**: %s\n", mark, badge.Name, badge.Description)
	}
	return b.String()
}

var weekdayHeader = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// calendarMarkdown lays the month out as a Sunday-first table. Days with a
// show are bold; a + marks more than one.
func calendarMarkdown(cal shows.CalendarMonth) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %d\n\n", cal.Month, cal.Year)
	fmt.Fprintf(&b, "| %s |\n", strings.Join(weekdayHeader, " | "))
	b.WriteString(strings.Repeat("|---", 7) + "|\n")

	cells := cal.Cells()
	for start := 0; start < len(cells); start += 7 {
		row := make([]string, 7)
		for i := 0; i < 7 && start+i < len(cells); i++ {
			d := cells[start+i]
			if d == nil {
				continue
			}
			label := strconv.Itoa(d.Day)
			if d.HasRecord {
				label = "**" + label + "**"
			}
			if d.Multiple {
				label += "+"
			}
			row[i] = label
		}
		fmt.Fprintf(&b, "| %s |\n", strings.Join(row, " | "))
	}

	b.WriteString("\n")
	for _, d := range cal.Days {
		for _, r := range d.Records {
			fmt.Fprintf(&b, "- %s %s @ %s\n", d.Date, r.Title, r.Location)
		}
	}
	fmt.Fprintf(&b, "\n**%d shows, %s spent**\n", cal.TotalShows, money(cal.TotalSpent))
	b.WriteString(warningsMarkdown(cal.Warnings))
	return b.String()
}
