// Package ticket extracts a partial show record from pasted ticket text or
// a PDF e-ticket. Extraction is best effort; fields that cannot be found are
// left empty.
package ticket

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/stagelog/internal/journal"
)

var (
	fullDateRe  = regexp.MustCompile(`(\d{4})[-年.](\d{1,2})[-月.](\d{1,2})`)
	shortDateRe = regexp.MustCompile(`(\d{1,2})月(\d{1,2})日`)
	timeRe      = regexp.MustCompile(`(\d{1,2}:\d{2})`)
	priceRe     = regexp.MustCompile(`(?:票价|￥|¥)\s*(\d+)`)
)

// VenueKeywords mark a whitespace-separated token as a venue name.
var VenueKeywords = []string{"大剧院", "文化广场", "艺术中心", "体育馆", "剧场"}

// Draft is what could be read off a ticket. Price is nil when no price
// was found.
type Draft struct {
	Title    string         `json:"title,omitempty"`
	Date     string         `json:"date,omitempty"`
	Time     string         `json:"time,omitempty"`
	Location string         `json:"location,omitempty"`
	Price    *journal.Price `json:"price,omitempty"`
	Notes    string         `json:"notes"`
}

// Record turns the draft into an unsaved record.
func (d Draft) Record() journal.Record {
	r := journal.Record{
		Title:    d.Title,
		Date:     d.Date,
		Time:     d.Time,
		Location: d.Location,
		Notes:    d.Notes,
		Cast:     []journal.CastMember{},
	}
	if d.Price != nil {
		r.Price = *d.Price
	}
	return r
}

// ParseText reads a draft from free text. currentYear fills in the year for
// dates written as M月D日.
func ParseText(text string, currentYear int) Draft {
	d := Draft{Notes: text}
	if strings.TrimSpace(text) == "" {
		return d
	}

	if m := fullDateRe.FindStringSubmatch(text); m != nil {
		d.Date = fmt.Sprintf("%s-%s-%s", m[1], pad2(m[2]), pad2(m[3]))
	} else if m := shortDateRe.FindStringSubmatch(text); m != nil {
		d.Date = fmt.Sprintf("%d-%s-%s", currentYear, pad2(m[1]), pad2(m[2]))
	}

	if m := timeRe.FindStringSubmatch(text); m != nil {
		d.Time = m[1]
	}

	if m := priceRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			p := journal.NewPrice(float64(v))
			d.Price = &p
		}
	}

	for _, part := range strings.Fields(text) {
		if hasVenueKeyword(part) {
			d.Location = part
			break
		}
	}
	return d
}

func hasVenueKeyword(s string) bool {
	for _, k := range VenueKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// ExtractPDFText returns the plain text of a PDF document.
func ExtractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return string(b), nil
}

// ParsePDF extracts the text of a PDF e-ticket and parses it.
func ParsePDF(data []byte, currentYear int) (Draft, error) {
	text, err := ExtractPDFText(data)
	if err != nil {
		return Draft{}, err
	}
	return ParseText(text, currentYear), nil
}
