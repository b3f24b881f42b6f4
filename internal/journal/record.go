package journal

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Status is the cached temporal bucket of a record.
type Status string

const (
	StatusWatched Status = "watched"
	StatusToWatch Status = "towatch"
)

// CastMember is one entry of a record's cast list.
type CastMember struct {
	Role  string `json:"role"`
	Actor string `json:"actor"`
}

// Record is a single show the user plans to see or has seen.
//
// Date is kept as the stored string so records with a malformed date can
// still be listed, edited and deleted.
type Record struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Date        string       `json:"date"`
	Time        string       `json:"time"`
	Location    string       `json:"location"`
	Price       Price        `json:"price"`
	PosterImage string       `json:"posterImage,omitempty"`
	SeatImage   string       `json:"seatImage,omitempty"`
	Cast        []CastMember `json:"cast"`
	Status      Status       `json:"status"`
	Notes       string       `json:"notes,omitempty"`
}

// ParsedDate parses the record's date.
func (r Record) ParsedDate() (Date, error) {
	return ParseDate(r.Date)
}

// Hour returns the hour of r.Time, or false when the time is empty or malformed.
func (r Record) Hour() (int, bool) {
	t := strings.TrimSpace(r.Time)
	if i := strings.IndexByte(t, ':'); i >= 0 {
		t = t[:i]
	}
	if t == "" {
		return 0, false
	}
	h, err := strconv.Atoi(t)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// Clone returns a copy of r that shares no slices with it.
func (r Record) Clone() Record {
	if r.Cast != nil {
		cast := make([]CastMember, len(r.Cast))
		copy(cast, r.Cast)
		r.Cast = cast
	}
	return r
}

// Price is a ticket price. It is always finite and non-negative: anything
// else, including non-numeric JSON, decodes to zero.
type Price float64

// NewPrice coerces v into a valid price.
func NewPrice(v float64) Price {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return Price(v)
}

// ParsePrice coerces free-form text into a price, yielding 0 when it is not a number.
func ParsePrice(s string) Price {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return NewPrice(f)
}

// Float64 returns the price as a float64.
func (p Price) Float64() float64 { return float64(p) }

// UnmarshalJSON accepts a JSON number or a numeric string. Anything else decodes as zero.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*p = NewPrice(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = ParsePrice(s)
		return nil
	}
	*p = 0
	return nil
}
