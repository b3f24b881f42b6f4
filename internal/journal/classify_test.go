package journal

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func rec(id, date string, price float64) Record {
	return Record{ID: id, Title: "Show " + id, Date: date, Price: Price(price)}
}

func TestClassifyProperty(t *testing.T) {
	start := NewDate(2023, time.December, 25)
	refs := []Date{
		NewDate(2024, time.January, 1),
		NewDate(2024, time.February, 29),
		NewDate(2024, time.March, 1),
		NewDate(2024, time.December, 31),
	}
	for _, ref := range refs {
		for i := 0; i < 400; i++ {
			d := start.AddDays(i)
			got := Classify(d, ref)
			want := StatusWatched
			if !d.Before(ref) {
				want = StatusToWatch
			}
			if got != want {
				t.Fatalf("Classify(%v, %v) = %q, want %q", d, ref, got, want)
			}
		}
	}
}

func TestClassifyTodayIsUpcoming(t *testing.T) {
	today := NewDate(2024, time.June, 15)
	if got := Classify(NewDate(2024, time.June, 15), today); got != StatusToWatch {
		t.Errorf("Classify(today) = %q, want %q", got, StatusToWatch)
	}
	if got := Classify(NewDate(2024, time.June, 14), today); got != StatusWatched {
		t.Errorf("Classify(yesterday) = %q, want %q", got, StatusWatched)
	}
}

func TestStampStatus(t *testing.T) {
	today := NewDate(2024, time.June, 15)
	r := Record{ID: "a", Title: "Cats", Date: "2024-06-01", Status: StatusToWatch,
		Cast: []CastMember{{Role: "Grizabella", Actor: "Elaine"}}}

	once, err := StampStatus(r, today)
	if err != nil {
		t.Fatalf("StampStatus: %v", err)
	}
	if once.Status != StatusWatched {
		t.Errorf("Status = %q, want %q", once.Status, StatusWatched)
	}
	twice, _ := StampStatus(once, today)
	if twice.Status != once.Status {
		t.Errorf("second stamp = %q, want %q", twice.Status, once.Status)
	}
	if r.Status != StatusToWatch {
		t.Error("StampStatus mutated its input")
	}
	once.Cast[0].Actor = "changed"
	if r.Cast[0].Actor != "Elaine" {
		t.Error("StampStatus shares the cast slice with its input")
	}
}

func TestStampStatusKeepsEmptyCast(t *testing.T) {
	r := Record{ID: "a", Title: "Cats", Date: "2024-06-01", Cast: []CastMember{}}
	out, err := StampStatus(r, NewDate(2024, time.June, 15))
	if err != nil {
		t.Fatalf("StampStatus: %v", err)
	}
	if out.Cast == nil {
		t.Fatal("Cast = nil, want empty slice")
	}
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"cast":[]`) {
		t.Errorf("json = %s, want \"cast\":[]", data)
	}
}

func TestStampStatusMalformed(t *testing.T) {
	_, err := StampStatus(Record{ID: "x", Date: "soon"}, NewDate(2024, 1, 1))
	if !errors.Is(err, ErrMalformedDate) {
		t.Fatalf("err = %v, want ErrMalformedDate", err)
	}
	var md MalformedDate
	if !errors.As(err, &md) || md.RecordID != "x" || md.Value != "soon" {
		t.Errorf("MalformedDate = %+v", md)
	}
}

func TestProjectPartitions(t *testing.T) {
	today := NewDate(2024, time.June, 15)
	records := []Record{
		rec("a", "2024-06-14", 0),
		rec("b", "2024-06-15", 0),
		rec("c", "2024-07-01", 0),
		rec("d", "2023-12-31", 0),
		rec("e", "bad", 0),
		rec("f", "2024-06-16", 0),
	}

	up, w1 := Project(records, BucketUpcoming, today)
	hist, w2 := Project(records, BucketHistory, today)

	if len(w1) != 1 || len(w2) != 1 || w1[0].RecordID != "e" {
		t.Fatalf("warnings = %v / %v, want one for record e", w1, w2)
	}
	if len(up)+len(hist) != len(records)-1 {
		t.Fatalf("upcoming %d + history %d != %d", len(up), len(hist), len(records)-1)
	}
	seen := map[string]bool{}
	for _, r := range append(append([]Record{}, up...), hist...) {
		if seen[r.ID] {
			t.Errorf("record %s in both buckets", r.ID)
		}
		seen[r.ID] = true
	}
	for _, r := range up {
		d, _ := r.ParsedDate()
		if Classify(d, today) != StatusToWatch {
			t.Errorf("upcoming contains watched record %s", r.ID)
		}
	}
}

func TestProjectOrdering(t *testing.T) {
	today := NewDate(2024, time.June, 15)
	records := []Record{
		rec("h1", "2024-01-10", 0),
		rec("u1", "2024-08-01", 0),
		rec("h2", "2024-03-05", 0),
		rec("u2", "2024-06-20", 0),
		rec("h3", "2024-03-05", 0),
		rec("u3", "2024-06-20", 0),
	}

	up, _ := Project(records, BucketUpcoming, today)
	assertIDs(t, "upcoming", up, "u2", "u3", "u1")

	hist, _ := Project(records, BucketHistory, today)
	assertIDs(t, "history", hist, "h2", "h3", "h1")
}

func TestProjectIgnoresStoredStatus(t *testing.T) {
	today := NewDate(2024, time.June, 15)
	stale := rec("s", "2024-05-01", 0)
	stale.Status = StatusToWatch

	hist, _ := Project([]Record{stale}, BucketHistory, today)
	assertIDs(t, "history", hist, "s")
	up, _ := Project([]Record{stale}, BucketUpcoming, today)
	assertIDs(t, "upcoming", up)
}

func assertIDs(t *testing.T, name string, got []Record, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %d records, want %d", name, len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("%s[%d] = %q, want %q", name, i, got[i].ID, want[i])
		}
	}
}

func TestPriceUnmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want Price
	}{
		{`120`, 120},
		{`99.5`, 99.5},
		{`"380"`, 380},
		{`"free"`, 0},
		{`null`, 0},
		{`-20`, 0},
		{`{}`, 0},
		{`true`, 0},
	}
	for _, tt := range tests {
		var p Price
		if err := p.UnmarshalJSON([]byte(tt.in)); err != nil {
			t.Errorf("UnmarshalJSON(%s) error: %v", tt.in, err)
			continue
		}
		if p != tt.want {
			t.Errorf("UnmarshalJSON(%s) = %v, want %v", tt.in, p, tt.want)
		}
	}
}

func TestHour(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"22:00", 22, true},
		{"9:30", 9, true},
		{"22", 22, true},
		{" 7 ", 7, true},
		{"", 0, false},
		{"evening", 0, false},
		{"25:00", 0, false},
		{":30", 0, false},
	}
	for _, tt := range tests {
		h, ok := Record{Time: tt.in}.Hour()
		if h != tt.want || ok != tt.ok {
			t.Errorf("Hour(%q) = %d, %v; want %d, %v", tt.in, h, ok, tt.want, tt.ok)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		rec    Record
		fields []string
	}{
		{"ok", Record{Title: "Cats", Date: "2024-01-01"}, nil},
		{"missing title", Record{Date: "2024-01-01"}, []string{"title"}},
		{"missing both", Record{Title: "  "}, []string{"title", "date"}},
		{"bad date", Record{Title: "Cats", Date: "tomorrow"}, []string{"date"}},
		{"empty actor", Record{Title: "Cats", Date: "2024-01-01",
			Cast: []CastMember{{Role: "Lead", Actor: "A"}, {Role: "Swing"}}}, []string{"cast[1].actor"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.rec)
			if tt.fields == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if len(ve.Fields) != len(tt.fields) {
				t.Fatalf("fields = %v, want %v", ve.Fields, tt.fields)
			}
			for i, f := range tt.fields {
				if ve.Fields[i].Field != f {
					t.Errorf("field[%d] = %q, want %q", i, ve.Fields[i].Field, f)
				}
			}
		})
	}
}
