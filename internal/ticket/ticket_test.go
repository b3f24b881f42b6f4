package ticket

import (
	"testing"
)

func TestParseText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		date     string
		time     string
		location string
		price    float64
		hasPrice bool
	}{
		{
			name:     "full ticket",
			text:     "音乐剧《剧院魅影》 2024.10.20 19:30 上海大剧院 票价 580",
			date:     "2024-10-20",
			time:     "19:30",
			location: "上海大剧院",
			price:    580,
			hasPrice: true,
		},
		{
			name: "chinese full date",
			text: "2024年3月5日 14:00",
			date: "2024-03-05",
			time: "14:00",
		},
		{
			name:     "short date uses current year",
			text:     "10月1日 天桥艺术中心 ¥380",
			date:     "2026-10-01",
			location: "天桥艺术中心",
			price:    380,
			hasPrice: true,
		},
		{
			name:     "full-width yen",
			text:     "￥ 120\n二七剧场",
			location: "二七剧场",
			price:    120,
			hasPrice: true,
		},
		{
			name: "nothing recognisable",
			text: "see you there",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ParseText(tt.text, 2026)
			if d.Date != tt.date {
				t.Errorf("Date = %q, want %q", d.Date, tt.date)
			}
			if d.Time != tt.time {
				t.Errorf("Time = %q, want %q", d.Time, tt.time)
			}
			if d.Location != tt.location {
				t.Errorf("Location = %q, want %q", d.Location, tt.location)
			}
			if (d.Price != nil) != tt.hasPrice {
				t.Fatalf("Price set = %v, want %v", d.Price != nil, tt.hasPrice)
			}
			if d.Price != nil && d.Price.Float64() != tt.price {
				t.Errorf("Price = %v, want %v", d.Price.Float64(), tt.price)
			}
			if d.Notes != tt.text {
				t.Errorf("Notes = %q, want full text", d.Notes)
			}
		})
	}
}

func TestDraftRecord(t *testing.T) {
	r := ParseText("2024-06-01 20:00 保利剧院 票价 300", 2024).Record()
	if r.Date != "2024-06-01" || r.Time != "20:00" || r.Price.Float64() != 300 {
		t.Errorf("Record() = %+v", r)
	}
	if r.Cast == nil {
		t.Error("Record().Cast = nil, want empty slice")
	}
	if r.ID != "" {
		t.Errorf("Record().ID = %q, want empty", r.ID)
	}
}

func TestExtractPDFTextRejectsGarbage(t *testing.T) {
	if _, err := ExtractPDFText([]byte("not a pdf")); err == nil {
		t.Error("ExtractPDFText(garbage) = nil error, want error")
	}
}

func TestVenues(t *testing.T) {
	all := Venues()
	if len(all) != 8 {
		t.Fatalf("len(Venues()) = %d, want 8", len(all))
	}
	if all[0].Name != "上海" {
		t.Errorf("first city = %q, want 上海", all[0].Name)
	}
	all[0].Venues[0] = "mutated"
	if VenuesIn("上海")[0] != "上海文化广场" {
		t.Error("Venues() result aliases the catalog")
	}
	if VenuesIn("Atlantis") != nil {
		t.Error("VenuesIn(unknown) != nil")
	}
}
