package journal

import "strings"

// Search returns the records whose title, location, notes or cast mention
// keyword, ignoring case. A blank keyword matches everything.
func Search(records []Record, keyword string) []Record {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if kw == "" || matches(r, kw) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r Record, kw string) bool {
	fields := []string{r.Title, r.Location, r.Notes}
	for _, c := range r.Cast {
		fields = append(fields, c.Actor, c.Role)
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), kw) {
			return true
		}
	}
	return false
}
