package journal

// Classify returns the bucket a show dated date falls into relative to
// today. A show dated today has not happened yet.
func Classify(date, today Date) Status {
	if date.Before(today) {
		return StatusWatched
	}
	return StatusToWatch
}

// StampStatus returns a copy of r with Status recomputed from its date.
// It is run once per create or update, with today taken at save time.
func StampStatus(r Record, today Date) (Record, error) {
	d, err := r.ParsedDate()
	if err != nil {
		return Record{}, MalformedDate{RecordID: r.ID, Value: r.Date, Err: err}
	}
	out := r.Clone()
	out.Status = Classify(d, today)
	return out, nil
}

// classified pairs a record with its parsed date so views parse once.
type classified struct {
	rec    Record
	date   Date
	status Status
}

// classifyAll splits records into ones with a usable date and warnings for
// the rest. Input order is preserved.
func classifyAll(records []Record, today Date) ([]classified, []MalformedDate) {
	out := make([]classified, 0, len(records))
	var warnings []MalformedDate
	for _, r := range records {
		d, err := r.ParsedDate()
		if err != nil {
			warnings = append(warnings, MalformedDate{RecordID: r.ID, Value: r.Date, Err: err})
			continue
		}
		out = append(out, classified{rec: r, date: d, status: Classify(d, today)})
	}
	return out, warnings
}
