package journal

import (
	"fmt"
	"slices"
)

// Bucket selects one of the two list views.
type Bucket string

const (
	BucketUpcoming Bucket = "upcoming"
	BucketHistory  Bucket = "history"
)

// ParseBucket validates a bucket name.
func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(s); b {
	case BucketUpcoming, BucketHistory:
		return b, nil
	}
	return "", fmt.Errorf("unknown bucket %q", s)
}

// Status returns the record status that belongs to the bucket.
func (b Bucket) Status() Status {
	if b == BucketHistory {
		return StatusWatched
	}
	return StatusToWatch
}

// Project returns the records of bucket ordered for display: upcoming
// soonest first, history most recent first. Ties keep input order. The
// stored Status field is ignored; membership is derived from the date.
func Project(records []Record, bucket Bucket, today Date) ([]Record, []MalformedDate) {
	all, warnings := classifyAll(records, today)
	want := bucket.Status()

	picked := make([]classified, 0, len(all))
	for _, c := range all {
		if c.status == want {
			picked = append(picked, c)
		}
	}

	slices.SortStableFunc(picked, func(a, b classified) int {
		if bucket == BucketHistory {
			return b.date.Compare(a.date)
		}
		return a.date.Compare(b.date)
	})

	out := make([]Record, len(picked))
	for i, c := range picked {
		out[i] = c.rec
	}
	return out, warnings
}
