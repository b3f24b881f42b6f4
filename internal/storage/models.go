package storage

import (
	"errors"
	"time"
)

// RecordsKey is the logical key the record array is stored under.
const RecordsKey = "stagelog_records"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when inserting a record whose id is taken.
	ErrDuplicateID = errors.New("duplicate id")
)

type Job struct {
	ID          string
	Type        string
	RecordID    string // jobs sharing a RecordID run one at a time in enqueue order
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed", "superseded"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// JobCounts is the number of jobs per status.
type JobCounts map[string]int
