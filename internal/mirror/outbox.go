// Package mirror pushes local record changes to the cloud copy in MongoDB.
// Changes are written to the SQLite jobs table first and drained by Worker,
// so a save never waits on the network.
package mirror

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/storage"
)

const (
	JobPrefix = "mirror_"
	JobUpsert = JobPrefix + "upsert"
	JobDelete = JobPrefix + "delete"
)

// JobTypes lists the job types the worker claims.
var JobTypes = []string{JobUpsert, JobDelete}

type upsertPayload struct {
	Record journal.Record `json:"record"`
}

type deletePayload struct {
	ID string `json:"id"`
}

// Enqueuer is the part of the job queue the outbox writes to.
type Enqueuer interface {
	EnqueueJob(job storage.Job) error
}

// Outbox records pending mirror operations.
type Outbox struct {
	store       Enqueuer
	maxAttempts int
}

func NewOutbox(store Enqueuer) *Outbox {
	return &Outbox{store: store, maxAttempts: 5}
}

// QueueUpsert schedules rec to be written to the mirror.
func (o *Outbox) QueueUpsert(rec journal.Record) error {
	return o.enqueue(JobUpsert, rec.ID, upsertPayload{Record: rec})
}

// QueueDelete schedules id to be removed from the mirror.
func (o *Outbox) QueueDelete(id string) error {
	return o.enqueue(JobDelete, id, deletePayload{ID: id})
}

func (o *Outbox) enqueue(typ, recordID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling %s payload: %w", typ, err)
	}
	return o.store.EnqueueJob(storage.Job{
		ID:          uuid.NewString(),
		Type:        typ,
		RecordID:    recordID,
		PayloadJSON: string(data),
		MaxAttempts: o.maxAttempts,
	})
}
