package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/metrics"
	"github.com/kalambet/stagelog/internal/storage"
)

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Target is the remote copy. Implemented by storage.MongoStore.
type Target interface {
	Upsert(ctx context.Context, userID string, rec journal.Record) error
	Delete(ctx context.Context, userID, id string) error
}

// Worker processes mirror jobs from the SQLite job queue.
type Worker struct {
	store   JobStore
	target  Target
	userID  string
	poll    time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewWorker creates a Worker mirroring into target on behalf of userID.
// If pollInterval is <= 0, it defaults to 500ms. m may be nil.
func NewWorker(store JobStore, target Target, userID string, pollInterval time.Duration, logger *zap.Logger, m *metrics.Metrics) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:   store,
		target:  target,
		userID:  userID,
		poll:    pollInterval,
		logger:  logger.Named("mirror"),
		metrics: m,
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", zap.Error(err))
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single mirror job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(JobTypes)
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
		w.count(job.Type, "error")
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		return true, nil
	}

	w.count(job.Type, "ok")
	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case JobUpsert:
		var p upsertPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		return w.target.Upsert(ctx, w.userID, p.Record)
	case JobDelete:
		var p deletePayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		err := w.target.Delete(ctx, w.userID, p.ID)
		if errors.Is(err, storage.ErrNotFound) {
			// Never mirrored, nothing to remove.
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown job type %q", job.Type)
}

func (w *Worker) count(typ, result string) {
	if w.metrics != nil {
		w.metrics.MirrorJobs.WithLabelValues(typ, result).Inc()
	}
}
