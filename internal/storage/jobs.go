package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// --- Jobs ---
//
// The jobs table is the outbox of changes waiting to be mirrored.

// EnqueueJob adds job to the queue. A job with a RecordID supersedes the
// pending and failed jobs already queued for that record, since each job
// carries the record's full latest state.
func (s *Store) EnqueueJob(job Job) error {
	now := time.Now().UTC().Format(time.RFC3339)
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC().Format(time.RFC3339)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning enqueue transaction: %w", err)
	}
	defer tx.Rollback()

	if job.RecordID != "" {
		if _, err := tx.Exec(`UPDATE jobs SET status = 'superseded', updated_at = ?
			WHERE record_id = ? AND status IN ('pending', 'failed')`, now, job.RecordID); err != nil {
			return fmt.Errorf("superseding jobs for %s: %w", job.RecordID, err)
		}
	}
	if _, err := tx.Exec(`
		INSERT INTO jobs (id, type, record_id, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.RecordID, job.PayloadJSON, maxAttempts, runAfter, now, now,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ClaimNextJob marks the oldest runnable pending job of one of types as
// running and returns it, or nil when there is none. A job is not
// runnable while an earlier job for the same record is pending or running.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `SELECT id, type, record_id, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error
		FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + strings.Repeat(",?", len(types)-1) + `)
		AND (record_id = '' OR NOT EXISTS (
			SELECT 1 FROM jobs prev
			WHERE prev.record_id = jobs.record_id AND prev.rowid < jobs.rowid
			AND prev.status IN ('pending', 'running')))
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]any, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback()

	j, err := scanJob(tx.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = "running"
	j.UpdatedAt, _ = time.Parse(time.RFC3339, now)
	return j, nil
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError sql.NullString
	if err := row.Scan(
		&j.ID, &j.Type, &j.RecordID, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError,
	); err != nil {
		return nil, err
	}
	j.LastError = lastError.String

	var err error
	for _, f := range []struct {
		dst *time.Time
		raw string
		col string
	}{{&j.RunAfter, runAfter, "run_after"}, {&j.CreatedAt, createdAt, "created_at"}, {&j.UpdatedAt, updatedAt, "updated_at"}} {
		if *f.dst, err = parseJobTime(f.raw); err != nil {
			return nil, fmt.Errorf("parsing %s for job %s: %w", f.col, j.ID, err)
		}
	}
	return &j, nil
}

// parseJobTime reads both the RFC 3339 values written here and the
// "YYYY-MM-DD HH:MM:SS" form of SQLite's CURRENT_TIMESTAMP defaults.
func parseJobTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateTime, s)
}

func (s *Store) CompleteJob(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempts++

	if attempts >= maxAttempts {
		_, err = tx.Exec(`UPDATE jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, now.Format(time.RFC3339), id)
	} else {
		backoff := time.Duration(math.Pow(2, float64(attempts))) * time.Second
		runAfter := now.Add(backoff)
		_, err = tx.Exec(`UPDATE jobs SET status = 'pending', attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, runAfter.Format(time.RFC3339), now.Format(time.RFC3339), id)
	}

	if err != nil {
		return err
	}

	return tx.Commit()
}

// CountJobs returns how many jobs of the given type sit in each status.
func (s *Store) CountJobs(jobType string) (JobCounts, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM jobs WHERE type LIKE ? GROUP BY status`, jobType+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(JobCounts)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// PurgeCompletedJobs deletes completed and superseded jobs last updated
// before cutoff.
func (s *Store) PurgeCompletedJobs(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM jobs WHERE status IN ('completed', 'superseded') AND updated_at < ?`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RequeueStaleJobs returns jobs left running since before cutoff to the
// pending queue. A job is only running while a worker holds it, so at
// startup every running job was abandoned by a previous process.
func (s *Store) RequeueStaleJobs(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`UPDATE jobs SET status = 'pending', updated_at = ? WHERE status = 'running' AND updated_at < ?`,
		time.Now().UTC().Format(time.RFC3339), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RetryFailedJobs gives failed jobs whose type starts with typePrefix a
// fresh set of attempts.
func (s *Store) RetryFailedJobs(typePrefix string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE jobs SET status = 'pending', attempts = 0, run_after = ?, updated_at = ?
		WHERE status = 'failed' AND type LIKE ?`, now, now, typePrefix+"%")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
