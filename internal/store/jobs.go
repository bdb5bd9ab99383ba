package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobRecord is the durable form of a scheduled job.
type JobRecord struct {
	ID        string    `json:"id"`
	Frequency string    `json:"frequency"`
	Target    string    `json:"target"`
	Args      string    `json:"args,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastRunAt time.Time `json:"last_run_at,omitzero"`
}

// SaveJob inserts or replaces a scheduled job.
func (s *Store) SaveJob(ctx context.Context, job JobRecord) error {
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("save job: id is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO scheduled_jobs (id, frequency, target, args, created_at, last_run_at)
         VALUES (?, ?, ?, ?, ?, NULL)
         ON CONFLICT(id) DO UPDATE SET frequency = excluded.frequency, target = excluded.target, args = excluded.args`,
		job.ID, job.Frequency, job.Target, nullableString(job.Args), formatTime(job.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// DeleteJob removes a job. It reports whether a row existed.
func (s *Store) DeleteJob(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, "DELETE FROM scheduled_jobs WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete job %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete job %s: %w", id, err)
	}
	return affected > 0, nil
}

// MarkJobRun records the latest execution time of a job.
func (s *Store) MarkJobRun(ctx context.Context, id string, at time.Time) error {
	if _, err := s.exec(ctx, "UPDATE scheduled_jobs SET last_run_at = ? WHERE id = ?", formatTime(at), id); err != nil {
		return fmt.Errorf("mark job %s run: %w", id, err)
	}
	return nil
}

// ListJobs returns all persisted jobs ordered by id.
func (s *Store) ListJobs(ctx context.Context) ([]JobRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, frequency, target, args, created_at, last_run_at FROM scheduled_jobs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var (
			job        JobRecord
			args       sql.NullString
			createdRaw sql.NullString
			lastRunRaw sql.NullString
		)
		if err := rows.Scan(&job.ID, &job.Frequency, &job.Target, &args, &createdRaw, &lastRunRaw); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Args = args.String
		job.CreatedAt = parseTime(createdRaw)
		job.LastRunAt = parseTime(lastRunRaw)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}
