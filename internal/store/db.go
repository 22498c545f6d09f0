// Package store persists export jobs, their errors and their logs in sqlite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	_ "github.com/mattn/go-sqlite3"

	"go-insights-pipeline/internal/model"
)

// Job statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrJobNotFound is returned for an unknown job id
var ErrJobNotFound = errors.New("job not found")

// Job is a stored export job
type Job struct {
	ID        string              `json:"id"`
	Spec      model.ExportJobSpec `json:"spec"`
	Status    string              `json:"status"`
	Result    *model.ExportResult `json:"result,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Store is a sqlite backed job store
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS export_jobs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		result TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS job_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT,
		error_message TEXT,
		created_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS pipeline_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT,
		stage TEXT,
		level TEXT,
		message TEXT,
		details TEXT,
		created_at DATETIME
	);`,
}

// Open opens the database at path and creates the tables if needed.
// ":memory:" gives a private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// sqlite serializes writers; one connection also keeps ":memory:" a single database
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

// SaveJob stores a new pending export job
func (s *Store) SaveJob(jobID string, spec model.ExportJobSpec) error {
	specJSON, err := sonic.MarshalString(spec)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO export_jobs (id, spec, status, result, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		jobID, specJSON, StatusPending, "", now, now)
	return err
}

// UpdateJobStatus updates job status
func (s *Store) UpdateJobStatus(jobID string, status string) error {
	res, err := s.db.Exec(`UPDATE export_jobs SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now().UTC(), jobID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// CompleteJob records the job result and sets its final status
func (s *Store) CompleteJob(jobID string, result model.ExportResult) error {
	resultJSON, err := sonic.MarshalString(result)
	if err != nil {
		return err
	}
	status := StatusCompleted
	if !result.Success {
		status = StatusFailed
	}
	res, err := s.db.Exec(`UPDATE export_jobs SET status = ?, result = ?, updated_at = ? WHERE id = ?`,
		status, resultJSON, time.Now().UTC(), jobID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// SaveJobError records an error for a job
func (s *Store) SaveJobError(jobID string, err error) error {
	if err == nil {
		return nil
	}
	_, e := s.db.Exec(`INSERT INTO job_errors (job_id, error_message, created_at) VALUES (?, ?, ?)`,
		jobID, err.Error(), time.Now().UTC())
	return e
}

// SavePipelineLog records a log line for one stage of a job
func (s *Store) SavePipelineLog(jobID, stage, level, message string, details map[string]interface{}) error {
	detailsJSON := ""
	if len(details) > 0 {
		var err error
		if detailsJSON, err = sonic.MarshalString(details); err != nil {
			return err
		}
	}
	_, err := s.db.Exec(`INSERT INTO pipeline_logs (job_id, stage, level, message, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		jobID, stage, level, message, detailsJSON, time.Now().UTC())
	return err
}

// ListJobs returns all jobs, newest first
func (s *Store) ListJobs() ([]Job, error) {
	rows, err := s.db.Query(`SELECT id, spec, status, result, created_at, updated_at FROM export_jobs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetJob fetches one job
func (s *Store) GetJob(jobID string) (Job, error) {
	row := s.db.QueryRow(`SELECT id, spec, status, result, created_at, updated_at FROM export_jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return job, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (Job, error) {
	var job Job
	var specJSON, resultJSON string
	if err := row.Scan(&job.ID, &specJSON, &job.Status, &resultJSON, &job.CreatedAt, &job.UpdatedAt); err != nil {
		return Job{}, err
	}
	if err := sonic.UnmarshalString(specJSON, &job.Spec); err != nil {
		return Job{}, fmt.Errorf("job %s: decode spec: %w", job.ID, err)
	}
	if resultJSON != "" {
		var res model.ExportResult
		if err := sonic.UnmarshalString(resultJSON, &res); err != nil {
			return Job{}, fmt.Errorf("job %s: decode result: %w", job.ID, err)
		}
		job.Result = &res
	}
	return job, nil
}

// GetJobErrors returns the errors recorded for a job in insertion order
func (s *Store) GetJobErrors(jobID string) ([]model.ErrorDetail, error) {
	rows, err := s.db.Query(`SELECT id, job_id, error_message, created_at FROM job_errors WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ErrorDetail
	for rows.Next() {
		var d model.ErrorDetail
		if err := rows.Scan(&d.ID, &d.JobID, &d.Message, &d.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetPipelineLogs returns the log lines of a job in insertion order
func (s *Store) GetPipelineLogs(jobID string) ([]model.LogEntry, error) {
	rows, err := s.db.Query(`SELECT id, job_id, stage, level, message, details, created_at FROM pipeline_logs WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var details string
		if err := rows.Scan(&e.ID, &e.JobID, &e.Stage, &e.Level, &e.Message, &details, &e.Timestamp); err != nil {
			return nil, err
		}
		if details != "" {
			if err := sonic.UnmarshalString(details, &e.Details); err != nil {
				return nil, fmt.Errorf("log %d: decode details: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
