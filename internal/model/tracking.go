package model

import "time"

// StageMetrics represents timing for one step of a pagination/derivation run
type StageMetrics struct {
	StageName string        `json:"stage_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Records   int           `json:"records"`
	Status    string        `json:"status"` // "running", "completed", "failed", "skipped"
}

// ErrorDetail represents a persisted export job error with context
type ErrorDetail struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// LogEntry is a persisted export job log line
type LogEntry struct {
	ID        int64                  `json:"id"`
	JobID     string                 `json:"job_id"`
	Stage     string                 `json:"stage"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
