package model

import "time"

// ExportResult represents the outcome of an export job
type ExportResult struct {
	JobID       string    `json:"job_id"`
	Kind        string    `json:"kind"` // "csv", "triage", "users"
	FileName    string    `json:"file_name"`
	Path        string    `json:"path,omitempty"`
	RecordCount int       `json:"record_count"`
	Capped      bool      `json:"capped"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ExportJobSpec is the payload of POST /api/v1/exports
type ExportJobSpec struct {
	Kind              string       `json:"kind"` // "csv" (default), "triage", "users"
	URI               string       `json:"uri"`
	Method            Method       `json:"method,omitempty"`
	Filters           Filters      `json:"filters,omitempty"`
	Columns           []ColumnSpec `json:"columns,omitempty"`
	ColumnSet         string       `json:"column_set,omitempty"`
	RowCap            int          `json:"row_cap,omitempty"`
	FileName          string       `json:"file_name,omitempty"`
	Derive            bool         `json:"derive,omitempty"`
	DeriveOnly        []string     `json:"derive_only,omitempty"`
	SchemaURI         string       `json:"schema_uri,omitempty"`
	ReportDashboardID string       `json:"report_dashboard_id,omitempty"`
	Timeout           string       `json:"timeout,omitempty"` // e.g. "5m"
}

// ColumnSpec names one CSV column: its header title and the record field it reads
type ColumnSpec struct {
	Title string `json:"title" yaml:"title"`
	Key   string `json:"key" yaml:"key"`
}
