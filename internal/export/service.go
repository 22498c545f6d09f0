package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/internal/pipeline"
	"go-insights-pipeline/internal/store"
	"go-insights-pipeline/pkg/utils"
)

// Export kinds
const (
	KindCSV    = "csv"
	KindTriage = "triage"
	KindUsers  = "users"
)

// JobStore persists the lifecycle of export jobs
type JobStore interface {
	SaveJob(jobID string, spec model.ExportJobSpec) error
	UpdateJobStatus(jobID, status string) error
	CompleteJob(jobID string, result model.ExportResult) error
	SaveJobError(jobID string, err error) error
	SavePipelineLog(jobID, stage, level, message string, details map[string]interface{}) error
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithColumnSets makes named column sets available to job specs
func WithColumnSets(sets ColumnSets) ServiceOption { return func(s *Service) { s.columns = sets } }

// WithDefaultRowCap caps jobs that do not set their own row cap
func WithDefaultRowCap(n int) ServiceOption { return func(s *Service) { s.rowCap = n } }

// WithServiceLogger sets the service logger
func WithServiceLogger(l *zap.Logger) ServiceOption { return func(s *Service) { s.log = l } }

// Service runs export jobs in the background, writes their files and
// records their lifecycle.
type Service struct {
	exporter *Exporter
	store    JobStore
	out      *utils.OutputManager
	log      *zap.Logger
	wg       sync.WaitGroup

	mu      sync.RWMutex
	columns ColumnSets
	rowCap  int
}

// NewService creates a job service
func NewService(x *Exporter, st JobStore, out *utils.OutputManager, opts ...ServiceOption) *Service {
	s := &Service{exporter: x, store: st, out: out, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("jobs")
	return s
}

// Reconfigure swaps the column sets and the default row cap. Running jobs
// keep the values they started with.
func (s *Service) Reconfigure(sets ColumnSets, rowCap int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = sets
	s.rowCap = rowCap
}

func (s *Service) defaultRowCap() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rowCap
}

// Output returns the file organizer jobs write to
func (s *Service) Output() *utils.OutputManager { return s.out }

// Validate checks a job spec before it is stored
func (s *Service) Validate(spec model.ExportJobSpec) error {
	switch spec.Kind {
	case "", KindCSV, KindTriage:
		if spec.URI == "" {
			return &pipeline.ValidationError{Field: "uri", Reason: "required"}
		}
	case KindUsers:
	default:
		return &pipeline.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown export kind %q", spec.Kind)}
	}
	if spec.RowCap < 0 {
		return &pipeline.ValidationError{Field: "row_cap", Reason: "must be >= 0"}
	}
	if _, err := s.resolveColumns(spec); err != nil {
		return err
	}
	return nil
}

func (s *Service) resolveColumns(spec model.ExportJobSpec) ([]model.ColumnSpec, error) {
	if len(spec.Columns) > 0 || spec.ColumnSet == "" {
		return spec.Columns, nil
	}
	s.mu.RLock()
	cols, ok := s.columns[spec.ColumnSet]
	s.mu.RUnlock()
	if !ok {
		return nil, &pipeline.ValidationError{Field: "column_set", Reason: fmt.Sprintf("unknown column set %q", spec.ColumnSet)}
	}
	return cols, nil
}

// Submit stores the job and runs it in the background. The job outlives
// the cancellation of ctx.
func (s *Service) Submit(ctx context.Context, spec model.ExportJobSpec) (string, error) {
	if err := s.Validate(spec); err != nil {
		return "", err
	}
	jobID := uuid.NewString()
	if err := s.store.SaveJob(jobID, spec); err != nil {
		return "", fmt.Errorf("failed to save job: %w", err)
	}

	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Run(runCtx, jobID, spec); err != nil {
			s.log.Warn("export job failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}()
	return jobID, nil
}

// Wait blocks until every submitted job has finished
func (s *Service) Wait() { s.wg.Wait() }

// Run produces the job's file, writes it under the job's output directory
// and records the result. Failures are persisted with the job.
func (s *Service) Run(ctx context.Context, jobID string, spec model.ExportJobSpec) (res model.ExportResult, err error) {
	start := time.Now()
	kind := spec.Kind
	if kind == "" {
		kind = KindCSV
	}
	res = model.ExportResult{JobID: jobID, Kind: kind}

	s.record(s.store.UpdateJobStatus(jobID, store.StatusRunning))
	s.record(s.store.SavePipelineLog(jobID, "export", "info", "Starting export", map[string]interface{}{
		"kind": kind,
		"uri":  spec.URI,
	}))

	defer func() {
		res.Timestamp = time.Now().UTC()
		if err != nil {
			res.Success = false
			res.Error = err.Error()
			s.record(s.store.SaveJobError(jobID, err))
			s.record(s.store.SavePipelineLog(jobID, "export", "error", "Export failed", map[string]interface{}{
				"error": err.Error(),
			}))
		}
		s.record(s.store.CompleteJob(jobID, res))
	}()

	ctx, cancel := context.WithTimeout(ctx, utils.ParseDuration(spec.Timeout))
	defer cancel()

	f, err := s.produce(ctx, kind, spec)
	if err != nil {
		return res, err
	}
	res.FileName = f.Name
	res.RecordCount = f.Rows
	res.Capped = f.Capped

	path, err := s.out.WriteFile(jobID, f.Name, f.Content)
	if err != nil {
		return res, err
	}
	res.Path = path
	res.Success = true

	s.record(s.store.SavePipelineLog(jobID, "write", "info", "Export file written", map[string]interface{}{
		"file":        f.Name,
		"rows":        f.Rows,
		"pages":       f.Pages,
		"capped":      f.Capped,
		"duration_ms": time.Since(start).Milliseconds(),
	}))
	s.log.Info("export job complete",
		zap.String("job_id", jobID),
		zap.String("kind", kind),
		zap.String("file", f.Name),
		zap.Int("rows", f.Rows),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

func (s *Service) produce(ctx context.Context, kind string, spec model.ExportJobSpec) (File, error) {
	if spec.RowCap == 0 {
		spec.RowCap = s.defaultRowCap()
	}
	switch kind {
	case KindUsers:
		return s.exporter.Users(ctx, UsersJob{
			URI:       spec.URI,
			SchemaURI: spec.SchemaURI,
			Filters:   spec.Filters,
			RowCap:    spec.RowCap,
			FileName:  spec.FileName,
		})
	case KindCSV, KindTriage:
		columns, err := s.resolveColumns(spec)
		if err != nil {
			return File{}, err
		}
		job := Job{
			URI:               spec.URI,
			Method:            spec.Method,
			Filters:           spec.Filters,
			Columns:           columns,
			RowCap:            spec.RowCap,
			FileName:          spec.FileName,
			Derive:            spec.Derive,
			DeriveOnly:        spec.DeriveOnly,
			ReportDashboardID: spec.ReportDashboardID,
		}
		if kind == KindTriage {
			return s.exporter.TriageGrid(ctx, job)
		}
		return s.exporter.CSV(ctx, job)
	default:
		return File{}, &pipeline.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown export kind %q", kind)}
	}
}

// record logs a store write failure; job bookkeeping never fails the export
func (s *Service) record(err error) {
	if err != nil {
		s.log.Warn("failed to record job state", zap.Error(err))
	}
}
