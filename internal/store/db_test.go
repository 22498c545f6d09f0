package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insights-pipeline/internal/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_JobLifecycle(t *testing.T) {
	s := openStore(t)
	spec := model.ExportJobSpec{URI: "tickets", RowCap: 500, DeriveOnly: []string{"tags"}}
	require.NoError(t, s.SaveJob("job-1", spec))

	job, err := s.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, spec, job.Spec)
	assert.Nil(t, job.Result)

	require.NoError(t, s.UpdateJobStatus("job-1", StatusRunning))
	require.NoError(t, s.CompleteJob("job-1", model.ExportResult{JobID: "job-1", FileName: "tickets-drilldown.csv", RecordCount: 3, Success: true}))

	job, err = s.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 3, job.Result.RecordCount)
}

func TestStore_FailedResultMarksJobFailed(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.SaveJob("job-1", model.ExportJobSpec{URI: "tickets"}))
	require.NoError(t, s.CompleteJob("job-1", model.ExportResult{JobID: "job-1", Error: "boom"}))

	job, err := s.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
}

func TestStore_UnknownJob(t *testing.T) {
	s := openStore(t)
	_, err := s.GetJob("missing")
	assert.True(t, errors.Is(err, ErrJobNotFound))
	assert.True(t, errors.Is(s.UpdateJobStatus("missing", StatusRunning), ErrJobNotFound))
}

func TestStore_ListJobs(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.SaveJob("a", model.ExportJobSpec{URI: "a"}))
	require.NoError(t, s.SaveJob("b", model.ExportJobSpec{URI: "b"}))

	jobs, err := s.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, []string{jobs[0].ID, jobs[1].ID})
}

func TestStore_ErrorsAndLogs(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.SaveJobError("job-1", errors.New("page 2 failed")))
	require.NoError(t, s.SaveJobError("job-1", nil))
	require.NoError(t, s.SavePipelineLog("job-1", "walk", "info", "started", map[string]interface{}{"pages": float64(3)}))
	require.NoError(t, s.SavePipelineLog("job-1", "write", "info", "done", nil))

	errs, err := s.GetJobErrors("job-1")
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "page 2 failed", errs[0].Message)

	logs, err := s.GetPipelineLogs("job-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "walk", logs[0].Stage)
	assert.Equal(t, float64(3), logs[0].Details["pages"])
	assert.Nil(t, logs[1].Details)
}
