package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insights-pipeline/internal/backend/backendtest"
	"go-insights-pipeline/internal/model"
	"go-insights-pipeline/internal/pipeline"
	"go-insights-pipeline/internal/store"
	"go-insights-pipeline/pkg/utils"
)

func newService(t *testing.T) (*Service, *store.Store, *backendtest.Fake) {
	t.Helper()
	x, fake, _ := newExporter(t)
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	sets, err := ParseColumns([]byte("tickets:\n  - {title: Key, key: key}\n  - {key: story_points}\n"))
	require.NoError(t, err)
	svc := NewService(x, st, utils.NewOutputManager(t.TempDir()), WithColumnSets(sets))
	t.Cleanup(svc.Wait)
	return svc, st, fake
}

func TestService_SubmitWritesFileAndCompletes(t *testing.T) {
	svc, st, fake := newService(t)
	fake.ListReturns("tickets", model.Record{"key": "K-1", "story_points": 3})

	jobID, err := svc.Submit(context.Background(), model.ExportJobSpec{URI: "tickets", ColumnSet: "tickets"})
	require.NoError(t, err)
	svc.Wait()

	job, err := st.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.True(t, job.Result.Success)
	assert.Equal(t, KindCSV, job.Result.Kind)
	assert.Equal(t, 1, job.Result.RecordCount)

	data, err := os.ReadFile(job.Result.Path)
	require.NoError(t, err)
	assert.Equal(t, "Key,Story Points\nK-1,3\n", string(data))

	names, err := svc.Output().ListFiles(jobID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tickets-drilldown.csv"}, names)

	logs, err := st.GetPipelineLogs(jobID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "write", logs[1].Stage)
}

func TestService_FailedJobRecordsError(t *testing.T) {
	svc, st, fake := newService(t)
	fake.ListFails("tickets", 500)

	jobID, err := svc.Submit(context.Background(), model.ExportJobSpec{URI: "tickets"})
	require.NoError(t, err)
	svc.Wait()

	job, err := st.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, job.Status)
	require.NotNil(t, job.Result)
	assert.False(t, job.Result.Success)
	assert.Contains(t, job.Result.Error, ErrExportAborted.Error())

	errs, err := st.GetJobErrors(jobID)
	require.NoError(t, err)
	require.Len(t, errs, 1)

	names, err := svc.Output().ListFiles(jobID)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestService_Validate(t *testing.T) {
	svc, _, _ := newService(t)
	tests := []struct {
		name  string
		spec  model.ExportJobSpec
		field string
	}{
		{"missing uri", model.ExportJobSpec{}, "uri"},
		{"unknown kind", model.ExportJobSpec{Kind: "pdf", URI: "x"}, "kind"},
		{"negative cap", model.ExportJobSpec{URI: "x", RowCap: -1}, "row_cap"},
		{"unknown column set", model.ExportJobSpec{URI: "x", ColumnSet: "nope"}, "column_set"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.spec)
			var verr *pipeline.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
	assert.NoError(t, svc.Validate(model.ExportJobSpec{Kind: KindUsers}))
}

func TestService_ReconfigureAppliesToNewJobs(t *testing.T) {
	svc, st, fake := newService(t)
	fake.Paged("tickets", 30, func(i int) model.Record { return model.Record{"key": fmt.Sprintf("K-%d", i)} })
	svc.Reconfigure(ColumnSets{"keys": {{Title: "Key", Key: "key"}}}, 5)

	assert.Error(t, svc.Validate(model.ExportJobSpec{URI: "tickets", ColumnSet: "tickets"}))

	jobID, err := svc.Submit(context.Background(), model.ExportJobSpec{URI: "tickets", ColumnSet: "keys"})
	require.NoError(t, err)
	svc.Wait()

	job, err := st.GetJob(jobID)
	require.NoError(t, err)
	require.NotNil(t, job.Result)
	assert.Equal(t, 5, job.Result.RecordCount)
	assert.True(t, job.Result.Capped)
}
