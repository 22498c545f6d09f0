package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"go-insights-pipeline/internal/model"
)

func TestRecordColumns(t *testing.T) {
	cols := RecordColumns([]model.Record{
		{"name": "a", "id": 1},
		{"id": 2, "assignee": "b"},
	})
	assert.Equal(t, []string{"id", "assignee", "name"}, cols)
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "", cellText(nil))
	assert.Equal(t, "3", cellText(float64(3)))
	assert.Equal(t, "a, 2", cellText([]interface{}{"a", float64(2)}))
	assert.Equal(t, "Jira", cellText(map[string]interface{}{"name": "Jira", "id": "1"}))
	assert.Equal(t, "{2 fields}", cellText(map[string]interface{}{"a": 1, "b": 2}))
}

func TestRenderRecords(t *testing.T) {
	assert.Contains(t, RenderRecords(nil, nil), "No records")

	out := RenderRecords([]model.Record{{"id": "T-1", "summary": strings.Repeat("x", 60)}}, nil)
	assert.Contains(t, out, "T-1")
	assert.Contains(t, out, "summary")
	assert.Contains(t, out, "…")
	assert.NotContains(t, out, strings.Repeat("x", 60))
}
