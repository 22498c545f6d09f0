package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-insights-pipeline/internal/model"
)

func TestParseColumnFlags(t *testing.T) {
	cols, err := ParseColumnFlags([]string{"Key:key", "story_points", " Sprint : sprint_name "})
	require.NoError(t, err)
	assert.Equal(t, []model.ColumnSpec{
		{Title: "Key", Key: "key"},
		{Title: "Story Points", Key: "story_points"},
		{Title: "Sprint", Key: "sprint_name"},
	}, cols)

	_, err = ParseColumnFlags([]string{"Title:"})
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "fetch", "export"}, names)
	assert.NotNil(t, fetchCmd.Flags().Lookup("filter"))
	assert.NotNil(t, exportCmd.Flags().Lookup("row-cap"))
}
