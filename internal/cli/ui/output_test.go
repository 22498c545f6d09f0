package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestPrintHelpers(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevColor := Out, color.NoColor
	Out, color.NoColor = &buf, true
	t.Cleanup(func() { Out, color.NoColor = prevOut, prevColor })

	PrintSuccess("wrote %s", "a.csv")
	PrintWarning("unresolved: %d", 2)
	PrintError("boom")
	PrintInfo("3 records")

	assert.Equal(t, "✓ wrote a.csv\n⚠ unresolved: 2\n✗ boom\nℹ 3 records\n", buf.String())
}
