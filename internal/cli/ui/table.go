package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"go-insights-pipeline/internal/model"
)

// maxCell truncates long values in tables
const maxCell = 40

// RecordColumns returns the fields shown for records: the union of their
// keys, id first, the rest sorted.
func RecordColumns(records []model.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		if (cols[i] == "id") != (cols[j] == "id") {
			return cols[i] == "id"
		}
		return cols[i] < cols[j]
	})
	return cols
}

// RenderRecords renders records as a bordered table
func RenderRecords(records []model.Record, columns []string) string {
	if len(records) == 0 {
		return Styles.Muted.Render("No records")
	}
	if len(columns) == 0 {
		columns = RecordColumns(records)
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = truncate(cellText(rec[col]))
		}
		rows = append(rows, row)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Muted).
		Headers(columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Styles.Header
			}
			return Styles.Cell
		}).
		String()
}

func cellText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = cellText(item)
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		if name, ok := val["name"]; ok {
			return cellText(name)
		}
		return fmt.Sprintf("{%d fields}", len(val))
	default:
		return model.Stringify(val)
	}
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxCell {
		return s
	}
	return string(r[:maxCell-1]) + "…"
}
