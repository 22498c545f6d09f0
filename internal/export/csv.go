package export

import (
	"sort"
	"strings"

	"github.com/bytedance/sonic"

	"go-insights-pipeline/internal/model"
)

// Transformer renders one record as one CSV line, without the newline
type Transformer func(rec model.Record, columns []model.ColumnSpec) string

// Quote wraps v in double quotes when it contains a comma. Embedded quotes
// and newlines are written as they are.
func Quote(v string) string {
	if strings.Contains(v, ",") {
		return `"` + v + `"`
	}
	return v
}

// Cell renders a record value for a CSV cell
func Cell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, Cell(item))
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(val, ", ")
	case map[string]interface{}, []map[string]interface{}:
		s, err := sonic.MarshalString(val)
		if err != nil {
			return ""
		}
		return s
	default:
		return model.Stringify(val)
	}
}

// DefaultTransformer writes the columns' keys in order
func DefaultTransformer(rec model.Record, columns []model.ColumnSpec) string {
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = Quote(Cell(rec[c.Key]))
	}
	return strings.Join(cells, ",")
}

// HeaderLine renders the column titles
func HeaderLine(columns []model.ColumnSpec) string {
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = Quote(c.Title)
	}
	return strings.Join(cells, ",")
}

// ColumnsFromRecord derives a column set from the keys of rec, sorted
func ColumnsFromRecord(rec model.Record) []model.ColumnSpec {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cols := make([]model.ColumnSpec, len(keys))
	for i, k := range keys {
		cols[i] = model.ColumnSpec{Title: TitleFromKey(k), Key: k}
	}
	return cols
}
