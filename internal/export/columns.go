package export

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"go-insights-pipeline/internal/model"
)

// ColumnSets is a named collection of column sets, as stored in YAML:
//
//	tickets:
//	  - {title: Key, key: key}
//	  - {title: Summary, key: summary}
type ColumnSets map[string][]model.ColumnSpec

// LoadColumns reads a column set file
func LoadColumns(path string) (ColumnSets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read column sets: %w", err)
	}
	return ParseColumns(data)
}

// ParseColumns decodes column sets from YAML and fills missing titles
func ParseColumns(data []byte) (ColumnSets, error) {
	var sets ColumnSets
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("failed to parse column sets: %w", err)
	}
	for name, cols := range sets {
		for i := range cols {
			if cols[i].Key == "" {
				return nil, fmt.Errorf("column set %s: column %d has no key", name, i)
			}
			if cols[i].Title == "" {
				cols[i].Title = TitleFromKey(cols[i].Key)
			}
		}
	}
	return sets, nil
}

// TitleFromKey turns a field key into a column title: "story_points" ->
// "Story Points", "customfield_10" -> "Customfield 10".
func TitleFromKey(key string) string {
	// a Caser keeps state, so each call gets its own
	return cases.Title(language.English).String(strings.ReplaceAll(strings.TrimSpace(key), "_", " "))
}
