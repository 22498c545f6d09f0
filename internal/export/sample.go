package export

import (
	"bytes"
	_ "embed"
)

// SampleUsersPath is where the API serves the users import template
const SampleUsersPath = "/api/v1/users/sample.csv"

//go:embed assets/sample_user.csv
var sampleUsers []byte

// SampleUsersCSV returns the users import template
func SampleUsersCSV() File {
	content := make([]byte, len(sampleUsers))
	copy(content, sampleUsers)
	return File{Name: "sample_user.csv", Content: content, Rows: bytes.Count(content, []byte("\n")) - 1}
}
