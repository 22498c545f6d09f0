package pipeline

import (
	"fmt"
	"strings"

	"go-insights-pipeline/internal/model"
)

// ValidationError reports a malformed run request
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// validateOptions checks a run request before anything is dispatched
func validateOptions(opts Options) error {
	if strings.TrimSpace(opts.URI) == "" {
		return &ValidationError{Field: "uri", Reason: "required"}
	}
	if opts.Method != "" && opts.Method != model.MethodList {
		return &ValidationError{Field: "method", Reason: fmt.Sprintf("pagination runs list calls, got %q", opts.Method)}
	}
	if opts.Filters != nil {
		if v, ok := opts.Filters["page"]; ok && model.Numeric(v) < 0 {
			return &ValidationError{Field: "page", Reason: fmt.Sprintf("must be ≥ 0, got %v", v)}
		}
		if v, ok := opts.Filters["page_size"]; ok && model.Numeric(v) < 0 {
			return &ValidationError{Field: "page_size", Reason: fmt.Sprintf("must be ≥ 0, got %v", v)}
		}
	}
	for _, f := range opts.DeriveOnly {
		if strings.TrimSpace(f) == "" {
			return &ValidationError{Field: "derive_only", Reason: "empty field name"}
		}
	}
	return nil
}

// validateApp checks a field-list application name
func validateApp(app string) error {
	if _, ok := fieldListApps[app]; !ok {
		known := make([]string, 0, len(fieldListApps))
		for k := range fieldListApps {
			known = append(known, k)
		}
		return &ValidationError{Field: "application", Reason: fmt.Sprintf("unknown %q (known: %s)", app, strings.Join(sortedStrings(known), ", "))}
	}
	return nil
}
