package template

import (
	"fmt"
	"strings"
)

// SchemaError reports a malformed template: missing required keys, duplicate
// field names, unknown data types, or patterns that do not declare exactly
// one capture group. It is fatal at load time; no extraction runs against a
// template that failed validation.
type SchemaError struct {
	TemplateID string
	Problems   []string
}

func (e *SchemaError) Error() string {
	id := e.TemplateID
	if id == "" {
		id = "(unknown)"
	}
	return fmt.Sprintf("template %s: invalid schema: %s", id, strings.Join(e.Problems, "; "))
}

// schemaErrorf appends a formatted problem to errs and returns it.
func schemaErrorf(errs []string, format string, args ...interface{}) []string {
	return append(errs, fmt.Sprintf(format, args...))
}
