package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
)

// fieldNameRe is the accepted field_name shape: snake_case identifiers.
var fieldNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// templateIDRe is the accepted template_id shape.
var templateIDRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// versionRe is the accepted semantic version shape (when version is present).
var versionRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Parse decodes a template document and validates it. The returned template
// has all patterns compiled and is immutable; a *SchemaError is returned for
// any structural violation, before any document can be processed.
func Parse(data []byte) (*Template, error) {
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &SchemaError{Problems: []string{fmt.Sprintf("not valid JSON: %v", err)}}
	}
	if err := validate(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseFile reads and parses the template at path.
func ParseFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	return Parse(data)
}

// validate checks the template's structural contract and compiles every
// pattern. All problems are collected so authors see the full list at once.
func validate(t *Template) error {
	var errs []string

	if t.ID == "" {
		errs = schemaErrorf(errs, "missing template_id")
	} else if !templateIDRe.MatchString(t.ID) {
		errs = schemaErrorf(errs, "template_id %q must be lowercase letters, digits, hyphens", t.ID)
	}
	if t.Name == "" {
		errs = schemaErrorf(errs, "missing template_name")
	}
	if t.DocumentType == "" {
		errs = schemaErrorf(errs, "missing document_type")
	}
	if t.Version != "" && !versionRe.MatchString(t.Version) {
		errs = schemaErrorf(errs, "version %q must be semantic (e.g. 1.0.0)", t.Version)
	}
	if len(t.Fields) == 0 {
		errs = schemaErrorf(errs, "template declares no fields")
	}

	seen := make(map[string]bool, len(t.Fields))
	for i := range t.Fields {
		f := &t.Fields[i]
		label := f.Name
		if label == "" {
			label = fmt.Sprintf("fields[%d]", i)
		}
		if f.Name == "" {
			errs = schemaErrorf(errs, "%s: missing field_name", label)
		} else if !fieldNameRe.MatchString(f.Name) {
			errs = schemaErrorf(errs, "%s: field_name must be snake_case", label)
		} else if seen[f.Name] {
			errs = schemaErrorf(errs, "%s: duplicate field_name", label)
		}
		seen[f.Name] = true

		if f.DisplayName == "" {
			errs = schemaErrorf(errs, "%s: missing display_name", label)
		}
		if f.DataType == "" {
			errs = schemaErrorf(errs, "%s: missing data_type", label)
		} else if !validDataTypes[f.DataType] {
			errs = schemaErrorf(errs, "%s: unknown data_type %q", label, f.DataType)
		}

		if f.Pattern == "" {
			errs = schemaErrorf(errs, "%s: missing regex_pattern", label)
		} else if re, problem := compileCapture(f.Pattern); problem != "" {
			errs = schemaErrorf(errs, "%s: regex_pattern %s", label, problem)
		} else {
			f.primary = re
		}
		f.fallbacks = make([]*regexp.Regexp, 0, len(f.FallbackPatterns))
		for j, p := range f.FallbackPatterns {
			re, problem := compileCapture(p)
			if problem != "" {
				errs = schemaErrorf(errs, "%s: fallback_patterns[%d] %s", label, j, problem)
				continue
			}
			f.fallbacks = append(f.fallbacks, re)
		}
	}

	if len(t.Output.CSVHeaders) == 0 {
		errs = schemaErrorf(errs, "output_format must include csv_headers")
	}
	for _, h := range t.Output.CSVHeaders {
		if h == SourceFileColumn {
			continue
		}
		if !seen[h] {
			errs = schemaErrorf(errs, "csv_headers: %q does not map to a declared field", h)
		}
	}
	if _, ok := DateOutputLayout(t.Output.DateFormat); !ok {
		errs = schemaErrorf(errs, "output_format: unknown date_format %q", t.Output.DateFormat)
	}

	if len(errs) > 0 {
		return &SchemaError{TemplateID: t.ID, Problems: errs}
	}
	return nil
}

// compileCapture compiles pattern and enforces the single-capture-group
// contract. Zero groups would silently extract nothing and more than one is
// ambiguous, so both fail loud at load time instead of at extraction time.
func compileCapture(pattern string) (*regexp.Regexp, string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Sprintf("does not compile: %v", err)
	}
	if n := re.NumSubexp(); n != 1 {
		return nil, fmt.Sprintf("must declare exactly one capture group, has %d", n)
	}
	return re, ""
}

// IsSchemaError reports whether err is a template schema violation.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// Summary returns a one-line description of the template for listings.
func (t *Template) Summary() string {
	v := t.Version
	if v == "" {
		v = "0.0.0"
	}
	return fmt.Sprintf("%-30s v%s  %s (%d fields)", t.ID, v, t.DocumentType, len(t.Fields))
}
