package engine

import (
	"errors"
	"strings"

	"github.com/openextract/openextract/internal/template"
	"github.com/openextract/openextract/pkg/utils"
)

// ErrEmptyDocument is returned when a document has no text to match against.
var ErrEmptyDocument = errors.New("document has no text")

// Document is one unit of extraction input: the page texts produced by the
// document-to-text collaborator, plus the source name carried through to the
// _source_file output column.
type Document struct {
	Source string   `json:"source,omitempty"`
	Pages  []string `json:"pages"`
}

// Engine runs template-driven extraction. It holds no mutable state and is
// safe for concurrent use across documents.
type Engine struct {
	collapseWhitespace bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithWhitespaceCollapse controls whether runs of spaces and tabs in the
// document text are collapsed before matching (default true). Collapsing is
// applied identically to every document so results stay reproducible.
func WithWhitespaceCollapse(enabled bool) Option {
	return func(e *Engine) { e.collapseWhitespace = enabled }
}

// NewEngine returns an extraction engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{collapseWhitespace: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs every field of the template, in declaration order, against
// the document and returns an immutable result keyed by field name. Pages
// are concatenated first: page boundaries do not constrain matching, since
// the input is already a flattened linear stream. Per-field misses and
// coercion failures are recorded in the result, never returned as errors;
// the only error is an empty document.
func (e *Engine) Extract(doc Document, t *template.Template) (*Result, error) {
	text := strings.Join(doc.Pages, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	if e.collapseWhitespace {
		text = utils.NormalizeWhitespace(text)
	}
	fields := make(map[string]Outcome, len(t.Fields))
	for i := range t.Fields {
		f := &t.Fields[i]
		fields[f.Name] = ExtractField(text, f, t.Output.DateFormat)
	}
	return &Result{TemplateID: t.ID, Source: doc.Source, Fields: fields}, nil
}

// BatchItem is one document's outcome within a batch. Err is set when the
// document's extraction failed entirely (e.g. empty input); it never aborts
// sibling documents.
type BatchItem struct {
	Source string
	Result *Result
	Err    error
}

// ExtractBatch extracts every document with the same template, preserving
// input order. Each item succeeds or fails independently.
func (e *Engine) ExtractBatch(docs []Document, t *template.Template) []BatchItem {
	items := make([]BatchItem, len(docs))
	for i, doc := range docs {
		res, err := e.Extract(doc, t)
		items[i] = BatchItem{Source: doc.Source, Result: res, Err: err}
	}
	return items
}
