// Package registry loads extraction templates from a directory and caches
// them immutably by template id. Templates are parsed and validated once;
// readers may share them across concurrent extractions. Reload swaps the
// whole cache atomically, never mutating a published template in place.
package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/openextract/openextract/internal/template"
)

// Registry is a read-mostly template cache backed by a directory of JSON
// template files. Files whose name starts with "_" (schemas, examples) are
// skipped, and so are files that fail schema validation, with a warning.
type Registry struct {
	dir    string
	logger *zap.Logger

	mu        sync.RWMutex
	templates map[string]*template.Template
	index     *searchIndex
}

// New returns a registry over dir. Call Load before use.
func New(dir string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		dir:       dir,
		logger:    logger,
		templates: make(map[string]*template.Template),
	}
}

// Load walks the templates directory, parses and validates every *.json
// file, and replaces the cache with the result. Schema violations in
// individual files are logged and skipped so one bad community template
// does not take the whole catalog down; filesystem errors are returned.
func (r *Registry) Load() error {
	if _, err := os.Stat(r.dir); err != nil {
		return fmt.Errorf("templates directory: %w", err)
	}

	loaded := make(map[string]*template.Template)
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}
		if strings.HasPrefix(d.Name(), "_") {
			return nil
		}
		t, err := template.ParseFile(path)
		if err != nil {
			r.logger.Warn("skipping invalid template", zap.String("path", path), zap.Error(err))
			return nil
		}
		if prev, ok := loaded[t.ID]; ok {
			r.logger.Warn("duplicate template id, keeping first",
				zap.String("id", t.ID), zap.String("kept", prev.Name), zap.String("path", path))
			return nil
		}
		t.Category = categoryOf(r.dir, path)
		loaded[t.ID] = t
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk templates directory: %w", err)
	}

	idx, err := newSearchIndex(loaded)
	if err != nil {
		return fmt.Errorf("build template search index: %w", err)
	}

	r.mu.Lock()
	r.templates = loaded
	r.index = idx
	r.mu.Unlock()

	r.logger.Info("templates loaded", zap.String("dir", r.dir), zap.Int("count", len(loaded)))
	return nil
}

// Reload re-reads the templates directory. Alias for Load; exists so
// callers (watcher, HTTP handler) read naturally.
func (r *Registry) Reload() error { return r.Load() }

// categoryOf derives the template category from its subdirectory relative
// to the registry root ("tax-forms", "invoices/retail", ...).
func categoryOf(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return "other"
	}
	return filepath.ToSlash(rel)
}

// Get returns the template with the given id. Unknown ids return an error
// carrying a did-you-mean suggestion when a close match exists.
func (r *Registry) Get(id string) (*template.Template, error) {
	r.mu.RLock()
	t, ok := r.templates[id]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}
	if hint := r.Suggest(id); hint != "" {
		return nil, fmt.Errorf("template %q not found (did you mean %q?)", id, hint)
	}
	return nil, fmt.Errorf("template %q not found", id)
}

// List returns all templates sorted by category, then name.
func (r *Registry) List() []*template.Template {
	r.mu.RLock()
	out := make([]*template.Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ListByDocumentType returns templates with the given document_type tag.
func (r *Registry) ListByDocumentType(docType string) []*template.Template {
	var out []*template.Template
	for _, t := range r.List() {
		if strings.EqualFold(t.DocumentType, docType) {
			out = append(out, t)
		}
	}
	return out
}

// ListByCategory returns templates in the given category (subdirectory).
func (r *Registry) ListByCategory(category string) []*template.Template {
	var out []*template.Template
	for _, t := range r.List() {
		if strings.EqualFold(t.Category, category) {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns the sorted set of known categories.
func (r *Registry) Categories() []string {
	seen := make(map[string]bool)
	for _, t := range r.List() {
		seen[t.Category] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of loaded templates.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}

// Search runs a full-text query over template id, name, description,
// document type, and tags, returning up to limit templates by relevance.
func (r *Registry) Search(query string, limit int) ([]*template.Template, error) {
	r.mu.RLock()
	idx := r.index
	templates := r.templates
	r.mu.RUnlock()
	if idx == nil {
		return nil, fmt.Errorf("registry not loaded")
	}
	ids, err := idx.search(query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*template.Template, 0, len(ids))
	for _, id := range ids {
		if t, ok := templates[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}
