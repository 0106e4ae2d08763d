package registry

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/openextract/openextract/internal/template"
)

// searchIndex is an in-memory bleve index over the template catalog. It is
// rebuilt wholesale on every registry load, so it is immutable between
// reloads and safe for concurrent queries.
type searchIndex struct {
	index bleve.Index
}

// catalogDoc is the indexed projection of a template.
type catalogDoc struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	DocumentType string `json:"document_type"`
	Category     string `json:"category"`
	Tags         string `json:"tags"`
}

func newSearchIndex(templates map[string]*template.Template) (*searchIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match
	// template vocabulary exactly; form names like "5500-sf" must not stem.
	textMapping := bleve.NewTextFieldMapping()
	textMapping.Analyzer = standard.Name
	for _, field := range []string{"id", "name", "description", "document_type", "category", "tags"} {
		docMapping.AddFieldMappingsAt(field, textMapping)
	}
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("create catalog index: %w", err)
	}
	batch := index.NewBatch()
	for id, t := range templates {
		doc := catalogDoc{
			ID:           t.ID,
			Name:         t.Name,
			Description:  t.Description,
			DocumentType: t.DocumentType,
			Category:     t.Category,
			Tags:         strings.Join(t.Tags, " "),
		}
		if err := batch.Index(id, doc); err != nil {
			return nil, fmt.Errorf("index template %s: %w", id, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("index catalog: %w", err)
	}
	return &searchIndex{index: index}, nil
}

// search returns up to limit template ids matching the query, best first.
func (s *searchIndex) search(query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	ids := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}
