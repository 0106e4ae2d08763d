// Package extract converts source documents into page-level text for the
// extraction engine. The engine never sees files; it consumes the page
// sequence produced here. No layout fidelity is guaranteed: columns and
// tables come out as interleaved plain lines.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Extractor produces page text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Pages reads the file at path and returns its text, one string per page.
// PDFs yield one entry per PDF page; formats without a page concept (plain
// text, DOCX, XLSX) yield a single entry.
func (e *Extractor) Pages(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.PagesFromBytes(content, ext)
}

// PagesFromBytes extracts page text from content based on the given
// extension. ext should include the leading dot (e.g. ".pdf"). Unknown
// extensions are treated as plain text.
func (e *Extractor) PagesFromBytes(content []byte, ext string) ([]string, error) {
	switch ext {
	case ".pdf":
		return pdfPages(content)
	case ".docx":
		text, err := docxText(content)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	case ".xlsx":
		text, err := excelText(content)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	default:
		return []string{plainText(content)}, nil
	}
}
