// Package store persists extraction runs so results can be listed, re-served,
// and exported after the fact. The engine itself never touches storage.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/openextract/openextract/internal/engine"
)

// Run is one persisted extraction: a (document, template) pair's result and
// validation summary.
type Run struct {
	ID              string         `json:"id"`
	TemplateID      string         `json:"template_id"`
	Source          string         `json:"source"`
	Checksum        string         `json:"checksum"`
	Valid           bool           `json:"valid"`
	FieldsExtracted int            `json:"fields_extracted"`
	FieldsTotal     int            `json:"fields_total"`
	Result          *engine.Result `json:"result"`
	Report          *engine.Report `json:"report"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Store defines extraction run persistence.
type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, offset, limit int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error
	CountRuns(ctx context.Context) (int64, error)
	Close() error
}

// Checksum returns a stable identity for a document's text. Same pages
// always yield the same checksum, so reruns of an unchanged document are
// recognizable in the run history.
func Checksum(pages []string) string {
	h := sha256.Sum256([]byte(strings.Join(pages, "\n")))
	return hex.EncodeToString(h[:])
}
