// Package formatter renders plans, snapshots, live schemas and drift reports.
package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/catalogsync/internal/diff"
	"github.com/tordrt/catalogsync/internal/ident"
	"github.com/tordrt/catalogsync/internal/schema"
)

// Output formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Formatter renders the outputs of a synchronization run
type Formatter interface {
	FormatDiff(d *diff.SchemaDiff) error
	FormatSnapshot(s *schema.Snapshot) error
	FormatSchema(s *schema.Schema) error
	FormatDrift(drifts []diff.Drift) error
}

// New returns the formatter for format writing to w
func New(w io.Writer, format string) (Formatter, error) {
	switch format {
	case FormatText, "":
		return NewTextFormatter(w), nil
	case FormatMarkdown:
		return NewMarkdownFormatter(w), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: text, markdown)", format)
	}
}

// targetTable resolves the table a REF column points to, or "" for other columns
func targetTable(s *schema.Snapshot, c schema.ColumnSnapshot) string {
	if c.TargetCatalogID == nil {
		return ""
	}
	if t, ok := s.Catalogs[*c.TargetCatalogID]; ok {
		return t.TableName
	}
	return ident.DeriveTableName(*c.TargetCatalogID).String()
}
