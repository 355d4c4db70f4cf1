package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/catalogsync/internal/diff"
	"github.com/tordrt/catalogsync/internal/schema"
)

// TextFormatter formats plans, snapshots and live schemas as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// FormatDiff writes the summary followed by the destructive and additive changes
func (f *TextFormatter) FormatDiff(d *diff.SchemaDiff) error {
	_, _ = fmt.Fprintf(f.writer, "PLAN: %s\n", d.Summary)

	if len(d.Destructive) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  DESTRUCTIVE (needs confirmation):")
		for _, c := range d.Destructive {
			_, _ = fmt.Fprintf(f.writer, "    - [%s] %s\n", c.Kind(), c.Description())
		}
	}

	if len(d.Additive) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  ADDITIVE:")
		for _, c := range d.Additive {
			_, _ = fmt.Fprintf(f.writer, "    + [%s] %s\n", c.Kind(), c.Description())
		}
	}

	if len(d.Notices) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  NOTICES:")
		for _, n := range d.Notices {
			_, _ = fmt.Fprintf(f.writer, "    * %s\n", n)
		}
	}
	return nil
}

// FormatSnapshot writes one block per catalog table, ordered by table name
func (f *TextFormatter) FormatSnapshot(s *schema.Snapshot) error {
	for i, id := range s.CatalogIDs() {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between tables
		}
		f.formatTableSnapshot(s, s.Catalogs[id])
	}
	return nil
}

func (f *TextFormatter) formatTableSnapshot(s *schema.Snapshot, t schema.TableSnapshot) {
	_, _ = fmt.Fprintf(f.writer, "TABLE %s (catalog %s)\n", t.TableName, t.Codename)
	for _, id := range t.AttributeIDs() {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", formatColumnSnapshot(s, t.Attributes[id]))
	}
}

func formatColumnSnapshot(s *schema.Snapshot, c schema.ColumnSnapshot) string {
	parts := []string{c.ColumnName + ":", schema.MapDataType(c.DataType)}
	if c.IsRequired {
		parts = append(parts, "NOT NULL")
	}
	if target := targetTable(s, c); target != "" {
		parts = append(parts, "→ "+target)
	}
	parts = append(parts, fmt.Sprintf("[%s %s]", c.Codename, c.DataType))
	return strings.Join(parts, " ")
}

// FormatSchema writes an introspected live schema
func (f *TextFormatter) FormatSchema(s *schema.Schema) error {
	for i, table := range s.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer)
		}
		f.formatTable(table)
	}
	return nil
}

func (f *TextFormatter) formatTable(table schema.Table) {
	pkStr := ""
	if len(table.PrimaryKey) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(table.PrimaryKey, ", "))
	}
	_, _ = fmt.Fprintf(f.writer, "TABLE %s%s\n", table.Name, pkStr)

	for _, col := range table.Columns {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", formatColumn(col))
	}

	if len(table.Relations) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  RELATIONS:")
		for _, rel := range table.Relations {
			_, _ = fmt.Fprintf(f.writer, "    %s → %s.%s (%s)\n", rel.SourceColumn, rel.TargetTable, rel.TargetColumn, rel.ConstraintName)
		}
	}
}

func formatColumn(col schema.Column) string {
	parts := []string{col.Name + ":", col.Type}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.DefaultValue != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.DefaultValue))
	}
	return strings.Join(parts, " ")
}

// FormatDrift writes one line per drift, or a single line when there is none
func (f *TextFormatter) FormatDrift(drifts []diff.Drift) error {
	if len(drifts) == 0 {
		_, _ = fmt.Fprintln(f.writer, "DRIFT: none, live schema matches the snapshot")
		return nil
	}
	_, _ = fmt.Fprintf(f.writer, "DRIFT: %d problem(s)\n", len(drifts))
	for _, d := range drifts {
		_, _ = fmt.Fprintf(f.writer, "  ! %s\n", d.String())
	}
	return nil
}
