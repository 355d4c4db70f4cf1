package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/catalogsync/internal/diff"
	"github.com/tordrt/catalogsync/internal/schema"
)

// MarkdownFormatter formats plans, snapshots and live schemas as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// FormatDiff writes the plan as markdown sections
func (f *MarkdownFormatter) FormatDiff(d *diff.SchemaDiff) error {
	_, _ = fmt.Fprintln(f.writer, "# Schema Plan")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "%s\n\n", d.Summary)

	f.formatChanges("Destructive changes (need confirmation)", d.Destructive)
	f.formatChanges("Additive changes", d.Additive)

	if len(d.Notices) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Notices")
		_, _ = fmt.Fprintln(f.writer)
		for _, n := range d.Notices {
			_, _ = fmt.Fprintf(f.writer, "- %s\n", n)
		}
		_, _ = fmt.Fprintln(f.writer)
	}
	return nil
}

func (f *MarkdownFormatter) formatChanges(title string, changes []diff.Change) {
	if len(changes) == 0 {
		return
	}
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", title)
	for _, c := range changes {
		_, _ = fmt.Fprintf(f.writer, "- `%s` %s\n", c.Kind(), c.Description())
	}
	_, _ = fmt.Fprintln(f.writer)
}

// FormatSnapshot writes the snapshot as one section per catalog table
func (f *MarkdownFormatter) FormatSnapshot(s *schema.Snapshot) error {
	_, _ = fmt.Fprintln(f.writer, "# Catalog Schema")
	_, _ = fmt.Fprintln(f.writer)

	for _, id := range s.CatalogIDs() {
		t := s.Catalogs[id]
		_, _ = fmt.Fprintf(f.writer, "## %s\n\n", t.TableName)
		f.FormatTableSnapshot(s, t)
	}
	return nil
}

// FormatTableSnapshot writes the columns and references of one table (exported
// for use by the multifile formatter)
func (f *MarkdownFormatter) FormatTableSnapshot(s *schema.Snapshot, t schema.TableSnapshot) {
	_, _ = fmt.Fprintf(f.writer, "Catalog **%s**\n\n", t.Codename)
	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)

	var refs []string
	for _, id := range t.AttributeIDs() {
		c := t.Attributes[id]
		constraints := ""
		if c.IsRequired {
			constraints = ", NOT NULL"
		}
		_, _ = fmt.Fprintf(f.writer, "- **%s:** %s%s (attribute `%s`, %s)\n",
			c.ColumnName, schema.MapDataType(c.DataType), constraints, c.Codename, c.DataType)

		if target := targetTable(s, c); target != "" {
			refs = append(refs, fmt.Sprintf("- %s → %s.id", c.ColumnName, target))
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(refs) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### References")
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, strings.Join(refs, "\n"))
		_, _ = fmt.Fprintln(f.writer)
	}
}

// FormatSchema writes an introspected live schema
func (f *MarkdownFormatter) FormatSchema(s *schema.Schema) error {
	_, _ = fmt.Fprintln(f.writer, "# Database Schema")
	_, _ = fmt.Fprintln(f.writer)

	for _, table := range s.Tables {
		f.formatTable(table)
	}
	return nil
}

func (f *MarkdownFormatter) formatTable(table schema.Table) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", table.Name)
	_, _ = fmt.Fprintln(f.writer, "### Columns")
	_, _ = fmt.Fprintln(f.writer)

	for _, col := range table.Columns {
		constraintStr := formatConstraints(col, table.PrimaryKey)
		if constraintStr != "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, col.Type, constraintStr)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, col.Type)
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(table.Relations) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### References")
		_, _ = fmt.Fprintln(f.writer)
		for _, rel := range table.Relations {
			_, _ = fmt.Fprintf(f.writer, "- %s → %s.%s (`%s`)\n",
				rel.SourceColumn,
				rel.TargetTable,
				rel.TargetColumn,
				rel.ConstraintName)
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func formatConstraints(col schema.Column, primaryKey []string) string {
	var constraints []string

	for _, pk := range primaryKey {
		if pk == col.Name {
			constraints = append(constraints, "PK")
			break
		}
	}
	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}
	if col.DefaultValue != nil {
		constraints = append(constraints, fmt.Sprintf("DEFAULT %s", *col.DefaultValue))
	}

	return strings.Join(constraints, ", ")
}

// FormatDrift writes the drift report as a list
func (f *MarkdownFormatter) FormatDrift(drifts []diff.Drift) error {
	_, _ = fmt.Fprintln(f.writer, "# Drift Report")
	_, _ = fmt.Fprintln(f.writer)
	if len(drifts) == 0 {
		_, _ = fmt.Fprintln(f.writer, "The live schema matches the snapshot.")
		return nil
	}
	for _, d := range drifts {
		if d.Column == "" {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", d.Table, d.Problem)
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s.%s:** %s\n", d.Table, d.Column, d.Problem)
		}
	}
	return nil
}
