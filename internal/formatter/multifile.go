package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tordrt/catalogsync/internal/schema"
)

// MultiFileFormatter writes a snapshot to a directory: an overview plus one
// file per catalog table
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the snapshot to multiple files
func (f *MultiFileFormatter) Format(s *schema.Snapshot) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeOverview(s); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, id := range s.CatalogIDs() {
		t := s.Catalogs[id]
		if err := f.writeTableFile(s, t); err != nil {
			return fmt.Errorf("failed to write table file for %s: %w", t.TableName, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeOverview(s *schema.Snapshot) error {
	filename := filepath.Join(f.OutputDir, "_overview"+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(file, "# Schema Overview\n\n")
		_, _ = fmt.Fprintf(file, "Each table has a corresponding file: `<table_name>%s`\n\n", f.getFileExtension())
		_, _ = fmt.Fprintf(file, "## Tables\n\n")
	} else {
		_, _ = fmt.Fprintf(file, "SCHEMA OVERVIEW\n")
		_, _ = fmt.Fprintf(file, "Each table has a file: <table_name>%s\n\n", f.getFileExtension())
	}

	for _, id := range s.CatalogIDs() {
		t := s.Catalogs[id]
		if f.OutputFormat == FormatMarkdown {
			_, _ = fmt.Fprintf(file, "- **%s** (%s)", t.TableName, t.Codename)
		} else {
			_, _ = fmt.Fprintf(file, "%s (%s)", t.TableName, t.Codename)
		}
		if targets := outgoing(s, t); len(targets) > 0 {
			_, _ = fmt.Fprintf(file, " (references: %s)", strings.Join(targets, ", "))
		}
		_, _ = fmt.Fprintf(file, "\n")
	}

	return nil
}

func (f *MultiFileFormatter) writeTableFile(s *schema.Snapshot, t schema.TableSnapshot) error {
	filename := filepath.Join(f.OutputDir, t.TableName+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(file, "## %s\n\n", t.TableName)
		NewMarkdownFormatter(file).FormatTableSnapshot(s, t)
	} else {
		NewTextFormatter(file).formatTableSnapshot(s, t)
	}

	if incoming := f.findIncomingReferences(t.TableName, s); len(incoming) > 0 {
		f.writeIncoming(file, incoming)
	}
	return nil
}

func (f *MultiFileFormatter) writeIncoming(w io.Writer, incoming []IncomingReference) {
	if f.OutputFormat == FormatMarkdown {
		_, _ = fmt.Fprintf(w, "### Referenced by\n\n")
		for _, ref := range incoming {
			_, _ = fmt.Fprintf(w, "- %s.%s (%s.%s)\n", ref.SourceTable, ref.SourceColumn, ref.SourceCatalog, ref.SourceAttribute)
		}
		_, _ = fmt.Fprintln(w)
		return
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "  REFERENCED BY:")
	for _, ref := range incoming {
		_, _ = fmt.Fprintf(w, "    ← %s.%s\n", ref.SourceTable, ref.SourceColumn)
	}
}

// IncomingReference is a REF column of another table pointing at this one
type IncomingReference struct {
	SourceTable     string
	SourceColumn    string
	SourceCatalog   string
	SourceAttribute string
}

func (f *MultiFileFormatter) findIncomingReferences(tableName string, s *schema.Snapshot) []IncomingReference {
	var incoming []IncomingReference

	for _, id := range s.CatalogIDs() {
		t := s.Catalogs[id]
		for _, attrID := range t.AttributeIDs() {
			c := t.Attributes[attrID]
			if targetTable(s, c) == tableName {
				incoming = append(incoming, IncomingReference{
					SourceTable:     t.TableName,
					SourceColumn:    c.ColumnName,
					SourceCatalog:   t.Codename,
					SourceAttribute: c.Codename,
				})
			}
		}
	}

	return incoming
}

func outgoing(s *schema.Snapshot, t schema.TableSnapshot) []string {
	var targets []string
	for _, id := range t.AttributeIDs() {
		if target := targetTable(s, t.Attributes[id]); target != "" {
			targets = append(targets, target)
		}
	}
	return targets
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
