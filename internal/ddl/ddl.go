// Package ddl renders the PostgreSQL statements used to materialize catalogs.
//
// Every builder takes validated ident.Identifier values, never raw strings, so
// the only text spliced into a statement is a name that already matched its
// strict pattern or a physical type from schema.MapDataType. The functions are
// pure and deterministic.
package ddl

import (
	"fmt"
	"strings"

	"github.com/tordrt/catalogsync/internal/ident"
	"github.com/tordrt/catalogsync/internal/metadata"
	"github.com/tordrt/catalogsync/internal/schema"
)

// System columns present on every catalog table
const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

// ColumnDef describes one attribute column
type ColumnDef struct {
	Name    ident.Identifier
	SQLType string
	NotNull bool
}

// ColumnFor builds the column definition of an attribute
func ColumnFor(a metadata.AttributeDefinition) ColumnDef {
	return ColumnDef{
		Name:    ident.DeriveColumnName(a.ID),
		SQLType: schema.MapDataType(a.DataType),
		NotNull: a.IsRequired,
	}
}

// ColumnsFor builds the attribute columns of a catalog, in definition order
func ColumnsFor(c metadata.CatalogDefinition) []ColumnDef {
	cols := make([]ColumnDef, 0, len(c.Attributes))
	for _, a := range c.Attributes {
		cols = append(cols, ColumnFor(a))
	}
	return cols
}

// CreateSchema renders CREATE SCHEMA IF NOT EXISTS
func CreateSchema(s ident.Identifier) string {
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", s.Quoted())
}

// DropSchema renders a cascading DROP SCHEMA IF EXISTS
func DropSchema(s ident.Identifier) string {
	return fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE;", s.Quoted())
}

// CreateTable renders the table with its system columns followed by cols.
// Foreign keys are not included; they are added once every table exists.
func CreateTable(s, table ident.Identifier, cols []ColumnDef) string {
	lines := []string{
		fmt.Sprintf("  %q uuid PRIMARY KEY DEFAULT gen_random_uuid()", ColumnID),
		fmt.Sprintf("  %q timestamptz NOT NULL DEFAULT now()", ColumnCreatedAt),
		fmt.Sprintf("  %q timestamptz NOT NULL DEFAULT now()", ColumnUpdatedAt),
	}
	for _, c := range cols {
		lines = append(lines, "  "+renderColumn(c))
	}

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(qualify(s, table))
	b.WriteString(" (\n")
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n);")
	return b.String()
}

// DropTable renders DROP TABLE IF EXISTS
func DropTable(s, table ident.Identifier) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", qualify(s, table))
}

// AddColumn renders ALTER TABLE ... ADD COLUMN IF NOT EXISTS
func AddColumn(s, table ident.Identifier, c ColumnDef) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s;", qualify(s, table), renderColumn(c))
}

// DropColumn renders ALTER TABLE ... DROP COLUMN IF EXISTS
func DropColumn(s, table, column ident.Identifier) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s;", qualify(s, table), column.Quoted())
}

// AlterColumnType renders a type change with a best-effort cast of existing values
func AlterColumnType(s, table, column ident.Identifier, sqlType string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s;",
		qualify(s, table), column.Quoted(), sqlType, column.Quoted(), sqlType)
}

// SetNotNull renders ALTER COLUMN ... SET NOT NULL
func SetNotNull(s, table, column ident.Identifier) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", qualify(s, table), column.Quoted())
}

// DropNotNull renders ALTER COLUMN ... DROP NOT NULL
func DropNotNull(s, table, column ident.Identifier) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", qualify(s, table), column.Quoted())
}

// AddForeignKey renders a foreign key from table.column to target.id
func AddForeignKey(s, table, column, target ident.Identifier) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%q);",
		qualify(s, table), ident.DeriveConstraintName(table, column).Quoted(), column.Quoted(), qualify(s, target), ColumnID)
}

// DropForeignKey renders DROP CONSTRAINT IF EXISTS for the foreign key on table.column
func DropForeignKey(s, table, column ident.Identifier) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s;",
		qualify(s, table), ident.DeriveConstraintName(table, column).Quoted())
}

func renderColumn(c ColumnDef) string {
	col := c.Name.Quoted() + " " + c.SQLType
	if c.NotNull {
		col += " NOT NULL"
	}
	return col
}

func qualify(s, table ident.Identifier) string {
	return s.Quoted() + "." + table.Quoted()
}
