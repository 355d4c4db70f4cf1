package diff

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tordrt/catalogsync/internal/ident"
	"github.com/tordrt/catalogsync/internal/metadata"
)

// ChangeType names the kind of a structural change
type ChangeType string

const (
	ChangeAddTable    ChangeType = "ADD_TABLE"
	ChangeDropTable   ChangeType = "DROP_TABLE"
	ChangeAddColumn   ChangeType = "ADD_COLUMN"
	ChangeDropColumn  ChangeType = "DROP_COLUMN"
	ChangeAlterColumn ChangeType = "ALTER_COLUMN"
	ChangeAddFK       ChangeType = "ADD_FK"
	ChangeDropFK      ChangeType = "DROP_FK"
)

// Change is one structural change. The set of implementations is closed: only
// the types in this file satisfy it, and consumers switch on the concrete type.
type Change interface {
	Kind() ChangeType
	IsDestructive() bool
	Description() string
	sealed()
}

// TableRef identifies the table a change applies to
type TableRef struct {
	CatalogID uuid.UUID
	Catalog   string // codename, for descriptions only
	Table     ident.Identifier
}

// ColumnRef identifies the column a change applies to
type ColumnRef struct {
	TableRef
	AttributeID uuid.UUID
	Attribute   string // codename, for descriptions only
	Column      ident.Identifier
}

func (r ColumnRef) label() string {
	return fmt.Sprintf("%q.%q", r.Catalog, r.Attribute)
}

// AddTable creates the table of a new catalog, including its attribute columns
type AddTable struct {
	TableRef
	Definition metadata.CatalogDefinition
}

// DropTable drops the table of a removed catalog
type DropTable struct {
	TableRef
}

// AddColumn adds the column of a new attribute
type AddColumn struct {
	ColumnRef
	DataType   metadata.DataType
	IsRequired bool
}

// DropColumn drops the column of a removed attribute
type DropColumn struct {
	ColumnRef
}

// AlterColumnType changes the physical type of a column
type AlterColumnType struct {
	ColumnRef
	OldType metadata.DataType
	NewType metadata.DataType
}

// AlterColumnNullability tightens (Required) or relaxes a NOT NULL constraint
type AlterColumnNullability struct {
	ColumnRef
	Required bool
}

// AddForeignKey adds the foreign key of a REF attribute
type AddForeignKey struct {
	ColumnRef
	TargetCatalogID uuid.UUID
	TargetTable     ident.Identifier
}

// DropForeignKey drops the foreign key of a REF attribute
type DropForeignKey struct {
	ColumnRef
	OldTargetCatalogID uuid.UUID
}

func (AddTable) Kind() ChangeType               { return ChangeAddTable }
func (DropTable) Kind() ChangeType              { return ChangeDropTable }
func (AddColumn) Kind() ChangeType              { return ChangeAddColumn }
func (DropColumn) Kind() ChangeType             { return ChangeDropColumn }
func (AlterColumnType) Kind() ChangeType        { return ChangeAlterColumn }
func (AlterColumnNullability) Kind() ChangeType { return ChangeAlterColumn }
func (AddForeignKey) Kind() ChangeType          { return ChangeAddFK }
func (DropForeignKey) Kind() ChangeType         { return ChangeDropFK }

func (AddTable) IsDestructive() bool                 { return false }
func (DropTable) IsDestructive() bool                { return true }
func (AddColumn) IsDestructive() bool                { return false }
func (DropColumn) IsDestructive() bool               { return true }
func (AlterColumnType) IsDestructive() bool          { return true }
func (c AlterColumnNullability) IsDestructive() bool { return c.Required }
func (AddForeignKey) IsDestructive() bool            { return false }
func (DropForeignKey) IsDestructive() bool           { return true }

func (AddTable) sealed()               {}
func (DropTable) sealed()              {}
func (AddColumn) sealed()              {}
func (DropColumn) sealed()             {}
func (AlterColumnType) sealed()        {}
func (AlterColumnNullability) sealed() {}
func (AddForeignKey) sealed()          {}
func (DropForeignKey) sealed()         {}

func (c AddTable) Description() string {
	return fmt.Sprintf("Create table %s for catalog %q", c.Table, c.Catalog)
}

func (c DropTable) Description() string {
	return fmt.Sprintf("Drop table %s of removed catalog %q (all rows are lost)", c.Table, c.Catalog)
}

func (c AddColumn) Description() string {
	return fmt.Sprintf("Add %s column %s for attribute %s", c.DataType, c.Column, c.label())
}

func (c DropColumn) Description() string {
	return fmt.Sprintf("Drop column %s of removed attribute %s (all values are lost)", c.Column, c.label())
}

func (c AlterColumnType) Description() string {
	return fmt.Sprintf("Change type of attribute %s from %s to %s (existing values are cast)", c.label(), c.OldType, c.NewType)
}

func (c AlterColumnNullability) Description() string {
	if c.Required {
		return fmt.Sprintf("Make attribute %s required (fails if rows contain empty values)", c.label())
	}
	return fmt.Sprintf("Make attribute %s optional", c.label())
}

func (c AddForeignKey) Description() string {
	return fmt.Sprintf("Add reference from attribute %s to table %s", c.label(), c.TargetTable)
}

func (c DropForeignKey) Description() string {
	return fmt.Sprintf("Drop reference of attribute %s to catalog %s", c.label(), c.OldTargetCatalogID)
}

// phase orders changes inside a bucket so that every change finds the
// structure it depends on: foreign keys go before the columns and tables they
// sit on are dropped, and are added after every table and column exists.
func phase(c Change) int {
	switch c := c.(type) {
	case DropForeignKey:
		return 0
	case AlterColumnType:
		return 1
	case AlterColumnNullability:
		if c.Required {
			return 2
		}
		return 12
	case DropColumn:
		return 3
	case DropTable:
		return 4
	case AddTable:
		return 10
	case AddColumn:
		return 11
	case AddForeignKey:
		return 13
	default:
		panic(fmt.Sprintf("diff: unhandled change type %T", c))
	}
}

func sortKey(c Change) (table, column string) {
	switch c := c.(type) {
	case AddTable:
		return c.Table.String(), ""
	case DropTable:
		return c.Table.String(), ""
	case AddColumn:
		return c.Table.String(), c.Column.String()
	case DropColumn:
		return c.Table.String(), c.Column.String()
	case AlterColumnType:
		return c.Table.String(), c.Column.String()
	case AlterColumnNullability:
		return c.Table.String(), c.Column.String()
	case AddForeignKey:
		return c.Table.String(), c.Column.String()
	case DropForeignKey:
		return c.Table.String(), c.Column.String()
	default:
		panic(fmt.Sprintf("diff: unhandled change type %T", c))
	}
}
