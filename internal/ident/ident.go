// Package ident derives physical schema, table, column and constraint names from
// stable entity ids.
//
// Identifiers end up interpolated into DDL, where bind parameters are not
// available. An Identifier can only be obtained from a Derive function or from
// New, which rejects anything that does not match the strict pattern for its
// kind, so an unsafe name cannot reach a statement builder.
package ident

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MaxLength is the PostgreSQL identifier length limit (NAMEDATALEN - 1)
const MaxLength = 63

// ErrInvalidIdentifier is returned for names that fail validation. It is never
// retryable: the source id has to be fixed.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// Kind selects the naming pattern of an identifier
type Kind int

const (
	KindSchema Kind = iota
	KindTable
	KindColumn
	KindConstraint
)

const (
	schemaPrefix     = "app_"
	tablePrefix      = "cat_"
	columnPrefix     = "attr_"
	constraintPrefix = "fk_"
)

var patterns = map[Kind]*regexp.Regexp{
	KindSchema:     regexp.MustCompile(`^app_[a-f0-9]{32}$`),
	KindTable:      regexp.MustCompile(`^cat_[a-f0-9]{32}$`),
	KindColumn:     regexp.MustCompile(`^attr_[a-f0-9]{32}$`),
	KindConstraint: regexp.MustCompile(`^fk_cat_[a-f0-9]{32}_attr_[a-f0-9]{1,32}$`),
}

func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindTable:
		return "table"
	case KindColumn:
		return "column"
	case KindConstraint:
		return "constraint"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Identifier is a validated physical name
type Identifier struct {
	name string
	kind Kind
}

// New validates name against the pattern for kind
func New(name string, kind Kind) (Identifier, error) {
	if !Validate(name, kind) {
		return Identifier{}, fmt.Errorf("%w: %q is not a valid %s name", ErrInvalidIdentifier, name, kind)
	}
	return Identifier{name: name, kind: kind}, nil
}

// Validate reports whether name matches the pattern for kind
func Validate(name string, kind Kind) bool {
	re, ok := patterns[kind]
	if !ok || len(name) > MaxLength {
		return false
	}
	return re.MatchString(name)
}

// DeriveSchemaName returns the tenant schema name
func DeriveSchemaName(tenantID uuid.UUID) Identifier {
	return Identifier{name: schemaPrefix + compact(tenantID), kind: KindSchema}
}

// DeriveTableName returns the table name of a catalog
func DeriveTableName(catalogID uuid.UUID) Identifier {
	return Identifier{name: tablePrefix + compact(catalogID), kind: KindTable}
}

// DeriveColumnName returns the column name of an attribute
func DeriveColumnName(attributeID uuid.UUID) Identifier {
	return Identifier{name: columnPrefix + compact(attributeID), kind: KindColumn}
}

// DeriveConstraintName returns the foreign key constraint name for a column.
// The generator and the migrator both call this so that a constraint created by
// one can be dropped by the other.
func DeriveConstraintName(table, column Identifier) Identifier {
	name := constraintPrefix + table.name + "_" + column.name
	if len(name) > MaxLength {
		name = name[:MaxLength]
	}
	return Identifier{name: name, kind: KindConstraint}
}

// String returns the raw name
func (i Identifier) String() string { return i.name }

// Kind returns the identifier kind
func (i Identifier) Kind() Kind { return i.kind }

// IsZero reports whether the identifier was never initialized
func (i Identifier) IsZero() bool { return i.name == "" }

// Quoted renders the identifier for use in SQL
func (i Identifier) Quoted() string {
	return `"` + i.name + `"`
}

func compact(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}
