// Package metadata holds the abstract catalog and attribute definitions that the
// surrounding platform supplies to the synchronization engine.
package metadata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidDefinition is returned when a set of catalog definitions cannot be
// materialized as a physical schema.
var ErrInvalidDefinition = errors.New("invalid catalog definition")

// DataType is the abstract type of an attribute
type DataType string

const (
	DataTypeString   DataType = "STRING"
	DataTypeNumber   DataType = "NUMBER"
	DataTypeBoolean  DataType = "BOOLEAN"
	DataTypeDate     DataType = "DATE"
	DataTypeDateTime DataType = "DATETIME"
	DataTypeRef      DataType = "REF"
	DataTypeJSON     DataType = "JSON"
)

// Known reports whether t is one of the declared data types
func (t DataType) Known() bool {
	switch t {
	case DataTypeString, DataTypeNumber, DataTypeBoolean, DataTypeDate,
		DataTypeDateTime, DataTypeRef, DataTypeJSON:
		return true
	}
	return false
}

// CatalogDefinition represents one user-defined record type.
//
// ID is immutable and is the only input to physical naming, so changing
// Codename never requires DDL.
type CatalogDefinition struct {
	ID         uuid.UUID             `json:"id" yaml:"id"`
	Codename   string                `json:"codename" yaml:"codename"`
	Attributes []AttributeDefinition `json:"attributes" yaml:"attributes"`
}

// AttributeDefinition represents a typed field within a catalog
type AttributeDefinition struct {
	ID              uuid.UUID  `json:"id" yaml:"id"`
	Codename        string     `json:"codename" yaml:"codename"`
	DataType        DataType   `json:"dataType" yaml:"dataType"`
	IsRequired      bool       `json:"isRequired" yaml:"isRequired"`
	TargetCatalogID *uuid.UUID `json:"targetCatalogId,omitempty" yaml:"targetCatalogId,omitempty"`
}

// IsRef reports whether the attribute references another catalog
func (a AttributeDefinition) IsRef() bool {
	return a.DataType == DataTypeRef && a.TargetCatalogID != nil
}

// Validate checks that the catalogs form a consistent set. Every problem found
// is reported in a single error wrapping ErrInvalidDefinition.
func Validate(catalogs []CatalogDefinition) error {
	var problems []string

	catalogIDs := make(map[uuid.UUID]bool, len(catalogs))
	for _, c := range catalogs {
		if c.ID == uuid.Nil {
			problems = append(problems, fmt.Sprintf("catalog %q has no id", c.Codename))
			continue
		}
		if catalogIDs[c.ID] {
			problems = append(problems, fmt.Sprintf("duplicate catalog id %s", c.ID))
		}
		catalogIDs[c.ID] = true
	}

	attributeIDs := make(map[uuid.UUID]bool)
	for _, c := range catalogs {
		for _, a := range c.Attributes {
			where := fmt.Sprintf("%s.%s", c.Codename, a.Codename)
			if a.ID == uuid.Nil {
				problems = append(problems, fmt.Sprintf("attribute %s has no id", where))
				continue
			}
			if attributeIDs[a.ID] {
				problems = append(problems, fmt.Sprintf("duplicate attribute id %s", a.ID))
			}
			attributeIDs[a.ID] = true

			switch {
			case a.DataType == DataTypeRef && a.TargetCatalogID == nil:
				problems = append(problems, fmt.Sprintf("attribute %s is REF but has no target catalog", where))
			case a.DataType != DataTypeRef && a.TargetCatalogID != nil:
				problems = append(problems, fmt.Sprintf("attribute %s has a target catalog but is %s", where, a.DataType))
			case a.TargetCatalogID != nil && !catalogIDs[*a.TargetCatalogID]:
				problems = append(problems, fmt.Sprintf("attribute %s references unknown catalog %s", where, *a.TargetCatalogID))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(problems, "; "))
	}
	return nil
}
