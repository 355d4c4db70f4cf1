// Package diff computes the structural changes needed to move a tenant schema
// from a persisted snapshot to a new set of catalog definitions.
//
// CalculateDiff and DetectDrift are pure: they never touch the database and are
// safe to call concurrently.
package diff

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/tordrt/catalogsync/internal/ident"
	"github.com/tordrt/catalogsync/internal/metadata"
	"github.com/tordrt/catalogsync/internal/schema"
)

// SchemaDiff is the classified result of a comparison
type SchemaDiff struct {
	HasChanges  bool
	Additive    []Change
	Destructive []Change
	Summary     string
	// Notices lists renames and other metadata changes that need no DDL
	Notices []string
}

// Descriptions returns the human readable descriptions of changes
func Descriptions(changes []Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Description())
	}
	return out
}

// CalculateDiff compares old against catalogs. A nil old snapshot is treated as
// an empty schema, so every catalog becomes an ADD_TABLE.
func CalculateDiff(old *schema.Snapshot, catalogs []metadata.CatalogDefinition) *SchemaDiff {
	if old == nil {
		old = &schema.Snapshot{}
	}

	d := &SchemaDiff{}
	add := func(c Change) {
		if c.IsDestructive() {
			d.Destructive = append(d.Destructive, c)
		} else {
			d.Additive = append(d.Additive, c)
		}
	}

	current := make(map[uuid.UUID]bool, len(catalogs))
	for _, c := range catalogs {
		current[c.ID] = true
		table := TableRef{CatalogID: c.ID, Catalog: c.Codename, Table: ident.DeriveTableName(c.ID)}

		prev, existed := old.Catalogs[c.ID]
		if !existed {
			add(AddTable{TableRef: table, Definition: c})
			for _, a := range c.Attributes {
				if a.IsRef() {
					add(addForeignKey(table, a))
				}
			}
			continue
		}

		if prev.Codename != c.Codename {
			d.Notices = append(d.Notices, fmt.Sprintf("catalog %q renamed to %q (table %s unchanged)", prev.Codename, c.Codename, table.Table))
		}
		diffAttributes(d, add, table, prev, c)
	}

	for _, id := range old.CatalogIDs() {
		if current[id] {
			continue
		}
		prev := old.Catalogs[id]
		table := TableRef{CatalogID: id, Catalog: prev.Codename, Table: ident.DeriveTableName(id)}
		// DROP TABLE runs without CASCADE, so references between removed
		// catalogs must be gone before any of their tables is dropped.
		for _, attrID := range prev.AttributeIDs() {
			pa := prev.Attributes[attrID]
			if pa.TargetCatalogID == nil {
				continue
			}
			add(DropForeignKey{
				ColumnRef:          ColumnRef{TableRef: table, AttributeID: attrID, Attribute: pa.Codename, Column: ident.DeriveColumnName(attrID)},
				OldTargetCatalogID: *pa.TargetCatalogID,
			})
		}
		add(DropTable{TableRef: table})
	}

	sortChanges(d.Additive)
	sortChanges(d.Destructive)
	d.HasChanges = len(d.Additive) > 0 || len(d.Destructive) > 0
	d.Summary = summarize(d)
	return d
}

func diffAttributes(d *SchemaDiff, add func(Change), table TableRef, prev schema.TableSnapshot, c metadata.CatalogDefinition) {
	current := make(map[uuid.UUID]bool, len(c.Attributes))
	for _, a := range c.Attributes {
		current[a.ID] = true
		col := ColumnRef{TableRef: table, AttributeID: a.ID, Attribute: a.Codename, Column: ident.DeriveColumnName(a.ID)}

		pa, existed := prev.Attributes[a.ID]
		if !existed {
			add(AddColumn{ColumnRef: col, DataType: a.DataType, IsRequired: a.IsRequired})
			if a.IsRef() {
				add(addForeignKey(table, a))
			}
			continue
		}

		if pa.Codename != a.Codename {
			d.Notices = append(d.Notices, fmt.Sprintf("attribute %q of catalog %q renamed to %q (column %s unchanged)", pa.Codename, c.Codename, a.Codename, col.Column))
		}

		if pa.DataType != a.DataType {
			add(AlterColumnType{ColumnRef: col, OldType: pa.DataType, NewType: a.DataType})
		}

		if pa.IsRequired != a.IsRequired {
			add(AlterColumnNullability{ColumnRef: col, Required: a.IsRequired})
		}

		if !sameTarget(pa.TargetCatalogID, a.TargetCatalogID) {
			if pa.TargetCatalogID != nil {
				add(DropForeignKey{ColumnRef: col, OldTargetCatalogID: *pa.TargetCatalogID})
			}
			if a.TargetCatalogID != nil {
				add(addForeignKey(table, a))
			}
		}
	}

	for _, id := range prev.AttributeIDs() {
		if current[id] {
			continue
		}
		pa := prev.Attributes[id]
		add(DropColumn{ColumnRef: ColumnRef{TableRef: table, AttributeID: id, Attribute: pa.Codename, Column: ident.DeriveColumnName(id)}})
	}
}

func addForeignKey(table TableRef, a metadata.AttributeDefinition) AddForeignKey {
	return AddForeignKey{
		ColumnRef:       ColumnRef{TableRef: table, AttributeID: a.ID, Attribute: a.Codename, Column: ident.DeriveColumnName(a.ID)},
		TargetCatalogID: *a.TargetCatalogID,
		TargetTable:     ident.DeriveTableName(*a.TargetCatalogID),
	}
}

func sameTarget(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortChanges(changes []Change) {
	sort.SliceStable(changes, func(i, j int) bool {
		pi, pj := phase(changes[i]), phase(changes[j])
		if pi != pj {
			return pi < pj
		}
		ti, ci := sortKey(changes[i])
		tj, cj := sortKey(changes[j])
		if ti != tj {
			return ti < tj
		}
		return ci < cj
	})
}

func summarize(d *SchemaDiff) string {
	if !d.HasChanges {
		return "schema is up to date"
	}
	return fmt.Sprintf("%d additive and %d destructive change(s)", len(d.Additive), len(d.Destructive))
}
