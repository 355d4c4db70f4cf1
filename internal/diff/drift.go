package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/catalogsync/internal/ddl"
	"github.com/tordrt/catalogsync/internal/ident"
	"github.com/tordrt/catalogsync/internal/schema"
)

// Drift is one disagreement between a snapshot and the live database
type Drift struct {
	Table   string
	Column  string
	Problem string
}

func (d Drift) String() string {
	if d.Column == "" {
		return fmt.Sprintf("%s: %s", d.Table, d.Problem)
	}
	return fmt.Sprintf("%s.%s: %s", d.Table, d.Column, d.Problem)
}

// DetectDrift reports where live no longer matches snap: tables or columns that
// are missing or unexpected, nullability and type mismatches, and missing or
// stray foreign keys. Tables and columns outside the catalog naming scheme are
// ignored.
func DetectDrift(snap *schema.Snapshot, live *schema.Schema) []Drift {
	var drifts []Drift
	known := make(map[string]bool, len(snap.Catalogs))

	for _, catalogID := range snap.CatalogIDs() {
		ts := snap.Catalogs[catalogID]
		known[ts.TableName] = true

		table := live.Table(ts.TableName)
		if table == nil {
			drifts = append(drifts, Drift{Table: ts.TableName, Problem: "table is missing"})
			continue
		}

		knownColumns := map[string]bool{}
		for _, attributeID := range ts.AttributeIDs() {
			cs := ts.Attributes[attributeID]
			knownColumns[cs.ColumnName] = true

			col := table.Column(cs.ColumnName)
			if col == nil {
				drifts = append(drifts, Drift{Table: ts.TableName, Column: cs.ColumnName, Problem: "column is missing"})
				continue
			}

			if want := schema.MapDataType(cs.DataType); col.Type != want {
				drifts = append(drifts, Drift{Table: ts.TableName, Column: cs.ColumnName, Problem: fmt.Sprintf("type is %s, expected %s", col.Type, want)})
			}
			if col.Nullable == cs.IsRequired {
				drifts = append(drifts, Drift{Table: ts.TableName, Column: cs.ColumnName, Problem: nullabilityProblem(cs.IsRequired)})
			}

			rel := table.Relation(cs.ColumnName)
			switch {
			case cs.TargetCatalogID != nil && rel == nil:
				drifts = append(drifts, Drift{Table: ts.TableName, Column: cs.ColumnName, Problem: "foreign key is missing"})
			case cs.TargetCatalogID != nil && rel.TargetTable != ident.DeriveTableName(*cs.TargetCatalogID).String():
				drifts = append(drifts, Drift{Table: ts.TableName, Column: cs.ColumnName, Problem: fmt.Sprintf("foreign key points to %s", rel.TargetTable)})
			case cs.TargetCatalogID == nil && rel != nil:
				drifts = append(drifts, Drift{Table: ts.TableName, Column: cs.ColumnName, Problem: "unexpected foreign key " + rel.ConstraintName})
			}
		}

		for _, col := range table.Columns {
			if isSystemColumn(col.Name) || knownColumns[col.Name] {
				continue
			}
			if strings.HasPrefix(col.Name, "attr_") {
				drifts = append(drifts, Drift{Table: ts.TableName, Column: col.Name, Problem: "column is not in snapshot"})
			}
		}
	}

	for _, table := range live.Tables {
		if !known[table.Name] && ident.Validate(table.Name, ident.KindTable) {
			drifts = append(drifts, Drift{Table: table.Name, Problem: "table is not in snapshot"})
		}
	}

	sort.SliceStable(drifts, func(i, j int) bool {
		if drifts[i].Table != drifts[j].Table {
			return drifts[i].Table < drifts[j].Table
		}
		return drifts[i].Column < drifts[j].Column
	})
	return drifts
}

func nullabilityProblem(required bool) string {
	if required {
		return "column is nullable, expected NOT NULL"
	}
	return "column is NOT NULL, expected nullable"
}

func isSystemColumn(name string) bool {
	return name == ddl.ColumnID || name == ddl.ColumnCreatedAt || name == ddl.ColumnUpdatedAt
}
