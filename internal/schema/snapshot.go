package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tordrt/catalogsync/internal/ident"
	"github.com/tordrt/catalogsync/internal/metadata"
)

// SnapshotVersion is the snapshot format written by this package
const SnapshotVersion = 1

// Snapshot is the last physical layout that was successfully applied to a tenant
// schema. It is the only input for diffing and is replaced wholesale after every
// successful migration, never patched in place.
type Snapshot struct {
	Version     int                         `json:"version"`
	GeneratedAt time.Time                   `json:"generatedAt"`
	Catalogs    map[uuid.UUID]TableSnapshot `json:"catalogs"`
}

// TableSnapshot is the physical layout of one catalog
type TableSnapshot struct {
	Codename   string                       `json:"codename"`
	TableName  string                       `json:"tableName"`
	Attributes map[uuid.UUID]ColumnSnapshot `json:"attributes"`
}

// ColumnSnapshot is the physical layout of one attribute
type ColumnSnapshot struct {
	Codename        string            `json:"codename"`
	ColumnName      string            `json:"columnName"`
	DataType        metadata.DataType `json:"dataType"`
	IsRequired      bool              `json:"isRequired"`
	TargetCatalogID *uuid.UUID        `json:"targetCatalogId,omitempty"`
}

// NewSnapshot derives the snapshot for a set of catalogs. It does not touch the
// database.
func NewSnapshot(catalogs []metadata.CatalogDefinition) *Snapshot {
	s := &Snapshot{
		Version:     SnapshotVersion,
		GeneratedAt: time.Now().UTC(),
		Catalogs:    make(map[uuid.UUID]TableSnapshot, len(catalogs)),
	}

	for _, c := range catalogs {
		t := TableSnapshot{
			Codename:   c.Codename,
			TableName:  ident.DeriveTableName(c.ID).String(),
			Attributes: make(map[uuid.UUID]ColumnSnapshot, len(c.Attributes)),
		}
		for _, a := range c.Attributes {
			col := ColumnSnapshot{
				Codename:   a.Codename,
				ColumnName: ident.DeriveColumnName(a.ID).String(),
				DataType:   a.DataType,
				IsRequired: a.IsRequired,
			}
			if a.TargetCatalogID != nil {
				target := *a.TargetCatalogID
				col.TargetCatalogID = &target
			}
			t.Attributes[a.ID] = col
		}
		s.Catalogs[c.ID] = t
	}

	return s
}

// ParseSnapshot decodes a persisted snapshot and checks that every physical name
// is still the one derived from its id.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	if s.Version < 1 || s.Version > SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if s.Catalogs == nil {
		s.Catalogs = make(map[uuid.UUID]TableSnapshot)
	}

	for catalogID, t := range s.Catalogs {
		if want := ident.DeriveTableName(catalogID).String(); t.TableName != want {
			return nil, fmt.Errorf("snapshot table %q does not match catalog %s", t.TableName, catalogID)
		}
		for attributeID, col := range t.Attributes {
			if want := ident.DeriveColumnName(attributeID).String(); col.ColumnName != want {
				return nil, fmt.Errorf("snapshot column %q does not match attribute %s", col.ColumnName, attributeID)
			}
		}
	}

	return &s, nil
}

// MarshalIndent encodes the snapshot as indented JSON for files meant to be read
func (s *Snapshot) MarshalIndent() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// CatalogIDs returns the catalog ids ordered by table name
func (s *Snapshot) CatalogIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Catalogs))
	for id := range s.Catalogs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.Catalogs[ids[i]].TableName < s.Catalogs[ids[j]].TableName
	})
	return ids
}

// AttributeIDs returns the attribute ids ordered by column name
func (t TableSnapshot) AttributeIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.Attributes))
	for id := range t.Attributes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return t.Attributes[ids[i]].ColumnName < t.Attributes[ids[j]].ColumnName
	})
	return ids
}
