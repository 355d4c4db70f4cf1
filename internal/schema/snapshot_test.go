package schema

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/catalogsync/internal/metadata"
)

func testCatalogs() []metadata.CatalogDefinition {
	customers := uuid.MustParse("11111111-1111-4111-8111-111111111111")
	orders := uuid.MustParse("22222222-2222-4222-8222-222222222222")
	return []metadata.CatalogDefinition{
		{ID: customers, Codename: "customers", Attributes: []metadata.AttributeDefinition{
			{ID: uuid.MustParse("33333333-3333-4333-8333-333333333333"), Codename: "name", DataType: metadata.DataTypeString, IsRequired: true},
		}},
		{ID: orders, Codename: "orders", Attributes: []metadata.AttributeDefinition{
			{ID: uuid.MustParse("44444444-4444-4444-8444-444444444444"), Codename: "customer", DataType: metadata.DataTypeRef, TargetCatalogID: &customers},
			{ID: uuid.MustParse("55555555-5555-4555-8555-555555555555"), Codename: "total", DataType: metadata.DataTypeNumber},
		}},
	}
}

func TestNewSnapshot(t *testing.T) {
	catalogs := testCatalogs()
	s := NewSnapshot(catalogs)

	require.Len(t, s.Catalogs, 2)
	assert.Equal(t, SnapshotVersion, s.Version)
	assert.False(t, s.GeneratedAt.IsZero())

	orders := s.Catalogs[catalogs[1].ID]
	assert.Equal(t, "cat_22222222222242228222222222222222", orders.TableName)
	assert.Equal(t, "orders", orders.Codename)

	ref := orders.Attributes[catalogs[1].Attributes[0].ID]
	assert.Equal(t, "attr_44444444444444448444444444444444", ref.ColumnName)
	require.NotNil(t, ref.TargetCatalogID)
	assert.Equal(t, catalogs[0].ID, *ref.TargetCatalogID)

	// The snapshot must not alias the caller's pointer.
	*catalogs[1].Attributes[0].TargetCatalogID = uuid.New()
	assert.Equal(t, catalogs[0].ID, *s.Catalogs[catalogs[1].ID].Attributes[catalogs[1].Attributes[0].ID].TargetCatalogID)
}

func TestParseSnapshotRoundTrip(t *testing.T) {
	s := NewSnapshot(testCatalogs())
	data, err := json.Marshal(s)
	require.NoError(t, err)

	parsed, err := ParseSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, s.Catalogs, parsed.Catalogs)
	assert.True(t, s.GeneratedAt.Equal(parsed.GeneratedAt))
}

func TestParseSnapshotRejects(t *testing.T) {
	catalogID := uuid.MustParse("11111111-1111-4111-8111-111111111111")

	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"version":`},
		{"future version", `{"version": 99, "catalogs": {}}`},
		{"missing version", `{"catalogs": {}}`},
		{"table name not derived from id", `{"version": 1, "catalogs": {"` + catalogID.String() + `": {"codename": "x", "tableName": "cat_00000000000000000000000000000000"}}}`},
		{"column name not derived from id", `{"version": 1, "catalogs": {"` + catalogID.String() + `": {"codename": "x", "tableName": "cat_11111111111141118111111111111111",
			"attributes": {"` + catalogID.String() + `": {"codename": "y", "columnName": "attr_bad"}}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSnapshot([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestCatalogIDsAreOrdered(t *testing.T) {
	s := NewSnapshot(testCatalogs())
	ids := s.CatalogIDs()
	require.Len(t, ids, 2)
	assert.Less(t, s.Catalogs[ids[0]].TableName, s.Catalogs[ids[1]].TableName)

	attrs := s.Catalogs[ids[1]].AttributeIDs()
	require.Len(t, attrs, 2)
	assert.Less(t, s.Catalogs[ids[1]].Attributes[attrs[0]].ColumnName, s.Catalogs[ids[1]].Attributes[attrs[1]].ColumnName)
}

func TestMapDataType(t *testing.T) {
	tests := []struct {
		in   metadata.DataType
		want string
	}{
		{metadata.DataTypeString, "text"},
		{metadata.DataTypeNumber, "numeric"},
		{metadata.DataTypeBoolean, "boolean"},
		{metadata.DataTypeDate, "date"},
		{metadata.DataTypeDateTime, "timestamptz"},
		{metadata.DataTypeRef, "uuid"},
		{metadata.DataTypeJSON, "jsonb"},
		{metadata.DataType("GEOMETRY"), FallbackType},
		{metadata.DataType(""), FallbackType},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapDataType(tt.in), tt.in)
	}
}

func TestMarshalIndent(t *testing.T) {
	s := NewSnapshot(testCatalogs())

	data, err := s.MarshalIndent()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"catalogs\": {")

	parsed, err := ParseSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, s.Catalogs, parsed.Catalogs)
}
