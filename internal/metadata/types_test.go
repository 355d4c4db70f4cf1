package metadata

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	customers := uuid.New()
	orders := uuid.New()
	unknown := uuid.New()
	sharedAttr := uuid.New()

	tests := []struct {
		name     string
		catalogs []CatalogDefinition
		wantErr  string
	}{
		{
			name: "valid set with reference",
			catalogs: []CatalogDefinition{
				{ID: customers, Codename: "customers", Attributes: []AttributeDefinition{
					{ID: uuid.New(), Codename: "name", DataType: DataTypeString, IsRequired: true},
				}},
				{ID: orders, Codename: "orders", Attributes: []AttributeDefinition{
					{ID: uuid.New(), Codename: "customer", DataType: DataTypeRef, TargetCatalogID: &customers},
				}},
			},
		},
		{
			name:     "nil catalog id",
			catalogs: []CatalogDefinition{{Codename: "broken"}},
			wantErr:  "has no id",
		},
		{
			name: "duplicate catalog id",
			catalogs: []CatalogDefinition{
				{ID: customers, Codename: "a"},
				{ID: customers, Codename: "b"},
			},
			wantErr: "duplicate catalog id",
		},
		{
			name: "duplicate attribute id across catalogs",
			catalogs: []CatalogDefinition{
				{ID: customers, Codename: "a", Attributes: []AttributeDefinition{{ID: sharedAttr, Codename: "x", DataType: DataTypeString}}},
				{ID: orders, Codename: "b", Attributes: []AttributeDefinition{{ID: sharedAttr, Codename: "y", DataType: DataTypeString}}},
			},
			wantErr: "duplicate attribute id",
		},
		{
			name: "ref without target",
			catalogs: []CatalogDefinition{
				{ID: orders, Codename: "orders", Attributes: []AttributeDefinition{{ID: uuid.New(), Codename: "customer", DataType: DataTypeRef}}},
			},
			wantErr: "is REF but has no target",
		},
		{
			name: "target on non-ref",
			catalogs: []CatalogDefinition{
				{ID: customers, Codename: "customers"},
				{ID: orders, Codename: "orders", Attributes: []AttributeDefinition{{ID: uuid.New(), Codename: "customer", DataType: DataTypeString, TargetCatalogID: &customers}}},
			},
			wantErr: "has a target catalog but is STRING",
		},
		{
			name: "unknown target",
			catalogs: []CatalogDefinition{
				{ID: orders, Codename: "orders", Attributes: []AttributeDefinition{{ID: uuid.New(), Codename: "customer", DataType: DataTypeRef, TargetCatalogID: &unknown}}},
			},
			wantErr: "references unknown catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.catalogs)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidDefinition)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDataTypeKnown(t *testing.T) {
	for _, dt := range []DataType{DataTypeString, DataTypeNumber, DataTypeBoolean, DataTypeDate, DataTypeDateTime, DataTypeRef, DataTypeJSON} {
		assert.True(t, dt.Known(), dt)
	}
	assert.False(t, DataType("GEOMETRY").Known())
}
