package ident

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIsDeterministic(t *testing.T) {
	id := uuid.MustParse("6f1c2a4e-9b3d-4c1e-8f2a-0d9e8b7c6a51")

	assert.Equal(t, DeriveTableName(id), DeriveTableName(id))
	assert.Equal(t, DeriveColumnName(id), DeriveColumnName(id))
	assert.Equal(t, "cat_6f1c2a4e9b3d4c1e8f2a0d9e8b7c6a51", DeriveTableName(id).String())
	assert.Equal(t, "attr_6f1c2a4e9b3d4c1e8f2a0d9e8b7c6a51", DeriveColumnName(id).String())
	assert.Equal(t, "app_6f1c2a4e9b3d4c1e8f2a0d9e8b7c6a51", DeriveSchemaName(id).String())
}

func TestDerivedNamesDoNotCollideAcrossKinds(t *testing.T) {
	id := uuid.New()
	assert.NotEqual(t, DeriveTableName(id).String(), DeriveColumnName(id).String())
	assert.NotEqual(t, DeriveTableName(id).String(), DeriveSchemaName(id).String())
}

func TestDerivedNamesValidate(t *testing.T) {
	id := uuid.New()
	table := DeriveTableName(id)
	column := DeriveColumnName(uuid.New())

	assert.True(t, Validate(DeriveSchemaName(id).String(), KindSchema))
	assert.True(t, Validate(table.String(), KindTable))
	assert.True(t, Validate(column.String(), KindColumn))
	assert.True(t, Validate(DeriveConstraintName(table, column).String(), KindConstraint))
}

func TestDeriveConstraintNameTruncates(t *testing.T) {
	table := DeriveTableName(uuid.New())
	column := DeriveColumnName(uuid.New())

	name := DeriveConstraintName(table, column)
	assert.Len(t, name.String(), MaxLength)
	assert.True(t, strings.HasPrefix(name.String(), "fk_"+table.String()+"_attr_"))
	assert.Equal(t, name, DeriveConstraintName(table, column))
}

func TestNewRejectsUnsafeNames(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
	}{
		{`cat_x"; DROP TABLE users; --`, KindTable},
		{"cat_6F1C2A4E9B3D4C1E8F2A0D9E8B7C6A51", KindTable},
		{"cat_6f1c2a4e9b3d4c1e8f2a0d9e8b7c6a5", KindTable},
		{"attr_6f1c2a4e9b3d4c1e8f2a0d9e8b7c6a51", KindTable},
		{"cat_6f1c2a4e9b3d4c1e8f2a0d9e8b7c6a51", KindColumn},
		{"public", KindSchema},
		{"", KindSchema},
		{"cat_6f1c2a4e9b3d4c1e8f2a0d9e8b7c6a51", Kind(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.name, tt.kind)
			require.ErrorIs(t, err, ErrInvalidIdentifier)
		})
	}
}

func TestNewAcceptsValidName(t *testing.T) {
	id, err := New("app_6f1c2a4e9b3d4c1e8f2a0d9e8b7c6a51", KindSchema)
	require.NoError(t, err)
	assert.Equal(t, `"app_6f1c2a4e9b3d4c1e8f2a0d9e8b7c6a51"`, id.Quoted())
	assert.Equal(t, KindSchema, id.Kind())
	assert.False(t, id.IsZero())
}
