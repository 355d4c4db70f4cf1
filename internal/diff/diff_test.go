package diff

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/catalogsync/internal/metadata"
	"github.com/tordrt/catalogsync/internal/schema"
)

func kinds(changes []Change) []ChangeType {
	out := make([]ChangeType, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Kind())
	}
	return out
}

func product(attrs ...metadata.AttributeDefinition) metadata.CatalogDefinition {
	return metadata.CatalogDefinition{
		ID:         uuid.MustParse("0a0a0a0a-0a0a-4a0a-8a0a-0a0a0a0a0a0a"),
		Codename:   "product",
		Attributes: attrs,
	}
}

var (
	priceID = uuid.MustParse("1b1b1b1b-1b1b-4b1b-8b1b-1b1b1b1b1b1b")
	skuID   = uuid.MustParse("2c2c2c2c-2c2c-4c2c-8c2c-2c2c2c2c2c2c")
)

func price(required bool) metadata.AttributeDefinition {
	return metadata.AttributeDefinition{ID: priceID, Codename: "price", DataType: metadata.DataTypeNumber, IsRequired: required}
}

func TestCalculateDiff_Bootstrap(t *testing.T) {
	a := metadata.CatalogDefinition{ID: uuid.New(), Codename: "a"}
	b := metadata.CatalogDefinition{ID: uuid.New(), Codename: "b", Attributes: []metadata.AttributeDefinition{
		{ID: uuid.New(), Codename: "title", DataType: metadata.DataTypeString},
	}}

	d := CalculateDiff(nil, []metadata.CatalogDefinition{a, b})

	assert.True(t, d.HasChanges)
	assert.Equal(t, []ChangeType{ChangeAddTable, ChangeAddTable}, kinds(d.Additive))
	assert.Empty(t, d.Destructive)
}

func TestCalculateDiff_BootstrapWithReferences(t *testing.T) {
	a := metadata.CatalogDefinition{ID: uuid.New(), Codename: "a"}
	b := metadata.CatalogDefinition{ID: uuid.New(), Codename: "b", Attributes: []metadata.AttributeDefinition{
		{ID: uuid.New(), Codename: "a", DataType: metadata.DataTypeRef, TargetCatalogID: &a.ID},
	}}

	d := CalculateDiff(nil, []metadata.CatalogDefinition{b, a})

	// Foreign keys come after every table, whatever the input order.
	assert.Equal(t, []ChangeType{ChangeAddTable, ChangeAddTable, ChangeAddFK}, kinds(d.Additive))
	assert.Empty(t, d.Destructive)
}

func TestCalculateDiff_NoChanges(t *testing.T) {
	catalogs := []metadata.CatalogDefinition{product(price(true))}
	d := CalculateDiff(schema.NewSnapshot(catalogs), catalogs)

	assert.False(t, d.HasChanges)
	assert.Empty(t, d.Additive)
	assert.Empty(t, d.Destructive)
	assert.Equal(t, "schema is up to date", d.Summary)
}

func TestCalculateDiff_RenameIsStable(t *testing.T) {
	old := product(price(true))
	renamed := product(metadata.AttributeDefinition{ID: priceID, Codename: "unit_price", DataType: metadata.DataTypeNumber, IsRequired: true})
	renamed.Codename = "item"

	d := CalculateDiff(schema.NewSnapshot([]metadata.CatalogDefinition{old}), []metadata.CatalogDefinition{renamed})

	assert.False(t, d.HasChanges)
	assert.Len(t, d.Notices, 2)
}

func TestCalculateDiff_DropTable(t *testing.T) {
	keep := metadata.CatalogDefinition{ID: uuid.New(), Codename: "keep"}
	gone := metadata.CatalogDefinition{ID: uuid.New(), Codename: "gone"}

	d := CalculateDiff(schema.NewSnapshot([]metadata.CatalogDefinition{keep, gone}), []metadata.CatalogDefinition{keep})

	assert.Empty(t, d.Additive)
	require.Len(t, d.Destructive, 1)
	drop, ok := d.Destructive[0].(DropTable)
	require.True(t, ok)
	assert.Equal(t, gone.ID, drop.CatalogID)
	assert.Equal(t, "gone", drop.Catalog)
	assert.Contains(t, drop.Description(), "gone")
}

func TestCalculateDiff_DropTablesReferencingEachOther(t *testing.T) {
	keep := metadata.CatalogDefinition{ID: uuid.New(), Codename: "keep"}
	aID, bID := uuid.New(), uuid.New()
	a := metadata.CatalogDefinition{ID: aID, Codename: "a", Attributes: []metadata.AttributeDefinition{
		{ID: uuid.New(), Codename: "b", DataType: metadata.DataTypeRef, TargetCatalogID: &bID},
	}}
	b := metadata.CatalogDefinition{ID: bID, Codename: "b", Attributes: []metadata.AttributeDefinition{
		{ID: uuid.New(), Codename: "a", DataType: metadata.DataTypeRef, TargetCatalogID: &aID},
		{ID: uuid.New(), Codename: "title", DataType: metadata.DataTypeString},
	}}

	d := CalculateDiff(schema.NewSnapshot([]metadata.CatalogDefinition{keep, a, b}), []metadata.CatalogDefinition{keep})

	assert.Empty(t, d.Additive)
	assert.Equal(t, []ChangeType{ChangeDropFK, ChangeDropFK, ChangeDropTable, ChangeDropTable}, kinds(d.Destructive))
	for _, c := range d.Destructive[:2] {
		fk := c.(DropForeignKey)
		assert.Contains(t, []uuid.UUID{aID, bID}, fk.CatalogID)
		assert.NotEqual(t, fk.CatalogID, fk.OldTargetCatalogID)
	}
}

func TestCalculateDiff_RequiredAsymmetry(t *testing.T) {
	t.Run("tighten is destructive", func(t *testing.T) {
		d := CalculateDiff(
			schema.NewSnapshot([]metadata.CatalogDefinition{product(price(false))}),
			[]metadata.CatalogDefinition{product(price(true))},
		)
		assert.Empty(t, d.Additive)
		require.Len(t, d.Destructive, 1)
		c, ok := d.Destructive[0].(AlterColumnNullability)
		require.True(t, ok)
		assert.True(t, c.Required)
		assert.Equal(t, ChangeAlterColumn, c.Kind())
	})

	t.Run("relax is additive", func(t *testing.T) {
		d := CalculateDiff(
			schema.NewSnapshot([]metadata.CatalogDefinition{product(price(true))}),
			[]metadata.CatalogDefinition{product(price(false))},
		)
		assert.Empty(t, d.Destructive)
		require.Len(t, d.Additive, 1)
		c, ok := d.Additive[0].(AlterColumnNullability)
		require.True(t, ok)
		assert.False(t, c.Required)
	})
}

func TestCalculateDiff_TypeChange(t *testing.T) {
	asText := price(true)
	asText.DataType = metadata.DataTypeString

	d := CalculateDiff(
		schema.NewSnapshot([]metadata.CatalogDefinition{product(price(true))}),
		[]metadata.CatalogDefinition{product(asText)},
	)

	assert.Empty(t, d.Additive)
	require.Len(t, d.Destructive, 1)
	c, ok := d.Destructive[0].(AlterColumnType)
	require.True(t, ok)
	assert.Equal(t, metadata.DataTypeNumber, c.OldType)
	assert.Equal(t, metadata.DataTypeString, c.NewType)
}

func TestCalculateDiff_ForeignKeyRetarget(t *testing.T) {
	x := metadata.CatalogDefinition{ID: uuid.New(), Codename: "x"}
	y := metadata.CatalogDefinition{ID: uuid.New(), Codename: "y"}
	refID := uuid.New()
	holder := func(target uuid.UUID) metadata.CatalogDefinition {
		return metadata.CatalogDefinition{ID: uuid.MustParse("9e9e9e9e-9e9e-4e9e-8e9e-9e9e9e9e9e9e"), Codename: "holder", Attributes: []metadata.AttributeDefinition{
			{ID: refID, Codename: "ref", DataType: metadata.DataTypeRef, TargetCatalogID: &target},
		}}
	}

	d := CalculateDiff(
		schema.NewSnapshot([]metadata.CatalogDefinition{x, y, holder(x.ID)}),
		[]metadata.CatalogDefinition{x, y, holder(y.ID)},
	)

	require.Equal(t, []ChangeType{ChangeDropFK}, kinds(d.Destructive))
	require.Equal(t, []ChangeType{ChangeAddFK}, kinds(d.Additive))
	assert.Equal(t, refID, d.Destructive[0].(DropForeignKey).AttributeID)
	assert.Equal(t, x.ID, d.Destructive[0].(DropForeignKey).OldTargetCatalogID)
	assert.Equal(t, refID, d.Additive[0].(AddForeignKey).AttributeID)
	assert.Equal(t, y.ID, d.Additive[0].(AddForeignKey).TargetCatalogID)
}

func TestCalculateDiff_RefToScalar(t *testing.T) {
	x := metadata.CatalogDefinition{ID: uuid.New(), Codename: "x"}
	refID := uuid.New()
	holderID := uuid.New()

	oldHolder := metadata.CatalogDefinition{ID: holderID, Codename: "holder", Attributes: []metadata.AttributeDefinition{
		{ID: refID, Codename: "ref", DataType: metadata.DataTypeRef, TargetCatalogID: &x.ID},
	}}
	newHolder := metadata.CatalogDefinition{ID: holderID, Codename: "holder", Attributes: []metadata.AttributeDefinition{
		{ID: refID, Codename: "ref", DataType: metadata.DataTypeString},
	}}

	d := CalculateDiff(schema.NewSnapshot([]metadata.CatalogDefinition{x, oldHolder}), []metadata.CatalogDefinition{x, newHolder})

	// The constraint goes before the type change.
	assert.Equal(t, []ChangeType{ChangeDropFK, ChangeAlterColumn}, kinds(d.Destructive))
	assert.Empty(t, d.Additive)
}

func TestCalculateDiff_ProductScenario(t *testing.T) {
	sku := metadata.AttributeDefinition{ID: skuID, Codename: "sku", DataType: metadata.DataTypeString}

	first := []metadata.CatalogDefinition{product(price(true))}
	d1 := CalculateDiff(nil, first)
	require.Equal(t, []ChangeType{ChangeAddTable}, kinds(d1.Additive))
	snap1 := schema.NewSnapshot(first)

	second := []metadata.CatalogDefinition{product(price(true), sku)}
	d2 := CalculateDiff(snap1, second)
	require.Equal(t, []ChangeType{ChangeAddColumn}, kinds(d2.Additive))
	assert.Empty(t, d2.Destructive)
	snap2 := schema.NewSnapshot(second)

	third := []metadata.CatalogDefinition{product(price(true))}
	d3 := CalculateDiff(snap2, third)
	assert.Empty(t, d3.Additive)
	require.Equal(t, []ChangeType{ChangeDropColumn}, kinds(d3.Destructive))
	assert.True(t, d3.Destructive[0].IsDestructive())
	assert.Equal(t, skuID, d3.Destructive[0].(DropColumn).AttributeID)
}

func TestCalculateDiff_NewRefColumnGetsForeignKey(t *testing.T) {
	x := metadata.CatalogDefinition{ID: uuid.New(), Codename: "x"}
	ref := metadata.AttributeDefinition{ID: uuid.New(), Codename: "x", DataType: metadata.DataTypeRef, TargetCatalogID: &x.ID}

	d := CalculateDiff(
		schema.NewSnapshot([]metadata.CatalogDefinition{x, product(price(true))}),
		[]metadata.CatalogDefinition{x, product(price(true), ref)},
	)

	assert.Equal(t, []ChangeType{ChangeAddColumn, ChangeAddFK}, kinds(d.Additive))
	assert.Empty(t, d.Destructive)
}

func TestCalculateDiff_OrderIsDeterministic(t *testing.T) {
	var catalogs []metadata.CatalogDefinition
	for i := 0; i < 8; i++ {
		catalogs = append(catalogs, metadata.CatalogDefinition{ID: uuid.New(), Codename: "c"})
	}
	reversed := make([]metadata.CatalogDefinition, len(catalogs))
	for i, c := range catalogs {
		reversed[len(catalogs)-1-i] = c
	}

	assert.Equal(t, Descriptions(CalculateDiff(nil, catalogs).Additive), Descriptions(CalculateDiff(nil, reversed).Additive))
}
