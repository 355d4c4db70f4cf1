package db

import (
	"context"
	"fmt"

	"github.com/tordrt/catalogsync/internal/schema"
)

// Extractor reads the live layout of a tenant schema from PostgreSQL. It is
// used to detect drift between the persisted snapshot and the database; diffs
// are never computed from it.
type Extractor struct {
	client *PostgresClient
	schema string
}

// NewExtractor creates a new schema extractor
func NewExtractor(client *PostgresClient, schemaName string) *Extractor {
	return &Extractor{
		client: client,
		schema: schemaName,
	}
}

// ExtractSchema reads every base table of the schema with three catalog
// queries: columns, primary keys and foreign keys.
func (e *Extractor) ExtractSchema(ctx context.Context) (*schema.Schema, error) {
	tables := newTableSet(e.schema)

	if err := e.extractColumns(ctx, tables); err != nil {
		return nil, fmt.Errorf("failed to extract columns: %w", err)
	}
	if err := e.extractPrimaryKeys(ctx, tables); err != nil {
		return nil, fmt.Errorf("failed to extract primary keys: %w", err)
	}
	if err := e.extractForeignKeys(ctx, tables); err != nil {
		return nil, fmt.Errorf("failed to extract foreign keys: %w", err)
	}

	return tables.schema, nil
}

// tableSet builds a schema.Schema from rows grouped by table name, keeping
// the order in which tables first appear
type tableSet struct {
	schema *schema.Schema
	index  map[string]int
}

func newTableSet(name string) *tableSet {
	return &tableSet{schema: &schema.Schema{Name: name}, index: make(map[string]int)}
}

// table returns the named table, adding it when create is set
func (ts *tableSet) table(name string, create bool) *schema.Table {
	if i, ok := ts.index[name]; ok {
		return &ts.schema.Tables[i]
	}
	if !create {
		return nil
	}
	ts.index[name] = len(ts.schema.Tables)
	ts.schema.Tables = append(ts.schema.Tables, schema.Table{Name: name})
	return &ts.schema.Tables[len(ts.schema.Tables)-1]
}

// normalizePostgresType maps information_schema type names to the names
// MapDataType produces, so drift compares like with like
func normalizePostgresType(dataType, udtName string) string {
	switch dataType {
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "character varying":
		return "varchar"
	case "USER-DEFINED", "ARRAY":
		return udtName
	default:
		return dataType
	}
}

func (e *Extractor) extractColumns(ctx context.Context, tables *tableSet) error {
	query := `
		SELECT c.table_name, c.column_name, c.data_type, c.udt_name, c.is_nullable = 'YES', c.column_default
		FROM information_schema.columns c
		JOIN information_schema.tables t
			ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = $1 AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position
	`

	rows, err := e.client.Pool().Query(ctx, query, e.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, dataType, udtName string
		var col schema.Column
		if err := rows.Scan(&tableName, &col.Name, &dataType, &udtName, &col.Nullable, &col.DefaultValue); err != nil {
			return err
		}
		col.Type = normalizePostgresType(dataType, udtName)
		t := tables.table(tableName, true)
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

func (e *Extractor) extractPrimaryKeys(ctx context.Context, tables *tableSet) error {
	query := `
		SELECT cl.relname, a.attname
		FROM pg_constraint con
		JOIN pg_class cl ON cl.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = cl.relnamespace
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = ANY (con.conkey)
		WHERE con.contype = 'p' AND n.nspname = $1
		ORDER BY cl.relname, array_position(con.conkey, a.attnum)
	`

	rows, err := e.client.Pool().Query(ctx, query, e.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, column string
		if err := rows.Scan(&tableName, &column); err != nil {
			return err
		}
		if t := tables.table(tableName, false); t != nil {
			t.PrimaryKey = append(t.PrimaryKey, column)
		}
	}
	return rows.Err()
}

// extractForeignKeys reads single-column foreign keys, the only kind the
// generator and migrator create
func (e *Extractor) extractForeignKeys(ctx context.Context, tables *tableSet) error {
	query := `
		SELECT cl.relname, con.conname, a.attname, tcl.relname, ta.attname
		FROM pg_constraint con
		JOIN pg_class cl ON cl.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = cl.relnamespace
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = con.conkey[1]
		JOIN pg_class tcl ON tcl.oid = con.confrelid
		JOIN pg_attribute ta ON ta.attrelid = con.confrelid AND ta.attnum = con.confkey[1]
		WHERE con.contype = 'f' AND n.nspname = $1
		ORDER BY cl.relname, con.conname
	`

	rows, err := e.client.Pool().Query(ctx, query, e.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName string
		var rel schema.Relation
		if err := rows.Scan(&tableName, &rel.ConstraintName, &rel.SourceColumn, &rel.TargetTable, &rel.TargetColumn); err != nil {
			return err
		}
		if t := tables.table(tableName, false); t != nil {
			t.Relations = append(t.Relations, rel)
		}
	}
	return rows.Err()
}
