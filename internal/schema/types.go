package schema

// Schema is the physical layout of a tenant schema as introspected from the database
type Schema struct {
	Name   string
	Tables []Table
}

// Table represents a database table
type Table struct {
	Name       string
	Columns    []Column
	Relations  []Relation
	PrimaryKey []string
}

// Column represents a table column
type Column struct {
	Name         string
	Type         string
	Nullable     bool
	DefaultValue *string
}

// Relation represents a foreign key constraint
type Relation struct {
	ConstraintName string
	SourceColumn   string
	TargetTable    string
	TargetColumn   string
}

// Table returns the table with the given name, or nil
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// Column returns the column with the given name, or nil
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Relation returns the foreign key on the given source column, or nil
func (t *Table) Relation(column string) *Relation {
	for i := range t.Relations {
		if t.Relations[i].SourceColumn == column {
			return &t.Relations[i]
		}
	}
	return nil
}
