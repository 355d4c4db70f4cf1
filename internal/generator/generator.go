// Package generator performs the first materialization of a tenant schema.
package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tordrt/catalogsync/internal/db"
	"github.com/tordrt/catalogsync/internal/ddl"
	"github.com/tordrt/catalogsync/internal/ident"
	"github.com/tordrt/catalogsync/internal/metadata"
	"github.com/tordrt/catalogsync/internal/schema"
)

// GenerationResult reports a full generation. Every catalog is attempted even
// when others fail, so a failed generation is repaired with a diff and migrate
// pass rather than a retry.
type GenerationResult struct {
	Success       bool
	TablesCreated []string
	Errors        []string
	// FailedForeignKeys holds the attribute ids whose constraint was not created
	FailedForeignKeys []uuid.UUID
}

// Generator creates tenant schemas and their catalog tables
type Generator struct {
	exec   db.Executor
	logger *slog.Logger
}

// New creates a new Generator
func New(exec db.Executor, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{exec: exec, logger: logger}
}

// CreateSchema creates the schema if it does not exist
func (g *Generator) CreateSchema(ctx context.Context, name string) error {
	s, err := ident.New(name, ident.KindSchema)
	if err != nil {
		return err
	}
	if err := g.exec.Exec(ctx, ddl.CreateSchema(s)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", s, err)
	}
	g.logger.Info("schema created", "schema", s.String())
	return nil
}

// DropSchema drops the schema and everything in it
func (g *Generator) DropSchema(ctx context.Context, name string) error {
	s, err := ident.New(name, ident.KindSchema)
	if err != nil {
		return err
	}
	if err := g.exec.Exec(ctx, ddl.DropSchema(s)); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", s, err)
	}
	g.logger.Warn("schema dropped", "schema", s.String())
	return nil
}

// SchemaExists reports whether the schema is present
func (g *Generator) SchemaExists(ctx context.Context, name string) (bool, error) {
	s, err := ident.New(name, ident.KindSchema)
	if err != nil {
		return false, err
	}
	exists, err := g.exec.QueryExists(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`, s.String())
	if err != nil {
		return false, fmt.Errorf("failed to check schema %s: %w", s, err)
	}
	return exists, nil
}

// GenerateFullSchema creates one table per catalog, then every foreign key.
//
// Foreign keys are only added after all tables exist, because catalogs may
// reference each other in any order, including cycles. The returned error is
// non-nil only for an invalid schema name; execution failures are collected in
// the result.
func (g *Generator) GenerateFullSchema(ctx context.Context, schemaName string, catalogs []metadata.CatalogDefinition) (*GenerationResult, error) {
	s, err := ident.New(schemaName, ident.KindSchema)
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{}
	created := make(map[uuid.UUID]bool, len(catalogs))

	for _, c := range catalogs {
		table := ident.DeriveTableName(c.ID)
		if err := g.exec.Exec(ctx, ddl.CreateTable(s, table, ddl.ColumnsFor(c))); err != nil {
			g.logger.Error("failed to create table", "schema", s.String(), "table", table.String(), "catalog", c.Codename, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("failed to create table %s for catalog %q: %v", table, c.Codename, err))
			continue
		}
		created[c.ID] = true
		result.TablesCreated = append(result.TablesCreated, table.String())
		g.logger.Debug("table created", "schema", s.String(), "table", table.String(), "catalog", c.Codename)
	}

	for _, c := range catalogs {
		if !created[c.ID] {
			continue
		}
		table := ident.DeriveTableName(c.ID)
		for _, a := range c.Attributes {
			if !a.IsRef() {
				continue
			}
			column := ident.DeriveColumnName(a.ID)
			target := ident.DeriveTableName(*a.TargetCatalogID)

			if !created[*a.TargetCatalogID] {
				result.Errors = append(result.Errors, fmt.Sprintf("skipped foreign key %s.%s: target table %s was not created", table, column, target))
				result.FailedForeignKeys = append(result.FailedForeignKeys, a.ID)
				continue
			}
			if err := g.exec.Exec(ctx, ddl.AddForeignKey(s, table, column, target)); err != nil {
				g.logger.Error("failed to add foreign key", "schema", s.String(), "table", table.String(), "column", column.String(), "error", err)
				result.Errors = append(result.Errors, fmt.Sprintf("failed to add foreign key %s.%s -> %s: %v", table, column, target, err))
				result.FailedForeignKeys = append(result.FailedForeignKeys, a.ID)
			}
		}
	}

	result.Success = len(result.Errors) == 0
	g.logger.Info("schema generated", "schema", s.String(), "tables", len(result.TablesCreated), "errors", len(result.Errors))
	return result, nil
}

// GenerateSnapshot derives the snapshot of catalogs without touching the database
func (g *Generator) GenerateSnapshot(catalogs []metadata.CatalogDefinition) *schema.Snapshot {
	return schema.NewSnapshot(catalogs)
}

// PartialSnapshot describes what a generation actually built: only the tables
// that were created, with failed foreign keys left out. Persisting it lets the
// next diff re-emit exactly the missing pieces.
func PartialSnapshot(catalogs []metadata.CatalogDefinition, result *GenerationResult) *schema.Snapshot {
	created := make(map[string]bool, len(result.TablesCreated))
	for _, t := range result.TablesCreated {
		created[t] = true
	}

	var kept []metadata.CatalogDefinition
	for _, c := range catalogs {
		if created[ident.DeriveTableName(c.ID).String()] {
			kept = append(kept, c)
		}
	}

	snap := schema.NewSnapshot(kept)
	for _, attributeID := range result.FailedForeignKeys {
		for catalogID, ts := range snap.Catalogs {
			if col, ok := ts.Attributes[attributeID]; ok {
				col.TargetCatalogID = nil
				ts.Attributes[attributeID] = col
				snap.Catalogs[catalogID] = ts
			}
		}
	}
	return snap
}
