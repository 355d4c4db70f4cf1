// Package migrator applies classified schema changes to a live tenant schema.
package migrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tordrt/catalogsync/internal/db"
	"github.com/tordrt/catalogsync/internal/ddl"
	"github.com/tordrt/catalogsync/internal/diff"
	"github.com/tordrt/catalogsync/internal/ident"
	"github.com/tordrt/catalogsync/internal/metadata"
	"github.com/tordrt/catalogsync/internal/metrics"
	"github.com/tordrt/catalogsync/internal/schema"
)

// LockContentionError is the single error reported when another migration
// holds the schema lock
const LockContentionError = "could not acquire lock — migration may be in progress"

const (
	modeAdditive = "additive"
	modeAll      = "all"
)

// MigrationResult reports one apply call. Snapshot is set only when every
// change succeeded and the schema now matches the catalogs it was built from.
type MigrationResult struct {
	Success bool
	// PendingConfirmation is set when destructive changes were refused
	PendingConfirmation bool
	Errors              []string
	Applied             []string
	Snapshot            *schema.Snapshot
}

// Migrator executes changes sequentially under a per-schema advisory lock
type Migrator struct {
	exec    db.Executor
	locker  db.AdvisoryLocker
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New creates a new Migrator. collector may be nil.
func New(exec db.Executor, locker db.AdvisoryLocker, logger *slog.Logger, collector *metrics.Collector) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{
		exec:    exec,
		locker:  locker,
		logger:  logger,
		metrics: collector,
	}
}

// ApplyAdditiveChanges applies only the additive bucket of d.
//
// When d also carries destructive changes the catalogs are not fully
// materialized afterwards, so no snapshot is returned even on success.
func (m *Migrator) ApplyAdditiveChanges(ctx context.Context, schemaName string, d *diff.SchemaDiff, catalogs []metadata.CatalogDefinition) *MigrationResult {
	start := time.Now()
	s, err := ident.New(schemaName, ident.KindSchema)
	if err != nil {
		return m.finish(modeAdditive, metrics.OutcomeFailed, start, &MigrationResult{Errors: []string{err.Error()}})
	}

	release, acquired, err := m.locker.TryLock(ctx, s.String())
	if err != nil {
		return m.finish(modeAdditive, metrics.OutcomeFailed, start, &MigrationResult{Errors: []string{fmt.Sprintf("failed to acquire lock: %v", err)}})
	}
	if !acquired {
		m.logger.Warn("schema lock is held elsewhere", "schema", s.String())
		return m.finish(modeAdditive, metrics.OutcomeLockContention, start, &MigrationResult{Errors: []string{LockContentionError}})
	}
	defer release()

	result := &MigrationResult{}
	m.applyAll(ctx, s, d.Additive, result)

	result.Success = len(result.Errors) == 0
	if result.Success && len(d.Destructive) == 0 {
		result.Snapshot = schema.NewSnapshot(catalogs)
	} else if result.Success {
		m.logger.Warn("destructive changes left unapplied, snapshot not advanced", "schema", s.String(), "destructive", len(d.Destructive))
	}
	return m.finish(modeAdditive, outcome(result), start, result)
}

// ApplyAllChanges applies destructive changes first, then additive ones.
//
// Unless confirmedDestructive is set, a diff with destructive changes is
// refused before the lock is taken: the result lists their descriptions and no
// statement is executed.
func (m *Migrator) ApplyAllChanges(ctx context.Context, schemaName string, d *diff.SchemaDiff, catalogs []metadata.CatalogDefinition, confirmedDestructive bool) *MigrationResult {
	start := time.Now()

	if len(d.Destructive) > 0 && !confirmedDestructive {
		m.logger.Info("destructive changes need confirmation", "schema", schemaName, "destructive", len(d.Destructive))
		return m.finish(modeAll, metrics.OutcomePendingConfirmation, start, &MigrationResult{
			PendingConfirmation: true,
			Errors:              diff.Descriptions(d.Destructive),
		})
	}

	s, err := ident.New(schemaName, ident.KindSchema)
	if err != nil {
		return m.finish(modeAll, metrics.OutcomeFailed, start, &MigrationResult{Errors: []string{err.Error()}})
	}

	release, acquired, err := m.locker.TryLock(ctx, s.String())
	if err != nil {
		return m.finish(modeAll, metrics.OutcomeFailed, start, &MigrationResult{Errors: []string{fmt.Sprintf("failed to acquire lock: %v", err)}})
	}
	if !acquired {
		m.logger.Warn("schema lock is held elsewhere", "schema", s.String())
		return m.finish(modeAll, metrics.OutcomeLockContention, start, &MigrationResult{Errors: []string{LockContentionError}})
	}
	defer release()

	result := &MigrationResult{}
	m.applyAll(ctx, s, d.Destructive, result)
	m.applyAll(ctx, s, d.Additive, result)

	result.Success = len(result.Errors) == 0
	if result.Success {
		result.Snapshot = schema.NewSnapshot(catalogs)
	}
	return m.finish(modeAll, outcome(result), start, result)
}

// applyAll runs every change even after failures; the lock stays held for the batch
func (m *Migrator) applyAll(ctx context.Context, s ident.Identifier, changes []diff.Change, result *MigrationResult) {
	for _, c := range changes {
		if err := m.applyChange(ctx, s, c); err != nil {
			m.logger.Error("failed to apply change", "schema", s.String(), "change", string(c.Kind()), "error", err)
			m.metrics.RecordChange(string(c.Kind()), metrics.StatusFailed)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", c.Description(), err))
			continue
		}
		m.logger.Debug("change applied", "schema", s.String(), "change", string(c.Kind()))
		m.metrics.RecordChange(string(c.Kind()), metrics.StatusApplied)
		result.Applied = append(result.Applied, c.Description())
	}
}

func (m *Migrator) applyChange(ctx context.Context, s ident.Identifier, change diff.Change) error {
	switch c := change.(type) {
	case diff.AddTable:
		return m.exec.Exec(ctx, ddl.CreateTable(s, c.Table, ddl.ColumnsFor(c.Definition)))
	case diff.DropTable:
		return m.exec.Exec(ctx, ddl.DropTable(s, c.Table))
	case diff.AddColumn:
		// Existing rows would reject a NOT NULL column outright, so the column
		// is added nullable first and stays in place if tightening fails.
		col := ddl.ColumnDef{Name: c.Column, SQLType: schema.MapDataType(c.DataType)}
		if err := m.exec.Exec(ctx, ddl.AddColumn(s, c.Table, col)); err != nil {
			return err
		}
		if c.IsRequired {
			return m.exec.Exec(ctx, ddl.SetNotNull(s, c.Table, c.Column))
		}
		return nil
	case diff.DropColumn:
		return m.exec.Exec(ctx, ddl.DropColumn(s, c.Table, c.Column))
	case diff.AlterColumnType:
		return m.exec.Exec(ctx, ddl.AlterColumnType(s, c.Table, c.Column, schema.MapDataType(c.NewType)))
	case diff.AlterColumnNullability:
		if c.Required {
			return m.exec.Exec(ctx, ddl.SetNotNull(s, c.Table, c.Column))
		}
		return m.exec.Exec(ctx, ddl.DropNotNull(s, c.Table, c.Column))
	case diff.AddForeignKey:
		return m.exec.Exec(ctx, ddl.AddForeignKey(s, c.Table, c.Column, c.TargetTable))
	case diff.DropForeignKey:
		return m.exec.Exec(ctx, ddl.DropForeignKey(s, c.Table, c.Column))
	default:
		return fmt.Errorf("unsupported change type %T", change)
	}
}

func (m *Migrator) finish(mode, outcome string, start time.Time, result *MigrationResult) *MigrationResult {
	m.metrics.RecordMigration(mode, outcome, time.Since(start))
	m.logger.Info("migration finished",
		"mode", mode,
		"outcome", outcome,
		"applied", len(result.Applied),
		"errors", len(result.Errors))
	return result
}

func outcome(r *MigrationResult) string {
	if r.Success {
		return metrics.OutcomeSuccess
	}
	return metrics.OutcomeFailed
}
