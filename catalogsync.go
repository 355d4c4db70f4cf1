// Package catalogsync materializes user-defined catalogs as PostgreSQL tables
// and keeps them synchronized as their definitions evolve.
//
// Every tenant owns one schema (app_<tenant id>), every catalog one table
// (cat_<catalog id>) and every attribute one column (attr_<attribute id>).
// Physical names derive only from immutable ids, so renaming a catalog or an
// attribute never requires DDL.
//
// # Lifecycle
//
// A publication moves DRAFT → PENDING → SYNCED, ERROR or OUTDATED. The first
// Sync of a tenant creates its schema and every table in two passes (tables,
// then foreign keys). Later syncs compare the last persisted snapshot with the
// current definitions and apply the difference:
//
//	sync := catalogsync.NewSynchronizer(client, db.NewPostgresLock(client), publications, nil)
//	result, err := sync.Sync(ctx, tenantID, catalogs, false)
//	if result.Status == catalogsync.StatusOutdated {
//		// result.Diff.Destructive lists what needs confirmation
//	}
//
// # Additive and destructive changes
//
// New tables, new columns, relaxed constraints and new foreign keys cannot lose
// data and are applied without asking. Dropping a table or column, changing a
// column type, making an attribute required and dropping a foreign key are
// destructive: Sync leaves the schema untouched and reports StatusOutdated
// until it is called again with confirmDestructive set.
//
// # Concurrency
//
// Sync and Drop run under a non-blocking advisory lock keyed by the schema
// name, held from reading the persisted snapshot until the new one is saved.
// A sync that finds the lock taken fails with a single error and touches
// neither the schema nor the publication; callers retry the whole sync.
//
// # Partial failures
//
// Statements are applied one at a time without a surrounding transaction.
// Failures are collected rather than aborting the batch and the publication is
// marked StatusError. After a failed first generation the snapshot only
// records what was built, so the next sync repairs the rest through a diff.
package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tordrt/catalogsync/internal/db"
	"github.com/tordrt/catalogsync/internal/diff"
	"github.com/tordrt/catalogsync/internal/generator"
	"github.com/tordrt/catalogsync/internal/ident"
	"github.com/tordrt/catalogsync/internal/metadata"
	"github.com/tordrt/catalogsync/internal/metrics"
	"github.com/tordrt/catalogsync/internal/migrator"
	"github.com/tordrt/catalogsync/internal/schema"
	"github.com/tordrt/catalogsync/internal/store"
)

// Definition and result types
type (
	CatalogDefinition   = metadata.CatalogDefinition
	AttributeDefinition = metadata.AttributeDefinition
	DataType            = metadata.DataType
	Snapshot            = schema.Snapshot
	SchemaDiff          = diff.SchemaDiff
	Change              = diff.Change
	GenerationResult    = generator.GenerationResult
	MigrationResult     = migrator.MigrationResult
	Publication         = store.Publication
	PublicationStatus   = store.Status
)

// Publication statuses
const (
	StatusDraft    = store.StatusDraft
	StatusPending  = store.StatusPending
	StatusSynced   = store.StatusSynced
	StatusError    = store.StatusError
	StatusOutdated = store.StatusOutdated
)

// Options configures a Synchronizer.
//
// All fields are optional:
//   - Logger: defaults to slog.Default()
//   - Metrics: nil records nothing
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// SyncResult reports one Sync call
type SyncResult struct {
	// Status is the publication status that was persisted. Under lock
	// contention it is StatusError and nothing was persisted.
	Status PublicationStatus

	// SchemaName is the tenant schema the run targeted
	SchemaName string

	// Diff is the computed plan; nil when the schema was generated from scratch
	Diff *SchemaDiff

	// Generation is set when the run created the schema
	Generation *GenerationResult

	// Migration is set when the run applied a diff
	Migration *MigrationResult

	// Errors lists every failure of the run, verbatim
	Errors []string

	// Snapshot is the snapshot persisted after the run. It is the previous
	// snapshot when nothing could be applied.
	Snapshot *Snapshot
}

// Synchronizer drives the publication lifecycle of tenants
type Synchronizer struct {
	exec         db.Executor
	locker       db.AdvisoryLocker
	publications store.PublicationStore
	generator    *generator.Generator
	logger       *slog.Logger
	metrics      *metrics.Collector
}

// NewSynchronizer wires the generator and migrator to exec and locker.
// opts may be nil.
func NewSynchronizer(exec db.Executor, locker db.AdvisoryLocker, publications store.PublicationStore, opts *Options) *Synchronizer {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{
		exec:         exec,
		locker:       locker,
		publications: publications,
		generator:    generator.New(exec, logger),
		logger:       logger,
		metrics:      opts.Metrics,
	}
}

// SchemaName returns the schema of tenantID
func SchemaName(tenantID uuid.UUID) string {
	return ident.DeriveSchemaName(tenantID).String()
}

// Status returns the persisted publication of tenantID, or a DRAFT publication
// when the tenant has never been synced
func (s *Synchronizer) Status(ctx context.Context, tenantID uuid.UUID) (*Publication, error) {
	p, err := s.publications.Get(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return &Publication{TenantID: tenantID, Status: StatusDraft}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Plan computes the diff that Sync would apply, without touching the schema
func (s *Synchronizer) Plan(ctx context.Context, tenantID uuid.UUID, catalogs []CatalogDefinition) (*SchemaDiff, error) {
	if err := metadata.Validate(catalogs); err != nil {
		return nil, err
	}
	p, err := s.Status(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return diff.CalculateDiff(p.Snapshot, catalogs), nil
}

// Sync brings the tenant schema in line with catalogs and persists the outcome.
//
// The returned error is reserved for invalid definitions and publication store
// failures; DDL failures, lock contention and unconfirmed destructive changes
// are reported through the result and its Status.
func (s *Synchronizer) Sync(ctx context.Context, tenantID uuid.UUID, catalogs []CatalogDefinition, confirmDestructive bool) (*SyncResult, error) {
	if err := metadata.Validate(catalogs); err != nil {
		return nil, err
	}

	result := &SyncResult{SchemaName: SchemaName(tenantID)}
	release, acquired, err := s.locker.TryLock(ctx, result.SchemaName)
	if err != nil {
		result.fail(fmt.Sprintf("failed to acquire lock: %v", err))
		return result, nil
	}
	if !acquired {
		s.logger.Warn("schema lock is held elsewhere", "schema", result.SchemaName)
		result.fail(migrator.LockContentionError)
		return result, nil
	}
	defer release()

	p, err := s.Status(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	p.Status = StatusPending
	p.Errors = nil
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	result.Snapshot = p.Snapshot
	if p.Snapshot == nil {
		s.generate(ctx, result, catalogs)
	} else {
		s.migrate(ctx, result, p.Snapshot, catalogs, confirmDestructive)
	}

	p.Status = result.Status
	p.Errors = result.Errors
	p.Snapshot = result.Snapshot
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("sync finished",
		"schema", result.SchemaName,
		"status", string(result.Status),
		"errors", len(result.Errors))
	return result, nil
}

// generate and migrate run with the schema lock held by Sync
func (s *Synchronizer) generate(ctx context.Context, result *SyncResult, catalogs []CatalogDefinition) {
	exists, err := s.generator.SchemaExists(ctx, result.SchemaName)
	if err != nil {
		result.fail(err.Error())
		return
	}
	if exists {
		// The publication was lost or dropped while the schema stayed; tables
		// that are still there will be reported as failures.
		s.logger.Warn("schema exists without a snapshot, generating over it", "schema", result.SchemaName)
	}

	if err := s.generator.CreateSchema(ctx, result.SchemaName); err != nil {
		result.fail(err.Error())
		return
	}

	gen, err := s.generator.GenerateFullSchema(ctx, result.SchemaName, catalogs)
	if err != nil {
		result.fail(err.Error())
		return
	}
	result.Generation = gen
	s.metrics.RecordGeneration(len(gen.TablesCreated), len(catalogs)-len(gen.TablesCreated))

	if gen.Success {
		result.Status = StatusSynced
		result.Snapshot = s.generator.GenerateSnapshot(catalogs)
		return
	}
	result.Status = StatusError
	result.Errors = gen.Errors
	result.Snapshot = generator.PartialSnapshot(catalogs, gen)
}

func (s *Synchronizer) migrate(ctx context.Context, result *SyncResult, prev *Snapshot, catalogs []CatalogDefinition, confirmDestructive bool) {
	d := diff.CalculateDiff(prev, catalogs)
	result.Diff = d
	for _, n := range d.Notices {
		s.logger.Info("metadata change needs no DDL", "schema", result.SchemaName, "notice", n)
	}

	if !d.HasChanges {
		// Codenames may have changed; the snapshot is still replaced wholesale.
		result.Status = StatusSynced
		result.Snapshot = schema.NewSnapshot(catalogs)
		return
	}

	mig := migrator.New(s.exec, db.NewHeldLock(result.SchemaName), s.logger, s.metrics)
	var m *MigrationResult
	if len(d.Destructive) == 0 {
		m = mig.ApplyAdditiveChanges(ctx, result.SchemaName, d, catalogs)
	} else {
		m = mig.ApplyAllChanges(ctx, result.SchemaName, d, catalogs, confirmDestructive)
	}
	result.Migration = m

	switch {
	case m.PendingConfirmation:
		result.Status = StatusOutdated
		result.Errors = m.Errors
	case m.Success:
		result.Status = StatusSynced
		result.Snapshot = m.Snapshot
	default:
		result.Status = StatusError
		result.Errors = m.Errors
	}
}

// Drop removes the tenant schema with all its tables and resets the
// publication to DRAFT
func (s *Synchronizer) Drop(ctx context.Context, tenantID uuid.UUID) error {
	schemaName := SchemaName(tenantID)

	release, acquired, err := s.locker.TryLock(ctx, schemaName)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return errors.New(migrator.LockContentionError)
	}
	defer release()

	if err := s.generator.DropSchema(ctx, schemaName); err != nil {
		return err
	}
	return s.save(ctx, &Publication{TenantID: tenantID, Status: StatusDraft})
}

func (s *Synchronizer) save(ctx context.Context, p *Publication) error {
	p.UpdatedAt = time.Now().UTC()
	if err := s.publications.Save(ctx, p); err != nil {
		return fmt.Errorf("failed to persist publication: %w", err)
	}
	return nil
}

func (r *SyncResult) fail(msg string) {
	r.Status = StatusError
	r.Errors = append(r.Errors, msg)
}
