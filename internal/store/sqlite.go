package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tordrt/catalogsync/internal/db"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS publications (
	tenant_id  TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	snapshot   TEXT,
	errors     TEXT NOT NULL DEFAULT '[]',
	updated_at TEXT NOT NULL
)`

// SQLitePublicationStore keeps publications in a local SQLite database
type SQLitePublicationStore struct {
	db *sql.DB
}

// NewSQLitePublicationStore creates the publications table if needed
func NewSQLitePublicationStore(ctx context.Context, client *db.SQLiteClient) (*SQLitePublicationStore, error) {
	s := &SQLitePublicationStore{db: client.GetDB()}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to create publications table: %w", err)
	}
	return s, nil
}

// Get loads the publication of tenantID
func (s *SQLitePublicationStore) Get(ctx context.Context, tenantID uuid.UUID) (*Publication, error) {
	var (
		status    string
		snapshot  sql.NullString
		errs      string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, snapshot, errors, updated_at FROM publications WHERE tenant_id = ?`,
		tenantID.String()).Scan(&status, &snapshot, &errs, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get publication %s: %w", tenantID, err)
	}

	p := &Publication{TenantID: tenantID, Status: Status(status)}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at of %s: %w", tenantID, err)
	}
	if err := decode(p, []byte(snapshot.String), []byte(errs)); err != nil {
		return nil, fmt.Errorf("failed to decode publication %s: %w", tenantID, err)
	}
	return p, nil
}

// Save upserts the publication
func (s *SQLitePublicationStore) Save(ctx context.Context, p *Publication) error {
	snapshot, errs, err := encode(p)
	if err != nil {
		return err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	var snapshotCol sql.NullString
	if snapshot != nil {
		snapshotCol = sql.NullString{String: string(snapshot), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO publications (tenant_id, status, snapshot, errors, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			status = excluded.status,
			snapshot = excluded.snapshot,
			errors = excluded.errors,
			updated_at = excluded.updated_at`,
		p.TenantID.String(), string(p.Status), snapshotCol, string(errs), p.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save publication %s: %w", p.TenantID, err)
	}
	return nil
}
