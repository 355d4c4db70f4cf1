package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tordrt/catalogsync/internal/db"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS catalogsync_publications (
	tenant_id  uuid PRIMARY KEY,
	status     text NOT NULL,
	snapshot   jsonb,
	errors     jsonb NOT NULL DEFAULT '[]',
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// PostgresPublicationStore keeps publications next to the tenant schemas
type PostgresPublicationStore struct {
	pool *pgxpool.Pool
}

// NewPostgresPublicationStore creates the publications table if needed
func NewPostgresPublicationStore(ctx context.Context, client *db.PostgresClient) (*PostgresPublicationStore, error) {
	s := &PostgresPublicationStore{pool: client.Pool()}
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to create publications table: %w", err)
	}
	return s, nil
}

// Get loads the publication of tenantID
func (s *PostgresPublicationStore) Get(ctx context.Context, tenantID uuid.UUID) (*Publication, error) {
	p := &Publication{TenantID: tenantID}
	var (
		status   string
		snapshot []byte
		errs     []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT status, snapshot, errors, updated_at FROM catalogsync_publications WHERE tenant_id = $1`,
		tenantID).Scan(&status, &snapshot, &errs, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get publication %s: %w", tenantID, err)
	}

	p.Status = Status(status)
	if err := decode(p, snapshot, errs); err != nil {
		return nil, fmt.Errorf("failed to decode publication %s: %w", tenantID, err)
	}
	return p, nil
}

// Save upserts the publication
func (s *PostgresPublicationStore) Save(ctx context.Context, p *Publication) error {
	snapshot, errs, err := encode(p)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO catalogsync_publications (tenant_id, status, snapshot, errors, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (tenant_id) DO UPDATE SET
			status = EXCLUDED.status,
			snapshot = EXCLUDED.snapshot,
			errors = EXCLUDED.errors,
			updated_at = NOW()`,
		p.TenantID, string(p.Status), snapshot, errs)
	if err != nil {
		return fmt.Errorf("failed to save publication %s: %w", p.TenantID, err)
	}
	return nil
}
