// Package store persists the publication state of each tenant: its status, the
// errors of the last run and the snapshot of the last successful sync.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tordrt/catalogsync/internal/schema"
)

// ErrNotFound is returned when a tenant has no publication record
var ErrNotFound = errors.New("publication not found")

// Status is the lifecycle state of a publication
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusSynced   Status = "SYNCED"
	StatusError    Status = "ERROR"
	StatusOutdated Status = "OUTDATED"
)

// Publication is the persisted state of one tenant
type Publication struct {
	TenantID uuid.UUID
	Status   Status
	// Snapshot is the last successfully applied layout, nil before the first sync
	Snapshot  *schema.Snapshot
	Errors    []string
	UpdatedAt time.Time
}

// PublicationStore reads and replaces publication records
type PublicationStore interface {
	// Get returns ErrNotFound when the tenant has never been saved
	Get(ctx context.Context, tenantID uuid.UUID) (*Publication, error)
	// Save replaces the record of p.TenantID
	Save(ctx context.Context, p *Publication) error
}

// encode turns the variable parts of a publication into column values
func encode(p *Publication) (snapshot []byte, errs []byte, err error) {
	if p.Snapshot != nil {
		snapshot, err = json.Marshal(p.Snapshot)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode snapshot: %w", err)
		}
	}
	list := p.Errors
	if list == nil {
		list = []string{}
	}
	errs, err = json.Marshal(list)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode errors: %w", err)
	}
	return snapshot, errs, nil
}

func decode(p *Publication, snapshot, errs []byte) error {
	if len(snapshot) > 0 {
		s, err := schema.ParseSnapshot(snapshot)
		if err != nil {
			return err
		}
		p.Snapshot = s
	}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &p.Errors); err != nil {
			return fmt.Errorf("failed to decode errors: %w", err)
		}
	}
	return nil
}
