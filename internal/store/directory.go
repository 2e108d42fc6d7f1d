package store

import (
	"context"
	"fmt"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

var _ domain.DirectoryStore = (*DirectoryStore)(nil)

// DirectoryStore manages companies and their locations.
type DirectoryStore struct {
	Base
}

// NewDirectoryStore creates a DirectoryStore.
func NewDirectoryStore(base Base) *DirectoryStore {
	return &DirectoryStore{Base: base}
}

// UpsertCompany creates or renames a company.
func (s *DirectoryStore) UpsertCompany(ctx context.Context, c models.Company) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO companies (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		c.ID, c.Name,
	)
	if err != nil {
		return fmt.Errorf("upserting company: %w", err)
	}

	return nil
}

// UpsertLocation creates or renames a location of a company.
func (s *DirectoryStore) UpsertLocation(ctx context.Context, l models.Location) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO locations (company_id, id, name) VALUES ($1, $2, $3)
		ON CONFLICT (company_id, id) DO UPDATE SET name = EXCLUDED.name`,
		l.CompanyID, l.ID, l.Name,
	)
	if err != nil {
		return fmt.Errorf("upserting location: %w", err)
	}

	return nil
}
