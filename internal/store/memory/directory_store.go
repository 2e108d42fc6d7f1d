package memory

import (
	"context"
	"sync"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

var _ domain.DirectoryStore = (*DirectoryStore)(nil)

// DirectoryStore implements domain.DirectoryStore.
type DirectoryStore struct {
	mu        sync.Mutex
	companies map[string]models.Company
	locations map[string]models.Location
}

// NewDirectoryStore creates an empty DirectoryStore.
func NewDirectoryStore() *DirectoryStore {
	return &DirectoryStore{
		companies: make(map[string]models.Company),
		locations: make(map[string]models.Location),
	}
}

// UpsertCompany implements domain.DirectoryStore.
func (s *DirectoryStore) UpsertCompany(_ context.Context, c models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.companies[c.ID] = c

	return nil
}

// UpsertLocation implements domain.DirectoryStore.
func (s *DirectoryStore) UpsertLocation(_ context.Context, l models.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companies[l.CompanyID]; !ok {
		return models.NotFoundf("company %s not found", l.CompanyID)
	}
	s.locations[l.CompanyID+"/"+l.ID] = l

	return nil
}
