// Package memory provides in-memory implementations of the domain stores.
// Data is lost on restart; it backs tests and `labops serve --memory`.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

var _ domain.MasterStore = (*MasterStore)(nil)

// MasterStore implements domain.MasterStore.
type MasterStore struct {
	mu sync.RWMutex

	records map[string]*models.Record // id -> record
}

// NewMasterStore creates an empty MasterStore.
func NewMasterStore() *MasterStore {
	return &MasterStore{records: make(map[string]*models.Record)}
}

func cloneRecord(r *models.Record) *models.Record {
	clone := *r
	clone.Fields = maps.Clone(r.Fields)
	if clone.Fields == nil {
		clone.Fields = map[string]string{}
	}

	return &clone
}

func notFound(kind models.Kind) error {
	return models.NotFoundf("%s not found", kind.KeyLabel)
}

func duplicate(kind models.Kind) error {
	return models.Conflictf("%s already exists", kind.KeyLabel)
}

// keyTaken must be called with mu held.
func (s *MasterStore) keyTaken(kind models.Kind, sc models.Scope, key, excludeID string) bool {
	for _, r := range s.records {
		if r.Kind == kind.Name && r.Scope() == sc && r.Key == key && r.ID != excludeID {
			return true
		}
	}

	return false
}

// ListRecords returns the records of kind in scope ordered by key.
func (s *MasterStore) ListRecords(_ context.Context, kind models.Kind, sc models.Scope) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Record{}
	for _, r := range s.records {
		if r.Kind == kind.Name && r.Scope() == sc {
			out = append(out, *cloneRecord(r))
		}
	}

	slices.SortFunc(out, func(a, b models.Record) int { return strings.Compare(a.Key, b.Key) })

	return out, nil
}

// GetRecord returns one record in scope.
func (s *MasterStore) GetRecord(_ context.Context, kind models.Kind, sc models.Scope, id string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok || r.Kind != kind.Name || r.Scope() != sc {
		return nil, notFound(kind)
	}

	return cloneRecord(r), nil
}

// FindRecord returns a record by id regardless of scope.
func (s *MasterStore) FindRecord(_ context.Context, kind models.Kind, id string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok || r.Kind != kind.Name {
		return nil, notFound(kind)
	}

	return cloneRecord(r), nil
}

// KeyExists reports whether key is used by another record of kind in scope.
func (s *MasterStore) KeyExists(_ context.Context, kind models.Kind, sc models.Scope, key, excludeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.keyTaken(kind, sc, key, excludeID), nil
}

// CreateRecord stores rec, enforcing key uniqueness per kind and scope.
func (s *MasterStore) CreateRecord(_ context.Context, kind models.Kind, rec *models.Record) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keyTaken(kind, rec.Scope(), rec.Key, "") {
		return nil, duplicate(kind)
	}

	r := cloneRecord(rec)
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Kind = kind.Name
	r.KeyField = kind.KeyField
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	s.records[r.ID] = r

	return cloneRecord(r), nil
}

// UpdateRecord replaces the writable fields of a record in scope.
func (s *MasterStore) UpdateRecord(
	_ context.Context, kind models.Kind, sc models.Scope, id string, in models.RecordInput, actor string,
) (*models.Record, *models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok || r.Kind != kind.Name || r.Scope() != sc {
		return nil, nil, notFound(kind)
	}

	if s.keyTaken(kind, sc, in.Key, id) {
		return nil, nil, duplicate(kind)
	}

	before := cloneRecord(r)

	r.Key = in.Key
	r.Description = in.Description
	r.Fields = maps.Clone(in.Fields)
	r.UpdatedBy = actor
	r.UpdatedAt = time.Now().UTC()

	return before, cloneRecord(r), nil
}

// DeleteRecord removes a record in scope and returns it.
func (s *MasterStore) DeleteRecord(_ context.Context, kind models.Kind, sc models.Scope, id string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok || r.Kind != kind.Name || r.Scope() != sc {
		return nil, notFound(kind)
	}

	delete(s.records, id)

	return r, nil
}
