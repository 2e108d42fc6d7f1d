package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

var _ domain.BatchStore = (*BatchStore)(nil)

var errBatchNotFound = models.NotFoundf("batch not found")

// BatchStore implements domain.BatchStore.
type BatchStore struct {
	mu sync.RWMutex

	batches map[string]*models.Batch
}

// NewBatchStore creates an empty BatchStore.
func NewBatchStore() *BatchStore {
	return &BatchStore{batches: make(map[string]*models.Batch)}
}

func cloneBatch(b *models.Batch) *models.Batch {
	return b.Clone()
}

// ListBatches implements domain.BatchStore.
func (s *BatchStore) ListBatches(_ context.Context, f models.BatchFilter) ([]models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Batch{}
	for _, b := range s.batches {
		if b.Scope() == f.Scope && (f.Status == "" || b.Status == f.Status) {
			out = append(out, *cloneBatch(b))
		}
	}

	slices.SortFunc(out, func(a, b models.Batch) int { return b.CreatedAt.Compare(a.CreatedAt) })

	return out, nil
}

// GetBatch implements domain.BatchStore.
func (s *BatchStore) GetBatch(_ context.Context, sc models.Scope, id string) (*models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[id]
	if !ok || b.Scope() != sc {
		return nil, errBatchNotFound
	}

	return cloneBatch(b), nil
}

// CreateBatch implements domain.BatchStore.
func (s *BatchStore) CreateBatch(_ context.Context, b *models.Batch) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.batches {
		if existing.Scope() == b.Scope() && existing.BatchNumber == b.BatchNumber {
			return nil, models.Conflictf("Batch number already exists")
		}
	}

	c := cloneBatch(b)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	s.batches[c.ID] = c

	return cloneBatch(c), nil
}

// UpdateBatch implements domain.BatchStore. The store lock is held across
// mutate, so concurrent updates of one batch serialize.
func (s *BatchStore) UpdateBatch(
	_ context.Context, sc models.Scope, id string, mutate func(*models.Batch) error,
) (*models.Batch, *models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.batches[id]
	if !ok || existing.Scope() != sc {
		return nil, nil, errBatchNotFound
	}

	before := cloneBatch(existing)
	after := cloneBatch(existing)
	if err := mutate(after); err != nil {
		return nil, nil, err
	}

	existing.Status = after.Status
	existing.Tests = slices.Clone(after.Tests)
	existing.UpdatedBy = after.UpdatedBy
	existing.UpdatedAt = time.Now().UTC()

	return before, cloneBatch(existing), nil
}

// DeleteBatch implements domain.BatchStore.
func (s *BatchStore) DeleteBatch(
	_ context.Context, sc models.Scope, id string, check func(*models.Batch) error,
) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[id]
	if !ok || b.Scope() != sc {
		return nil, errBatchNotFound
	}
	if check != nil {
		if err := check(cloneBatch(b)); err != nil {
			return nil, err
		}
	}

	delete(s.batches, id)

	return b, nil
}
