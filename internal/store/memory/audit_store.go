package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

var _ domain.AuditStore = (*AuditStore)(nil)

// AuditStore implements domain.AuditStore as an append-only slice.
type AuditStore struct {
	mu sync.RWMutex

	entries []models.AuditRecord
	nextID  int64
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// InsertAudit appends rec, assigning an id and a timestamp when missing.
func (s *AuditStore) InsertAudit(_ context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++

	e := *rec
	e.ID = s.nextID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.entries = append(s.entries, e)

	return nil
}

// QueryAudit filters entries the same way the Postgres store does.
func (s *AuditStore) QueryAudit(_ context.Context, q models.AuditQuery) ([]models.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(q.SearchTerm)

	out := []models.AuditRecord{}
	for _, e := range s.entries {
		if !matches(e, q, term) {
			continue
		}
		out = append(out, e)
	}

	slices.SortStableFunc(out, func(a, b models.AuditRecord) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})

	if limit := q.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func matches(e models.AuditRecord, q models.AuditQuery, term string) bool {
	switch {
	case e.CompanyID != q.Scope.CompanyID:
		return false
	case q.Scope.LocationID != "" && e.LocationID != q.Scope.LocationID:
		return false
	case q.EntityType != "" && e.EntityType != q.EntityType:
		return false
	case q.EntityID != "" && e.EntityID != q.EntityID:
		return false
	case q.Key != "" && e.EntityKey != q.Key:
		return false
	case q.Action != "" && e.Action != q.Action:
		return false
	case q.Start != nil && e.Timestamp.Before(*q.Start):
		return false
	case q.End != nil && e.Timestamp.After(*q.End):
		return false
	}

	if term == "" {
		return true
	}

	desc, _ := e.Data["description"].(string)
	for _, field := range []string{e.EntityKey, e.UserID, desc} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}

	return false
}

// Len returns the number of stored entries.
func (s *AuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// DeleteEmployeeHistory drops employee history rows for id, mirroring the
// employee cascade of the Postgres store.
func (s *AuditStore) DeleteEmployeeHistory(employeeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = slices.DeleteFunc(s.entries, func(e models.AuditRecord) bool {
		return e.EntityType == "employee" && e.EntityID == employeeID
	})
}
