package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

var (
	_ domain.EmployeeStore = (*EmployeeStore)(nil)
	_ domain.UserStore     = (*EmployeeStore)(nil)
)

var errEmployeeNotFound = models.NotFoundf("employee not found")

type memUser struct {
	user   models.User
	grants map[string][]string // company -> locations
}

// EmployeeStore implements domain.EmployeeStore and domain.UserStore.
type EmployeeStore struct {
	mu sync.RWMutex

	users     map[string]*memUser          // user id -> user
	employees map[string]*models.Employee // employee id -> employee
	audit     *AuditStore
}

// NewEmployeeStore creates an EmployeeStore. When audit is non-nil, deleting
// an employee also drops its history there.
func NewEmployeeStore(audit *AuditStore) *EmployeeStore {
	return &EmployeeStore{
		users:     make(map[string]*memUser),
		employees: make(map[string]*models.Employee),
		audit:     audit,
	}
}

// AddUser registers a login user with grants. Used for seeding.
func (s *EmployeeStore) AddUser(u models.User, grants []models.CompanyGrant) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	mu := &memUser{user: u, grants: map[string][]string{}}
	for _, g := range grants {
		for _, l := range g.Locations {
			mu.grants[g.CompanyID] = append(mu.grants[g.CompanyID], l.LocationID)
		}
	}
	s.users[u.ID] = mu

	return u.ID
}

// FindUserByEmail implements domain.UserStore.
func (s *EmployeeStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if strings.ToLower(u.user.Email) == email {
			clone := u.user
			return &clone, nil
		}
	}

	return nil, models.NotFoundf("user not found")
}

// Grants implements domain.UserStore.
func (s *EmployeeStore) Grants(_ context.Context, userID string) ([]models.CompanyGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.CompanyGrant{}
	u, ok := s.users[userID]
	if !ok {
		return out, nil
	}

	companies := make([]string, 0, len(u.grants))
	for c := range u.grants {
		companies = append(companies, c)
	}
	slices.Sort(companies)

	for _, c := range companies {
		g := models.CompanyGrant{CompanyID: c}
		locs := slices.Clone(u.grants[c])
		slices.Sort(locs)
		for _, l := range locs {
			g.Locations = append(g.Locations, models.LocationGrant{LocationID: l})
		}
		out = append(out, g)
	}

	return out, nil
}

// IsActiveUser implements domain.UserStore.
func (s *EmployeeStore) IsActiveUser(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]

	return ok && u.user.Active, nil
}

// view must be called with mu held.
func (s *EmployeeStore) view(e *models.Employee) *models.Employee {
	clone := *e
	if u, ok := s.users[e.UserID]; ok {
		clone.Name = u.user.Name
		clone.Email = u.user.Email
		clone.Role = u.user.Role
		clone.Active = u.user.Active
		clone.LocationIDs = slices.Clone(u.grants[e.CompanyID])
		slices.Sort(clone.LocationIDs)
	}
	if clone.LocationIDs == nil {
		clone.LocationIDs = []string{}
	}

	return &clone
}

// ListEmployees implements domain.EmployeeStore.
func (s *EmployeeStore) ListEmployees(_ context.Context, companyID string) ([]models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Employee{}
	for _, e := range s.employees {
		if e.CompanyID == companyID {
			out = append(out, *s.view(e))
		}
	}

	slices.SortFunc(out, func(a, b models.Employee) int { return strings.Compare(a.EmployeeCode, b.EmployeeCode) })

	return out, nil
}

// GetEmployee implements domain.EmployeeStore.
func (s *EmployeeStore) GetEmployee(_ context.Context, companyID, id string) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.employees[id]
	if !ok || e.CompanyID != companyID {
		return nil, errEmployeeNotFound
	}

	return s.view(e), nil
}

// CreateEmployee implements domain.EmployeeStore.
func (s *EmployeeStore) CreateEmployee(_ context.Context, emp *models.Employee, passwordHash string) (*models.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.user.Email, emp.Email) {
			return nil, models.Conflictf("Email already exists")
		}
	}
	for _, e := range s.employees {
		if e.CompanyID == emp.CompanyID && e.EmployeeCode == emp.EmployeeCode {
			return nil, models.Conflictf("Employee code already exists")
		}
	}

	userID := uuid.NewString()
	s.users[userID] = &memUser{
		user: models.User{
			ID: userID, Email: strings.ToLower(emp.Email), Name: emp.Name, Role: emp.Role,
			PasswordHash: passwordHash, Active: true,
		},
		grants: map[string][]string{emp.CompanyID: slices.Clone(emp.LocationIDs)},
	}

	now := time.Now().UTC()
	e := &models.Employee{
		ID: uuid.NewString(), UserID: userID, EmployeeCode: emp.EmployeeCode, CompanyID: emp.CompanyID,
		CreatedBy: emp.CreatedBy, CreatedAt: now, UpdatedAt: now,
	}
	s.employees[e.ID] = e

	return s.view(e), nil
}

// UpdateEmployee implements domain.EmployeeStore.
func (s *EmployeeStore) UpdateEmployee(
	_ context.Context, companyID, id string, req models.UpdateEmployeeRequest,
) (*models.Employee, *models.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employees[id]
	if !ok || e.CompanyID != companyID {
		return nil, nil, errEmployeeNotFound
	}

	before := s.view(e)

	if u, ok := s.users[e.UserID]; ok {
		if req.Name != nil {
			u.user.Name = *req.Name
		}
		if req.Role != nil {
			u.user.Role = *req.Role
		}
		if req.Active != nil {
			u.user.Active = *req.Active
		}
		if req.LocationIDs != nil {
			u.grants[companyID] = slices.Clone(*req.LocationIDs)
		}
	}
	e.UpdatedAt = time.Now().UTC()

	return before, s.view(e), nil
}

// DeleteEmployee removes the employee, its user, grants and history.
func (s *EmployeeStore) DeleteEmployee(_ context.Context, companyID, id string) (*models.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employees[id]
	if !ok || e.CompanyID != companyID {
		return nil, errEmployeeNotFound
	}

	deleted := s.view(e)
	delete(s.employees, id)
	delete(s.users, e.UserID)

	if s.audit != nil {
		s.audit.DeleteEmployeeHistory(id)
	}

	return deleted, nil
}
