package service

import (
	"context"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/scope"
)

// EntityEmployee is the audit entity type of employee changes.
const EntityEmployee = "employee"

// PasswordHasher hashes new passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// EmployeeService administers employees and their location grants.
type EmployeeService struct {
	store  domain.EmployeeStore
	hasher PasswordHasher
	sink   *changeSink
}

// NewEmployeeService creates an EmployeeService. Employee changes are
// audited but not broadcast.
func NewEmployeeService(store domain.EmployeeStore, hasher PasswordHasher, audit AuditEnqueuer, log *logrus.Logger) *EmployeeService {
	return &EmployeeService{store: store, hasher: hasher, sink: newChangeSink(audit, nil, log)}
}

func requireAdmin(sess *models.Session) error {
	if sess == nil {
		return models.ErrUnauthorized
	}
	if !sess.IsAdmin() {
		return models.Forbiddenf("admin role required")
	}

	return nil
}

func guardCompany(sess *models.Session, companyID string) (string, error) {
	if err := requireAdmin(sess); err != nil {
		return "", err
	}

	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return "", &models.ValidationError{Problems: []string{"companyId is required"}}
	}

	return companyID, scope.CheckCompany(sess, companyID)
}

// An admin may only hand out locations they hold themselves.
func checkGrantable(sess *models.Session, companyID string, locationIDs []string) error {
	held := scope.Locations(sess, companyID)
	for _, l := range locationIDs {
		if !slices.Contains(held, l) {
			return models.ErrUnauthorizedLocation
		}
	}

	return nil
}

func employeeSnapshot(e *models.Employee) map[string]any {
	return map[string]any{
		"id":           e.ID,
		"userId":       e.UserID,
		"employeeCode": e.EmployeeCode,
		"description":  e.Name,
		"name":         e.Name,
		"email":        e.Email,
		"role":         e.Role,
		"companyId":    e.CompanyID,
		"locationIds":  slices.Clone(e.LocationIDs),
		"active":       e.Active,
	}
}

// List returns the company's employees.
func (s *EmployeeService) List(ctx context.Context, sess *models.Session, companyID string) ([]models.Employee, error) {
	companyID, err := guardCompany(sess, companyID)
	if err != nil {
		return nil, err
	}

	return s.store.ListEmployees(ctx, companyID)
}

// Create adds an employee with a new login user.
func (s *EmployeeService) Create(ctx context.Context, sess *models.Session, req models.CreateEmployeeRequest) (*models.Employee, error) {
	companyID, err := guardCompany(sess, req.CompanyID)
	if err != nil {
		return nil, err
	}

	locations := normalizeIDs(req.LocationIDs)
	if err := checkGrantable(sess, companyID, locations); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	emp, err := s.store.CreateEmployee(ctx, &models.Employee{
		EmployeeCode: strings.TrimSpace(req.EmployeeCode),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Role:         req.Role,
		CompanyID:    companyID,
		LocationIDs:  locations,
		CreatedBy:    sess.UserID,
	}, hash)
	if err != nil {
		return nil, err
	}

	s.sink.commit(change{
		EntityType: EntityEmployee, EntityID: emp.ID, Key: emp.EmployeeCode,
		Action: models.ActionCreate, Actor: sess.UserID, Scope: models.Scope{CompanyID: companyID},
		After: employeeSnapshot(emp),
	})

	return emp, nil
}

// Update changes an employee's profile, role, grants or active flag.
func (s *EmployeeService) Update(ctx context.Context, sess *models.Session, req models.UpdateEmployeeRequest) (*models.Employee, error) {
	companyID, err := guardCompany(sess, req.CompanyID)
	if err != nil {
		return nil, err
	}

	if req.LocationIDs != nil {
		locations := normalizeIDs(*req.LocationIDs)
		if err := checkGrantable(sess, companyID, locations); err != nil {
			return nil, err
		}
		req.LocationIDs = &locations
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, &models.ValidationError{Problems: []string{"Name is required"}}
		}
		req.Name = &name
	}

	current, err := s.store.GetEmployee(ctx, companyID, req.ID)
	if err != nil {
		return nil, err
	}
	if current.UserID == sess.UserID && req.Active != nil && !*req.Active {
		return nil, &models.ValidationError{Problems: []string{"you cannot deactivate your own account"}}
	}

	before, after, err := s.store.UpdateEmployee(ctx, companyID, req.ID, req)
	if err != nil {
		return nil, err
	}

	s.sink.commit(change{
		EntityType: EntityEmployee, EntityID: after.ID, Key: after.EmployeeCode,
		Action: models.ActionUpdate, Actor: sess.UserID, Scope: models.Scope{CompanyID: companyID},
		Before: employeeSnapshot(before), After: employeeSnapshot(after),
	})

	return after, nil
}

// Delete removes an employee, its login user, grants and history.
func (s *EmployeeService) Delete(ctx context.Context, sess *models.Session, companyID, id string) (*models.Employee, error) {
	companyID, err := guardCompany(sess, companyID)
	if err != nil {
		return nil, err
	}

	current, err := s.store.GetEmployee(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if current.UserID == sess.UserID {
		return nil, &models.ValidationError{Problems: []string{"you cannot delete your own account"}}
	}

	emp, err := s.store.DeleteEmployee(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	s.sink.commit(change{
		EntityType: EntityEmployee, EntityID: emp.ID, Key: emp.EmployeeCode,
		Action: models.ActionDelete, Actor: sess.UserID, Scope: models.Scope{CompanyID: companyID},
		Before: employeeSnapshot(emp),
	})

	return emp, nil
}

// normalizeIDs trims, drops empties and removes duplicates, keeping order.
func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	return out
}
