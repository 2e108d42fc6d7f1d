package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

var _ domain.EmployeeStore = (*EmployeeStore)(nil)

// employeeDeleteHook runs after each cascade step of DeleteEmployee. Tests
// use it to inject a failure part-way through.
var employeeDeleteHook func(step string) error

const employeeColumns = `e.id, e.user_id, e.employee_code, u.name, u.email, u.role, e.company_id,
	COALESCE((SELECT array_agg(m.location_id ORDER BY m.location_id) FROM company_members m
		WHERE m.company_id = e.company_id AND m.user_id = e.user_id), '{}'),
	u.active, e.created_by, e.created_at, e.updated_at`

// EmployeeStore manages employees, their login users and location grants.
type EmployeeStore struct {
	Base
}

// NewEmployeeStore creates an EmployeeStore.
func NewEmployeeStore(base Base) *EmployeeStore {
	return &EmployeeStore{Base: base}
}

func scanEmployee(scan func(dest ...any) error) (*models.Employee, error) {
	var e models.Employee
	var id, userID uuid.UUID

	if err := scan(
		&id, &userID, &e.EmployeeCode, &e.Name, &e.Email, &e.Role, &e.CompanyID,
		&e.LocationIDs, &e.Active, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	e.ID = id.String()
	e.UserID = userID.String()

	return &e, nil
}

var errEmployeeNotFound = models.NotFoundf("employee not found")

// ListEmployees returns a company's employees ordered by code.
func (s *EmployeeStore) ListEmployees(ctx context.Context, companyID string) ([]models.Employee, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		"SELECT "+employeeColumns+` FROM employees e JOIN users u ON u.id = e.user_id
		WHERE e.company_id = $1 ORDER BY e.employee_code`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	defer rows.Close()

	out := []models.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning employee: %w", err)
		}
		out = append(out, *e)
	}

	return out, rows.Err()
}

// GetEmployee returns one employee of a company.
func (s *EmployeeStore) GetEmployee(ctx context.Context, companyID, id string) (*models.Employee, error) {
	if !validID(id) {
		return nil, errEmployeeNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return getEmployee(ctx, s.Pool.QueryRow, companyID, id)
}

func getEmployee(
	ctx context.Context, queryRow func(context.Context, string, ...any) pgx.Row, companyID, id string,
) (*models.Employee, error) {
	query := "SELECT " + employeeColumns + ` FROM employees e JOIN users u ON u.id = e.user_id
		WHERE e.company_id = $1 AND e.id = $2`

	e, err := scanEmployee(queryRow(ctx, query, companyID, id).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting employee: %w", err)
	}

	return e, nil
}

// lockEmployee row-locks the employee so concurrent updates and deletes serialize.
func lockEmployee(ctx context.Context, tx pgx.Tx, companyID, id string) (*models.Employee, error) {
	var locked string

	err := tx.QueryRow(ctx,
		"SELECT id::text FROM employees WHERE company_id = $1 AND id = $2 FOR UPDATE", companyID, id,
	).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking employee: %w", err)
	}

	return getEmployee(ctx, tx.QueryRow, companyID, id)
}

// CreateEmployee inserts the login user, the employee row and its location
// grants in one transaction.
func (s *EmployeeStore) CreateEmployee(ctx context.Context, emp *models.Employee, passwordHash string) (*models.Employee, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	userID := uuid.NewString()
	empID := uuid.NewString()

	var created *models.Employee

	err := s.Pool.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (id, email, name, role, password_hash) VALUES ($1, $2, $3, $4, $5)`,
			userID, strings.ToLower(emp.Email), emp.Name, emp.Role, passwordHash,
		)
		if isUniqueViolation(err) {
			return models.Conflictf("Email already exists")
		}
		if err != nil {
			return fmt.Errorf("inserting user: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO employees (id, user_id, company_id, employee_code, created_by) VALUES ($1, $2, $3, $4, $5)`,
			empID, userID, emp.CompanyID, emp.EmployeeCode, emp.CreatedBy,
		)
		if isUniqueViolation(err) {
			return models.Conflictf("Employee code already exists")
		}
		if err != nil {
			return fmt.Errorf("inserting employee: %w", err)
		}

		if err := replaceGrants(ctx, tx, emp.CompanyID, userID, emp.LocationIDs); err != nil {
			return err
		}

		created, err = getEmployee(ctx, tx.QueryRow, emp.CompanyID, empID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func replaceGrants(ctx context.Context, tx pgx.Tx, companyID, userID string, locationIDs []string) error {
	if _, err := tx.Exec(ctx,
		"DELETE FROM company_members WHERE company_id = $1 AND user_id = $2", companyID, userID,
	); err != nil {
		return fmt.Errorf("clearing grants: %w", err)
	}

	for _, loc := range locationIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO company_members (company_id, user_id, location_id) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING`,
			companyID, userID, loc,
		); err != nil {
			return fmt.Errorf("inserting grant: %w", err)
		}
	}

	return nil
}

// UpdateEmployee applies the non-nil fields of req and returns before and after.
func (s *EmployeeStore) UpdateEmployee(
	ctx context.Context, companyID, id string, req models.UpdateEmployeeRequest,
) (*models.Employee, *models.Employee, error) {
	if !validID(id) {
		return nil, nil, errEmployeeNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var before, after *models.Employee

	err := s.Pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error

		before, err = lockEmployee(ctx, tx, companyID, id)
		if err != nil {
			return err
		}

		if req.Name != nil || req.Role != nil || req.Active != nil {
			_, err = tx.Exec(ctx,
				`UPDATE users SET
					name = COALESCE($1, name),
					role = COALESCE($2, role),
					active = COALESCE($3, active),
					updated_at = NOW()
				WHERE id = $4`,
				req.Name, req.Role, req.Active, before.UserID,
			)
			if err != nil {
				return fmt.Errorf("updating user: %w", err)
			}
		}

		if req.LocationIDs != nil {
			if err := replaceGrants(ctx, tx, companyID, before.UserID, *req.LocationIDs); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, "UPDATE employees SET updated_at = NOW() WHERE id = $1", id); err != nil {
			return fmt.Errorf("touching employee: %w", err)
		}

		after, err = getEmployee(ctx, tx.QueryRow, companyID, id)

		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return before, after, nil
}

// DeleteEmployee removes the employee, its login user, the employee's audit
// history and every membership row of the user. All four steps share one
// transaction; any failure leaves the database unchanged.
func (s *EmployeeStore) DeleteEmployee(ctx context.Context, companyID, id string) (*models.Employee, error) {
	if !validID(id) {
		return nil, errEmployeeNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var deleted *models.Employee

	err := s.Pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error

		deleted, err = lockEmployee(ctx, tx, companyID, id)
		if err != nil {
			return err
		}

		steps := []struct {
			name  string
			query string
			arg   string
		}{
			{"employee", "DELETE FROM employees WHERE id = $1", deleted.ID},
			{"user", "DELETE FROM users WHERE id = $1", deleted.UserID},
			{"audit", "DELETE FROM employee_audit_log WHERE employee_id = $1", deleted.ID},
			{"membership", "DELETE FROM company_members WHERE user_id = $1", deleted.UserID},
		}

		for _, step := range steps {
			if _, err := tx.Exec(ctx, step.query, step.arg); err != nil {
				return fmt.Errorf("deleting %s: %w", step.name, err)
			}

			if employeeDeleteHook != nil {
				if err := employeeDeleteHook(step.name); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}
