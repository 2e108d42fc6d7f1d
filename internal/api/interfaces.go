package api

import (
	"context"

	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/service"
)

// MasterRepository is the generic master-data pipeline used by the per-kind handlers.
type MasterRepository interface {
	List(ctx context.Context, sess *models.Session, kind models.Kind, sc models.Scope) ([]models.Record, error)
	Create(ctx context.Context, sess *models.Session, kind models.Kind, sc models.Scope, body map[string]any) (*models.Record, error)
	Update(ctx context.Context, sess *models.Session, kind models.Kind, sc models.Scope, id string, body map[string]any) (*models.Record, error)
	Delete(ctx context.Context, sess *models.Session, kind models.Kind, sc models.Scope, id string) (*models.Record, error)
}

// AuditRepository answers audit history lookups.
type AuditRepository interface {
	Query(ctx context.Context, sess *models.Session, q models.AuditQuery) ([]models.AuditRecord, error)
	QueryEmployees(ctx context.Context, sess *models.Session, q models.AuditQuery) ([]models.AuditRecord, error)
}

// AuthRepository verifies credentials and issues sessions.
type AuthRepository interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
}

// EmployeeRepository manages employees of a company.
type EmployeeRepository interface {
	List(ctx context.Context, sess *models.Session, companyID string) ([]models.Employee, error)
	Create(ctx context.Context, sess *models.Session, req models.CreateEmployeeRequest) (*models.Employee, error)
	Update(ctx context.Context, sess *models.Session, req models.UpdateEmployeeRequest) (*models.Employee, error)
	Delete(ctx context.Context, sess *models.Session, companyID, id string) (*models.Employee, error)
}

// BatchRepository drives the batch workflow.
type BatchRepository interface {
	List(ctx context.Context, sess *models.Session, sc models.Scope, status string) ([]models.Batch, error)
	Get(ctx context.Context, sess *models.Session, sc models.Scope, id string) (*models.Batch, error)
	Create(ctx context.Context, sess *models.Session, req models.CreateBatchRequest) (*models.Batch, error)
	UpdateStatus(ctx context.Context, sess *models.Session, sc models.Scope, id string, req models.StatusRequest) (*models.Batch, error)
	UpdateTestStatus(ctx context.Context, sess *models.Session, sc models.Scope, id, testID string, req models.StatusRequest) (*models.Batch, error)
	Delete(ctx context.Context, sess *models.Session, sc models.Scope, id string) (*models.Batch, error)
}

// UserCacheInvalidator drops cached active-user lookups after an employee changes.
type UserCacheInvalidator interface {
	Invalidate(userID string)
}

// UserChecker answers the per-request active-user check and accepts cache
// invalidations.
type UserChecker interface {
	IsActiveUser(ctx context.Context, userID string) (bool, error)
	UserCacheInvalidator
}
