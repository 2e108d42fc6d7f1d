// Package domain defines the data-access contracts shared by the Postgres
// stores, the in-memory store and the service layer. Consumers should depend
// on these interfaces rather than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/labsuite/labops/internal/models"
)

// MasterStore persists master-data records of every kind. All lookups are
// filtered by tenant scope except FindRecord, which exists so a caller can
// learn a record's scope before guarding it.
type MasterStore interface {
	ListRecords(ctx context.Context, kind models.Kind, sc models.Scope) ([]models.Record, error)
	GetRecord(ctx context.Context, kind models.Kind, sc models.Scope, id string) (*models.Record, error)
	FindRecord(ctx context.Context, kind models.Kind, id string) (*models.Record, error)
	KeyExists(ctx context.Context, kind models.Kind, sc models.Scope, key, excludeID string) (bool, error)
	CreateRecord(ctx context.Context, kind models.Kind, rec *models.Record) (*models.Record, error)
	UpdateRecord(ctx context.Context, kind models.Kind, sc models.Scope, id string, in models.RecordInput, actor string) (before, after *models.Record, err error)
	DeleteRecord(ctx context.Context, kind models.Kind, sc models.Scope, id string) (*models.Record, error)
}

// AuditStore is append-only: there is no update or delete.
type AuditStore interface {
	InsertAudit(ctx context.Context, rec *models.AuditRecord) error
	QueryAudit(ctx context.Context, q models.AuditQuery) ([]models.AuditRecord, error)
}

// UserStore backs login and per-request session checks.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	Grants(ctx context.Context, userID string) ([]models.CompanyGrant, error)
	IsActiveUser(ctx context.Context, userID string) (bool, error)
}

// EmployeeStore manages employees together with their login users and grants.
type EmployeeStore interface {
	ListEmployees(ctx context.Context, companyID string) ([]models.Employee, error)
	GetEmployee(ctx context.Context, companyID, id string) (*models.Employee, error)
	CreateEmployee(ctx context.Context, emp *models.Employee, passwordHash string) (*models.Employee, error)
	UpdateEmployee(ctx context.Context, companyID, id string, req models.UpdateEmployeeRequest) (before, after *models.Employee, err error)
	DeleteEmployee(ctx context.Context, companyID, id string) (*models.Employee, error)
}

// BatchStore persists HPLC batches. UpdateBatch and DeleteBatch hold the
// batch exclusively while mutate or check runs; an error from either aborts
// the write and is returned unchanged.
type BatchStore interface {
	ListBatches(ctx context.Context, f models.BatchFilter) ([]models.Batch, error)
	GetBatch(ctx context.Context, sc models.Scope, id string) (*models.Batch, error)
	CreateBatch(ctx context.Context, b *models.Batch) (*models.Batch, error)
	UpdateBatch(ctx context.Context, sc models.Scope, id string, mutate func(*models.Batch) error) (before, after *models.Batch, err error)
	DeleteBatch(ctx context.Context, sc models.Scope, id string, check func(*models.Batch) error) (*models.Batch, error)
}

// DirectoryStore manages companies and locations.
type DirectoryStore interface {
	UpsertCompany(ctx context.Context, c models.Company) error
	UpsertLocation(ctx context.Context, l models.Location) error
}

// Publisher delivers change events to live subscribers.
type Publisher interface {
	Publish(ev models.ChangeEvent)
}
