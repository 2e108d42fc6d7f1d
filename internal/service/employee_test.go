package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsuite/labops/internal/crypto"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/store/memory"
)

type employeeFixture struct {
	svc    *EmployeeService
	store  *memory.EmployeeStore
	audits *memory.AuditStore
	queue  *captureQueue
	admin  *models.Session
}

func newEmployeeFixture() *employeeFixture {
	f := &employeeFixture{audits: memory.NewAuditStore(), queue: &captureQueue{}}
	f.store = memory.NewEmployeeStore(f.audits)
	hasher := crypto.NewHasher(crypto.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	f.svc = NewEmployeeService(f.store, hasher, f.queue, quietLogger())
	f.admin = sessionFor(models.RoleAdmin, scopeL1, scopeL2)
	return f
}

func newEmployeeRequest(code, email string, locations ...string) models.CreateEmployeeRequest {
	return models.CreateEmployeeRequest{
		EmployeeCode: code, Name: "Lab Analyst", Email: email, Password: "long-enough",
		Role: models.RoleAnalyst, CompanyID: "c1", LocationIDs: locations,
	}
}

func TestEmployeeService_CreateGrantsLocations(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()

	emp, err := f.svc.Create(ctx, f.admin, newEmployeeRequest("E001", "Analyst@Lab.test", "l1", " l2 ", "l1"))
	require.NoError(t, err)
	assert.Equal(t, "analyst@lab.test", emp.Email)
	assert.Equal(t, []string{"l1", "l2"}, emp.LocationIDs)

	grants, err := f.store.Grants(ctx, emp.UserID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Len(t, grants[0].Locations, 2)

	audits := f.queue.all()
	require.Len(t, audits, 1)
	assert.Equal(t, EntityEmployee, audits[0].EntityType)
	assert.Equal(t, "E001", audits[0].EntityKey)
	assert.NotContains(t, audits[0].Data, "password")
}

func TestEmployeeService_RequiresAdmin(t *testing.T) {
	f := newEmployeeFixture()
	analyst := sessionFor(models.RoleAnalyst, scopeL1)

	_, err := f.svc.Create(context.Background(), analyst, newEmployeeRequest("E002", "x@lab.test", "l1"))
	require.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.List(context.Background(), nil, "c1")
	require.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestEmployeeService_CannotGrantUnheldLocation(t *testing.T) {
	f := newEmployeeFixture()
	admin := sessionFor(models.RoleAdmin, scopeL1)

	_, err := f.svc.Create(context.Background(), admin, newEmployeeRequest("E003", "y@lab.test", "l1", "l2"))
	require.ErrorIs(t, err, models.ErrForbidden)
}

func TestEmployeeService_DuplicateCode(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.admin, newEmployeeRequest("E004", "a@lab.test", "l1"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.admin, newEmployeeRequest("E004", "b@lab.test", "l1"))
	require.ErrorIs(t, err, models.ErrConflict)
	assert.EqualError(t, err, "Employee code already exists")
}

func TestEmployeeService_DeleteCascades(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()

	emp, err := f.svc.Create(ctx, f.admin, newEmployeeRequest("E005", "del@lab.test", "l1"))
	require.NoError(t, err)

	for _, rec := range f.queue.all() {
		require.NoError(t, f.audits.InsertAudit(ctx, rec))
	}
	require.Equal(t, 1, f.audits.Len())

	_, err = f.svc.Delete(ctx, f.admin, "c1", emp.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, f.audits.Len())

	_, err = f.store.FindUserByEmail(ctx, "del@lab.test")
	require.ErrorIs(t, err, models.ErrNotFound)

	active, err := f.store.IsActiveUser(ctx, emp.UserID)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = f.svc.Delete(ctx, f.admin, "c1", emp.ID)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestEmployeeService_UpdateRolesAndSelfProtection(t *testing.T) {
	f := newEmployeeFixture()
	ctx := context.Background()

	emp, err := f.svc.Create(ctx, f.admin, newEmployeeRequest("E006", "upd@lab.test", "l1"))
	require.NoError(t, err)

	role := models.RoleManager
	updated, err := f.svc.Update(ctx, f.admin, models.UpdateEmployeeRequest{ID: emp.ID, CompanyID: "c1", Role: &role})
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, updated.Role)

	audits := f.queue.all()
	require.Len(t, audits, 2)
	assert.Equal(t, models.RoleAnalyst, audits[1].PreviousData["role"])
	assert.Equal(t, models.RoleManager, audits[1].Data["role"])

	// The employee tries to deactivate themselves.
	self := sessionFor(models.RoleAdmin, scopeL1)
	self.UserID = emp.UserID
	inactive := false
	_, err = f.svc.Update(ctx, self, models.UpdateEmployeeRequest{ID: emp.ID, CompanyID: "c1", Active: &inactive})
	require.ErrorIs(t, err, models.ErrValidation)
}
