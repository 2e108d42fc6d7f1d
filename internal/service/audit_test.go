package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/store/memory"
)

func TestAuditService_QueryIsScoped(t *testing.T) {
	store := memory.NewAuditStore()
	ctx := context.Background()

	// Route the master pipeline straight into the store.
	worker := NewAuditWorker(store, quietLogger(), 10)
	masters := NewMasterService(memory.NewMasterStore(), worker, nil, quietLogger())
	sess := sessionFor(models.RoleAnalyst, scopeL1, scopeL2)

	_, err := masters.Create(ctx, sess, models.KindAPI, scopeL1, map[string]any{"api": "HPLC-GRADE WATER", "description": "Solvent"})
	require.NoError(t, err)
	_, err = masters.Create(ctx, sess, models.KindAPI, scopeL2, map[string]any{"api": "Ibuprofen"})
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	cancel()
	worker.Run(runCtx)

	svc := NewAuditService(store)

	got, err := svc.Query(ctx, sess, models.AuditQuery{Scope: scopeL1, EntityType: models.KindAPI.Name})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.ActionCreate, got[0].Action)
	assert.Equal(t, "HPLC-GRADE WATER", got[0].Data["api"])

	got, err = svc.Query(ctx, sess, models.AuditQuery{Scope: scopeL1, SearchTerm: "solv"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = svc.Query(ctx, sess, models.AuditQuery{Scope: scopeL1, Action: "delete"})
	require.NoError(t, err)
	assert.Empty(t, got)

	future := time.Now().Add(time.Hour)
	got, err = svc.Query(ctx, sess, models.AuditQuery{Scope: scopeL1, Start: &future})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = svc.Query(ctx, sessionFor(models.RoleAdmin, models.Scope{CompanyID: "c9", LocationID: "l9"}),
		models.AuditQuery{Scope: scopeL1})
	require.ErrorIs(t, err, models.ErrForbidden)
}

func TestAuditService_RejectsBadFilters(t *testing.T) {
	svc := NewAuditService(memory.NewAuditStore())
	sess := sessionFor(models.RoleAnalyst, scopeL1)

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := svc.Query(context.Background(), sess, models.AuditQuery{Scope: scopeL1, Action: "PURGE", Start: &start, End: &end})
	require.ErrorIs(t, err, models.ErrValidation)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)
}
