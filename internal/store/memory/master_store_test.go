package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/store/memory"
)

func TestMasterStore_UniqueAndScoped(t *testing.T) {
	s := memory.NewMasterStore()
	ctx := context.Background()
	sc := models.Scope{CompanyID: "c1", LocationID: "l1"}

	rec, err := s.CreateRecord(ctx, models.KindAPI, &models.Record{Key: "A", CompanyID: "c1", LocationID: "l1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.CreateRecord(ctx, models.KindAPI, &models.Record{Key: "A", CompanyID: "c1", LocationID: "l1"}); !errors.Is(err, models.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}

	if _, err := s.GetRecord(ctx, models.KindAPI, models.Scope{CompanyID: "c1", LocationID: "l2"}, rec.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected not found across scope, got %v", err)
	}

	// Mutating the returned copy must not leak into the store.
	rec.Key = "mutated"
	got, _ := s.GetRecord(ctx, models.KindAPI, sc, rec.ID)
	if got.Key != "A" {
		t.Errorf("store aliased caller memory: %q", got.Key)
	}
}

func TestAuditStore_FiltersAndOrder(t *testing.T) {
	s := memory.NewAuditStore()
	ctx := context.Background()

	for _, key := range []string{"first", "second"} {
		_ = s.InsertAudit(ctx, &models.AuditRecord{
			EntityType: "api", EntityKey: key, Action: models.ActionCreate, CompanyID: "c1", LocationID: "l1",
			Data: map[string]any{"description": "Desc " + key},
		})
	}

	out, _ := s.QueryAudit(ctx, models.AuditQuery{Scope: models.Scope{CompanyID: "c1", LocationID: "l1"}})
	if len(out) != 2 || out[0].EntityKey != "second" {
		t.Fatalf("expected newest first, got %+v", out)
	}

	out, _ = s.QueryAudit(ctx, models.AuditQuery{Scope: models.Scope{CompanyID: "c1", LocationID: "l1"}, SearchTerm: "DESC FIRST"})
	if len(out) != 1 || out[0].EntityKey != "first" {
		t.Errorf("search: %+v", out)
	}

	out, _ = s.QueryAudit(ctx, models.AuditQuery{Scope: models.Scope{CompanyID: "c2", LocationID: "l1"}})
	if len(out) != 0 {
		t.Errorf("scope leak: %+v", out)
	}
}
