package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/db"
	"github.com/labsuite/labops/internal/dbpool"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/store"
)

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var sharedEnv *testEnv

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if sharedEnv != nil {
		return sharedEnv
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := dbpool.NewPool(ctx, dbURL, dbpool.Options{MaxConns: 5})
	if err != nil {
		t.Fatalf("connecting to test DB: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	if err := db.RunMigrations(ctx, pool, log); err != nil {
		t.Fatalf("migrating test DB: %v", err)
	}

	sharedEnv = &testEnv{pool: pool, log: log}

	return sharedEnv
}

// setupTestBase creates a Base and a fresh company with two locations. Rows
// outside the append-only audit table are removed after the test.
func setupTestBase(t *testing.T) (store.Base, models.Scope, models.Scope) {
	t.Helper()

	env := getTestEnv(t)
	ctx := context.Background()
	base := store.Base{Pool: env.pool, Log: env.log}

	companyID := "c-" + uuid.NewString()[:8]
	dir := store.NewDirectoryStore(base)

	if err := dir.UpsertCompany(ctx, models.Company{ID: companyID, Name: "Test Co"}); err != nil {
		t.Fatalf("creating company: %v", err)
	}
	for _, loc := range []string{"l1", "l2"} {
		if err := dir.UpsertLocation(ctx, models.Location{ID: loc, CompanyID: companyID, Name: loc}); err != nil {
			t.Fatalf("creating location: %v", err)
		}
	}

	t.Cleanup(func() {
		for _, q := range []string{
			"DELETE FROM master_records WHERE company_id = $1",
			"DELETE FROM batches WHERE company_id = $1",
			"DELETE FROM users WHERE id IN (SELECT user_id FROM employees WHERE company_id = $1)",
			"DELETE FROM companies WHERE id = $1",
		} {
			env.pool.Exec(ctx, q, companyID) //nolint:errcheck // best-effort cleanup.
		}
	})

	return base, models.Scope{CompanyID: companyID, LocationID: "l1"}, models.Scope{CompanyID: companyID, LocationID: "l2"}
}
