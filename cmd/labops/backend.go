package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/api"
	"github.com/labsuite/labops/internal/config"
	"github.com/labsuite/labops/internal/db"
	"github.com/labsuite/labops/internal/dbpool"
	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/metrics"
	"github.com/labsuite/labops/internal/store"
	"github.com/labsuite/labops/internal/store/memory"
)

// backend is one complete set of stores.
type backend struct {
	masters   domain.MasterStore
	audit     domain.AuditStore
	users     domain.UserStore
	employees domain.EmployeeStore
	batches   domain.BatchStore
	directory domain.DirectoryStore

	// health is nil for the in-memory backend.
	health api.SchemaChecker
	close  func()
}

func openBackend(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*backend, error) {
	if cfg.InMemory() {
		log.Warn("running on in-memory storage, data is lost on restart")
		return newMemoryBackend(), nil
	}

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), dbpool.Options{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.RunMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	metrics.RegisterPoolStats(pool.Stats)

	return newPostgresBackend(pool, log), nil
}

func newPostgresBackend(pool *dbpool.Pool, log *logrus.Logger) *backend {
	base := store.Base{Pool: pool, Log: log}

	return &backend{
		masters:   store.NewMasterStore(base),
		audit:     store.NewAuditStore(base),
		users:     store.NewUserStore(base),
		employees: store.NewEmployeeStore(base),
		batches:   store.NewBatchStore(base),
		directory: store.NewDirectoryStore(base),
		health:    &base,
		close:     pool.Close,
	}
}

func newMemoryBackend() *backend {
	audit := memory.NewAuditStore()
	employees := memory.NewEmployeeStore(audit)

	return &backend{
		masters:   memory.NewMasterStore(),
		audit:     audit,
		users:     employees,
		employees: employees,
		batches:   memory.NewBatchStore(),
		directory: memory.NewDirectoryStore(),
		close:     func() {},
	}
}
