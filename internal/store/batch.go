package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

var _ domain.BatchStore = (*BatchStore)(nil)

const batchColumns = `id, batch_number, product_name, api_id, status, tests, company_id, location_id,
	created_by, COALESCE(updated_by, ''), created_at, updated_at`

var errBatchNotFound = models.NotFoundf("batch not found")

// BatchStore persists HPLC batches. Planned tests are stored inline as JSONB.
type BatchStore struct {
	Base
}

// NewBatchStore creates a BatchStore.
func NewBatchStore(base Base) *BatchStore {
	return &BatchStore{Base: base}
}

func scanBatch(scan func(dest ...any) error) (*models.Batch, error) {
	var b models.Batch
	var id uuid.UUID
	var tests []byte

	if err := scan(
		&id, &b.BatchNumber, &b.ProductName, &b.APIID, &b.Status, &tests, &b.CompanyID, &b.LocationID,
		&b.CreatedBy, &b.UpdatedBy, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}

	b.ID = id.String()
	b.Tests = []models.BatchTest{}
	if len(tests) > 0 {
		if err := json.Unmarshal(tests, &b.Tests); err != nil {
			return nil, fmt.Errorf("unmarshalling batch tests: %w", err)
		}
	}

	return &b, nil
}

// ListBatches returns batches in scope, newest first, optionally by status.
func (s *BatchStore) ListBatches(ctx context.Context, f models.BatchFilter) ([]models.Batch, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		"SELECT "+batchColumns+` FROM batches
		WHERE company_id = $1 AND location_id = $2 AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC LIMIT $4`,
		f.Scope.CompanyID, f.Scope.LocationID, f.Status, maxListLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	out := []models.Batch{}
	for rows.Next() {
		b, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		out = append(out, *b)
	}

	return out, rows.Err()
}

// maxListLimit caps list queries.
const maxListLimit = 1000

// GetBatch returns one batch in scope.
func (s *BatchStore) GetBatch(ctx context.Context, sc models.Scope, id string) (*models.Batch, error) {
	if !validID(id) {
		return nil, errBatchNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	b, err := scanBatch(s.Pool.QueryRow(ctx,
		"SELECT "+batchColumns+" FROM batches WHERE id = $1 AND company_id = $2 AND location_id = $3",
		id, sc.CompanyID, sc.LocationID,
	).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting batch: %w", err)
	}

	return b, nil
}

// CreateBatch inserts b. A duplicate batch number in scope is a conflict.
func (s *BatchStore) CreateBatch(ctx context.Context, b *models.Batch) (*models.Batch, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tests, err := json.Marshal(b.Tests)
	if err != nil {
		return nil, fmt.Errorf("marshalling batch tests: %w", err)
	}

	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	created, err := scanBatch(s.Pool.QueryRow(ctx,
		`INSERT INTO batches (id, batch_number, product_name, api_id, status, tests, company_id, location_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+batchColumns,
		b.ID, b.BatchNumber, b.ProductName, b.APIID, b.Status, tests, b.CompanyID, b.LocationID, b.CreatedBy,
	).Scan)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.Conflictf("Batch number already exists")
		}

		return nil, fmt.Errorf("inserting batch: %w", err)
	}

	return created, nil
}

// UpdateBatch locks the batch row, applies mutate to a copy and writes back
// status, tests and updatedBy in the same transaction.
func (s *BatchStore) UpdateBatch(
	ctx context.Context, sc models.Scope, id string, mutate func(*models.Batch) error,
) (*models.Batch, *models.Batch, error) {
	if !validID(id) {
		return nil, nil, errBatchNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("updating batch: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	before, err := lockBatch(ctx, tx, sc, id)
	if err != nil {
		return nil, nil, err
	}

	after := before.Clone()
	if err := mutate(after); err != nil {
		return nil, nil, err
	}

	tests, err := json.Marshal(after.Tests)
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling batch tests: %w", err)
	}

	err = tx.QueryRow(ctx,
		`UPDATE batches SET status = $1, tests = $2, updated_by = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at`,
		after.Status, tests, after.UpdatedBy, id,
	).Scan(&after.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("saving batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("committing batch update: %w", err)
	}

	return before, after, nil
}

func lockBatch(ctx context.Context, tx pgx.Tx, sc models.Scope, id string) (*models.Batch, error) {
	b, err := scanBatch(tx.QueryRow(ctx,
		"SELECT "+batchColumns+` FROM batches
		WHERE id = $1 AND company_id = $2 AND location_id = $3
		FOR UPDATE`,
		id, sc.CompanyID, sc.LocationID,
	).Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("locking batch: %w", err)
	}

	return b, nil
}

// DeleteBatch removes a batch in scope and returns it. check runs against
// the locked row first.
func (s *BatchStore) DeleteBatch(
	ctx context.Context, sc models.Scope, id string, check func(*models.Batch) error,
) (*models.Batch, error) {
	if !validID(id) {
		return nil, errBatchNotFound
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("deleting batch: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	b, err := lockBatch(ctx, tx, sc, id)
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(b); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM batches WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("deleting batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing batch delete: %w", err)
	}

	return b, nil
}
