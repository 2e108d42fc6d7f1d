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

var _ domain.MasterStore = (*MasterStore)(nil)

// recordColumns lists the columns selected for master record queries.
const recordColumns = `id, kind, key, description, fields, company_id, location_id,
	created_by, COALESCE(updated_by, ''), created_at, updated_at`

// MasterStore handles master-data records of every kind in one table.
type MasterStore struct {
	Base
}

// NewMasterStore creates a MasterStore.
func NewMasterStore(base Base) *MasterStore {
	return &MasterStore{Base: base}
}

func scanRecord(kind models.Kind, scan func(dest ...any) error) (*models.Record, error) {
	var r models.Record
	var id uuid.UUID
	var fields []byte

	if err := scan(
		&id, &r.Kind, &r.Key, &r.Description, &fields, &r.CompanyID, &r.LocationID,
		&r.CreatedBy, &r.UpdatedBy, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}

	r.ID = id.String()
	r.KeyField = kind.KeyField
	r.Fields = map[string]string{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &r.Fields); err != nil {
			return nil, fmt.Errorf("unmarshalling record fields: %w", err)
		}
	}

	return &r, nil
}

func notFound(kind models.Kind) error {
	return models.NotFoundf("%s not found", kind.KeyLabel)
}

func duplicate(kind models.Kind) error {
	return models.Conflictf("%s already exists", kind.KeyLabel)
}

// ListRecords returns all records of kind in scope ordered by key.
func (s *MasterStore) ListRecords(ctx context.Context, kind models.Kind, sc models.Scope) ([]models.Record, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s records: %w", kind.Name, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only.

	rows, err := tx.Query(ctx,
		"SELECT "+recordColumns+` FROM master_records
		WHERE kind = $1 AND company_id = $2 AND location_id = $3
		ORDER BY key ASC`,
		kind.Name, sc.CompanyID, sc.LocationID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying %s records: %w", kind.Name, err)
	}
	defer rows.Close()

	out := []models.Record{}
	for rows.Next() {
		r, err := scanRecord(kind, rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning %s record: %w", kind.Name, err)
		}
		out = append(out, *r)
	}

	return out, rows.Err()
}

// GetRecord returns one record by id within scope.
func (s *MasterStore) GetRecord(ctx context.Context, kind models.Kind, sc models.Scope, id string) (*models.Record, error) {
	if !validID(id) {
		return nil, notFound(kind)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx,
		"SELECT "+recordColumns+` FROM master_records
		WHERE id = $1 AND kind = $2 AND company_id = $3 AND location_id = $4`,
		id, kind.Name, sc.CompanyID, sc.LocationID,
	)

	r, err := scanRecord(kind, row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(kind)
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s record: %w", kind.Name, err)
	}

	return r, nil
}

// FindRecord looks a record up by id alone.
func (s *MasterStore) FindRecord(ctx context.Context, kind models.Kind, id string) (*models.Record, error) {
	if !validID(id) {
		return nil, notFound(kind)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM master_records WHERE id = $1 AND kind = $2",
		id, kind.Name,
	)

	r, err := scanRecord(kind, row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(kind)
	}
	if err != nil {
		return nil, fmt.Errorf("finding %s record: %w", kind.Name, err)
	}

	return r, nil
}

// KeyExists reports whether another record of kind in scope already uses key.
func (s *MasterStore) KeyExists(ctx context.Context, kind models.Kind, sc models.Scope, key, excludeID string) (bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var exists bool

	err := s.Pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM master_records
		WHERE kind = $1 AND company_id = $2 AND location_id = $3 AND key = $4
		AND ($5 = '' OR id::text <> $5))`,
		kind.Name, sc.CompanyID, sc.LocationID, key, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking %s key: %w", kind.Name, err)
	}

	return exists, nil
}

// CreateRecord inserts rec. A unique-index violation maps to a conflict.
func (s *MasterStore) CreateRecord(ctx context.Context, kind models.Kind, rec *models.Record) (*models.Record, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	fields, err := json.Marshal(nonNilFields(rec.Fields))
	if err != nil {
		return nil, fmt.Errorf("marshalling record fields: %w", err)
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	row := s.Pool.QueryRow(ctx,
		`INSERT INTO master_records (id, kind, key, description, fields, company_id, location_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+recordColumns,
		id, kind.Name, rec.Key, rec.Description, fields, rec.CompanyID, rec.LocationID, rec.CreatedBy,
	)

	created, err := scanRecord(kind, row.Scan)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, duplicate(kind)
		}

		return nil, fmt.Errorf("inserting %s record: %w", kind.Name, err)
	}

	return created, nil
}

// UpdateRecord replaces the writable fields of the record with id in scope.
// The row is locked for the duration of the collision check so a concurrent
// rename cannot slip in between. Returns the state before and after.
func (s *MasterStore) UpdateRecord(
	ctx context.Context, kind models.Kind, sc models.Scope, id string, in models.RecordInput, actor string,
) (*models.Record, *models.Record, error) {
	if !validID(id) {
		return nil, nil, notFound(kind)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("updating %s record: %w", kind.Name, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	row := tx.QueryRow(ctx,
		"SELECT "+recordColumns+` FROM master_records
		WHERE id = $1 AND kind = $2 AND company_id = $3 AND location_id = $4
		FOR UPDATE`,
		id, kind.Name, sc.CompanyID, sc.LocationID,
	)

	before, err := scanRecord(kind, row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, notFound(kind)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("locking %s record: %w", kind.Name, err)
	}

	if in.Key != before.Key {
		var taken bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM master_records
			WHERE kind = $1 AND company_id = $2 AND location_id = $3 AND key = $4 AND id <> $5)`,
			kind.Name, sc.CompanyID, sc.LocationID, in.Key, id,
		).Scan(&taken)
		if err != nil {
			return nil, nil, fmt.Errorf("checking %s key: %w", kind.Name, err)
		}
		if taken {
			return nil, nil, duplicate(kind)
		}
	}

	fields, err := json.Marshal(nonNilFields(in.Fields))
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling record fields: %w", err)
	}

	row = tx.QueryRow(ctx,
		`UPDATE master_records
		SET key = $1, description = $2, fields = $3, updated_by = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING `+recordColumns,
		in.Key, in.Description, fields, actor, id,
	)

	after, err := scanRecord(kind, row.Scan)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nil, duplicate(kind)
		}

		return nil, nil, fmt.Errorf("updating %s record: %w", kind.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("committing %s update: %w", kind.Name, err)
	}

	return before, after, nil
}

// DeleteRecord hard-deletes the record with id in scope and returns it.
func (s *MasterStore) DeleteRecord(ctx context.Context, kind models.Kind, sc models.Scope, id string) (*models.Record, error) {
	if !validID(id) {
		return nil, notFound(kind)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx,
		`DELETE FROM master_records
		WHERE id = $1 AND kind = $2 AND company_id = $3 AND location_id = $4
		RETURNING `+recordColumns,
		id, kind.Name, sc.CompanyID, sc.LocationID,
	)

	deleted, err := scanRecord(kind, row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(kind)
	}
	if err != nil {
		return nil, fmt.Errorf("deleting %s record: %w", kind.Name, err)
	}

	return deleted, nil
}

func nonNilFields(f map[string]string) map[string]string {
	if f == nil {
		return map[string]string{}
	}

	return f
}
