package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

var _ domain.AuditStore = (*AuditStore)(nil)

// EntityEmployee is the entity type whose history lives in employee_audit_log.
const EntityEmployee = "employee"

// AuditStore provides append-only access to the change history tables.
// It deliberately has no update or delete methods.
type AuditStore struct {
	Base
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(base Base) *AuditStore {
	return &AuditStore{Base: base}
}

func marshalSnapshot(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}

	return json.Marshal(m)
}

// InsertAudit appends one audit record. Employee history goes to its own
// table so it can be purged together with the employee.
func (s *AuditStore) InsertAudit(ctx context.Context, rec *models.AuditRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	data, err := marshalSnapshot(rec.Data)
	if err != nil {
		return fmt.Errorf("marshalling audit data: %w", err)
	}

	prev, err := marshalSnapshot(rec.PreviousData)
	if err != nil {
		return fmt.Errorf("marshalling audit previous data: %w", err)
	}

	if rec.EntityType == EntityEmployee {
		_, err = s.Pool.Exec(ctx, `
			INSERT INTO employee_audit_log (employee_id, user_id, action, entity_key, data, previous_data, company_id, location_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.EntityID, rec.UserID, rec.Action, rec.EntityKey, data, prev, rec.CompanyID, rec.LocationID,
		)
	} else {
		_, err = s.Pool.Exec(ctx, `
			INSERT INTO master_audit_log (entity_type, entity_id, entity_key, user_id, action, data, previous_data, company_id, location_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.EntityType, rec.EntityID, rec.EntityKey, rec.UserID, rec.Action, data, prev, rec.CompanyID, rec.LocationID,
		)
	}
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// buildAuditFilter builds the WHERE clause and args for an audit query.
func buildAuditFilter(q models.AuditQuery, employee bool) (where string, args []any, nextArg int) {
	var conditions []string
	argIdx := 1

	add := func(cond string, v any) {
		conditions = append(conditions, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(argIdx)))
		args = append(args, v)
		argIdx++
	}

	add("company_id = ?", q.Scope.CompanyID)
	if !employee || q.Scope.LocationID != "" {
		add("location_id = ?", q.Scope.LocationID)
	}

	if !employee && q.EntityType != "" {
		add("entity_type = ?", q.EntityType)
	}
	if q.EntityID != "" {
		if employee {
			add("employee_id = ?", q.EntityID)
		} else {
			add("entity_id = ?", q.EntityID)
		}
	}
	if q.Key != "" {
		add("entity_key = ?", q.Key)
	}
	if q.Action != "" {
		add("action = ?", q.Action)
	}
	if q.SearchTerm != "" {
		add("(entity_key ILIKE ? OR user_id ILIKE ? OR data->>'description' ILIKE ?)", "%"+escapeLike(q.SearchTerm)+"%")
	}
	if q.Start != nil {
		add("timestamp >= ?", *q.Start)
	}
	if q.End != nil {
		add("timestamp <= ?", *q.End)
	}

	where = "WHERE " + strings.Join(conditions, " AND ")

	return where, args, argIdx
}

// escapeLike escapes LIKE wildcards so the term matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// QueryAudit returns audit records matching q, newest first.
func (s *AuditStore) QueryAudit(ctx context.Context, q models.AuditQuery) ([]models.AuditRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only.

	employee := q.EntityType == EntityEmployee
	where, args, argIdx := buildAuditFilter(q, employee)

	var query string
	if employee {
		query = fmt.Sprintf(
			`SELECT id, 'employee', employee_id, entity_key, user_id, action, data, previous_data, company_id, location_id, timestamp
			FROM employee_audit_log %s ORDER BY timestamp DESC, id DESC LIMIT $%d`,
			where, argIdx,
		)
	} else {
		query = fmt.Sprintf(
			`SELECT id, entity_type, entity_id, entity_key, user_id, action, data, previous_data, company_id, location_id, timestamp
			FROM master_audit_log %s ORDER BY timestamp DESC, id DESC LIMIT $%d`,
			where, argIdx,
		)
	}
	args = append(args, q.EffectiveLimit())

	return scanAuditRows(ctx, tx, query, args, s.Log)
}

// scanAuditRows executes a query and scans audit records from the result.
func scanAuditRows(ctx context.Context, tx pgx.Tx, query string, args []any, log *logrus.Logger) ([]models.AuditRecord, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries := []models.AuditRecord{}
	for rows.Next() {
		var e models.AuditRecord
		var data, prev []byte

		if err := rows.Scan(
			&e.ID, &e.EntityType, &e.EntityID, &e.EntityKey, &e.UserID, &e.Action,
			&data, &prev, &e.CompanyID, &e.LocationID, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if data != nil {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				log.WithError(err).Warn("failed to unmarshal audit data")
			}
		}
		if prev != nil {
			if err := json.Unmarshal(prev, &e.PreviousData); err != nil {
				log.WithError(err).Warn("failed to unmarshal audit previous data")
			}
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
