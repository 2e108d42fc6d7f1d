package service

import (
	"context"
	"strings"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/scope"
)

// AuditService answers scoped history queries.
type AuditService struct {
	store domain.AuditStore
}

// NewAuditService creates an AuditService.
func NewAuditService(store domain.AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Query returns the audit records in q.Scope matching the filters, newest first.
func (s *AuditService) Query(ctx context.Context, sess *models.Session, q models.AuditQuery) ([]models.AuditRecord, error) {
	sc, err := guard(sess, q.Scope)
	if err != nil {
		return nil, err
	}
	q.Scope = sc

	if err := normalizeAuditQuery(&q); err != nil {
		return nil, err
	}

	return s.store.QueryAudit(ctx, q)
}

// QueryEmployees returns employee history for a company.
func (s *AuditService) QueryEmployees(ctx context.Context, sess *models.Session, q models.AuditQuery) ([]models.AuditRecord, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}

	q.Scope = models.Scope{CompanyID: strings.TrimSpace(q.Scope.CompanyID)}
	if q.Scope.CompanyID == "" {
		return nil, &models.ValidationError{Problems: []string{"companyId is required"}}
	}
	if err := scope.CheckCompany(sess, q.Scope.CompanyID); err != nil {
		return nil, err
	}

	q.EntityType = EntityEmployee
	if err := normalizeAuditQuery(&q); err != nil {
		return nil, err
	}

	return s.store.QueryAudit(ctx, q)
}

func normalizeAuditQuery(q *models.AuditQuery) error {
	verr := &models.ValidationError{}

	q.Key = strings.TrimSpace(q.Key)
	q.SearchTerm = strings.TrimSpace(q.SearchTerm)
	q.Action = strings.ToUpper(strings.TrimSpace(q.Action))

	if q.Action != "" && !models.ValidAction(q.Action) {
		verr.Add("action must be one of CREATE, UPDATE, DELETE")
	}
	if q.Start != nil && q.End != nil && q.End.Before(*q.Start) {
		verr.Add("endDate must not be before startDate")
	}
	if q.Limit < 0 {
		verr.Add("limit must be positive")
	}

	return verr.Err()
}
