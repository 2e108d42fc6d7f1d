// Package service holds the business rules between the API handlers and the
// stores: tenant scope enforcement, validation, and the audit and broadcast
// side effects of every mutation.
package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
	"github.com/labsuite/labops/internal/scope"
)

// ErrScopeRequired is returned when companyId or locationId is missing.
var ErrScopeRequired = &models.ValidationError{Problems: []string{"companyId and locationId are required"}}

// MasterService runs the master-data pipeline for every kind.
type MasterService struct {
	store domain.MasterStore
	sink  *changeSink
	log   *logrus.Logger
}

// NewMasterService creates a MasterService.
func NewMasterService(store domain.MasterStore, audit AuditEnqueuer, pub domain.Publisher, log *logrus.Logger) *MasterService {
	return &MasterService{store: store, sink: newChangeSink(audit, pub, log), log: log}
}

// guard normalizes sc and checks it against the session grants.
func guard(sess *models.Session, sc models.Scope) (models.Scope, error) {
	if sess == nil {
		return sc, models.ErrUnauthorized
	}

	sc = sc.Normalize()
	if !sc.Complete() {
		return sc, ErrScopeRequired
	}

	return sc, scope.Check(sess, sc)
}

// List returns the kind's records in sc ordered by key.
func (s *MasterService) List(ctx context.Context, sess *models.Session, kind models.Kind, sc models.Scope) ([]models.Record, error) {
	sc, err := guard(sess, sc)
	if err != nil {
		return nil, err
	}

	return s.store.ListRecords(ctx, kind, sc)
}

// Get returns one record in sc.
func (s *MasterService) Get(ctx context.Context, sess *models.Session, kind models.Kind, sc models.Scope, id string) (*models.Record, error) {
	sc, err := guard(sess, sc)
	if err != nil {
		return nil, err
	}

	return s.store.GetRecord(ctx, kind, sc, id)
}

// Create validates body and inserts a new record in sc.
func (s *MasterService) Create(
	ctx context.Context, sess *models.Session, kind models.Kind, sc models.Scope, body map[string]any,
) (*models.Record, error) {
	sc, err := guard(sess, sc)
	if err != nil {
		return nil, err
	}

	in, err := models.DecodeRecordInput(kind, body)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.KeyExists(ctx, kind, sc, in.Key, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.Conflictf("%s already exists", kind.KeyLabel)
	}

	rec, err := s.store.CreateRecord(ctx, kind, &models.Record{
		Kind:        kind.Name,
		KeyField:    kind.KeyField,
		Key:         in.Key,
		Description: in.Description,
		Fields:      in.Fields,
		CompanyID:   sc.CompanyID,
		LocationID:  sc.LocationID,
		CreatedBy:   sess.UserID,
	})
	if err != nil {
		return nil, err
	}

	s.sink.commit(change{
		EntityType: kind.Name, EntityID: rec.ID, Key: rec.Key,
		Action: models.ActionCreate, Actor: sess.UserID, Scope: sc,
		After: rec.Snapshot(), Broadcast: true,
	})

	return rec, nil
}

// Update replaces the writable fields of record id in sc.
func (s *MasterService) Update(
	ctx context.Context, sess *models.Session, kind models.Kind, sc models.Scope, id string, body map[string]any,
) (*models.Record, error) {
	sc, err := guard(sess, sc)
	if err != nil {
		return nil, err
	}

	if id == "" {
		return nil, &models.ValidationError{Problems: []string{"id is required"}}
	}

	in, err := models.DecodeRecordInput(kind, body)
	if err != nil {
		return nil, err
	}

	before, after, err := s.store.UpdateRecord(ctx, kind, sc, id, in, sess.UserID)
	if err != nil {
		return nil, err
	}

	s.sink.commit(change{
		EntityType: kind.Name, EntityID: after.ID, Key: after.Key,
		Action: models.ActionUpdate, Actor: sess.UserID, Scope: sc,
		Before: before.Snapshot(), After: after.Snapshot(), Broadcast: true,
	})

	return after, nil
}

// Delete removes record id. When sc is empty the record's own scope is
// looked up and guarded instead; a record outside the caller's grants is then
// reported as not found like an unknown id.
func (s *MasterService) Delete(
	ctx context.Context, sess *models.Session, kind models.Kind, sc models.Scope, id string,
) (*models.Record, error) {
	if sess == nil {
		return nil, models.ErrUnauthorized
	}
	if id == "" {
		return nil, &models.ValidationError{Problems: []string{"id is required"}}
	}

	sc = sc.Normalize()
	if sc == (models.Scope{}) {
		rec, err := s.store.FindRecord(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if scope.Check(sess, rec.Scope()) != nil {
			return nil, models.NotFoundf("%s not found", kind.KeyLabel)
		}
		sc = rec.Scope()
	}

	sc, err := guard(sess, sc)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.DeleteRecord(ctx, kind, sc, id)
	if err != nil {
		return nil, err
	}

	s.sink.commit(change{
		EntityType: kind.Name, EntityID: rec.ID, Key: rec.Key,
		Action: models.ActionDelete, Actor: sess.UserID, Scope: sc,
		Before: rec.Snapshot(), Broadcast: true,
	})

	return rec, nil
}
