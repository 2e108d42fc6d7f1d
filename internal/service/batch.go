package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/models"
)

// EntityBatch is the audit entity type and broadcast dataType of batches.
const EntityBatch = "batch"

// BatchService plans HPLC batches and tracks their status.
type BatchService struct {
	store   domain.BatchStore
	masters domain.MasterStore
	sink    *changeSink
}

// NewBatchService creates a BatchService. masters resolves the master-data
// references of planned tests.
func NewBatchService(
	store domain.BatchStore, masters domain.MasterStore, audit AuditEnqueuer, pub domain.Publisher, log *logrus.Logger,
) *BatchService {
	return &BatchService{store: store, masters: masters, sink: newChangeSink(audit, pub, log)}
}

// List returns the batches in sc, optionally filtered by status.
func (s *BatchService) List(ctx context.Context, sess *models.Session, sc models.Scope, status string) ([]models.Batch, error) {
	sc, err := guard(sess, sc)
	if err != nil {
		return nil, err
	}

	status = strings.TrimSpace(status)
	if status != "" && !models.ValidBatchStatus(status) {
		return nil, &models.ValidationError{Problems: []string{"unknown status " + status}}
	}

	return s.store.ListBatches(ctx, models.BatchFilter{Scope: sc, Status: status})
}

// Get returns one batch in sc.
func (s *BatchService) Get(ctx context.Context, sess *models.Session, sc models.Scope, id string) (*models.Batch, error) {
	sc, err := guard(sess, sc)
	if err != nil {
		return nil, err
	}

	return s.store.GetBatch(ctx, sc, id)
}

// resolve checks that id names a record of kind in sc.
func (s *BatchService) resolve(ctx context.Context, kind models.Kind, sc models.Scope, id, prefix string, verr *models.ValidationError) error {
	if id == "" {
		return nil
	}

	_, err := s.masters.GetRecord(ctx, kind, sc, id)
	switch {
	case errors.Is(err, models.ErrNotFound):
		verr.Add("%s%s not found", prefix, kind.KeyLabel)
		return nil
	case err != nil:
		return err
	}

	return nil
}

// Create plans a new batch. Every referenced master record must exist in
// the batch's scope.
func (s *BatchService) Create(ctx context.Context, sess *models.Session, req models.CreateBatchRequest) (*models.Batch, error) {
	sc, err := guard(sess, models.Scope{CompanyID: req.CompanyID, LocationID: req.LocationID})
	if err != nil {
		return nil, err
	}

	verr := &models.ValidationError{}
	b := &models.Batch{
		BatchNumber: strings.TrimSpace(req.BatchNumber),
		ProductName: strings.TrimSpace(req.ProductName),
		APIID:       strings.TrimSpace(req.APIID),
		Status:      models.BatchPending,
		CompanyID:   sc.CompanyID,
		LocationID:  sc.LocationID,
		CreatedBy:   sess.UserID,
	}

	if b.BatchNumber == "" {
		verr.Add("Batch number is required")
	}
	if b.ProductName == "" {
		verr.Add("Product name is required")
	}
	if len(req.Tests) == 0 {
		verr.Add("at least one test is required")
	}

	if err := s.resolve(ctx, models.KindAPI, sc, b.APIID, "", verr); err != nil {
		return nil, err
	}

	for i, t := range req.Tests {
		test := models.BatchTest{
			ID:             uuid.NewString(),
			TestTypeID:     strings.TrimSpace(t.TestTypeID),
			ColumnID:       strings.TrimSpace(t.ColumnID),
			DetectorTypeID: strings.TrimSpace(t.DetectorTypeID),
			MobilePhaseID:  strings.TrimSpace(t.MobilePhaseID),
			HPLCID:         strings.TrimSpace(t.HPLCID),
			ScheduledAt:    t.ScheduledAt,
			Status:         models.TestPending,
		}

		prefix := fmt.Sprintf("tests[%d]: ", i)
		if test.TestTypeID == "" {
			verr.Add("%sTest type is required", prefix)
		}

		refs := []struct {
			kind models.Kind
			id   string
		}{
			{models.KindTestType, test.TestTypeID},
			{models.KindColumn, test.ColumnID},
			{models.KindDetectorType, test.DetectorTypeID},
			{models.KindMobilePhase, test.MobilePhaseID},
			{models.KindHPLC, test.HPLCID},
		}
		for _, ref := range refs {
			if err := s.resolve(ctx, ref.kind, sc, ref.id, prefix, verr); err != nil {
				return nil, err
			}
		}

		b.Tests = append(b.Tests, test)
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}

	created, err := s.store.CreateBatch(ctx, b)
	if err != nil {
		return nil, err
	}

	s.sink.commit(change{
		EntityType: EntityBatch, EntityID: created.ID, Key: created.BatchNumber,
		Action: models.ActionCreate, Actor: sess.UserID, Scope: sc,
		After: created.Snapshot(), Broadcast: true,
	})

	return created, nil
}

// UpdateStatus moves a batch through its status machine. A batch cannot
// complete while any test is pending or running.
func (s *BatchService) UpdateStatus(
	ctx context.Context, sess *models.Session, sc models.Scope, id string, req models.StatusRequest,
) (*models.Batch, error) {
	sc, err := guard(sess, sc)
	if err != nil {
		return nil, err
	}

	to := strings.TrimSpace(req.Status)
	if !models.ValidBatchStatus(to) {
		return nil, &models.ValidationError{Problems: []string{"unknown status " + to}}
	}

	before, after, err := s.store.UpdateBatch(ctx, sc, id, func(b *models.Batch) error {
		if !models.CanTransitionBatch(b.Status, to) {
			return models.Conflictf("cannot change batch status from %s to %s", b.Status, to)
		}
		if to == models.BatchCompleted && b.Unfinished() {
			return models.Conflictf("batch has unfinished tests")
		}

		b.Status = to
		b.UpdatedBy = sess.UserID

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordUpdate(sess, sc, before, after)

	return after, nil
}

// UpdateTestStatus moves one test through its status machine. Starting the
// first test of a pending batch puts the batch in progress.
func (s *BatchService) UpdateTestStatus(
	ctx context.Context, sess *models.Session, sc models.Scope, id, testID string, req models.StatusRequest,
) (*models.Batch, error) {
	sc, err := guard(sess, sc)
	if err != nil {
		return nil, err
	}

	to := strings.TrimSpace(req.Status)
	remarks := strings.TrimSpace(req.Remarks)

	before, after, err := s.store.UpdateBatch(ctx, sc, id, func(b *models.Batch) error {
		if b.Status == models.BatchCompleted || b.Status == models.BatchCancelled {
			return models.Conflictf("batch is %s", b.Status)
		}

		test, ok := b.Test(testID)
		if !ok {
			return models.NotFoundf("test not found")
		}
		if !models.CanTransitionTest(test.Status, to) {
			return models.Conflictf("cannot change test status from %s to %s", test.Status, to)
		}

		test.Status = to
		if remarks != "" {
			test.Remarks = remarks
		}
		if to == models.TestRunning && b.Status == models.BatchPending {
			b.Status = models.BatchInProgress
		}
		b.UpdatedBy = sess.UserID

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordUpdate(sess, sc, before, after)

	return after, nil
}

func (s *BatchService) recordUpdate(sess *models.Session, sc models.Scope, before, after *models.Batch) {
	s.sink.commit(change{
		EntityType: EntityBatch, EntityID: after.ID, Key: after.BatchNumber,
		Action: models.ActionUpdate, Actor: sess.UserID, Scope: sc,
		Before: before.Snapshot(), After: after.Snapshot(), Broadcast: true,
	})
}

// Delete removes a batch that is not in progress.
func (s *BatchService) Delete(ctx context.Context, sess *models.Session, sc models.Scope, id string) (*models.Batch, error) {
	sc, err := guard(sess, sc)
	if err != nil {
		return nil, err
	}

	deleted, err := s.store.DeleteBatch(ctx, sc, id, func(b *models.Batch) error {
		if b.Status == models.BatchInProgress {
			return models.Conflictf("batch is in progress")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.sink.commit(change{
		EntityType: EntityBatch, EntityID: deleted.ID, Key: deleted.BatchNumber,
		Action: models.ActionDelete, Actor: sess.UserID, Scope: sc,
		Before: deleted.Snapshot(), Broadcast: true,
	})

	return deleted, nil
}
