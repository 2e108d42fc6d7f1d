package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/domain"
	"github.com/labsuite/labops/internal/metrics"
	"github.com/labsuite/labops/internal/models"
)

// change describes one committed mutation.
type change struct {
	EntityType string
	EntityID   string
	Key        string
	Action     string
	Actor      string
	Scope      models.Scope
	Before     map[string]any
	After      map[string]any
	// Broadcast sends the change to live subscribers of Scope.
	Broadcast bool
}

// auditRecord builds the history entry for c. Deletes keep the removed
// snapshot in both data and previousData.
func (c change) auditRecord(now time.Time) *models.AuditRecord {
	rec := &models.AuditRecord{
		EntityType: c.EntityType,
		EntityID:   c.EntityID,
		EntityKey:  c.Key,
		UserID:     c.Actor,
		Action:     c.Action,
		CompanyID:  c.Scope.CompanyID,
		LocationID: c.Scope.LocationID,
		Timestamp:  now,
	}

	switch c.Action {
	case models.ActionCreate:
		rec.Data = c.After
	case models.ActionUpdate:
		rec.Data = c.After
		rec.PreviousData = c.Before
	case models.ActionDelete:
		rec.Data = c.Before
		rec.PreviousData = c.Before
	}

	return rec
}

// changeSink records and broadcasts committed mutations. Both steps are
// best-effort and never fail the mutation that triggered them.
type changeSink struct {
	audit AuditEnqueuer
	pub   domain.Publisher
	log   *logrus.Logger
	now   func() time.Time
}

func newChangeSink(audit AuditEnqueuer, pub domain.Publisher, log *logrus.Logger) *changeSink {
	return &changeSink{audit: audit, pub: pub, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (s *changeSink) commit(c change) {
	now := s.now()

	metrics.MutationsTotal.WithLabelValues(c.EntityType, c.Action).Inc()

	s.log.WithFields(logrus.Fields{
		"action":      c.Action,
		"entity_type": c.EntityType,
		"entity_id":   c.EntityID,
		"key":         c.Key,
		"user_id":     c.Actor,
		"company_id":  c.Scope.CompanyID,
		"location_id": c.Scope.LocationID,
	}).Info("audit")

	if s.audit != nil {
		s.audit.Enqueue(c.auditRecord(now))
	}

	if !c.Broadcast || s.pub == nil {
		return
	}

	record := c.After
	if c.Action == models.ActionDelete {
		record = c.Before
	}

	s.pub.Publish(models.ChangeEvent{
		DataType:  c.EntityType,
		Action:    models.EventAction(c.Action),
		Record:    record,
		Scope:     c.Scope,
		Timestamp: now,
	})
}
