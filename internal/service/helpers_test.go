package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/models"
)

// mockAuditWriter records InsertAudit calls.
type mockAuditWriter struct {
	mu    sync.Mutex
	calls []*models.AuditRecord
	err   error
}

func (m *mockAuditWriter) InsertAudit(_ context.Context, rec *models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, rec)
	return m.err
}

func (m *mockAuditWriter) getCalls() []*models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AuditRecord(nil), m.calls...)
}

// captureQueue is a synchronous AuditEnqueuer.
type captureQueue struct {
	mu      sync.Mutex
	records []*models.AuditRecord
}

func (q *captureQueue) Enqueue(rec *models.AuditRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = append(q.records, rec)
}

func (q *captureQueue) all() []*models.AuditRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*models.AuditRecord(nil), q.records...)
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (p *capturePublisher) Publish(ev models.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePublisher) all() []models.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.ChangeEvent(nil), p.events...)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

var (
	scopeL1 = models.Scope{CompanyID: "c1", LocationID: "l1"}
	scopeL2 = models.Scope{CompanyID: "c1", LocationID: "l2"}
)

func sessionFor(role string, scopes ...models.Scope) *models.Session {
	sess := &models.Session{UserID: "u-" + role, Email: role + "@lab.test", Role: role}
	for _, sc := range scopes {
		found := false
		for i := range sess.Companies {
			if sess.Companies[i].CompanyID == sc.CompanyID {
				sess.Companies[i].Locations = append(sess.Companies[i].Locations, models.LocationGrant{LocationID: sc.LocationID})
				found = true
			}
		}
		if !found {
			sess.Companies = append(sess.Companies, models.CompanyGrant{
				CompanyID: sc.CompanyID,
				Locations: []models.LocationGrant{{LocationID: sc.LocationID}},
			})
		}
	}
	return sess
}
