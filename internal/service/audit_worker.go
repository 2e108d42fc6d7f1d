package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/labsuite/labops/internal/metrics"
	"github.com/labsuite/labops/internal/models"
)

const auditWriteTimeout = 10 * time.Second

// AuditWriter persists one audit record.
type AuditWriter interface {
	InsertAudit(ctx context.Context, rec *models.AuditRecord) error
}

// AuditEnqueuer accepts audit records for asynchronous persistence.
type AuditEnqueuer interface {
	Enqueue(rec *models.AuditRecord)
}

// AuditWorker buffers audit records and writes them via a single worker goroutine.
type AuditWorker struct {
	writer AuditWriter
	log    *logrus.Logger
	jobs   chan *models.AuditRecord
}

// NewAuditWorker creates an AuditWorker with the given queue capacity.
func NewAuditWorker(writer AuditWriter, log *logrus.Logger, queueSize int) *AuditWorker {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &AuditWorker{
		writer: writer,
		log:    log,
		jobs:   make(chan *models.AuditRecord, queueSize),
	}
}

// Enqueue adds an audit record. Non-blocking; drops the record if the queue is full.
func (w *AuditWorker) Enqueue(rec *models.AuditRecord) {
	select {
	case w.jobs <- rec:
		metrics.AuditQueueDepth.Set(float64(len(w.jobs)))
	default:
		metrics.AuditFailuresTotal.WithLabelValues("dropped").Inc()
		w.log.WithFields(logrus.Fields{
			"action":      rec.Action,
			"entity_type": rec.EntityType,
			"entity_id":   rec.EntityID,
		}).Warn("audit queue full, dropping entry")
	}
}

// Run processes audit records until the context is cancelled, then drains remaining records.
func (w *AuditWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case rec := <-w.jobs:
			w.process(rec)
		}
	}
}

func (w *AuditWorker) drain() {
	for {
		select {
		case rec := <-w.jobs:
			w.process(rec)
		default:
			return
		}
	}
}

func (w *AuditWorker) process(rec *models.AuditRecord) {
	metrics.AuditQueueDepth.Set(float64(len(w.jobs)))

	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := w.writer.InsertAudit(ctx, rec); err != nil {
		metrics.AuditFailuresTotal.WithLabelValues("write").Inc()
		w.log.WithError(err).WithFields(logrus.Fields{
			"action":      rec.Action,
			"entity_type": rec.EntityType,
			"entity_id":   rec.EntityID,
		}).Warn("audit record failed")
	}
}
