package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/labsuite/labops/internal/models"
)

func TestAuditWorker_ProcessesJob(t *testing.T) {
	writer := &mockAuditWriter{}

	aw := NewAuditWorker(writer, quietLogger(), 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		aw.Run(ctx)
		close(done)
	}()

	aw.Enqueue(&models.AuditRecord{
		EntityType: "api",
		EntityID:   "r1",
		Action:     models.ActionCreate,
	})

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	calls := writer.getCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 audit call, got %d", len(calls))
	}
	if calls[0].Action != models.ActionCreate {
		t.Errorf("action = %q, want %q", calls[0].Action, models.ActionCreate)
	}
	if calls[0].EntityID != "r1" {
		t.Errorf("entity_id = %q, want %q", calls[0].EntityID, "r1")
	}
}

func TestAuditWorker_DropsWhenFull(t *testing.T) {
	writer := &mockAuditWriter{}

	// Queue size 2, don't start the worker so it can't drain.
	aw := NewAuditWorker(writer, quietLogger(), 2)

	aw.Enqueue(&models.AuditRecord{Action: "a"})
	aw.Enqueue(&models.AuditRecord{Action: "b"})

	done := make(chan struct{})
	go func() {
		aw.Enqueue(&models.AuditRecord{Action: "c"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked when queue was full")
	}

	if len(aw.jobs) != 2 {
		t.Errorf("queue len = %d, want 2", len(aw.jobs))
	}
}

func TestAuditWorker_StopDrains(t *testing.T) {
	writer := &mockAuditWriter{}

	aw := NewAuditWorker(writer, quietLogger(), 100)

	for i := range 5 {
		aw.Enqueue(&models.AuditRecord{Action: "drain", EntityID: string(rune('a' + i))})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		aw.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run didn't return after cancel")
	}

	if calls := writer.getCalls(); len(calls) != 5 {
		t.Errorf("expected 5 drained audit calls, got %d", len(calls))
	}
}

func TestAuditWorker_WriteFailureIsSwallowed(t *testing.T) {
	writer := &mockAuditWriter{err: errors.New("db down")}

	aw := NewAuditWorker(writer, quietLogger(), 10)
	aw.Enqueue(&models.AuditRecord{Action: models.ActionDelete})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	aw.Run(ctx)

	if calls := writer.getCalls(); len(calls) != 1 {
		t.Fatalf("expected 1 attempted write, got %d", len(calls))
	}
}
