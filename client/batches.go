package client

import (
	"context"
	"net/url"
)

// BatchService drives the batch workflow.
type BatchService struct {
	c *Client
}

// List returns the batches of a scope, optionally filtered by status.
func (s *BatchService) List(ctx context.Context, sc Scope, status string) ([]Batch, error) {
	params := scopeValues(sc)
	if status != "" {
		params.Set("status", status)
	}

	var batches []Batch
	if err := s.c.get(ctx, "/api/batches", params, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}

// Get returns one batch.
func (s *BatchService) Get(ctx context.Context, sc Scope, id string) (*Batch, error) {
	var b Batch
	if err := s.c.get(ctx, "/api/batches/"+url.PathEscape(id), scopeValues(sc), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create plans a batch.
func (s *BatchService) Create(ctx context.Context, req *CreateBatchRequest) (*Batch, error) {
	var b Batch
	if err := s.c.post(ctx, "/api/batches", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// SetStatus moves a batch to a new status.
func (s *BatchService) SetStatus(ctx context.Context, sc Scope, id string, req *StatusRequest) (*Batch, error) {
	var b Batch
	if err := s.c.patch(ctx, "/api/batches/"+url.PathEscape(id)+"/status", scopeValues(sc), req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// SetTestStatus moves one test of a batch to a new status.
func (s *BatchService) SetTestStatus(ctx context.Context, sc Scope, id, testID string, req *StatusRequest) (*Batch, error) {
	path := "/api/batches/" + url.PathEscape(id) + "/tests/" + url.PathEscape(testID) + "/status"

	var b Batch
	if err := s.c.patch(ctx, path, scopeValues(sc), req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Delete removes a batch that is not in progress.
func (s *BatchService) Delete(ctx context.Context, sc Scope, id string) (*Batch, error) {
	var b Batch
	if err := s.c.del(ctx, "/api/batches/"+url.PathEscape(id), scopeValues(sc), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Audit returns batch history, newest first.
func (s *BatchService) Audit(ctx context.Context, sc Scope, opts *AuditOptions) ([]AuditEntry, error) {
	params := scopeValues(sc)
	applyAuditOptions(params, "batchNumber", opts)

	var entries []AuditEntry
	if err := s.c.get(ctx, "/api/batches/audit", params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
