package client

import (
	"context"
	"net/url"
	"strconv"
)

// RecordService handles master-data records of every kind. kindPath is the
// kind's URL segment, e.g. "api" or "mobile-phase".
type RecordService struct {
	c *Client
}

func scopeValues(sc Scope) url.Values {
	params := url.Values{}
	for k, v := range sc.params() {
		if v != "" {
			params.Set(k, v)
		}
	}
	return params
}

func withScope(fields map[string]any, sc Scope) map[string]any {
	body := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		body[k] = v
	}
	body["companyId"] = sc.CompanyID
	body["locationId"] = sc.LocationID
	return body
}

// Kinds returns the registry of master-data kinds.
func (s *RecordService) Kinds(ctx context.Context) ([]Kind, error) {
	var kinds []Kind
	if err := s.c.get(ctx, "/api/admin/kinds", nil, &kinds); err != nil {
		return nil, err
	}
	return kinds, nil
}

// List returns the records of a kind in a scope.
func (s *RecordService) List(ctx context.Context, kindPath string, sc Scope) ([]Record, error) {
	var recs []Record
	if err := s.c.get(ctx, "/api/admin/"+kindPath, scopeValues(sc), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Create creates a record. fields holds the key field and any extra fields.
func (s *RecordService) Create(ctx context.Context, kindPath string, sc Scope, fields map[string]any) (Record, error) {
	var rec Record
	if err := s.c.post(ctx, "/api/admin/"+kindPath, withScope(fields, sc), &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Update replaces the writable fields of record id.
func (s *RecordService) Update(ctx context.Context, kindPath string, sc Scope, id string, fields map[string]any) (Record, error) {
	body := withScope(fields, sc)
	body["id"] = id

	var rec Record
	if err := s.c.put(ctx, "/api/admin/"+kindPath, body, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes record id. An empty scope lets the server use the record's own.
func (s *RecordService) Delete(ctx context.Context, kindPath string, sc Scope, id string) (Record, error) {
	params := scopeValues(sc)
	params.Set("id", id)

	var rec Record
	if err := s.c.del(ctx, "/api/admin/"+kindPath, params, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Audit returns the audit history of a kind, newest first. keyField is the
// kind's key field, used when opts.Key is set.
func (s *RecordService) Audit(ctx context.Context, kindPath, keyField string, sc Scope, opts *AuditOptions) ([]AuditEntry, error) {
	params := scopeValues(sc)
	applyAuditOptions(params, keyField, opts)

	var entries []AuditEntry
	if err := s.c.get(ctx, "/api/admin/"+kindPath+"/audit", params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func applyAuditOptions(params url.Values, keyField string, opts *AuditOptions) {
	if opts == nil {
		return
	}
	if opts.Key != "" && keyField != "" {
		params.Set(keyField, opts.Key)
	}
	if opts.Action != "" {
		params.Set("action", opts.Action)
	}
	if opts.SearchTerm != "" {
		params.Set("searchTerm", opts.SearchTerm)
	}
	if opts.StartDate != "" {
		params.Set("startDate", opts.StartDate)
	}
	if opts.EndDate != "" {
		params.Set("endDate", opts.EndDate)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
}
