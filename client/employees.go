package client

import (
	"context"
	"net/url"
)

// EmployeeService administers employees. Every call requires the admin role.
type EmployeeService struct {
	c *Client
}

// List returns the employees of a company.
func (s *EmployeeService) List(ctx context.Context, companyID string) ([]Employee, error) {
	var emps []Employee
	if err := s.c.get(ctx, "/api/admin/employees", url.Values{"companyId": {companyID}}, &emps); err != nil {
		return nil, err
	}
	return emps, nil
}

// Create creates an employee and its login.
func (s *EmployeeService) Create(ctx context.Context, req *CreateEmployeeRequest) (*Employee, error) {
	var emp Employee
	if err := s.c.post(ctx, "/api/admin/employees", req, &emp); err != nil {
		return nil, err
	}
	return &emp, nil
}

// Update changes an employee.
func (s *EmployeeService) Update(ctx context.Context, req *UpdateEmployeeRequest) (*Employee, error) {
	var emp Employee
	if err := s.c.put(ctx, "/api/admin/employees", req, &emp); err != nil {
		return nil, err
	}
	return &emp, nil
}

// Delete removes an employee together with its login and history.
func (s *EmployeeService) Delete(ctx context.Context, companyID, id string) (*Employee, error) {
	var emp Employee
	if err := s.c.del(ctx, "/api/admin/employees", url.Values{"companyId": {companyID}, "id": {id}}, &emp); err != nil {
		return nil, err
	}
	return &emp, nil
}

// Audit returns employee history for a company.
func (s *EmployeeService) Audit(ctx context.Context, companyID string, opts *AuditOptions) ([]AuditEntry, error) {
	params := url.Values{"companyId": {companyID}}
	applyAuditOptions(params, "employeeCode", opts)

	var entries []AuditEntry
	if err := s.c.get(ctx, "/api/admin/employees/audit", params, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
