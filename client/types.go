package client

import "time"

// Scope selects a company location.
type Scope struct {
	CompanyID  string `json:"companyId"`
	LocationID string `json:"locationId"`
}

func (s Scope) params() map[string]string {
	return map[string]string{"companyId": s.CompanyID, "locationId": s.LocationID}
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	SchemaVersion int     `json:"schema_version"`
	Database      string  `json:"database"`
	PushClients   int     `json:"push_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// LocationGrant grants one location.
type LocationGrant struct {
	LocationID string `json:"locationId"`
}

// CompanyGrant lists the granted locations of a company.
type CompanyGrant struct {
	CompanyID string          `json:"companyId"`
	Locations []LocationGrant `json:"locations"`
}

// Session describes the authenticated caller.
type Session struct {
	UserID    string         `json:"userId"`
	Email     string         `json:"email"`
	Name      string         `json:"name,omitempty"`
	Role      string         `json:"role"`
	Companies []CompanyGrant `json:"companies"`
}

// LoginResult is returned by Auth.Login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Session   *Session  `json:"session"`
}

// SessionInfo is returned by Auth.Session.
type SessionInfo struct {
	Session   *Session  `json:"session"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// FieldSpec describes an extra field of a master-data kind.
type FieldSpec struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	MaxLen   int    `json:"maxLength"`
	Required bool   `json:"required"`
}

// Kind describes a master-data kind.
type Kind struct {
	Name              string      `json:"name"`
	Path              string      `json:"path"`
	KeyField          string      `json:"keyField"`
	KeyLabel          string      `json:"keyLabel"`
	KeyMaxLen         int         `json:"keyMaxLength"`
	DescriptionMaxLen int         `json:"descriptionMaxLength"`
	Fields            []FieldSpec `json:"fields"`
}

// Record is a master-data record as returned by the API. The key is stored
// under the kind's key field.
type Record map[string]any

// ID returns the record id.
func (r Record) ID() string {
	s, _ := r["id"].(string)
	return s
}

// String returns a string field, or "".
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// AuditEntry is one audit history row.
type AuditEntry struct {
	ID           int64          `json:"id"`
	EntityType   string         `json:"entityType"`
	EntityID     string         `json:"entityId"`
	EntityKey    string         `json:"entityKey,omitempty"`
	UserID       string         `json:"userId"`
	Action       string         `json:"action"`
	Data         map[string]any `json:"data,omitempty"`
	PreviousData map[string]any `json:"previousData,omitempty"`
	CompanyID    string         `json:"companyId"`
	LocationID   string         `json:"locationId"`
	Timestamp    time.Time      `json:"timestamp"`
}

// AuditOptions filters an audit lookup.
type AuditOptions struct {
	Key        string
	Action     string
	SearchTerm string
	// StartDate and EndDate take RFC3339 or YYYY-MM-DD.
	StartDate string
	EndDate   string
	Limit     int
}

// Employee is a company employee with login access.
type Employee struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	EmployeeCode string    `json:"employeeCode"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	CompanyID    string    `json:"companyId"`
	LocationIDs  []string  `json:"locationIds"`
	Active       bool      `json:"active"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateEmployeeRequest creates an employee and its login.
type CreateEmployeeRequest struct {
	EmployeeCode string   `json:"employeeCode"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Password     string   `json:"password"`
	Role         string   `json:"role"`
	CompanyID    string   `json:"companyId"`
	LocationIDs  []string `json:"locationIds"`
}

// UpdateEmployeeRequest changes an employee. Nil fields are left alone.
type UpdateEmployeeRequest struct {
	ID          string    `json:"id"`
	CompanyID   string    `json:"companyId"`
	Name        *string   `json:"name,omitempty"`
	Role        *string   `json:"role,omitempty"`
	LocationIDs *[]string `json:"locationIds,omitempty"`
	Active      *bool     `json:"active,omitempty"`
}

// BatchTest is a planned test of a batch.
type BatchTest struct {
	ID             string     `json:"id"`
	TestTypeID     string     `json:"testTypeId"`
	ColumnID       string     `json:"columnId,omitempty"`
	DetectorTypeID string     `json:"detectorTypeId,omitempty"`
	MobilePhaseID  string     `json:"mobilePhaseId,omitempty"`
	HPLCID         string     `json:"hplcId,omitempty"`
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
	Status         string     `json:"status"`
	Remarks        string     `json:"remarks,omitempty"`
}

// Batch is an HPLC run of one or more tests.
type Batch struct {
	ID          string      `json:"id"`
	BatchNumber string      `json:"batchNumber"`
	ProductName string      `json:"productName"`
	APIID       string      `json:"apiId,omitempty"`
	Status      string      `json:"status"`
	Tests       []BatchTest `json:"tests"`
	CompanyID   string      `json:"companyId"`
	LocationID  string      `json:"locationId"`
	CreatedBy   string      `json:"createdBy"`
	UpdatedBy   string      `json:"updatedBy,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// BatchTestRequest plans one test.
type BatchTestRequest struct {
	TestTypeID     string     `json:"testTypeId"`
	ColumnID       string     `json:"columnId,omitempty"`
	DetectorTypeID string     `json:"detectorTypeId,omitempty"`
	MobilePhaseID  string     `json:"mobilePhaseId,omitempty"`
	HPLCID         string     `json:"hplcId,omitempty"`
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
}

// CreateBatchRequest plans a batch in a scope.
type CreateBatchRequest struct {
	BatchNumber string             `json:"batchNumber"`
	ProductName string             `json:"productName"`
	APIID       string             `json:"apiId,omitempty"`
	CompanyID   string             `json:"companyId"`
	LocationID  string             `json:"locationId"`
	Tests       []BatchTestRequest `json:"tests"`
}

// StatusRequest changes a batch or test status.
type StatusRequest struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks,omitempty"`
}
