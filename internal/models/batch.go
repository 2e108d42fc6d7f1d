package models

import (
	"slices"
	"time"
)

// Batch statuses.
const (
	BatchPending    = "pending"
	BatchInProgress = "in_progress"
	BatchCompleted  = "completed"
	BatchCancelled  = "cancelled"
)

// Test statuses.
const (
	TestPending   = "pending"
	TestRunning   = "running"
	TestCompleted = "completed"
	TestFailed    = "failed"
)

var batchTransitions = map[string][]string{
	BatchPending:    {BatchInProgress, BatchCancelled},
	BatchInProgress: {BatchCompleted, BatchCancelled},
}

var testTransitions = map[string][]string{
	TestPending: {TestRunning},
	TestRunning: {TestCompleted, TestFailed},
}

// Batch is a planned HPLC run of one or more tests.
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

// Scope returns the batch's tenant scope.
func (b *Batch) Scope() Scope {
	return Scope{CompanyID: b.CompanyID, LocationID: b.LocationID}
}

// Clone returns a copy that shares no test slice with b.
func (b *Batch) Clone() *Batch {
	c := *b
	c.Tests = make([]BatchTest, len(b.Tests))
	copy(c.Tests, b.Tests)

	return &c
}

// Snapshot renders the batch as a generic map for audit payloads.
func (b *Batch) Snapshot() map[string]any {
	tests := make([]map[string]any, len(b.Tests))
	for i, t := range b.Tests {
		tests[i] = map[string]any{
			"id": t.ID, "testTypeId": t.TestTypeID, "columnId": t.ColumnID,
			"detectorTypeId": t.DetectorTypeID, "mobilePhaseId": t.MobilePhaseID,
			"hplcId": t.HPLCID, "status": t.Status, "remarks": t.Remarks,
		}
	}

	return map[string]any{
		"id":          b.ID,
		"batchNumber": b.BatchNumber,
		"description": b.ProductName,
		"productName": b.ProductName,
		"status":      b.Status,
		"tests":       tests,
		"companyId":   b.CompanyID,
		"locationId":  b.LocationID,
	}
}

// Test returns the test with the given id.
func (b *Batch) Test(id string) (*BatchTest, bool) {
	for i := range b.Tests {
		if b.Tests[i].ID == id {
			return &b.Tests[i], true
		}
	}

	return nil, false
}

// BatchTest is one analysis planned inside a batch.
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

// CreateBatchRequest is the payload for planning a batch.
type CreateBatchRequest struct {
	BatchNumber string             `json:"batchNumber" binding:"required,max=100"`
	ProductName string             `json:"productName" binding:"required,max=200"`
	APIID       string             `json:"apiId"`
	CompanyID   string             `json:"companyId"`
	LocationID  string             `json:"locationId"`
	Tests       []BatchTestRequest `json:"tests" binding:"required,min=1,max=50,dive"`
}

// BatchTestRequest plans one test.
type BatchTestRequest struct {
	TestTypeID     string     `json:"testTypeId" binding:"required"`
	ColumnID       string     `json:"columnId"`
	DetectorTypeID string     `json:"detectorTypeId"`
	MobilePhaseID  string     `json:"mobilePhaseId"`
	HPLCID         string     `json:"hplcId"`
	ScheduledAt    *time.Time `json:"scheduledAt"`
}

// StatusRequest changes a batch or test status.
type StatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Remarks string `json:"remarks" binding:"max=500"`
}

// BatchFilter narrows a batch listing.
type BatchFilter struct {
	Scope  Scope
	Status string
}

// CanTransitionBatch reports whether a batch may move from one status to another.
func CanTransitionBatch(from, to string) bool {
	return slices.Contains(batchTransitions[from], to)
}

// CanTransitionTest reports whether a test may move from one status to another.
func CanTransitionTest(from, to string) bool {
	return slices.Contains(testTransitions[from], to)
}

// ValidBatchStatus reports whether s is a known batch status.
func ValidBatchStatus(s string) bool {
	switch s {
	case BatchPending, BatchInProgress, BatchCompleted, BatchCancelled:
		return true
	}

	return false
}

// Unfinished reports whether any test is still pending or running.
func (b *Batch) Unfinished() bool {
	for _, t := range b.Tests {
		if t.Status == TestPending || t.Status == TestRunning {
			return true
		}
	}

	return false
}
