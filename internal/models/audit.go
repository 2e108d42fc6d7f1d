package models

import "time"

// Audit actions.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Audit query limits.
const (
	DefaultAuditLimit = 100
	MaxAuditLimit     = 1000
)

// AuditRecord is one immutable entry in the change history.
type AuditRecord struct {
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

// AuditQuery holds the filters for an audit history lookup. Scope is required.
type AuditQuery struct {
	Scope      Scope
	EntityType string
	EntityID   string
	Key        string
	Action     string
	SearchTerm string
	Start      *time.Time
	End        *time.Time
	Limit      int
}

// EffectiveLimit clamps Limit into [1, MaxAuditLimit], defaulting to DefaultAuditLimit.
func (q AuditQuery) EffectiveLimit() int {
	switch {
	case q.Limit <= 0:
		return DefaultAuditLimit
	case q.Limit > MaxAuditLimit:
		return MaxAuditLimit
	default:
		return q.Limit
	}
}

// ValidAction reports whether a is a known audit action.
func ValidAction(a string) bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}
