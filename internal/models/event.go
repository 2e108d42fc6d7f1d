package models

import (
	"strings"
	"time"
)

// ChangeEvent is a live notification about a committed mutation.
type ChangeEvent struct {
	DataType  string    `json:"dataType"`
	Action    string    `json:"action"`
	Record    any       `json:"record"`
	Scope     Scope     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// EventAction maps an audit action to the lowercase broadcast action.
func EventAction(auditAction string) string {
	return strings.ToLower(auditAction)
}
