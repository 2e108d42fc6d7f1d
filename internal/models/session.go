// Package models defines the data types shared by the store, service and API layers.
package models

import "strings"

// Roles a user may hold.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleAnalyst = "analyst"
	RoleViewer  = "viewer"
)

// Scope is the (companyId, locationId) pair that partitions tenant data.
type Scope struct {
	CompanyID  string `json:"companyId"`
	LocationID string `json:"locationId"`
}

// Normalize trims surrounding whitespace from both parts.
func (s Scope) Normalize() Scope {
	return Scope{CompanyID: strings.TrimSpace(s.CompanyID), LocationID: strings.TrimSpace(s.LocationID)}
}

// Complete reports whether both parts are present.
func (s Scope) Complete() bool {
	return s.CompanyID != "" && s.LocationID != ""
}

// LocationGrant grants access to one location of a company.
type LocationGrant struct {
	LocationID string `json:"locationId"`
}

// CompanyGrant lists the locations of a company a session may use.
type CompanyGrant struct {
	CompanyID string          `json:"companyId"`
	Locations []LocationGrant `json:"locations"`
}

// Session is the authenticated caller. Grants are fixed for the life of the token.
type Session struct {
	UserID    string         `json:"userId"`
	Email     string         `json:"email"`
	Name      string         `json:"name,omitempty"`
	Role      string         `json:"role"`
	Companies []CompanyGrant `json:"companies"`
}

// IsAdmin reports whether the session holds the admin role.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleAnalyst, RoleViewer:
		return true
	}

	return false
}
