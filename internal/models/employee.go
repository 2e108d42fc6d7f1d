package models

import "time"

// Employee is a company-level staff record linked to a login user.
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

// CreateEmployeeRequest is the payload for adding an employee.
type CreateEmployeeRequest struct {
	EmployeeCode string   `json:"employeeCode" binding:"required,max=50"`
	Name         string   `json:"name" binding:"required,max=200"`
	Email        string   `json:"email" binding:"required,email,max=254"`
	Password     string   `json:"password" binding:"required,min=8,max=128"`
	Role         string   `json:"role" binding:"required,oneof=admin manager analyst viewer"`
	CompanyID    string   `json:"companyId" binding:"required"`
	LocationIDs  []string `json:"locationIds" binding:"required,min=1,dive,required"`
}

// UpdateEmployeeRequest changes an employee's profile or grants. Nil fields are left as is.
type UpdateEmployeeRequest struct {
	ID          string    `json:"id" binding:"required"`
	CompanyID   string    `json:"companyId" binding:"required"`
	Name        *string   `json:"name" binding:"omitempty,min=1,max=200"`
	Role        *string   `json:"role" binding:"omitempty,oneof=admin manager analyst viewer"`
	LocationIDs *[]string `json:"locationIds" binding:"omitempty,min=1,dive,required"`
	Active      *bool     `json:"active"`
}

// User is a login identity.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         string
	PasswordHash string
	Active       bool
}

// Company is a tenant organisation.
type Company struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Location is a site of a company.
type Location struct {
	ID        string `json:"id"`
	CompanyID string `json:"companyId"`
	Name      string `json:"name"`
}
