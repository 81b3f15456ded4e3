package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleHOD        UserRole = "HOD"
	RoleTeacher    UserRole = "TEACHER"
	RoleStaff      UserRole = "STAFF"
	RoleStudent    UserRole = "STUDENT"
)

// Valid reports whether the role is one of the known portal roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleHOD, RoleTeacher, RoleStaff, RoleStudent:
		return true
	}
	return false
}

// RequesterType classifies who a leave application belongs to.
type RequesterType string

const (
	RequesterStudent RequesterType = "student"
	RequesterTeacher RequesterType = "teacher"
	RequesterStaff   RequesterType = "staff"
)

// RequesterTypeForRole maps an authenticated role onto the requester type used
// for policy resolution. HODs request leave as teachers.
func RequesterTypeForRole(role UserRole) (RequesterType, bool) {
	switch role {
	case RoleStudent:
		return RequesterStudent, true
	case RoleTeacher, RoleHOD:
		return RequesterTeacher, true
	case RoleStaff:
		return RequesterStaff, true
	default:
		return "", false
	}
}

// User represents a portal user as exposed by the user directory.
type User struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	FullName   string    `db:"full_name" json:"full_name"`
	Role       UserRole  `db:"role" json:"role"`
	Department string    `db:"department" json:"department"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
