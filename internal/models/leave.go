package models

import (
	"time"

	"github.com/lib/pq"
)

// LeaveCategory is the type of absence being requested.
type LeaveCategory string

const (
	CategoryCasual    LeaveCategory = "casual"
	CategorySick      LeaveCategory = "sick"
	CategoryEmergency LeaveCategory = "emergency"
	CategoryMedical   LeaveCategory = "medical"
	CategoryEarned    LeaveCategory = "earned"
	CategoryDuty      LeaveCategory = "duty"
	CategoryMaternity LeaveCategory = "maternity"
	CategoryPaternity LeaveCategory = "paternity"
	CategoryPersonal  LeaveCategory = "personal"
)

// Valid reports whether the category is one of the known leave categories.
func (c LeaveCategory) Valid() bool {
	switch c {
	case CategoryCasual, CategorySick, CategoryEmergency, CategoryMedical,
		CategoryEarned, CategoryDuty, CategoryMaternity, CategoryPaternity,
		CategoryPersonal:
		return true
	}
	return false
}

// Tracked maps a leave category onto its balance-tracked counterpart. The
// second return is false for categories that carry no quota (duty, maternity,
// paternity, personal); those succeed unconditionally with respect to balance.
func (c LeaveCategory) Tracked() (TrackedCategory, bool) {
	switch c {
	case CategoryCasual:
		return TrackedCasual, true
	case CategorySick:
		return TrackedSick, true
	case CategoryEarned:
		return TrackedEarned, true
	case CategoryEmergency:
		return TrackedEmergency, true
	case CategoryMedical:
		return TrackedMedical, true
	default:
		return "", false
	}
}

// LeaveStatus captures the lifecycle of a leave application.
type LeaveStatus string

const (
	LeavePending   LeaveStatus = "pending"
	LeaveApproved  LeaveStatus = "approved"
	LeaveRejected  LeaveStatus = "rejected"
	LeaveCancelled LeaveStatus = "cancelled"
)

// HODApprovalStatus is the secondary review marker kept for two-stage
// workflows. It never drives the primary status.
type HODApprovalStatus string

const (
	HODApprovalPending  HODApprovalStatus = "pending"
	HODApprovalApproved HODApprovalStatus = "approved"
	HODApprovalRejected HODApprovalStatus = "rejected"
)

// LeaveApplication is a single leave request and its lifecycle state.
// Department and academic term are snapshotted at apply time and never
// recomputed from the live user record.
type LeaveApplication struct {
	ID              string            `db:"id" json:"id"`
	UserID          string            `db:"user_id" json:"user_id"`
	RequesterType   RequesterType     `db:"requester_type" json:"requester_type"`
	Category        LeaveCategory     `db:"category" json:"category"`
	StartDate       time.Time         `db:"start_date" json:"start_date"`
	EndDate         time.Time         `db:"end_date" json:"end_date"`
	NumberOfDays    int               `db:"number_of_days" json:"number_of_days"`
	Reason          string            `db:"reason" json:"reason"`
	Documents       pq.StringArray    `db:"documents" json:"documents,omitempty"`
	Status          LeaveStatus       `db:"status" json:"status"`
	HODApproval     HODApprovalStatus `db:"hod_approval_status" json:"hod_approval_status"`
	Department      string            `db:"department" json:"department"`
	AcademicTerm    string            `db:"academic_term" json:"academic_term,omitempty"`
	AcademicYear    string            `db:"academic_year" json:"academic_year"`
	AppliedAt       time.Time         `db:"applied_at" json:"applied_at"`
	ApproverID      *string           `db:"approver_id" json:"approver_id,omitempty"`
	DecidedAt       *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
	Remarks         *string           `db:"remarks" json:"remarks,omitempty"`
	RejectionReason *string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// DaysInclusive returns the inclusive day count between two dates.
func DaysInclusive(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}

// LeaveFilter constrains leave listing queries.
type LeaveFilter struct {
	UserID        string
	Status        LeaveStatus
	Category      LeaveCategory
	Department    string
	RequesterType RequesterType
	AcademicYear  string
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// LeaveStatusBucket aggregates applications sharing a status.
type LeaveStatusBucket struct {
	Status    LeaveStatus `db:"status" json:"status"`
	Count     int         `db:"count" json:"count"`
	TotalDays int         `db:"total_days" json:"total_days"`
}

// LeaveStatistics is the grouped view returned by the statistics endpoint.
type LeaveStatistics struct {
	Buckets []LeaveStatusBucket `json:"buckets"`
}
