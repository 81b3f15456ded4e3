package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ApprovalWorkflow is the shape of the approval chain a policy mandates.
type ApprovalWorkflow string

const (
	WorkflowHODOnly      ApprovalWorkflow = "hod-only"
	WorkflowHODThenAdmin ApprovalWorkflow = "hod-then-admin"
	WorkflowAdminOnly    ApprovalWorkflow = "admin-only"
)

// CategoryRule holds the per-category constraints of a leave policy.
// DocumentThresholdDays makes documents mandatory above that day count even
// when RequiresDocuments is false; zero disables the threshold.
type CategoryRule struct {
	QuotaDays             int  `json:"quota_days"`
	MaxConsecutiveDays    int  `json:"max_consecutive_days"`
	RequiresDocuments     bool `json:"requires_documents"`
	DocumentThresholdDays int  `json:"document_threshold_days"`
	AdvanceNoticeDays     int  `json:"advance_notice_days"`
}

// CategoryRules maps leave categories to their rules, stored as JSONB.
type CategoryRules map[LeaveCategory]CategoryRule

// Value implements driver.Valuer for JSONB storage.
func (r CategoryRules) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (r *CategoryRules) Scan(src interface{}) error {
	if src == nil {
		*r = CategoryRules{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported category rules type %T", src)
	}
	return json.Unmarshal(raw, r)
}

// LeavePolicy is the rule set for a (requester type, department, academic
// year) triple. At most one policy per triple may be active at a time.
type LeavePolicy struct {
	ID                   string           `db:"id" json:"id"`
	RequesterType        RequesterType    `db:"requester_type" json:"requester_type"`
	Department           string           `db:"department" json:"department"`
	AcademicYear         string           `db:"academic_year" json:"academic_year"`
	Rules                CategoryRules    `db:"rules" json:"rules"`
	MinAttendancePercent int              `db:"min_attendance_percent" json:"min_attendance_percent"`
	MaxLeavesPerMonth    int              `db:"max_leaves_per_month" json:"max_leaves_per_month"`
	AllowPastDates       bool             `db:"allow_past_dates" json:"allow_past_dates"`
	Workflow             ApprovalWorkflow `db:"workflow" json:"workflow"`
	AutoApproveDays      int              `db:"auto_approve_days" json:"auto_approve_days"`
	IsActive             bool             `db:"is_active" json:"is_active"`
	CreatedBy            string           `db:"created_by" json:"created_by"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
}

// Quota returns the quota for a tracked category, zero when the policy has no
// rule for it.
func (p *LeavePolicy) Quota(category TrackedCategory) int {
	rule, ok := p.Rules[LeaveCategory(category)]
	if !ok {
		return 0
	}
	return rule.QuotaDays
}

// PolicyFilter constrains policy listing queries.
type PolicyFilter struct {
	RequesterType RequesterType
	Department    string
	AcademicYear  string
	ActiveOnly    bool
	Page          int
	PageSize      int
}

// ValidationResult carries the outcome of policy validation for a request.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
