package models

import "time"

// TrackedCategory enumerates the five balance-tracked leave categories.
type TrackedCategory string

const (
	TrackedCasual    TrackedCategory = "casual"
	TrackedSick      TrackedCategory = "sick"
	TrackedEarned    TrackedCategory = "earned"
	TrackedEmergency TrackedCategory = "emergency"
	TrackedMedical   TrackedCategory = "medical"
)

// TrackedCategories returns all tracked categories in a stable order.
func TrackedCategories() []TrackedCategory {
	return []TrackedCategory{TrackedCasual, TrackedSick, TrackedEarned, TrackedEmergency, TrackedMedical}
}

// BalanceEntry is one (user, year, category) ledger row. remaining is always
// recomputed as max(0, total-used) inside the same statement that mutates used;
// no caller writes it directly.
type BalanceEntry struct {
	ID           string          `db:"id" json:"id"`
	UserID       string          `db:"user_id" json:"user_id"`
	AcademicYear string          `db:"academic_year" json:"academic_year"`
	Category     TrackedCategory `db:"category" json:"category"`
	Total        int             `db:"total" json:"total"`
	Used         int             `db:"used" json:"used"`
	Remaining    int             `db:"remaining" json:"remaining"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// CategoryBalance is the per-category view inside an aggregated balance.
type CategoryBalance struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// LeaveBalance aggregates a user's ledger rows for one academic year.
type LeaveBalance struct {
	UserID       string                              `json:"user_id"`
	AcademicYear string                              `json:"academic_year"`
	Categories   map[TrackedCategory]CategoryBalance `json:"categories"`
}

// FromEntries folds ledger rows into the aggregated shape.
func BalanceFromEntries(userID, year string, entries []BalanceEntry) *LeaveBalance {
	balance := &LeaveBalance{
		UserID:       userID,
		AcademicYear: year,
		Categories:   make(map[TrackedCategory]CategoryBalance, len(entries)),
	}
	for _, e := range entries {
		balance.Categories[e.Category] = CategoryBalance{Total: e.Total, Used: e.Used, Remaining: e.Remaining}
	}
	return balance
}

// LowBalanceAlert flags a user whose remaining days dipped under a threshold.
type LowBalanceAlert struct {
	UserID       string          `db:"user_id" json:"user_id"`
	AcademicYear string          `db:"academic_year" json:"academic_year"`
	Category     TrackedCategory `db:"category" json:"category"`
	Remaining    int             `db:"remaining" json:"remaining"`
}

// BulkInitResult reports the outcome of a bulk balance initialization. A
// single user's failure does not abort the batch; failures are collected.
type BulkInitResult struct {
	Initialized int               `json:"initialized"`
	Skipped     int               `json:"skipped"`
	Failures    map[string]string `json:"failures,omitempty"`
}
