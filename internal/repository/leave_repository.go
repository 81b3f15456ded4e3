package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/uniport/uap-leave-api/internal/models"
)

const leaveColumns = `id, user_id, requester_type, category, start_date, end_date, number_of_days, reason,
       documents, status, hod_approval_status, department, academic_term, academic_year,
       applied_at, approver_id, decided_at, remarks, rejection_reason, updated_at`

// LeaveRepository handles persistence of leave applications.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs the repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// Create persists a new leave application.
func (r *LeaveRepository) Create(ctx context.Context, leave *models.LeaveApplication) error {
	if leave.ID == "" {
		leave.ID = uuid.NewString()
	}
	if leave.Status == "" {
		leave.Status = models.LeavePending
	}
	if leave.HODApproval == "" {
		leave.HODApproval = models.HODApprovalPending
	}
	now := time.Now().UTC()
	if leave.AppliedAt.IsZero() {
		leave.AppliedAt = now
	}
	leave.UpdatedAt = now
	const query = `INSERT INTO leave_applications
	(id, user_id, requester_type, category, start_date, end_date, number_of_days, reason, documents,
	 status, hod_approval_status, department, academic_term, academic_year, applied_at, approver_id,
	 decided_at, remarks, rejection_reason, updated_at)
	VALUES (:id, :user_id, :requester_type, :category, :start_date, :end_date, :number_of_days, :reason, :documents,
	 :status, :hod_approval_status, :department, :academic_term, :academic_year, :applied_at, :approver_id,
	 :decided_at, :remarks, :rejection_reason, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, leave); err != nil {
		return fmt.Errorf("create leave application: %w", err)
	}
	return nil
}

// FindByID returns a leave application by its ID.
func (r *LeaveRepository) FindByID(ctx context.Context, id string) (*models.LeaveApplication, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_applications WHERE id = $1", leaveColumns)
	var leave models.LeaveApplication
	if err := r.db.GetContext(ctx, &leave, query, id); err != nil {
		return nil, err
	}
	return &leave, nil
}

// List returns leave applications filtered by the provided criteria.
func (r *LeaveRepository) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveApplication, int, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.RequesterType != "" {
		args = append(args, filter.RequesterType)
		conditions = append(conditions, fmt.Sprintf("requester_type = $%d", len(args)))
	}
	if filter.AcademicYear != "" {
		args = append(args, filter.AcademicYear)
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("start_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("end_date <= $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"applied_at": "applied_at",
		"start_date": "start_date",
		"status":     "status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "applied_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM leave_applications%s ORDER BY %s %s LIMIT %d OFFSET %d",
		leaveColumns, clause, orderBy, order, size, offset)

	var leaves []models.LeaveApplication
	if err := r.db.SelectContext(ctx, &leaves, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list leave applications: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM leave_applications" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count leave applications: %w", err)
	}
	return leaves, total, nil
}

// UpdateLeaveStatusParams groups mutable columns for workflow transitions.
type UpdateLeaveStatusParams struct {
	ID              string
	Expected        models.LeaveStatus
	Status          models.LeaveStatus
	ApproverID      *string
	DecidedAt       *time.Time
	Remarks         *string
	RejectionReason *string
}

// UpdateStatus transitions a leave application guarded by its expected current
// status. Returns sql.ErrNoRows when the row was not in the expected state, so
// callers can surface a conflict instead of silently double-transitioning.
func (r *LeaveRepository) UpdateStatus(ctx context.Context, params UpdateLeaveStatusParams) error {
	const query = `UPDATE leave_applications
	SET status = :status, approver_id = :approver_id, decided_at = :decided_at,
	    remarks = :remarks, rejection_reason = :rejection_reason, updated_at = :updated_at
	WHERE id = :id AND status = :expected`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"expected":         params.Expected,
		"status":           params.Status,
		"approver_id":      params.ApproverID,
		"decided_at":       params.DecidedAt,
		"remarks":          params.Remarks,
		"rejection_reason": params.RejectionReason,
		"updated_at":       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update leave status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check leave update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateRequestParams groups the owner-editable columns.
type UpdateRequestParams struct {
	ID           string
	Category     models.LeaveCategory
	StartDate    time.Time
	EndDate      time.Time
	NumberOfDays int
	Reason       string
	Documents    pq.StringArray
}

// UpdateRequest edits a pending application's request fields. Guarded so
// decided applications cannot be rewritten after the fact.
func (r *LeaveRepository) UpdateRequest(ctx context.Context, params UpdateRequestParams) error {
	const query = `UPDATE leave_applications
	SET category = $2, start_date = $3, end_date = $4, number_of_days = $5, reason = $6,
	    documents = $7, updated_at = $8
	WHERE id = $1 AND status = $9`
	result, err := r.db.ExecContext(ctx, query, params.ID, params.Category, params.StartDate,
		params.EndDate, params.NumberOfDays, params.Reason, params.Documents,
		time.Now().UTC(), models.LeavePending)
	if err != nil {
		return fmt.Errorf("update leave request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check leave request rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetHODApproval records the secondary review marker.
func (r *LeaveRepository) SetHODApproval(ctx context.Context, id string, status models.HODApprovalStatus) error {
	const query = `UPDATE leave_applications SET hod_approval_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("set hod approval: %w", err)
	}
	return nil
}

// CountInMonth counts a user's non-cancelled applications starting inside the
// month containing the given date.
func (r *LeaveRepository) CountInMonth(ctx context.Context, userID string, date time.Time) (int, error) {
	monthStart := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)
	const query = `SELECT COUNT(*) FROM leave_applications
	WHERE user_id = $1 AND start_date >= $2 AND start_date < $3 AND status <> $4`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, monthStart, monthEnd, models.LeaveCancelled); err != nil {
		return 0, fmt.Errorf("count monthly leaves: %w", err)
	}
	return count, nil
}

// Statistics groups applications by status summing count and total days.
func (r *LeaveRepository) Statistics(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveStatusBucket, error) {
	var conditions []string
	var args []interface{}

	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.RequesterType != "" {
		args = append(args, filter.RequesterType)
		conditions = append(conditions, fmt.Sprintf("requester_type = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.AcademicYear != "" {
		args = append(args, filter.AcademicYear)
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT status, COUNT(*) AS count, COALESCE(SUM(number_of_days), 0) AS total_days
	FROM leave_applications%s GROUP BY status ORDER BY status`, clause)

	var buckets []models.LeaveStatusBucket
	if err := r.db.SelectContext(ctx, &buckets, query, args...); err != nil {
		return nil, fmt.Errorf("leave statistics: %w", err)
	}
	return buckets, nil
}
