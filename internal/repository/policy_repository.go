package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uniport/uap-leave-api/internal/models"
)

// ErrActivePolicyExists is returned when activation would violate the
// one-active-policy-per-triple invariant.
var ErrActivePolicyExists = errors.New("an active policy already exists for this requester type, department and year")

const policyColumns = `id, requester_type, department, academic_year, rules, min_attendance_percent,
       max_leaves_per_month, allow_past_dates, workflow, auto_approve_days, is_active, created_by,
       created_at, updated_at`

// PolicyRepository persists leave policies. The schema carries a partial
// unique index on (requester_type, department, academic_year) WHERE is_active,
// so the transactional check here is backed by a database constraint.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository constructs the repository.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// FindActive resolves the single active policy for a triple.
func (r *PolicyRepository) FindActive(ctx context.Context, requesterType models.RequesterType, department, year string) (*models.LeavePolicy, error) {
	query := fmt.Sprintf(`SELECT %s FROM leave_policies
	WHERE requester_type = $1 AND department = $2 AND academic_year = $3 AND is_active = TRUE`, policyColumns)
	var policy models.LeavePolicy
	if err := r.db.GetContext(ctx, &policy, query, requesterType, department, year); err != nil {
		return nil, err
	}
	return &policy, nil
}

// FindByID returns a policy by its ID.
func (r *PolicyRepository) FindByID(ctx context.Context, id string) (*models.LeavePolicy, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_policies WHERE id = $1", policyColumns)
	var policy models.LeavePolicy
	if err := r.db.GetContext(ctx, &policy, query, id); err != nil {
		return nil, err
	}
	return &policy, nil
}

// List returns policies matching the filter.
func (r *PolicyRepository) List(ctx context.Context, filter models.PolicyFilter) ([]models.LeavePolicy, int, error) {
	var conditions []string
	var args []interface{}

	if filter.RequesterType != "" {
		args = append(args, filter.RequesterType)
		conditions = append(conditions, fmt.Sprintf("requester_type = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)))
	}
	if filter.AcademicYear != "" {
		args = append(args, filter.AcademicYear)
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s FROM leave_policies%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		policyColumns, clause, size, offset)

	var policies []models.LeavePolicy
	if err := r.db.SelectContext(ctx, &policies, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list policies: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM leave_policies" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count policies: %w", err)
	}
	return policies, total, nil
}

// Create inserts a new policy. When the policy is created active, the insert
// happens inside a transaction that first re-checks the uniqueness invariant.
func (r *PolicyRepository) Create(ctx context.Context, policy *models.LeavePolicy) error {
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create policy tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if policy.IsActive {
		if err = checkNoActivePolicy(ctx, tx, policy.RequesterType, policy.Department, policy.AcademicYear, ""); err != nil {
			return err
		}
	}

	const query = `INSERT INTO leave_policies
	(id, requester_type, department, academic_year, rules, min_attendance_percent, max_leaves_per_month,
	 allow_past_dates, workflow, auto_approve_days, is_active, created_by, created_at, updated_at)
	VALUES (:id, :requester_type, :department, :academic_year, :rules, :min_attendance_percent, :max_leaves_per_month,
	 :allow_past_dates, :workflow, :auto_approve_days, :is_active, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, policy); err != nil {
		return fmt.Errorf("create policy: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create policy tx: %w", err)
	}
	return nil
}

// Update modifies a policy's rule set and general constraints.
func (r *PolicyRepository) Update(ctx context.Context, policy *models.LeavePolicy) error {
	policy.UpdatedAt = time.Now().UTC()
	const query = `UPDATE leave_policies
	SET rules = :rules, min_attendance_percent = :min_attendance_percent,
	    max_leaves_per_month = :max_leaves_per_month, allow_past_dates = :allow_past_dates,
	    workflow = :workflow, auto_approve_days = :auto_approve_days, updated_at = :updated_at
	WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, policy); err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	return nil
}

// SetActive activates a policy after re-checking, inside the same transaction,
// that no other active policy exists for its triple.
func (r *PolicyRepository) SetActive(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set active tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var policy models.LeavePolicy
	query := fmt.Sprintf("SELECT %s FROM leave_policies WHERE id = $1", policyColumns)
	if err = tx.GetContext(ctx, &policy, query, id); err != nil {
		return err
	}

	if err = checkNoActivePolicy(ctx, tx, policy.RequesterType, policy.Department, policy.AcademicYear, id); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE leave_policies SET is_active = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("activate policy: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set active tx: %w", err)
	}
	return nil
}

// SetInactive deactivates a policy.
func (r *PolicyRepository) SetInactive(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE leave_policies SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate policy: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deactivate rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func checkNoActivePolicy(ctx context.Context, tx *sqlx.Tx, requesterType models.RequesterType, department, year, excludeID string) error {
	query := `SELECT 1 FROM leave_policies
	WHERE requester_type = $1 AND department = $2 AND academic_year = $3 AND is_active = TRUE`
	args := []interface{}{requesterType, department, year}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	err := tx.GetContext(ctx, &exists, query, args...)
	if err == nil {
		return ErrActivePolicyExists
	}
	if err == sql.ErrNoRows {
		return nil
	}
	return fmt.Errorf("check active policy: %w", err)
}
