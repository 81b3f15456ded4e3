package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uniport/uap-leave-api/internal/models"
)

const balanceColumns = `id, user_id, academic_year, category, total, used, remaining, created_at, updated_at`

// BalanceRepository persists the per-user, per-year leave ledger. One row per
// (user, year, tracked category); remaining is recomputed inside every
// mutating statement so the invariant remaining = max(0, total-used) can never
// be broken by a partial write.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository constructs the repository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// FindByUserYear returns all ledger rows for a user and academic year.
func (r *BalanceRepository) FindByUserYear(ctx context.Context, userID, year string) ([]models.BalanceEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_balances WHERE user_id = $1 AND academic_year = $2 ORDER BY category", balanceColumns)
	var entries []models.BalanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, userID, year); err != nil {
		return nil, fmt.Errorf("find balance: %w", err)
	}
	return entries, nil
}

// FindEntry returns a single category row.
func (r *BalanceRepository) FindEntry(ctx context.Context, userID, year string, category models.TrackedCategory) (*models.BalanceEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM leave_balances WHERE user_id = $1 AND academic_year = $2 AND category = $3", balanceColumns)
	var entry models.BalanceEntry
	if err := r.db.GetContext(ctx, &entry, query, userID, year, category); err != nil {
		return nil, err
	}
	return &entry, nil
}

// CreateEntries inserts ledger rows for a user inside one transaction.
func (r *BalanceRepository) CreateEntries(ctx context.Context, entries []models.BalanceEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create balance tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO leave_balances
	(id, user_id, academic_year, category, total, used, remaining, created_at, updated_at)
	VALUES (:id, :user_id, :academic_year, :category, :total, :used, :remaining, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		entries[i].Remaining = entries[i].Total - entries[i].Used
		if entries[i].Remaining < 0 {
			entries[i].Remaining = 0
		}
		entries[i].CreatedAt = now
		entries[i].UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, query, entries[i]); err != nil {
			return fmt.Errorf("create balance entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create balance tx: %w", err)
	}
	return nil
}

// Deduct consumes days from a category row. The guard rejects the update when
// the remaining balance cannot cover the deduction; callers translate
// sql.ErrNoRows into an insufficient-balance conflict. used and remaining move
// in the same atomic statement, so concurrent deductions serialize on the row.
func (r *BalanceRepository) Deduct(ctx context.Context, userID, year string, category models.TrackedCategory, days int) error {
	const query = `UPDATE leave_balances
	SET used = used + $4, remaining = GREATEST(total - (used + $4), 0), updated_at = $5
	WHERE user_id = $1 AND academic_year = $2 AND category = $3 AND total - used >= $4`
	result, err := r.db.ExecContext(ctx, query, userID, year, category, days, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deduct leave: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deduct rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Restore returns days to a category row, flooring used at zero.
func (r *BalanceRepository) Restore(ctx context.Context, userID, year string, category models.TrackedCategory, days int) error {
	const query = `UPDATE leave_balances
	SET used = GREATEST(used - $4, 0), remaining = GREATEST(total - GREATEST(used - $4, 0), 0), updated_at = $5
	WHERE user_id = $1 AND academic_year = $2 AND category = $3`
	if _, err := r.db.ExecContext(ctx, query, userID, year, category, days, time.Now().UTC()); err != nil {
		return fmt.Errorf("restore leave: %w", err)
	}
	return nil
}

// ResetFromQuotas overwrites totals per category and zeroes used, preserving
// row identity. Used at academic-year rollover with the current policy quotas.
func (r *BalanceRepository) ResetFromQuotas(ctx context.Context, userID, year string, quotas map[models.TrackedCategory]int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset balance tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE leave_balances
	SET total = $4, used = 0, remaining = $4, updated_at = $5
	WHERE user_id = $1 AND academic_year = $2 AND category = $3`
	now := time.Now().UTC()
	for _, category := range models.TrackedCategories() {
		if _, err = tx.ExecContext(ctx, query, userID, year, category, quotas[category], now); err != nil {
			return fmt.Errorf("reset balance entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reset balance tx: %w", err)
	}
	return nil
}

// ExistsForUserYear checks whether a ledger already exists for the pair.
func (r *BalanceRepository) ExistsForUserYear(ctx context.Context, userID, year string) (bool, error) {
	const query = `SELECT 1 FROM leave_balances WHERE user_id = $1 AND academic_year = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, year); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check balance exists: %w", err)
	}
	return true, nil
}

// ListLowBalance returns rows whose remaining days fall under the threshold.
func (r *BalanceRepository) ListLowBalance(ctx context.Context, year string, threshold int) ([]models.LowBalanceAlert, error) {
	const query = `SELECT user_id, academic_year, category, remaining
	FROM leave_balances WHERE academic_year = $1 AND remaining < $2 ORDER BY remaining, user_id`
	var alerts []models.LowBalanceAlert
	if err := r.db.SelectContext(ctx, &alerts, query, year, threshold); err != nil {
		return nil, fmt.Errorf("list low balances: %w", err)
	}
	return alerts, nil
}
