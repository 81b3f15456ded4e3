package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/uniport/uap-leave-api/internal/models"
	appErrors "github.com/uniport/uap-leave-api/pkg/errors"
)

type balanceLedger interface {
	FindByUserYear(ctx context.Context, userID, year string) ([]models.BalanceEntry, error)
	FindEntry(ctx context.Context, userID, year string, category models.TrackedCategory) (*models.BalanceEntry, error)
	CreateEntries(ctx context.Context, entries []models.BalanceEntry) error
	Deduct(ctx context.Context, userID, year string, category models.TrackedCategory, days int) error
	Restore(ctx context.Context, userID, year string, category models.TrackedCategory, days int) error
	ResetFromQuotas(ctx context.Context, userID, year string, quotas map[models.TrackedCategory]int) error
	ExistsForUserYear(ctx context.Context, userID, year string) (bool, error)
	ListLowBalance(ctx context.Context, year string, threshold int) ([]models.LowBalanceAlert, error)
}

type balanceUserDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListByRoleAndDepartment(ctx context.Context, role models.UserRole, department string) ([]models.User, error)
}

type balancePolicyResolver interface {
	GetActivePolicy(ctx context.Context, requesterType models.RequesterType, department, year string) (*models.LeavePolicy, error)
}

// BalanceService is the balance ledger: it owns per-user per-year quota
// accounting for tracked categories. Untracked categories never touch it.
type BalanceService struct {
	repo     balanceLedger
	users    balanceUserDirectory
	policies balancePolicyResolver
	logger   *zap.Logger
}

// NewBalanceService constructs BalanceService.
func NewBalanceService(repo balanceLedger, users balanceUserDirectory, policies balancePolicyResolver, logger *zap.Logger) *BalanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceService{repo: repo, users: users, policies: policies, logger: logger}
}

// GetBalance returns the aggregated ledger for one user and year. A user with
// no ledger rows gets an empty category map, not an error.
func (s *BalanceService) GetBalance(ctx context.Context, userID, year string) (*models.LeaveBalance, error) {
	entries, err := s.repo.FindByUserYear(ctx, userID, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load balance")
	}
	return models.BalanceFromEntries(userID, year, entries), nil
}

// CheckBalance reports whether the user could cover days in the category. It
// is a pure read and holds nothing; the guarantee comes from DeductLeave.
// Untracked categories always pass.
func (s *BalanceService) CheckBalance(ctx context.Context, userID, year string, category models.LeaveCategory, days int) (bool, error) {
	tracked, ok := category.Tracked()
	if !ok {
		return true, nil
	}
	entry, err := s.repo.FindEntry(ctx, userID, year, tracked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check balance")
	}
	return entry.Remaining >= days, nil
}

// DeductLeave atomically charges days against a tracked category. The guarded
// update fails when the remaining balance cannot cover the deduction, which
// surfaces as ErrInsufficientBalance. Untracked categories are a no-op.
func (s *BalanceService) DeductLeave(ctx context.Context, userID, year string, category models.LeaveCategory, days int) error {
	tracked, ok := category.Tracked()
	if !ok {
		return nil
	}
	if days <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "deduction days must be positive")
	}
	if err := s.repo.Deduct(ctx, userID, year, tracked, days); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInsufficientBalance,
				fmt.Sprintf("insufficient %s balance for %d days", tracked, days))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deduct balance")
	}
	return nil
}

// RestoreLeave returns previously deducted days to the ledger, used when an
// approved application is cancelled. Untracked categories are a no-op.
func (s *BalanceService) RestoreLeave(ctx context.Context, userID, year string, category models.LeaveCategory, days int) error {
	tracked, ok := category.Tracked()
	if !ok {
		return nil
	}
	if days <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "restore days must be positive")
	}
	if err := s.repo.Restore(ctx, userID, year, tracked, days); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no balance entry to restore")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore balance")
	}
	return nil
}

// InitializeBalance seeds a user's ledger for a year from the active policy's
// quotas. Existing ledgers are left untouched.
func (s *BalanceService) InitializeBalance(ctx context.Context, userID, year string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return s.initializeForUser(ctx, user, year)
}

// InitializeBalances bulk-seeds ledgers for every active user with the role
// in a department. One user's failure does not abort the batch.
func (s *BalanceService) InitializeBalances(ctx context.Context, role models.UserRole, department, year string) (*models.BulkInitResult, error) {
	users, err := s.users.ListByRoleAndDepartment(ctx, role, department)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	result := &models.BulkInitResult{Failures: make(map[string]string)}
	for i := range users {
		user := &users[i]
		exists, err := s.repo.ExistsForUserYear(ctx, user.ID, year)
		if err != nil {
			result.Failures[user.ID] = err.Error()
			continue
		}
		if exists {
			result.Skipped++
			continue
		}
		if err := s.initializeForUser(ctx, user, year); err != nil {
			s.logger.Warn("balance initialization failed",
				zap.String("user_id", user.ID),
				zap.String("academic_year", year),
				zap.Error(err))
			result.Failures[user.ID] = err.Error()
			continue
		}
		result.Initialized++
	}
	if len(result.Failures) == 0 {
		result.Failures = nil
	}
	return result, nil
}

func (s *BalanceService) initializeForUser(ctx context.Context, user *models.User, year string) error {
	exists, err := s.repo.ExistsForUserYear(ctx, user.ID, year)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing balance")
	}
	if exists {
		return nil
	}
	requesterType, ok := models.RequesterTypeForRole(user.Role)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "user role has no leave entitlement")
	}
	policy, err := s.policies.GetActivePolicy(ctx, requesterType, user.Department, year)
	if err != nil {
		return err
	}
	entries := make([]models.BalanceEntry, 0, len(models.TrackedCategories()))
	for _, category := range models.TrackedCategories() {
		entries = append(entries, models.BalanceEntry{
			UserID:       user.ID,
			AcademicYear: year,
			Category:     category,
			Total:        policy.Quota(category),
		})
	}
	if err := s.repo.CreateEntries(ctx, entries); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create balance entries")
	}
	return nil
}

// ResetBalance resets one user's ledger for a year back to the active
// policy's quotas, zeroing usage.
func (s *BalanceService) ResetBalance(ctx context.Context, userID, year string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	requesterType, ok := models.RequesterTypeForRole(user.Role)
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "user role has no leave entitlement")
	}
	policy, err := s.policies.GetActivePolicy(ctx, requesterType, user.Department, year)
	if err != nil {
		return err
	}
	quotas := make(map[models.TrackedCategory]int, len(models.TrackedCategories()))
	for _, category := range models.TrackedCategories() {
		quotas[category] = policy.Quota(category)
	}
	if err := s.repo.ResetFromQuotas(ctx, userID, year, quotas); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset balance")
	}
	return nil
}

// GetLowBalanceUsers lists ledger entries under the threshold for a year.
func (s *BalanceService) GetLowBalanceUsers(ctx context.Context, year string, threshold int) ([]models.LowBalanceAlert, error) {
	if threshold <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "threshold must be positive")
	}
	alerts, err := s.repo.ListLowBalance(ctx, year, threshold)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list low balances")
	}
	return alerts, nil
}
