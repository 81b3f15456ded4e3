package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/uniport/uap-leave-api/internal/models"
)

func newBalanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBalanceRepositoryFindByUserYear(t *testing.T) {
	db, mock, cleanup := newBalanceRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "academic_year", "category", "total", "used", "remaining", "created_at", "updated_at"}).
		AddRow("bal-1", "user-1", "2026-27", models.TrackedCasual, 10, 2, 8, now, now).
		AddRow("bal-2", "user-1", "2026-27", models.TrackedSick, 12, 0, 12, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, academic_year, category, total, used, remaining, created_at, updated_at FROM leave_balances WHERE user_id = $1 AND academic_year = $2 ORDER BY category")).
		WithArgs("user-1", "2026-27").
		WillReturnRows(rows)

	entries, err := repo.FindByUserYear(context.Background(), "user-1", "2026-27")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 8, entries[0].Remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepositoryDeduct(t *testing.T) {
	db, mock, cleanup := newBalanceRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_balances")).
		WithArgs("user-1", "2026-27", models.TrackedCasual, 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Deduct(context.Background(), "user-1", "2026-27", models.TrackedCasual, 3)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepositoryDeductInsufficient(t *testing.T) {
	db, mock, cleanup := newBalanceRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	// The guard total - used >= days matched no row.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_balances")).
		WithArgs("user-1", "2026-27", models.TrackedCasual, 20, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deduct(context.Background(), "user-1", "2026-27", models.TrackedCasual, 20)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepositoryRestore(t *testing.T) {
	db, mock, cleanup := newBalanceRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_balances")).
		WithArgs("user-1", "2026-27", models.TrackedSick, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Restore(context.Background(), "user-1", "2026-27", models.TrackedSick, 2)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepositoryCreateEntries(t *testing.T) {
	db, mock, cleanup := newBalanceRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	entries := []models.BalanceEntry{
		{UserID: "user-1", AcademicYear: "2026-27", Category: models.TrackedCasual, Total: 10},
		{UserID: "user-1", AcademicYear: "2026-27", Category: models.TrackedSick, Total: 12},
	}

	mock.ExpectBegin()
	for range entries {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leave_balances")).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := repo.CreateEntries(context.Background(), entries)
	require.NoError(t, err)
	require.Equal(t, 10, entries[0].Remaining)
	require.NotEmpty(t, entries[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepositoryResetFromQuotas(t *testing.T) {
	db, mock, cleanup := newBalanceRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	quotas := map[models.TrackedCategory]int{
		models.TrackedCasual:    10,
		models.TrackedSick:      12,
		models.TrackedEarned:    15,
		models.TrackedEmergency: 5,
		models.TrackedMedical:   10,
	}

	mock.ExpectBegin()
	for _, category := range models.TrackedCategories() {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_balances")).
			WithArgs("user-1", "2027-28", category, quotas[category], sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	err := repo.ResetFromQuotas(context.Background(), "user-1", "2027-28", quotas)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepositoryExistsForUserYear(t *testing.T) {
	db, mock, cleanup := newBalanceRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM leave_balances WHERE user_id = $1 AND academic_year = $2 LIMIT 1")).
		WithArgs("user-1", "2026-27").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsForUserYear(context.Background(), "user-1", "2026-27")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM leave_balances WHERE user_id = $1 AND academic_year = $2 LIMIT 1")).
		WithArgs("user-2", "2026-27").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsForUserYear(context.Background(), "user-2", "2026-27")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBalanceRepositoryListLowBalance(t *testing.T) {
	db, mock, cleanup := newBalanceRepoMock(t)
	defer cleanup()
	repo := NewBalanceRepository(db)

	rows := sqlmock.NewRows([]string{"user_id", "academic_year", "category", "remaining"}).
		AddRow("user-1", "2026-27", models.TrackedCasual, 1).
		AddRow("user-2", "2026-27", models.TrackedSick, 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, academic_year, category, remaining")).
		WithArgs("2026-27", 3).
		WillReturnRows(rows)

	alerts, err := repo.ListLowBalance(context.Background(), "2026-27", 3)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	require.Equal(t, 1, alerts[0].Remaining)
	require.NoError(t, mock.ExpectationsWereMet())
}
