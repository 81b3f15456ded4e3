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

func newLeaveRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestLeaveRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leave_applications")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	leave := &models.LeaveApplication{
		UserID:        "user-1",
		RequesterType: models.RequesterTeacher,
		Category:      models.CategoryCasual,
		StartDate:     time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC),
		NumberOfDays:  2,
		Reason:        "family function out of town",
		Department:    "Physics",
		AcademicYear:  "2026-27",
	}
	err := repo.Create(context.Background(), leave)
	require.NoError(t, err)
	require.NotEmpty(t, leave.ID)
	require.Equal(t, models.LeavePending, leave.Status)
	require.Equal(t, models.HODApprovalPending, leave.HODApproval)
	require.False(t, leave.AppliedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_applications")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	approver := "hod-1"
	decidedAt := time.Now().UTC()
	err := repo.UpdateStatus(context.Background(), UpdateLeaveStatusParams{
		ID:         "leave-1",
		Expected:   models.LeavePending,
		Status:     models.LeaveApproved,
		ApproverID: &approver,
		DecidedAt:  &decidedAt,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryUpdateStatusAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	// The row is no longer in the expected state; the guarded update matches
	// nothing and the caller sees sql.ErrNoRows.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_applications")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), UpdateLeaveStatusParams{
		ID:       "leave-1",
		Expected: models.LeavePending,
		Status:   models.LeaveCancelled,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryUpdateRequestOnlyPending(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_applications")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateRequest(context.Background(), UpdateRequestParams{
		ID:           "leave-1",
		Category:     models.CategorySick,
		StartDate:    time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 9, 11, 0, 0, 0, 0, time.UTC),
		NumberOfDays: 2,
		Reason:       "follow-up medical consultation",
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryCountInMonth(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	monthStart := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM leave_applications")).
		WithArgs("user-1", monthStart, monthEnd, models.LeaveCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountInMonth(context.Background(), "user-1", time.Date(2026, 9, 15, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryList(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "requester_type", "category", "start_date", "end_date", "number_of_days", "reason",
		"documents", "status", "hod_approval_status", "department", "academic_term", "academic_year",
		"applied_at", "approver_id", "decided_at", "remarks", "rejection_reason", "updated_at",
	}).AddRow("leave-1", "user-1", models.RequesterStudent, models.CategoryCasual, now, now, 1, "attending a family event",
		"{}", models.LeavePending, models.HODApprovalPending, "Physics", "Fall", "2026-27",
		now, nil, nil, nil, nil, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("user-1", models.LeavePending).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM leave_applications")).
		WithArgs("user-1", models.LeavePending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	leaves, total, err := repo.List(context.Background(), models.LeaveFilter{
		UserID: "user-1",
		Status: models.LeavePending,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, leaves, 1)
	require.Equal(t, "leave-1", leaves[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLeaveRepositoryStatistics(t *testing.T) {
	db, mock, cleanup := newLeaveRepoMock(t)
	defer cleanup()
	repo := NewLeaveRepository(db)

	rows := sqlmock.NewRows([]string{"status", "count", "total_days"}).
		AddRow(models.LeaveApproved, 4, 11).
		AddRow(models.LeavePending, 2, 5)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WithArgs("Physics").
		WillReturnRows(rows)

	buckets, err := repo.Statistics(context.Background(), models.LeaveFilter{Department: "Physics"})
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	require.Equal(t, 11, buckets[0].TotalDays)
	require.NoError(t, mock.ExpectationsWereMet())
}
