package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/uniport/uap-leave-api/internal/models"
)

func newPolicyRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func policyRulesJSON(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(models.CategoryRules{
		models.CategoryCasual: {QuotaDays: 10, MaxConsecutiveDays: 3},
	})
	require.NoError(t, err)
	return raw
}

func TestPolicyRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newPolicyRepoMock(t)
	defer cleanup()
	repo := NewPolicyRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "requester_type", "department", "academic_year", "rules", "min_attendance_percent",
		"max_leaves_per_month", "allow_past_dates", "workflow", "auto_approve_days", "is_active", "created_by",
		"created_at", "updated_at",
	}).AddRow("pol-1", models.RequesterTeacher, "Physics", "2026-27", policyRulesJSON(t), 75,
		4, false, models.WorkflowHODOnly, 0, true, "admin-1", now, now)

	mock.ExpectQuery(regexp.QuoteMeta("is_active = TRUE")).
		WithArgs(models.RequesterTeacher, "Physics", "2026-27").
		WillReturnRows(rows)

	policy, err := repo.FindActive(context.Background(), models.RequesterTeacher, "Physics", "2026-27")
	require.NoError(t, err)
	require.Equal(t, "pol-1", policy.ID)
	require.Equal(t, 10, policy.Rules[models.CategoryCasual].QuotaDays)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyRepositoryCreateActiveConflict(t *testing.T) {
	db, mock, cleanup := newPolicyRepoMock(t)
	defer cleanup()
	repo := NewPolicyRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM leave_policies")).
		WithArgs(models.RequesterStaff, "Library", "2026-27").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.LeavePolicy{
		RequesterType: models.RequesterStaff,
		Department:    "Library",
		AcademicYear:  "2026-27",
		Rules:         models.CategoryRules{},
		IsActive:      true,
	})
	require.ErrorIs(t, err, ErrActivePolicyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyRepositoryCreateInactiveSkipsCheck(t *testing.T) {
	db, mock, cleanup := newPolicyRepoMock(t)
	defer cleanup()
	repo := NewPolicyRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO leave_policies")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	policy := &models.LeavePolicy{
		RequesterType: models.RequesterStudent,
		Department:    "Physics",
		AcademicYear:  "2026-27",
		Rules:         models.CategoryRules{},
	}
	err := repo.Create(context.Background(), policy)
	require.NoError(t, err)
	require.NotEmpty(t, policy.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyRepositorySetActive(t *testing.T) {
	db, mock, cleanup := newPolicyRepoMock(t)
	defer cleanup()
	repo := NewPolicyRepository(db)

	now := time.Now()
	policyRow := sqlmock.NewRows([]string{
		"id", "requester_type", "department", "academic_year", "rules", "min_attendance_percent",
		"max_leaves_per_month", "allow_past_dates", "workflow", "auto_approve_days", "is_active", "created_by",
		"created_at", "updated_at",
	}).AddRow("pol-2", models.RequesterTeacher, "Physics", "2026-27", policyRulesJSON(t), 75,
		4, false, models.WorkflowHODOnly, 0, false, "admin-1", now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("pol-2").
		WillReturnRows(policyRow)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM leave_policies")).
		WithArgs(models.RequesterTeacher, "Physics", "2026-27", "pol-2").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_policies SET is_active = TRUE")).
		WithArgs("pol-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetActive(context.Background(), "pol-2")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyRepositorySetActiveConflict(t *testing.T) {
	db, mock, cleanup := newPolicyRepoMock(t)
	defer cleanup()
	repo := NewPolicyRepository(db)

	now := time.Now()
	policyRow := sqlmock.NewRows([]string{
		"id", "requester_type", "department", "academic_year", "rules", "min_attendance_percent",
		"max_leaves_per_month", "allow_past_dates", "workflow", "auto_approve_days", "is_active", "created_by",
		"created_at", "updated_at",
	}).AddRow("pol-2", models.RequesterTeacher, "Physics", "2026-27", policyRulesJSON(t), 75,
		4, false, models.WorkflowHODOnly, 0, false, "admin-1", now, now)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("pol-2").
		WillReturnRows(policyRow)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM leave_policies")).
		WithArgs(models.RequesterTeacher, "Physics", "2026-27", "pol-2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.SetActive(context.Background(), "pol-2")
	require.ErrorIs(t, err, ErrActivePolicyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyRepositorySetInactiveMissing(t *testing.T) {
	db, mock, cleanup := newPolicyRepoMock(t)
	defer cleanup()
	repo := NewPolicyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE leave_policies SET is_active = FALSE")).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetInactive(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
