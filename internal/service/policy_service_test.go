package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniport/uap-leave-api/internal/models"
	"github.com/uniport/uap-leave-api/internal/repository"
	appErrors "github.com/uniport/uap-leave-api/pkg/errors"
)

type fakePolicyStore struct {
	policies       map[string]*models.LeavePolicy
	created        *models.LeavePolicy
	updated        *models.LeavePolicy
	activated      []string
	createErr      error
	setActiveErr   error
	setInactiveErr error
}

func (f *fakePolicyStore) FindActive(ctx context.Context, requesterType models.RequesterType, department, year string) (*models.LeavePolicy, error) {
	for _, p := range f.policies {
		if p.IsActive && p.RequesterType == requesterType && p.Department == department && p.AcademicYear == year {
			return p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakePolicyStore) FindByID(ctx context.Context, id string) (*models.LeavePolicy, error) {
	if p, ok := f.policies[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePolicyStore) List(ctx context.Context, filter models.PolicyFilter) ([]models.LeavePolicy, int, error) {
	var out []models.LeavePolicy
	for _, p := range f.policies {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (f *fakePolicyStore) Create(ctx context.Context, policy *models.LeavePolicy) error {
	if f.createErr != nil {
		return f.createErr
	}
	if policy.ID == "" {
		policy.ID = "pol-new"
	}
	if f.policies == nil {
		f.policies = make(map[string]*models.LeavePolicy)
	}
	f.policies[policy.ID] = policy
	f.created = policy
	return nil
}

func (f *fakePolicyStore) Update(ctx context.Context, policy *models.LeavePolicy) error {
	f.updated = policy
	return nil
}

func (f *fakePolicyStore) SetActive(ctx context.Context, id string) error {
	if f.setActiveErr != nil {
		return f.setActiveErr
	}
	if p, ok := f.policies[id]; ok {
		p.IsActive = true
		f.activated = append(f.activated, id)
		return nil
	}
	return sql.ErrNoRows
}

func (f *fakePolicyStore) SetInactive(ctx context.Context, id string) error {
	if f.setInactiveErr != nil {
		return f.setInactiveErr
	}
	if p, ok := f.policies[id]; ok {
		p.IsActive = false
		return nil
	}
	return sql.ErrNoRows
}

func newPolicyService(store *fakePolicyStore) *PolicyService {
	return NewPolicyService(store, nil, nil)
}

func TestValidateLeaveRequestMaxConsecutiveDays(t *testing.T) {
	svc := newPolicyService(&fakePolicyStore{})
	policy := &models.LeavePolicy{Rules: models.CategoryRules{
		models.CategoryCasual: {QuotaDays: 10, MaxConsecutiveDays: 3},
	}}

	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	result := svc.ValidateLeaveRequest(policy, models.CategoryCasual, 12, 0, start, now)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "3 consecutive days")

	result = svc.ValidateLeaveRequest(policy, models.CategoryCasual, 3, 0, start, now)
	assert.True(t, result.Valid)
}

func TestValidateLeaveRequestDocumentThreshold(t *testing.T) {
	svc := newPolicyService(&fakePolicyStore{})
	policy := &models.LeavePolicy{Rules: models.CategoryRules{
		models.CategorySick: {QuotaDays: 12, MaxConsecutiveDays: 7, DocumentThresholdDays: 3},
	}}

	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	// Five days exceed the three-day threshold, so documents become mandatory.
	result := svc.ValidateLeaveRequest(policy, models.CategorySick, 5, 0, start, now)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "documents")

	result = svc.ValidateLeaveRequest(policy, models.CategorySick, 5, 1, start, now)
	assert.True(t, result.Valid)

	result = svc.ValidateLeaveRequest(policy, models.CategorySick, 3, 0, start, now)
	assert.True(t, result.Valid)
}

func TestValidateLeaveRequestMandatoryDocuments(t *testing.T) {
	svc := newPolicyService(&fakePolicyStore{})
	policy := &models.LeavePolicy{Rules: models.CategoryRules{
		models.CategoryMedical: {RequiresDocuments: true},
	}}

	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	result := svc.ValidateLeaveRequest(policy, models.CategoryMedical, 1, 0, now.AddDate(0, 0, 3), now)
	assert.False(t, result.Valid)
}

func TestValidateLeaveRequestAdvanceNotice(t *testing.T) {
	svc := newPolicyService(&fakePolicyStore{})
	policy := &models.LeavePolicy{Rules: models.CategoryRules{
		models.CategoryDuty: {AdvanceNoticeDays: 7},
	}}

	now := time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC)

	result := svc.ValidateLeaveRequest(policy, models.CategoryDuty, 2, 0, time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), now)
	assert.False(t, result.Valid)

	result = svc.ValidateLeaveRequest(policy, models.CategoryDuty, 2, 0, time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC), now)
	assert.True(t, result.Valid)
}

func TestValidateLeaveRequestUnknownCategoryIsPermissive(t *testing.T) {
	svc := newPolicyService(&fakePolicyStore{})
	policy := &models.LeavePolicy{Rules: models.CategoryRules{}}

	result := svc.ValidateLeaveRequest(policy, models.CategoryPersonal, 30, 0, time.Now(), time.Now())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestCreatePolicyActiveConflict(t *testing.T) {
	store := &fakePolicyStore{createErr: repository.ErrActivePolicyExists}
	svc := newPolicyService(store)

	_, err := svc.Create(context.Background(), CreatePolicyRequest{
		RequesterType: models.RequesterTeacher,
		Department:    "Physics",
		AcademicYear:  "2026-27",
		Rules:         DefaultCategoryRules(models.RequesterTeacher),
		Activate:      true,
	}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCreatePolicyRejectsUnknownCategory(t *testing.T) {
	svc := newPolicyService(&fakePolicyStore{})

	_, err := svc.Create(context.Background(), CreatePolicyRequest{
		RequesterType: models.RequesterTeacher,
		Department:    "Physics",
		AcademicYear:  "2026-27",
		Rules:         models.CategoryRules{"sabbatical": {QuotaDays: 90}},
	}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateDefaultPolicySeedsPerType(t *testing.T) {
	store := &fakePolicyStore{}
	svc := newPolicyService(store)

	policy, err := svc.CreateDefault(context.Background(), models.RequesterStaff, "Library", "2026-27", "admin-1")
	require.NoError(t, err)
	assert.True(t, policy.IsActive)
	assert.Equal(t, models.WorkflowHODOnly, policy.Workflow)
	assert.Equal(t, 15, policy.Rules[models.CategoryEarned].QuotaDays)

	// Earned leave is a staff entitlement only.
	studentRules := DefaultCategoryRules(models.RequesterStudent)
	_, hasEarned := studentRules[models.CategoryEarned]
	assert.False(t, hasEarned)
	assert.Equal(t, 5, studentRules[models.CategoryCasual].QuotaDays)
}

func TestUpdatePolicyPatchesFields(t *testing.T) {
	store := &fakePolicyStore{policies: map[string]*models.LeavePolicy{
		"pol-1": {ID: "pol-1", Rules: models.CategoryRules{}, MaxLeavesPerMonth: 2, Workflow: models.WorkflowHODOnly},
	}}
	svc := newPolicyService(store)

	max := 5
	auto := 2
	policy, err := svc.Update(context.Background(), "pol-1", UpdatePolicyRequest{
		MaxLeavesPerMonth: &max,
		AutoApproveDays:   &auto,
		Workflow:          models.WorkflowAdminOnly,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, policy.MaxLeavesPerMonth)
	assert.Equal(t, 2, policy.AutoApproveDays)
	assert.Equal(t, models.WorkflowAdminOnly, policy.Workflow)
	require.NotNil(t, store.updated)
}

func TestActivatePolicyConflict(t *testing.T) {
	store := &fakePolicyStore{setActiveErr: repository.ErrActivePolicyExists}
	svc := newPolicyService(store)

	_, err := svc.Activate(context.Background(), "pol-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDeactivatePolicyNotFound(t *testing.T) {
	svc := newPolicyService(&fakePolicyStore{})

	_, err := svc.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGetActivePolicyNotFound(t *testing.T) {
	svc := newPolicyService(&fakePolicyStore{})

	_, err := svc.GetActivePolicy(context.Background(), models.RequesterStudent, "Physics", "2026-27")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
