package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uniport/uap-leave-api/internal/models"
	"github.com/uniport/uap-leave-api/internal/repository"
	appErrors "github.com/uniport/uap-leave-api/pkg/errors"
)

type policyStore interface {
	FindActive(ctx context.Context, requesterType models.RequesterType, department, year string) (*models.LeavePolicy, error)
	FindByID(ctx context.Context, id string) (*models.LeavePolicy, error)
	List(ctx context.Context, filter models.PolicyFilter) ([]models.LeavePolicy, int, error)
	Create(ctx context.Context, policy *models.LeavePolicy) error
	Update(ctx context.Context, policy *models.LeavePolicy) error
	SetActive(ctx context.Context, id string) error
	SetInactive(ctx context.Context, id string) error
}

// CreatePolicyRequest describes policy creation payload.
type CreatePolicyRequest struct {
	RequesterType        models.RequesterType `json:"requester_type" validate:"required,oneof=student teacher staff"`
	Department           string               `json:"department" validate:"required"`
	AcademicYear         string               `json:"academic_year" validate:"required"`
	Rules                models.CategoryRules `json:"rules" validate:"required"`
	MinAttendancePercent int                  `json:"min_attendance_percent" validate:"gte=0,lte=100"`
	MaxLeavesPerMonth    int                  `json:"max_leaves_per_month" validate:"gte=0"`
	AllowPastDates       bool                 `json:"allow_past_dates"`
	Workflow             models.ApprovalWorkflow `json:"workflow" validate:"omitempty,oneof=hod-only hod-then-admin admin-only"`
	AutoApproveDays      int                  `json:"auto_approve_days" validate:"gte=0"`
	Activate             bool                 `json:"activate"`
}

// UpdatePolicyRequest patches an existing policy.
type UpdatePolicyRequest struct {
	Rules                models.CategoryRules    `json:"rules"`
	MinAttendancePercent *int                    `json:"min_attendance_percent" validate:"omitempty,gte=0,lte=100"`
	MaxLeavesPerMonth    *int                    `json:"max_leaves_per_month" validate:"omitempty,gte=0"`
	AllowPastDates       *bool                   `json:"allow_past_dates"`
	Workflow             models.ApprovalWorkflow `json:"workflow" validate:"omitempty,oneof=hod-only hod-then-admin admin-only"`
	AutoApproveDays      *int                    `json:"auto_approve_days" validate:"omitempty,gte=0"`
}

// PolicyService is the policy store: it resolves, manages and evaluates leave
// policies per (requester type, department, academic year) triple.
type PolicyService struct {
	repo      policyStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPolicyService constructs PolicyService.
func NewPolicyService(repo policyStore, validate *validator.Validate, logger *zap.Logger) *PolicyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{repo: repo, validator: validate, logger: logger}
}

// GetActivePolicy resolves the single active policy for the triple.
func (s *PolicyService) GetActivePolicy(ctx context.Context, requesterType models.RequesterType, department, year string) (*models.LeavePolicy, error) {
	policy, err := s.repo.FindActive(ctx, requesterType, department, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active leave policy for department and year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve policy")
	}
	return policy, nil
}

// Get returns a policy by ID.
func (s *PolicyService) Get(ctx context.Context, id string) (*models.LeavePolicy, error) {
	policy, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "policy not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load policy")
	}
	return policy, nil
}

// List returns policies with pagination metadata.
func (s *PolicyService) List(ctx context.Context, filter models.PolicyFilter) ([]models.LeavePolicy, *models.Pagination, error) {
	policies, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list policies")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return policies, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create stores a new policy, rejecting it when activation would collide with
// an already-active policy for the same triple.
func (s *PolicyService) Create(ctx context.Context, req CreatePolicyRequest, actorID string) (*models.LeavePolicy, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid policy payload")
	}
	for category := range req.Rules {
		if !category.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown leave category: %s", category))
		}
	}
	workflow := req.Workflow
	if workflow == "" {
		workflow = models.WorkflowHODOnly
	}
	policy := &models.LeavePolicy{
		RequesterType:        req.RequesterType,
		Department:           req.Department,
		AcademicYear:         req.AcademicYear,
		Rules:                req.Rules,
		MinAttendancePercent: req.MinAttendancePercent,
		MaxLeavesPerMonth:    req.MaxLeavesPerMonth,
		AllowPastDates:       req.AllowPastDates,
		Workflow:             workflow,
		AutoApproveDays:      req.AutoApproveDays,
		IsActive:             req.Activate,
		CreatedBy:            actorID,
	}
	if err := s.repo.Create(ctx, policy); err != nil {
		if errors.Is(err, repository.ErrActivePolicyExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active policy already exists for this department and year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create policy")
	}
	return policy, nil
}

// CreateDefault seeds a policy from the built-in category defaults for the
// requester type and activates it.
func (s *PolicyService) CreateDefault(ctx context.Context, requesterType models.RequesterType, department, year, actorID string) (*models.LeavePolicy, error) {
	rules := DefaultCategoryRules(requesterType)
	if rules == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown requester type")
	}
	return s.Create(ctx, CreatePolicyRequest{
		RequesterType:        requesterType,
		Department:           department,
		AcademicYear:         year,
		Rules:                rules,
		MinAttendancePercent: 75,
		MaxLeavesPerMonth:    4,
		AllowPastDates:       false,
		Workflow:             models.WorkflowHODOnly,
		Activate:             true,
	}, actorID)
}

// Update patches a policy's rules and general constraints.
func (s *PolicyService) Update(ctx context.Context, id string, req UpdatePolicyRequest) (*models.LeavePolicy, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid policy patch")
	}
	policy, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Rules != nil {
		for category := range req.Rules {
			if !category.Valid() {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown leave category: %s", category))
			}
		}
		policy.Rules = req.Rules
	}
	if req.MinAttendancePercent != nil {
		policy.MinAttendancePercent = *req.MinAttendancePercent
	}
	if req.MaxLeavesPerMonth != nil {
		policy.MaxLeavesPerMonth = *req.MaxLeavesPerMonth
	}
	if req.AllowPastDates != nil {
		policy.AllowPastDates = *req.AllowPastDates
	}
	if req.Workflow != "" {
		policy.Workflow = req.Workflow
	}
	if req.AutoApproveDays != nil {
		policy.AutoApproveDays = *req.AutoApproveDays
	}
	if err := s.repo.Update(ctx, policy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update policy")
	}
	return policy, nil
}

// Activate marks a policy active, failing with a conflict when another active
// policy exists for the same triple.
func (s *PolicyService) Activate(ctx context.Context, id string) (*models.LeavePolicy, error) {
	if err := s.repo.SetActive(ctx, id); err != nil {
		if errors.Is(err, repository.ErrActivePolicyExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "another policy is already active for this department and year")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "policy not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate policy")
	}
	return s.Get(ctx, id)
}

// Deactivate marks a policy inactive.
func (s *PolicyService) Deactivate(ctx context.Context, id string) (*models.LeavePolicy, error) {
	if err := s.repo.SetInactive(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "policy not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate policy")
	}
	return s.Get(ctx, id)
}

// ValidateLeaveRequest evaluates a request against the policy's rule for its
// category. Categories without a configured rule validate successfully.
func (s *PolicyService) ValidateLeaveRequest(policy *models.LeavePolicy, category models.LeaveCategory, numberOfDays, documentCount int, startDate, now time.Time) models.ValidationResult {
	result := models.ValidationResult{Valid: true}
	rule, ok := policy.Rules[category]
	if !ok {
		return result
	}

	if rule.MaxConsecutiveDays > 0 && numberOfDays > rule.MaxConsecutiveDays {
		result.Errors = append(result.Errors,
			fmt.Sprintf("%s leave cannot exceed %d consecutive days", category, rule.MaxConsecutiveDays))
	}

	needsDocuments := rule.RequiresDocuments ||
		(rule.DocumentThresholdDays > 0 && numberOfDays > rule.DocumentThresholdDays)
	if needsDocuments && documentCount == 0 {
		result.Errors = append(result.Errors,
			fmt.Sprintf("supporting documents are required for %s leave of %d days", category, numberOfDays))
	}

	if rule.AdvanceNoticeDays > 0 {
		earliest := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, rule.AdvanceNoticeDays)
		if startDate.Before(earliest) {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s leave requires %d days advance notice", category, rule.AdvanceNoticeDays))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// DefaultCategoryRules returns the built-in seed rules per requester type.
func DefaultCategoryRules(requesterType models.RequesterType) models.CategoryRules {
	switch requesterType {
	case models.RequesterStudent:
		return models.CategoryRules{
			models.CategoryCasual:  {QuotaDays: 5, MaxConsecutiveDays: 3},
			models.CategorySick:    {QuotaDays: 10, MaxConsecutiveDays: 7, DocumentThresholdDays: 3},
			models.CategoryMedical: {QuotaDays: 10, MaxConsecutiveDays: 10, RequiresDocuments: true},
			models.CategoryEmergency: {QuotaDays: 5, MaxConsecutiveDays: 3},
			models.CategoryDuty:    {MaxConsecutiveDays: 5, AdvanceNoticeDays: 3},
		}
	case models.RequesterTeacher:
		return models.CategoryRules{
			models.CategoryCasual:  {QuotaDays: 10, MaxConsecutiveDays: 3, AdvanceNoticeDays: 1},
			models.CategorySick:    {QuotaDays: 12, MaxConsecutiveDays: 7, DocumentThresholdDays: 3},
			models.CategoryMedical: {QuotaDays: 10, MaxConsecutiveDays: 15, RequiresDocuments: true},
			models.CategoryEmergency: {QuotaDays: 5, MaxConsecutiveDays: 3},
			models.CategoryDuty:    {MaxConsecutiveDays: 10, AdvanceNoticeDays: 7},
			models.CategoryMaternity: {MaxConsecutiveDays: 180, RequiresDocuments: true},
			models.CategoryPaternity: {MaxConsecutiveDays: 15, RequiresDocuments: true},
		}
	case models.RequesterStaff:
		return models.CategoryRules{
			models.CategoryCasual:  {QuotaDays: 10, MaxConsecutiveDays: 5, AdvanceNoticeDays: 1},
			models.CategorySick:    {QuotaDays: 12, MaxConsecutiveDays: 7, DocumentThresholdDays: 3},
			models.CategoryEarned:  {QuotaDays: 15, MaxConsecutiveDays: 15, AdvanceNoticeDays: 7},
			models.CategoryMedical: {QuotaDays: 10, MaxConsecutiveDays: 15, RequiresDocuments: true},
			models.CategoryEmergency: {QuotaDays: 5, MaxConsecutiveDays: 3},
			models.CategoryMaternity: {MaxConsecutiveDays: 180, RequiresDocuments: true},
			models.CategoryPaternity: {MaxConsecutiveDays: 15, RequiresDocuments: true},
		}
	default:
		return nil
	}
}
