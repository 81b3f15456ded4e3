package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/uniport/uap-leave-api/internal/models"
	"github.com/uniport/uap-leave-api/internal/repository"
	appErrors "github.com/uniport/uap-leave-api/pkg/errors"
)

// systemActorID marks transitions performed by the service itself, such as
// auto-approval of short leaves.
const systemActorID = "system"

type leaveStore interface {
	Create(ctx context.Context, leave *models.LeaveApplication) error
	FindByID(ctx context.Context, id string) (*models.LeaveApplication, error)
	List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveApplication, int, error)
	UpdateStatus(ctx context.Context, params repository.UpdateLeaveStatusParams) error
	UpdateRequest(ctx context.Context, params repository.UpdateRequestParams) error
	SetHODApproval(ctx context.Context, id string, status models.HODApprovalStatus) error
	CountInMonth(ctx context.Context, userID string, date time.Time) (int, error)
	Statistics(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveStatusBucket, error)
}

type policyEngine interface {
	GetActivePolicy(ctx context.Context, requesterType models.RequesterType, department, year string) (*models.LeavePolicy, error)
	ValidateLeaveRequest(policy *models.LeavePolicy, category models.LeaveCategory, numberOfDays, documentCount int, startDate, now time.Time) models.ValidationResult
}

type balanceChecker interface {
	CheckBalance(ctx context.Context, userID, year string, category models.LeaveCategory, days int) (bool, error)
	DeductLeave(ctx context.Context, userID, year string, category models.LeaveCategory, days int) error
}

type eventNotifier interface {
	Publish(ctx context.Context, event models.LeaveEvent)
}

// AttendanceReader reports a requester's attendance percentage for an academic
// term. Attendance records live in a separate subsystem, so the reader is an
// optional collaborator; the second return is false when no record exists.
type AttendanceReader interface {
	AttendancePercent(ctx context.Context, userID, academicTerm string) (int, bool, error)
}

// ApplyLeaveRequest is the payload for submitting a new leave application.
type ApplyLeaveRequest struct {
	Category  models.LeaveCategory `json:"category" validate:"required"`
	StartDate time.Time            `json:"start_date" validate:"required"`
	EndDate   time.Time            `json:"end_date" validate:"required"`
	Reason    string               `json:"reason" validate:"required,min=10,max=500"`
	Documents []string             `json:"documents" validate:"omitempty,dive,required"`
}

// UpdateLeaveRequest patches a pending application's request fields. Absent
// fields keep their current value.
type UpdateLeaveRequest struct {
	Category  models.LeaveCategory `json:"category"`
	StartDate *time.Time           `json:"start_date"`
	EndDate   *time.Time           `json:"end_date"`
	Reason    string               `json:"reason" validate:"omitempty,min=10,max=500"`
	Documents []string             `json:"documents"`
}

// LeaveService is the workflow coordinator. It owns every leave application
// transition and is the only writer of application status and of ledger usage.
type LeaveService struct {
	repo         leaveStore
	policies     policyEngine
	balances     balanceChecker
	notifier     eventNotifier
	attendance   AttendanceReader
	validator    *validator.Validate
	logger       *zap.Logger
	academicYear string
	now          func() time.Time
}

// NewLeaveService constructs LeaveService. notifier may be nil when event
// emission is disabled.
func NewLeaveService(repo leaveStore, policies policyEngine, balances balanceChecker, notifier eventNotifier, validate *validator.Validate, logger *zap.Logger, academicYear string) *LeaveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaveService{
		repo:         repo,
		policies:     policies,
		balances:     balances,
		notifier:     notifier,
		validator:    validate,
		logger:       logger,
		academicYear: academicYear,
		now:          time.Now,
	}
}

// WithAttendanceReader wires the optional attendance source used to enforce a
// policy's minimum attendance percentage. Without one the check is skipped.
func (s *LeaveService) WithAttendanceReader(reader AttendanceReader) *LeaveService {
	s.attendance = reader
	return s
}

// Apply validates and persists a new pending leave application. Balance is
// checked read-only here; nothing is reserved until approval, so concurrent
// pending requests may validate against the same unconsumed balance.
func (s *LeaveService) Apply(ctx context.Context, claims *models.JWTClaims, req ApplyLeaveRequest) (*models.LeaveApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave request")
	}
	if !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown leave category: %s", req.Category))
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}
	requesterType, ok := models.RequesterTypeForRole(claims.Role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role has no leave entitlement")
	}

	now := s.now().UTC()
	days := models.DaysInclusive(req.StartDate, req.EndDate)

	policy, err := s.policies.GetActivePolicy(ctx, requesterType, claims.Department, s.academicYear)
	if err != nil {
		return nil, err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !policy.AllowPastDates && req.StartDate.Before(today) {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, "past-dated leave applications are not permitted")
	}

	if result := s.policies.ValidateLeaveRequest(policy, req.Category, days, len(req.Documents), req.StartDate, now); !result.Valid {
		return nil, appErrors.Clone(appErrors.ErrPolicyViolation, strings.Join(result.Errors, "; "))
	}

	if policy.MinAttendancePercent > 0 && s.attendance != nil {
		pct, known, err := s.attendance.AttendancePercent(ctx, claims.UserID, claims.AcademicTerm)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read attendance")
		}
		if known && pct < policy.MinAttendancePercent {
			return nil, appErrors.Clone(appErrors.ErrPolicyViolation,
				fmt.Sprintf("attendance %d%% is below the required %d%%", pct, policy.MinAttendancePercent))
		}
	}

	if policy.MaxLeavesPerMonth > 0 {
		count, err := s.repo.CountInMonth(ctx, claims.UserID, req.StartDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count monthly leaves")
		}
		if count >= policy.MaxLeavesPerMonth {
			return nil, appErrors.Clone(appErrors.ErrPolicyViolation,
				fmt.Sprintf("monthly limit of %d leave applications reached", policy.MaxLeavesPerMonth))
		}
	}

	sufficient, err := s.balances.CheckBalance(ctx, claims.UserID, s.academicYear, req.Category, days)
	if err != nil {
		return nil, err
	}
	if !sufficient {
		return nil, appErrors.Clone(appErrors.ErrInsufficientBalance,
			fmt.Sprintf("insufficient %s balance for %d days", req.Category, days))
	}

	leave := &models.LeaveApplication{
		UserID:        claims.UserID,
		RequesterType: requesterType,
		Category:      req.Category,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		NumberOfDays:  days,
		Reason:        req.Reason,
		Documents:     pq.StringArray(req.Documents),
		Status:        models.LeavePending,
		HODApproval:   models.HODApprovalPending,
		Department:    claims.Department,
		AcademicTerm:  claims.AcademicTerm,
		AcademicYear:  s.academicYear,
		AppliedAt:     now,
	}
	if err := s.repo.Create(ctx, leave); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave application")
	}
	s.emit(ctx, models.LeaveEventCreated, leave, claims.UserID)

	if policy.AutoApproveDays > 0 && days <= policy.AutoApproveDays {
		if err := s.finalizeApproval(ctx, leave, systemActorID, "auto-approved within policy threshold"); err != nil {
			// Auto-approval losing the balance race leaves the application
			// pending for a human decision rather than failing the apply.
			s.logger.Warn("auto-approval skipped",
				zap.String("leave_id", leave.ID),
				zap.Error(err))
		} else {
			s.emit(ctx, models.LeaveEventApproved, leave, systemActorID)
		}
	}
	return leave, nil
}

// Get returns one application, visible to its owner, an HOD of the same
// department, or a superadmin.
func (s *LeaveService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.LeaveApplication, error) {
	leave, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(claims, leave) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this leave application")
	}
	return leave, nil
}

// GetMyLeaves lists the caller's own applications.
func (s *LeaveService) GetMyLeaves(ctx context.Context, claims *models.JWTClaims, filter models.LeaveFilter) ([]models.LeaveApplication, *models.Pagination, error) {
	filter.UserID = claims.UserID
	return s.list(ctx, filter)
}

// GetPendingLeaves lists pending applications in the caller's review scope.
// HODs see their own department; superadmins see everything.
func (s *LeaveService) GetPendingLeaves(ctx context.Context, claims *models.JWTClaims, filter models.LeaveFilter) ([]models.LeaveApplication, *models.Pagination, error) {
	filter.Status = models.LeavePending
	if claims.Role == models.RoleHOD {
		filter.Department = claims.Department
	}
	return s.list(ctx, filter)
}

// Approve transitions a pending application to approved and charges the
// ledger. The status flip lands first under a pending guard; if the deduction
// then fails the status is rolled back to pending and the deduction error is
// surfaced, so approved always implies deducted.
func (s *LeaveService) Approve(ctx context.Context, claims *models.JWTClaims, id, remarks string) (*models.LeaveApplication, error) {
	leave, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeDecision(claims, leave); err != nil {
		return nil, err
	}
	if leave.Status != models.LeavePending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot approve a %s application", leave.Status))
	}

	if err := s.finalizeApproval(ctx, leave, claims.UserID, remarks); err != nil {
		return nil, err
	}
	if claims.Role == models.RoleHOD {
		if err := s.repo.SetHODApproval(ctx, leave.ID, models.HODApprovalApproved); err != nil {
			s.logger.Warn("failed to record hod approval marker",
				zap.String("leave_id", leave.ID),
				zap.Error(err))
		} else {
			leave.HODApproval = models.HODApprovalApproved
		}
	}
	s.emit(ctx, models.LeaveEventApproved, leave, claims.UserID)
	return leave, nil
}

// finalizeApproval flips pending to approved, then deducts the balance for
// tracked categories, compensating the status back to pending when the
// deduction fails. Mutates leave in place on success.
func (s *LeaveService) finalizeApproval(ctx context.Context, leave *models.LeaveApplication, actorID, remarks string) error {
	decidedAt := s.now().UTC()
	var remarksPtr *string
	if remarks != "" {
		remarksPtr = &remarks
	}
	err := s.repo.UpdateStatus(ctx, repository.UpdateLeaveStatusParams{
		ID:         leave.ID,
		Expected:   models.LeavePending,
		Status:     models.LeaveApproved,
		ApproverID: &actorID,
		DecidedAt:  &decidedAt,
		Remarks:    remarksPtr,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "leave application was already decided")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve leave")
	}

	if err := s.balances.DeductLeave(ctx, leave.UserID, leave.AcademicYear, leave.Category, leave.NumberOfDays); err != nil {
		rollbackErr := s.repo.UpdateStatus(ctx, repository.UpdateLeaveStatusParams{
			ID:       leave.ID,
			Expected: models.LeaveApproved,
			Status:   models.LeavePending,
		})
		if rollbackErr != nil {
			s.logger.Error("failed to roll back approval after deduction failure",
				zap.String("leave_id", leave.ID),
				zap.NamedError("deduction_error", err),
				zap.Error(rollbackErr))
		}
		return err
	}

	leave.Status = models.LeaveApproved
	leave.ApproverID = &actorID
	leave.DecidedAt = &decidedAt
	leave.Remarks = remarksPtr
	return nil
}

// Reject transitions a pending application to rejected. Requires a reason.
func (s *LeaveService) Reject(ctx context.Context, claims *models.JWTClaims, id, reason string) (*models.LeaveApplication, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	leave, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeDecision(claims, leave); err != nil {
		return nil, err
	}
	if leave.Status != models.LeavePending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot reject a %s application", leave.Status))
	}

	decidedAt := s.now().UTC()
	err = s.repo.UpdateStatus(ctx, repository.UpdateLeaveStatusParams{
		ID:              leave.ID,
		Expected:        models.LeavePending,
		Status:          models.LeaveRejected,
		ApproverID:      &claims.UserID,
		DecidedAt:       &decidedAt,
		RejectionReason: &reason,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "leave application was already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject leave")
	}
	leave.Status = models.LeaveRejected
	leave.ApproverID = &claims.UserID
	leave.DecidedAt = &decidedAt
	leave.RejectionReason = &reason

	if claims.Role == models.RoleHOD {
		if err := s.repo.SetHODApproval(ctx, leave.ID, models.HODApprovalRejected); err != nil {
			s.logger.Warn("failed to record hod rejection marker",
				zap.String("leave_id", leave.ID),
				zap.Error(err))
		} else {
			leave.HODApproval = models.HODApprovalRejected
		}
	}
	s.emit(ctx, models.LeaveEventRejected, leave, claims.UserID)
	return leave, nil
}

// Cancel lets the owner withdraw a pending application. Approved leaves
// cannot be self-cancelled; their balance was already consumed.
func (s *LeaveService) Cancel(ctx context.Context, claims *models.JWTClaims, id string) (*models.LeaveApplication, error) {
	leave, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if leave.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner may cancel a leave application")
	}
	if leave.Status != models.LeavePending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot cancel a %s application", leave.Status))
	}

	decidedAt := s.now().UTC()
	err = s.repo.UpdateStatus(ctx, repository.UpdateLeaveStatusParams{
		ID:        leave.ID,
		Expected:  models.LeavePending,
		Status:    models.LeaveCancelled,
		DecidedAt: &decidedAt,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "leave application was already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel leave")
	}
	leave.Status = models.LeaveCancelled
	leave.DecidedAt = &decidedAt

	s.emit(ctx, models.LeaveEventCancelled, leave, claims.UserID)
	return leave, nil
}

// Update edits a pending application's request fields. Policy and balance are
// not re-validated here; re-validation happens at the next approval attempt.
func (s *LeaveService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateLeaveRequest) (*models.LeaveApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave patch")
	}
	leave, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if leave.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner may edit a leave application")
	}
	if leave.Status != models.LeavePending {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("cannot edit a %s application", leave.Status))
	}

	if req.Category != "" {
		if !req.Category.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown leave category: %s", req.Category))
		}
		leave.Category = req.Category
	}
	if req.StartDate != nil {
		leave.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		leave.EndDate = *req.EndDate
	}
	if leave.EndDate.Before(leave.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}
	leave.NumberOfDays = models.DaysInclusive(leave.StartDate, leave.EndDate)
	if req.Reason != "" {
		leave.Reason = req.Reason
	}
	if req.Documents != nil {
		leave.Documents = pq.StringArray(req.Documents)
	}

	err = s.repo.UpdateRequest(ctx, repository.UpdateRequestParams{
		ID:           leave.ID,
		Category:     leave.Category,
		StartDate:    leave.StartDate,
		EndDate:      leave.EndDate,
		NumberOfDays: leave.NumberOfDays,
		Reason:       leave.Reason,
		Documents:    leave.Documents,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "leave application was already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update leave")
	}
	s.emit(ctx, models.LeaveEventUpdated, leave, claims.UserID)
	return leave, nil
}

// GetStatistics groups applications by status. HODs are scoped to their own
// department.
func (s *LeaveService) GetStatistics(ctx context.Context, claims *models.JWTClaims, filter models.LeaveFilter) (*models.LeaveStatistics, error) {
	if claims.Role == models.RoleHOD {
		filter.Department = claims.Department
	}
	buckets, err := s.repo.Statistics(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load statistics")
	}
	return &models.LeaveStatistics{Buckets: buckets}, nil
}

func (s *LeaveService) find(ctx context.Context, id string) (*models.LeaveApplication, error) {
	leave, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave application")
	}
	return leave, nil
}

func (s *LeaveService) list(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveApplication, *models.Pagination, error) {
	leaves, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return leaves, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *LeaveService) emit(ctx context.Context, eventType models.LeaveEventType, leave *models.LeaveApplication, actorID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, models.LeaveEvent{
		Type:       eventType,
		LeaveID:    leave.ID,
		UserID:     leave.UserID,
		ActorID:    actorID,
		Category:   leave.Category,
		Status:     leave.Status,
		Department: leave.Department,
		OccurredAt: s.now().UTC(),
	})
}

// authorizeDecision checks that the actor may decide this application. HODs
// are limited to their own department and may not decide their own requests.
func authorizeDecision(claims *models.JWTClaims, leave *models.LeaveApplication) error {
	switch claims.Role {
	case models.RoleSuperAdmin:
		return nil
	case models.RoleHOD:
		if leave.Department != claims.Department {
			return appErrors.Clone(appErrors.ErrForbidden, "cannot decide leave applications outside your department")
		}
		if leave.UserID == claims.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "cannot decide your own leave application")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "role is not allowed to decide leave applications")
	}
}

func canView(claims *models.JWTClaims, leave *models.LeaveApplication) bool {
	if leave.UserID == claims.UserID {
		return true
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
		return true
	case models.RoleHOD:
		return leave.Department == claims.Department
	}
	return false
}
