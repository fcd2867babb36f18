package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/observability"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
)

// SchoolService lets super admins review tenants.
type SchoolService interface {
	List(ctx context.Context, principal policy.Principal, req dto.SchoolListRequest) (dto.SchoolListResponse, error)
	Get(ctx context.Context, principal policy.Principal, id uint) (dto.SchoolResponse, error)
	Approve(ctx context.Context, principal policy.Principal, id uint) (dto.SchoolResponse, error)
	Suspend(ctx context.Context, principal policy.Principal, id uint) (dto.SchoolResponse, error)
}

type schoolService struct {
	schools   repository.SchoolRepository
	users     repository.UserRepository
	notifier  Notifier
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSchoolService constructs the school review service.
func NewSchoolService(schools repository.SchoolRepository, users repository.UserRepository, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) SchoolService {
	return &schoolService{
		schools:   schools,
		users:     users,
		notifier:  notifier,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "school_service").Logger(),
	}
}

var schoolTransitions = map[models.SchoolStatus][]models.SchoolStatus{
	models.SchoolStatusApproved:  {models.SchoolStatusPending, models.SchoolStatusSuspended},
	models.SchoolStatusSuspended: {models.SchoolStatusApproved},
}

func (s *schoolService) List(ctx context.Context, principal policy.Principal, req dto.SchoolListRequest) (dto.SchoolListResponse, error) {
	if err := policy.Precheck(principal, policy.SchoolReview); err != nil {
		return dto.SchoolListResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SchoolListResponse{}, err
	}

	schools, total, err := s.schools.List(ctx, repository.SchoolFilter{
		Status:   req.Status,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return dto.SchoolListResponse{}, err
	}

	items := make([]dto.SchoolResponse, 0, len(schools))
	for _, school := range schools {
		items = append(items, dto.NewSchoolResponse(school))
	}
	return dto.SchoolListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *schoolService) Get(ctx context.Context, principal policy.Principal, id uint) (dto.SchoolResponse, error) {
	school, err := s.load(ctx, id)
	if err != nil {
		return dto.SchoolResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.SchoolRead, policy.Resource{SchoolID: school.ID}); err != nil {
		return dto.SchoolResponse{}, err
	}
	return dto.NewSchoolResponse(school), nil
}

func (s *schoolService) Approve(ctx context.Context, principal policy.Principal, id uint) (dto.SchoolResponse, error) {
	return s.setStatus(ctx, principal, id, models.SchoolStatusApproved)
}

func (s *schoolService) Suspend(ctx context.Context, principal policy.Principal, id uint) (dto.SchoolResponse, error) {
	return s.setStatus(ctx, principal, id, models.SchoolStatusSuspended)
}

func (s *schoolService) setStatus(ctx context.Context, principal policy.Principal, id uint, target models.SchoolStatus) (dto.SchoolResponse, error) {
	if err := policy.Precheck(principal, policy.SchoolReview); err != nil {
		return dto.SchoolResponse{}, err
	}

	school, err := s.load(ctx, id)
	if err != nil {
		return dto.SchoolResponse{}, err
	}

	allowed := false
	for _, from := range schoolTransitions[target] {
		if school.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return dto.SchoolResponse{}, fmt.Errorf("%w: %s school cannot become %s", ErrSchoolStatus, school.Status, target)
	}

	updated, err := s.schools.UpdateStatus(ctx, school.ID, target)
	if err != nil {
		return dto.SchoolResponse{}, err
	}

	schoolID := updated.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      principal,
		Action:     "school." + string(target),
		EntityType: "school",
		EntityID:   &schoolID,
		Metadata:   map[string]interface{}{"from": string(school.Status), "to": string(target)},
	})

	if s.notifier != nil {
		admins, err := s.users.ListBySchoolAndRole(ctx, updated.ID, models.RoleSchoolAdmin)
		if err != nil {
			observability.Logger(ctx, s.logger).Warn().Err(err).Msg("school review notice skipped")
		}
		for _, admin := range admins {
			s.notifier.Notify(ctx, admin.ID, NotificationSchoolReviewed, fmt.Sprintf("%s is now %s.", updated.Name, updated.Status))
		}
	}

	return dto.NewSchoolResponse(updated), nil
}

func (s *schoolService) load(ctx context.Context, id uint) (models.School, error) {
	school, err := s.schools.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.School{}, ErrSchoolNotFound
		}
		return models.School{}, err
	}
	return school, nil
}
