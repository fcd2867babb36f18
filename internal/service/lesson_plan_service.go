package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/observability"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
	"github.com/noah-isme/cbt-go-api/internal/workflow"
)

// MaxAttachmentSize bounds lesson plan attachments.
const MaxAttachmentSize = 10 << 20

var allowedAttachmentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"image/png",
	"image/jpeg",
	"text/plain",
}

// FileUploader stores a file and returns its public URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// LessonPlanService manages lesson plan authoring and review.
type LessonPlanService interface {
	Create(ctx context.Context, principal policy.Principal, req dto.LessonPlanCreateRequest, file *multipart.FileHeader) (dto.LessonPlanResponse, error)
	Update(ctx context.Context, principal policy.Principal, id uint, req dto.LessonPlanUpdateRequest, file *multipart.FileHeader) (dto.LessonPlanResponse, error)
	Submit(ctx context.Context, principal policy.Principal, id uint) (dto.LessonPlanResponse, error)
	Review(ctx context.Context, principal policy.Principal, id uint, req dto.LessonPlanReviewRequest) (dto.LessonPlanResponse, error)
	Get(ctx context.Context, principal policy.Principal, id uint) (dto.LessonPlanResponse, error)
	List(ctx context.Context, principal policy.Principal, req dto.LessonPlanListRequest) ([]dto.LessonPlanResponse, error)
}

type lessonPlanService struct {
	plans     repository.LessonPlanRepository
	teachers  repository.TeacherRepository
	classes   repository.ClassRepository
	uploader  FileUploader
	notifier  Notifier
	activity  ActivityRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewLessonPlanService constructs the lesson plan service. Without an uploader attachments are
// refused; notifier and activity may be nil.
func NewLessonPlanService(plans repository.LessonPlanRepository, teachers repository.TeacherRepository, classes repository.ClassRepository, uploader FileUploader, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) LessonPlanService {
	return &lessonPlanService{
		plans:     plans,
		teachers:  teachers,
		classes:   classes,
		uploader:  uploader,
		notifier:  notifier,
		activity:  activity,
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "lesson_plan_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/cbt-go-api/internal/service/lesson_plan"),
		now:       time.Now,
	}
}

func (s *lessonPlanService) Create(ctx context.Context, principal policy.Principal, req dto.LessonPlanCreateRequest, file *multipart.FileHeader) (dto.LessonPlanResponse, error) {
	if err := policy.Precheck(principal, policy.LessonPlanAuthor); err != nil {
		return dto.LessonPlanResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.LessonPlanResponse{}, err
	}
	if err := s.checkScope(ctx, principal.SchoolID, req.ClassID, req.SubjectID); err != nil {
		return dto.LessonPlanResponse{}, err
	}

	plan := models.LessonPlan{
		SchoolID:   principal.SchoolID,
		TeacherID:  principal.TeacherID,
		SubjectID:  req.SubjectID,
		ClassID:    req.ClassID,
		Title:      strings.TrimSpace(req.Title),
		Term:       req.Term,
		Session:    req.Session,
		Week:       req.Week,
		Objectives: s.sanitizer.Sanitize(req.Objectives),
		Content:    s.sanitizer.Sanitize(req.Content),
		Status:     workflow.LessonPlanDraft,
	}

	if file != nil {
		url, err := s.upload(ctx, file)
		if err != nil {
			return dto.LessonPlanResponse{}, err
		}
		plan.AttachmentURL = url
	}

	if err := s.plans.Create(ctx, &plan); err != nil {
		return dto.LessonPlanResponse{}, err
	}

	planID := plan.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      principal,
		Action:     "lesson_plan.create",
		EntityType: "lesson_plan",
		EntityID:   &planID,
		Metadata:   map[string]interface{}{"title": plan.Title, "week": plan.Week},
	})

	return dto.NewLessonPlanResponse(plan), nil
}

func (s *lessonPlanService) Update(ctx context.Context, principal policy.Principal, id uint, req dto.LessonPlanUpdateRequest, file *multipart.FileHeader) (dto.LessonPlanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LessonPlanResponse{}, err
	}

	plan, err := s.load(ctx, id)
	if err != nil {
		return dto.LessonPlanResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.LessonPlanAuthor, planResource(plan)); err != nil {
		return dto.LessonPlanResponse{}, err
	}
	if !plan.Status.Editable() {
		return dto.LessonPlanResponse{}, &workflow.TransitionError{Entity: "lesson plan", From: string(plan.Status), Action: "edit"}
	}

	if req.Title != nil {
		plan.Title = strings.TrimSpace(*req.Title)
	}
	if req.Week != nil {
		plan.Week = *req.Week
	}
	if req.Objectives != nil {
		plan.Objectives = s.sanitizer.Sanitize(*req.Objectives)
	}
	if req.Content != nil {
		plan.Content = s.sanitizer.Sanitize(*req.Content)
	}
	if file != nil {
		url, err := s.upload(ctx, file)
		if err != nil {
			return dto.LessonPlanResponse{}, err
		}
		plan.AttachmentURL = url
	}

	if err := s.plans.UpdateContent(ctx, &plan); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return dto.LessonPlanResponse{}, ErrConcurrentChange
		}
		return dto.LessonPlanResponse{}, err
	}

	return s.reload(ctx, plan.ID)
}

func (s *lessonPlanService) Submit(ctx context.Context, principal policy.Principal, id uint) (dto.LessonPlanResponse, error) {
	plan, err := s.load(ctx, id)
	if err != nil {
		return dto.LessonPlanResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.LessonPlanAuthor, planResource(plan)); err != nil {
		return dto.LessonPlanResponse{}, err
	}

	if err := s.transition(ctx, plan, workflow.LessonPlanSubmit, map[string]interface{}{
		"submitted_at": s.now().UTC(),
	}); err != nil {
		return dto.LessonPlanResponse{}, err
	}

	planID := plan.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      principal,
		Action:     "lesson_plan.submit",
		EntityType: "lesson_plan",
		EntityID:   &planID,
	})

	return s.reload(ctx, plan.ID)
}

func (s *lessonPlanService) Review(ctx context.Context, principal policy.Principal, id uint, req dto.LessonPlanReviewRequest) (dto.LessonPlanResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LessonPlanResponse{}, err
	}

	plan, err := s.load(ctx, id)
	if err != nil {
		return dto.LessonPlanResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.LessonPlanReview, planResource(plan)); err != nil {
		return dto.LessonPlanResponse{}, err
	}

	action := workflow.LessonPlanAction(req.Action)
	if !action.IsReviewAction() {
		return dto.LessonPlanResponse{}, kindError(ErrInvalidInput, fmt.Sprintf("unknown review action %q", req.Action))
	}

	reviewer := principal.UserID
	comment := strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(req.Comment))
	if err := s.transition(ctx, plan, action, map[string]interface{}{
		"reviewer_id":    reviewer,
		"reviewed_at":    s.now().UTC(),
		"review_comment": comment,
	}); err != nil {
		return dto.LessonPlanResponse{}, err
	}

	planID := plan.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      principal,
		Action:     "lesson_plan." + req.Action,
		EntityType: "lesson_plan",
		EntityID:   &planID,
	})

	updated, err := s.reload(ctx, plan.ID)
	if err != nil {
		return dto.LessonPlanResponse{}, err
	}

	if s.notifier != nil {
		if teacher, err := s.teachers.GetByID(ctx, plan.TeacherID); err == nil {
			s.notifier.Notify(ctx, teacher.UserID, NotificationLessonPlanReviewed,
				fmt.Sprintf("Lesson plan %q is now %s.", plan.Title, updated.Status))
		} else {
			observability.Logger(ctx, s.logger).Warn().Err(err).Uint("teacher_id", plan.TeacherID).Msg("review notice skipped")
		}
	}

	return updated, nil
}

func (s *lessonPlanService) Get(ctx context.Context, principal policy.Principal, id uint) (dto.LessonPlanResponse, error) {
	plan, err := s.load(ctx, id)
	if err != nil {
		return dto.LessonPlanResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.LessonPlanRead, planResource(plan)); err != nil {
		return dto.LessonPlanResponse{}, err
	}
	return dto.NewLessonPlanResponse(plan), nil
}

// List shows teachers their own plans and admins every plan of the school.
func (s *lessonPlanService) List(ctx context.Context, principal policy.Principal, req dto.LessonPlanListRequest) ([]dto.LessonPlanResponse, error) {
	if err := policy.Precheck(principal, policy.LessonPlanRead); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	filter := repository.LessonPlanFilter{
		SchoolID:  principal.SchoolID,
		SubjectID: req.SubjectID,
		ClassID:   req.ClassID,
		Term:      req.Term,
		Session:   req.Session,
		Status:    req.Status,
	}
	if principal.Role == models.RoleTeacher {
		teacherID := principal.TeacherID
		filter.TeacherID = &teacherID
	}

	plans, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.LessonPlanResponse, 0, len(plans))
	for _, plan := range plans {
		responses = append(responses, dto.NewLessonPlanResponse(plan))
	}
	return responses, nil
}

func (s *lessonPlanService) transition(ctx context.Context, plan models.LessonPlan, action workflow.LessonPlanAction, updates map[string]interface{}) error {
	ctx, span := s.tracer.Start(ctx, "lesson_plans."+string(action), trace.WithAttributes(
		attribute.Int64("lesson_plan.id", int64(plan.ID)),
	))
	defer span.End()

	next, err := workflow.NextLessonPlanStatus(plan.Status, action)
	if err != nil {
		observability.WorkflowTransitions().WithLabelValues("lesson_plan", string(action), "rejected").Inc()
		span.RecordError(err)
		return err
	}

	updates["status"] = next
	if err := s.plans.Transition(ctx, plan.ID, workflow.LessonPlanSources(action), updates); err != nil {
		observability.WorkflowTransitions().WithLabelValues("lesson_plan", string(action), "rejected").Inc()
		span.RecordError(err)
		if errors.Is(err, repository.ErrStaleState) {
			return ErrConcurrentChange
		}
		return err
	}

	observability.WorkflowTransitions().WithLabelValues("lesson_plan", string(action), "applied").Inc()
	return nil
}

func (s *lessonPlanService) upload(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if s.uploader == nil {
		return "", kindError(ErrInvalidInput, "attachments are not enabled")
	}
	if file.Size > MaxAttachmentSize {
		return "", kindError(ErrInvalidInput, "attachment exceeds 10MB")
	}
	if err := validateAttachment(file); err != nil {
		return "", err
	}

	reader, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	url, err := s.uploader.Upload(ctx, file.Filename, reader)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return url, nil
}

func validateAttachment(file *multipart.FileHeader) error {
	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	for _, allowed := range allowedAttachmentTypes {
		if mime.Is(allowed) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrAttachmentType, mime.String())
}

func (s *lessonPlanService) checkScope(ctx context.Context, schoolID, classID, subjectID uint) error {
	class, err := s.classes.GetClass(ctx, classID)
	if err != nil || class.SchoolID != schoolID {
		if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		return err
	}
	subject, err := s.classes.GetSubject(ctx, subjectID)
	if err != nil || subject.SchoolID != schoolID {
		if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubjectNotFound
		}
		return err
	}
	return nil
}

func (s *lessonPlanService) load(ctx context.Context, id uint) (models.LessonPlan, error) {
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.LessonPlan{}, ErrLessonPlanNotFound
		}
		return models.LessonPlan{}, err
	}
	return plan, nil
}

func (s *lessonPlanService) reload(ctx context.Context, id uint) (dto.LessonPlanResponse, error) {
	plan, err := s.load(ctx, id)
	if err != nil {
		return dto.LessonPlanResponse{}, err
	}
	return dto.NewLessonPlanResponse(plan), nil
}

func planResource(plan models.LessonPlan) policy.Resource {
	return policy.Resource{SchoolID: plan.SchoolID, TeacherID: plan.TeacherID}
}
