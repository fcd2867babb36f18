package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/observability"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
	"github.com/noah-isme/cbt-go-api/internal/workflow"
)

// AcademicResultService drives term results through DRAFT, SUBMITTED, APPROVED and PUBLISHED.
type AcademicResultService interface {
	Create(ctx context.Context, principal policy.Principal, req dto.AcademicResultCreateRequest) (dto.AcademicResultResponse, error)
	Update(ctx context.Context, principal policy.Principal, id uint, req dto.AcademicResultUpdateRequest) (dto.AcademicResultResponse, error)
	Submit(ctx context.Context, principal policy.Principal, req dto.AcademicResultIDsRequest) (dto.TransitionResponse, error)
	Approve(ctx context.Context, principal policy.Principal, id uint, req dto.AcademicResultApproveRequest) (dto.AcademicResultResponse, error)
	Reject(ctx context.Context, principal policy.Principal, id uint, req dto.AcademicResultRejectRequest) (dto.AcademicResultResponse, error)
	Publish(ctx context.Context, principal policy.Principal, req dto.AcademicResultPublishRequest) (dto.TransitionResponse, error)
	List(ctx context.Context, principal policy.Principal, req dto.AcademicResultListRequest) ([]dto.AcademicResultResponse, error)
	ListForStudent(ctx context.Context, principal policy.Principal, req dto.AcademicResultListRequest) ([]dto.AcademicResultResponse, error)
}

type academicResultService struct {
	results   repository.AcademicResultRepository
	students  repository.StudentRepository
	teachers  repository.TeacherRepository
	classes   repository.ClassRepository
	notifier  Notifier
	activity  ActivityRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAcademicResultService constructs the approval pipeline. notifier and activity may be nil.
func NewAcademicResultService(results repository.AcademicResultRepository, students repository.StudentRepository, teachers repository.TeacherRepository, classes repository.ClassRepository, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) AcademicResultService {
	return &academicResultService{
		results:   results,
		students:  students,
		teachers:  teachers,
		classes:   classes,
		notifier:  notifier,
		activity:  activity,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "academic_result_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/cbt-go-api/internal/service/academic_result"),
		now:       time.Now,
	}
}

func (s *academicResultService) Create(ctx context.Context, principal policy.Principal, req dto.AcademicResultCreateRequest) (dto.AcademicResultResponse, error) {
	if err := policy.Precheck(principal, policy.ResultAuthor); err != nil {
		return dto.AcademicResultResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.AcademicResultResponse{}, err
	}

	student, err := s.students.GetByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AcademicResultResponse{}, ErrStudentNotFound
		}
		return dto.AcademicResultResponse{}, err
	}
	if student.SchoolID != principal.SchoolID {
		return dto.AcademicResultResponse{}, ErrStudentNotFound
	}
	if err := s.checkScope(ctx, principal.SchoolID, req.ClassID, req.SubjectID); err != nil {
		return dto.AcademicResultResponse{}, err
	}

	total := totalScore(req.CAScore, req.ExamScore)
	result := models.AcademicResult{
		SchoolID:       principal.SchoolID,
		TeacherID:      principal.TeacherID,
		StudentID:      req.StudentID,
		SubjectID:      req.SubjectID,
		ClassID:        req.ClassID,
		Term:           req.Term,
		Session:        req.Session,
		CAScore:        req.CAScore,
		ExamScore:      req.ExamScore,
		TotalScore:     total,
		Grade:          models.GradeFor(total),
		TeacherComment: s.clean(req.TeacherComment),
		Status:         workflow.ResultDraft,
	}

	if err := s.results.Create(ctx, &result); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.AcademicResultResponse{}, ErrDuplicateAcademicResult
		}
		return dto.AcademicResultResponse{}, err
	}

	return s.reload(ctx, result.ID)
}

func (s *academicResultService) checkScope(ctx context.Context, schoolID, classID, subjectID uint) error {
	class, err := s.classes.GetClass(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClassNotFound
		}
		return err
	}
	if class.SchoolID != schoolID {
		return ErrClassNotFound
	}
	subject, err := s.classes.GetSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubjectNotFound
		}
		return err
	}
	if subject.SchoolID != schoolID {
		return ErrSubjectNotFound
	}
	return nil
}

func (s *academicResultService) Update(ctx context.Context, principal policy.Principal, id uint, req dto.AcademicResultUpdateRequest) (dto.AcademicResultResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AcademicResultResponse{}, err
	}

	result, err := s.load(ctx, id)
	if err != nil {
		return dto.AcademicResultResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.ResultAuthor, resultResource(result)); err != nil {
		return dto.AcademicResultResponse{}, err
	}
	if !result.Status.Editable() {
		return dto.AcademicResultResponse{}, &workflow.TransitionError{Entity: "academic result", From: string(result.Status), Action: "edit"}
	}

	if req.CAScore != nil {
		result.CAScore = *req.CAScore
	}
	if req.ExamScore != nil {
		result.ExamScore = *req.ExamScore
	}
	if req.TeacherComment != nil {
		result.TeacherComment = s.clean(*req.TeacherComment)
	}
	result.TotalScore = totalScore(result.CAScore, result.ExamScore)
	result.Grade = models.GradeFor(result.TotalScore)

	if err := s.results.UpdateScores(ctx, &result); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return dto.AcademicResultResponse{}, ErrConcurrentChange
		}
		return dto.AcademicResultResponse{}, err
	}

	return s.reload(ctx, result.ID)
}

// Submit moves the author's drafts to SUBMITTED. One row in the wrong state or owned by someone
// else fails the whole batch.
func (s *academicResultService) Submit(ctx context.Context, principal policy.Principal, req dto.AcademicResultIDsRequest) (dto.TransitionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TransitionResponse{}, err
	}

	ids := uniqueIDs(req.IDs)
	rows, err := s.loadBatch(ctx, ids)
	if err != nil {
		return dto.TransitionResponse{}, err
	}
	for _, row := range rows {
		if err := policy.Evaluate(principal, policy.ResultAuthor, resultResource(row)); err != nil {
			return dto.TransitionResponse{}, err
		}
	}

	now := s.now().UTC()
	next, err := s.transition(ctx, workflow.ResultSubmit, rows, map[string]interface{}{
		"submitted_at":     now,
		"rejection_reason": "",
	})
	if err != nil {
		return dto.TransitionResponse{}, err
	}

	s.recordBatch(ctx, principal, "academic_results.submit", ids)
	return dto.TransitionResponse{Status: string(next), Affected: len(ids), IDs: ids}, nil
}

func (s *academicResultService) Approve(ctx context.Context, principal policy.Principal, id uint, req dto.AcademicResultApproveRequest) (dto.AcademicResultResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AcademicResultResponse{}, err
	}

	result, err := s.load(ctx, id)
	if err != nil {
		return dto.AcademicResultResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.ResultReview, resultResource(result)); err != nil {
		return dto.AcademicResultResponse{}, err
	}

	approver := principal.UserID
	updates := map[string]interface{}{
		"approved_by": approver,
		"approved_at": s.now().UTC(),
	}
	if comment := s.clean(req.Comment); comment != "" {
		updates["admin_comment"] = comment
	}
	if _, err := s.transition(ctx, workflow.ResultApprove, []models.AcademicResult{result}, updates); err != nil {
		return dto.AcademicResultResponse{}, err
	}

	s.recordBatch(ctx, principal, "academic_results.approve", []uint{result.ID})
	return s.reload(ctx, result.ID)
}

// Reject sends a submitted row back to DRAFT so the author can correct it.
func (s *academicResultService) Reject(ctx context.Context, principal policy.Principal, id uint, req dto.AcademicResultRejectRequest) (dto.AcademicResultResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AcademicResultResponse{}, err
	}

	result, err := s.load(ctx, id)
	if err != nil {
		return dto.AcademicResultResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.ResultReview, resultResource(result)); err != nil {
		return dto.AcademicResultResponse{}, err
	}

	reason := s.clean(req.Reason)
	if _, err := s.transition(ctx, workflow.ResultReject, []models.AcademicResult{result}, map[string]interface{}{
		"rejection_reason": reason,
		"submitted_at":     nil,
	}); err != nil {
		return dto.AcademicResultResponse{}, err
	}

	s.recordBatch(ctx, principal, "academic_results.reject", []uint{result.ID})

	if s.notifier != nil {
		if teacher, err := s.teachers.GetByID(ctx, result.TeacherID); err == nil {
			s.notifier.Notify(ctx, teacher.UserID, NotificationResultRejected,
				fmt.Sprintf("Result #%d (%s term, %s) was returned: %s", result.ID, result.Term, result.Session, reason))
		} else {
			observability.Logger(ctx, s.logger).Warn().Err(err).Uint("teacher_id", result.TeacherID).Msg("rejection notice skipped")
		}
	}

	return s.reload(ctx, result.ID)
}

// Publish releases approved rows to students, either an explicit id list (all must be APPROVED)
// or every APPROVED row of a class, term and session.
func (s *academicResultService) Publish(ctx context.Context, principal policy.Principal, req dto.AcademicResultPublishRequest) (dto.TransitionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.TransitionResponse{}, err
	}

	var rows []models.AcademicResult
	if len(req.IDs) > 0 {
		var err error
		rows, err = s.loadBatch(ctx, uniqueIDs(req.IDs))
		if err != nil {
			return dto.TransitionResponse{}, err
		}
		for _, row := range rows {
			if err := policy.Evaluate(principal, policy.ResultReview, resultResource(row)); err != nil {
				return dto.TransitionResponse{}, err
			}
		}
	} else {
		if req.ClassID == nil || req.Term == "" || req.Session == "" {
			return dto.TransitionResponse{}, kindError(ErrInvalidInput, "class_id, term and session are required when ids are not given")
		}
		class, err := s.classes.GetClass(ctx, *req.ClassID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.TransitionResponse{}, ErrClassNotFound
			}
			return dto.TransitionResponse{}, err
		}
		if err := policy.Evaluate(principal, policy.ResultReview, policy.Resource{SchoolID: class.SchoolID}); err != nil {
			return dto.TransitionResponse{}, err
		}
		rows, err = s.results.List(ctx, repository.AcademicResultFilter{
			SchoolID: class.SchoolID,
			ClassID:  req.ClassID,
			Term:     req.Term,
			Session:  req.Session,
			Statuses: []workflow.ResultStatus{workflow.ResultApproved},
		})
		if err != nil {
			return dto.TransitionResponse{}, err
		}
		if len(rows) == 0 {
			return dto.TransitionResponse{}, ErrNothingToPublish
		}
	}

	next, err := s.transition(ctx, workflow.ResultPublish, rows, map[string]interface{}{
		"published_at": s.now().UTC(),
	})
	if err != nil {
		return dto.TransitionResponse{}, err
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	s.recordBatch(ctx, principal, "academic_results.publish", ids)
	s.notifyPublished(ctx, rows)

	return dto.TransitionResponse{Status: string(next), Affected: len(ids), IDs: ids}, nil
}

func (s *academicResultService) notifyPublished(ctx context.Context, rows []models.AcademicResult) {
	if s.notifier == nil {
		return
	}

	studentIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		studentIDs = append(studentIDs, row.StudentID)
	}
	students, err := s.students.ListByIDs(ctx, uniqueIDs(studentIDs))
	if err != nil {
		observability.Logger(ctx, s.logger).Warn().Err(err).Msg("publish notices skipped")
		return
	}
	for _, student := range students {
		s.notifier.Notify(ctx, student.UserID, NotificationResultsPublished, "New academic results have been published.")
	}
}

func (s *academicResultService) List(ctx context.Context, principal policy.Principal, req dto.AcademicResultListRequest) ([]dto.AcademicResultResponse, error) {
	if principal.Role == models.RoleStudent {
		return nil, policy.ErrForbidden
	}
	if err := policy.Precheck(principal, policy.ResultRead); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	filter := listFilter(req)
	filter.SchoolID = principal.SchoolID
	if principal.Role == models.RoleTeacher {
		teacherID := principal.TeacherID
		filter.TeacherID = &teacherID
	}

	results, err := s.results.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewAcademicResultResponseSlice(results), nil
}

// ListForStudent returns the caller's own results, PUBLISHED only.
func (s *academicResultService) ListForStudent(ctx context.Context, principal policy.Principal, req dto.AcademicResultListRequest) ([]dto.AcademicResultResponse, error) {
	if principal.Role != models.RoleStudent {
		return nil, policy.ErrForbidden
	}
	if err := policy.Precheck(principal, policy.ResultRead); err != nil {
		return nil, err
	}
	if principal.StudentID == 0 {
		return nil, ErrStudentProfileMissing
	}

	req.Status = ""
	filter := listFilter(req)
	studentID := principal.StudentID
	filter.SchoolID = principal.SchoolID
	filter.StudentID = &studentID
	filter.Statuses = []workflow.ResultStatus{workflow.ResultPublished}

	results, err := s.results.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewAcademicResultResponseSlice(results), nil
}

// transition validates every row against the table, then applies one guarded update. The
// guard turns a concurrent change between the read and the write into ErrConcurrentChange.
func (s *academicResultService) transition(ctx context.Context, action workflow.ResultAction, rows []models.AcademicResult, updates map[string]interface{}) (workflow.ResultStatus, error) {
	ctx, span := s.tracer.Start(ctx, "academic_results."+string(action), trace.WithAttributes(
		attribute.Int("academic_results.count", len(rows)),
	))
	defer span.End()

	fail := func(err error) (workflow.ResultStatus, error) {
		observability.WorkflowTransitions().WithLabelValues("academic_result", string(action), "rejected").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var next workflow.ResultStatus
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		to, err := workflow.NextResultStatus(row.Status, action)
		if err != nil {
			return fail(fmt.Errorf("result %d: %w", row.ID, err))
		}
		next = to
		ids = append(ids, row.ID)
	}

	updates["status"] = next
	if err := s.results.Transition(ctx, ids, workflow.ResultSources(action), updates); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return fail(ErrConcurrentChange)
		}
		return fail(err)
	}

	observability.WorkflowTransitions().WithLabelValues("academic_result", string(action), "applied").Inc()
	return next, nil
}

func (s *academicResultService) load(ctx context.Context, id uint) (models.AcademicResult, error) {
	result, err := s.results.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AcademicResult{}, ErrAcademicResultNotFound
		}
		return models.AcademicResult{}, err
	}
	return result, nil
}

func (s *academicResultService) reload(ctx context.Context, id uint) (dto.AcademicResultResponse, error) {
	result, err := s.load(ctx, id)
	if err != nil {
		return dto.AcademicResultResponse{}, err
	}
	return dto.NewAcademicResultResponse(result), nil
}

func (s *academicResultService) loadBatch(ctx context.Context, ids []uint) ([]models.AcademicResult, error) {
	rows, err := s.results.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(rows) != len(ids) {
		found := make(map[uint]struct{}, len(rows))
		for _, row := range rows {
			found[row.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return nil, fmt.Errorf("%w: id %d", ErrAcademicResultNotFound, id)
			}
		}
	}
	return rows, nil
}

func (s *academicResultService) recordBatch(ctx context.Context, principal policy.Principal, action string, ids []uint) {
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      principal,
		Action:     action,
		EntityType: "academic_result",
		Metadata:   map[string]interface{}{"ids": ids, "count": len(ids)},
	})
}

func (s *academicResultService) clean(value string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(value))
}

func resultResource(result models.AcademicResult) policy.Resource {
	return policy.Resource{SchoolID: result.SchoolID, TeacherID: result.TeacherID, StudentID: result.StudentID}
}

func listFilter(req dto.AcademicResultListRequest) repository.AcademicResultFilter {
	filter := repository.AcademicResultFilter{
		ClassID:   req.ClassID,
		SubjectID: req.SubjectID,
		StudentID: req.StudentID,
		Term:      req.Term,
		Session:   req.Session,
	}
	if req.Status != "" {
		filter.Statuses = []workflow.ResultStatus{workflow.ResultStatus(req.Status)}
	}
	return filter
}

func totalScore(ca, exam float64) float64 {
	return math.Round((ca+exam)*100) / 100
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
