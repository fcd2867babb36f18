package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/observability"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
	"github.com/noah-isme/cbt-go-api/internal/scoring"
)

// ExamSubmissionService accepts a student's final answers and grades them.
type ExamSubmissionService interface {
	Submit(ctx context.Context, principal policy.Principal, examID uint, req dto.ExamSubmitRequest) (dto.SubmissionResultResponse, error)
}

type examSubmissionService struct {
	exams     repository.ExamRepository
	attempts  repository.AttemptRepository
	stats     StatsInvalidator
	monitor   MonitorPublisher
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewExamSubmissionService constructs the submission service. stats and monitor may be nil.
func NewExamSubmissionService(exams repository.ExamRepository, attempts repository.AttemptRepository, stats StatsInvalidator, monitor MonitorPublisher, validate *validator.Validate, logger zerolog.Logger) ExamSubmissionService {
	return &examSubmissionService{
		exams:     exams,
		attempts:  attempts,
		stats:     stats,
		monitor:   monitor,
		validator: validate,
		logger:    logger.With().Str("component", "exam_submission_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/cbt-go-api/internal/service/exam_submission"),
		now:       time.Now,
	}
}

func (s *examSubmissionService) Submit(ctx context.Context, principal policy.Principal, examID uint, req dto.ExamSubmitRequest) (dto.SubmissionResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "exam.submit", trace.WithAttributes(
		attribute.Int64("exam.id", int64(examID)),
		attribute.Int64("student.id", int64(principal.StudentID)),
	))
	defer span.End()

	result, err := s.submit(ctx, principal, examID, req)
	if err != nil {
		observability.ExamSubmissions().WithLabelValues(submissionOutcome(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.SubmissionResultResponse{}, err
	}

	observability.ExamSubmissions().WithLabelValues("accepted").Inc()
	observability.ExamScorePercentage().Observe(float64(result.Percentage))

	if s.stats != nil {
		s.stats.InvalidateStats(ctx, examID)
	}
	if s.monitor != nil {
		percentage := result.Percentage
		s.monitor.Publish(ctx, dto.MonitorEvent{
			Type:       dto.MonitorAttemptSubmitted,
			ExamID:     examID,
			StudentID:  principal.StudentID,
			Percentage: &percentage,
			OccurredAt: result.GradedAt,
		})
	}

	observability.Logger(ctx, s.logger).Info().
		Uint("exam_id", examID).
		Uint("student_id", principal.StudentID).
		Int("percentage", result.Percentage).
		Msg("exam submitted")

	return dto.SubmissionResultResponse{
		Score:       result.Score,
		TotalPoints: result.TotalPoints,
		Percentage:  result.Percentage,
	}, nil
}

func (s *examSubmissionService) submit(ctx context.Context, principal policy.Principal, examID uint, req dto.ExamSubmitRequest) (models.Result, error) {
	if err := policy.Precheck(principal, policy.ExamSubmit); err != nil {
		return models.Result{}, err
	}
	if principal.StudentID == 0 {
		return models.Result{}, ErrStudentProfileMissing
	}
	if err := s.validator.Struct(req); err != nil {
		return models.Result{}, err
	}

	exam, err := loadExam(ctx, s.exams, examID, true)
	if err != nil {
		return models.Result{}, err
	}
	if err := policy.Evaluate(principal, policy.ExamSubmit, examResource(exam)); err != nil {
		return models.Result{}, err
	}

	now := s.now().UTC()
	if examClosed(exam, now) {
		return models.Result{}, ErrExamEnded
	}
	if !exam.IsOpen(now) {
		return models.Result{}, ErrExamNotOpen
	}

	submitted, err := s.attempts.HasResult(ctx, principal.StudentID, exam.ID)
	if err != nil {
		return models.Result{}, err
	}
	if submitted {
		return models.Result{}, ErrAlreadySubmitted
	}

	answers, err := answerInputs(exam.Questions, req.Answers)
	if err != nil {
		return models.Result{}, err
	}

	questions := exam.Questions
	grade := func(stored []models.Answer) models.Result {
		outcome := scoring.Calculate(questions, stored)
		return models.Result{
			Score:       outcome.Score,
			TotalPoints: outcome.TotalPoints,
			Percentage:  outcome.Percentage(),
			GradedAt:    now,
		}
	}

	result, err := s.attempts.Submit(ctx, repository.SubmissionInput{
		StudentID:   principal.StudentID,
		ExamID:      exam.ID,
		Answers:     answers,
		SubmittedAt: now,
	}, grade)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Result{}, ErrAlreadySubmitted
		}
		return models.Result{}, fmt.Errorf("persist submission: %w", err)
	}
	return result, nil
}

// answerInputs converts the request map into repository inputs, rejecting ids that are not
// questions of the exam. Output is ordered by question id.
func answerInputs(questions []models.Question, answers map[string]json.RawMessage) ([]repository.AnswerInput, error) {
	known := make(map[uint]struct{}, len(questions))
	for _, question := range questions {
		known[question.ID] = struct{}{}
	}

	inputs := make([]repository.AnswerInput, 0, len(answers))
	for key, raw := range answers {
		id, err := strconv.ParseUint(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid question id %q", ErrUnknownQuestion, key)
		}
		if _, ok := known[uint(id)]; !ok {
			return nil, fmt.Errorf("%w: question %d", ErrUnknownQuestion, id)
		}
		response := datatypes.JSON("null")
		if len(raw) > 0 {
			response = datatypes.JSON(raw)
		}
		inputs = append(inputs, repository.AnswerInput{QuestionID: uint(id), Response: response})
	}

	sort.Slice(inputs, func(i, j int) bool { return inputs[i].QuestionID < inputs[j].QuestionID })
	return inputs, nil
}

func submissionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadySubmitted):
		return "duplicate"
	case errors.Is(err, ErrExamEnded):
		return "late"
	case errors.Is(err, policy.ErrForbidden), errors.Is(err, policy.ErrUnauthenticated):
		return "forbidden"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound):
		return "rejected"
	default:
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return "rejected"
		}
		return "error"
	}
}
