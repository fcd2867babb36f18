package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/observability"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
)

// ExamControlService lets the owning teacher or a school admin reset attempts and drive the
// exam lifecycle by hand.
type ExamControlService interface {
	Reset(ctx context.Context, principal policy.Principal, examID uint, req dto.ExamResetRequest) (dto.ExamResetResponse, error)
	Control(ctx context.Context, principal policy.Principal, examID uint, req dto.ExamControlRequest) (dto.ExamResponse, error)
}

type examControlService struct {
	exams     repository.ExamRepository
	attempts  repository.AttemptRepository
	stats     StatsInvalidator
	monitor   MonitorPublisher
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewExamControlService constructs the exam control service. stats, monitor and activity may be nil.
func NewExamControlService(exams repository.ExamRepository, attempts repository.AttemptRepository, stats StatsInvalidator, monitor MonitorPublisher, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) ExamControlService {
	return &examControlService{
		exams:     exams,
		attempts:  attempts,
		stats:     stats,
		monitor:   monitor,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "exam_control_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/cbt-go-api/internal/service/exam_control"),
		now:       time.Now,
	}
}

func (s *examControlService) Reset(ctx context.Context, principal policy.Principal, examID uint, req dto.ExamResetRequest) (dto.ExamResetResponse, error) {
	scope := "student"
	if req.ResetAll {
		scope = "all"
	}

	ctx, span := s.tracer.Start(ctx, "exam.reset", trace.WithAttributes(
		attribute.Int64("exam.id", int64(examID)),
		attribute.String("reset.scope", scope),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.ExamResetResponse{}, err
	}

	exam, err := loadExam(ctx, s.exams, examID, false)
	if err != nil {
		return dto.ExamResetResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.ExamManage, examResource(exam)); err != nil {
		return dto.ExamResetResponse{}, err
	}

	resetScope := repository.ResetScope{ExamID: exam.ID}
	if !req.ResetAll {
		resetScope.StudentID = req.StudentID
	}

	counts, err := s.attempts.Reset(ctx, resetScope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.ExamResetResponse{}, fmt.Errorf("reset attempts: %w", err)
	}

	observability.ExamResets().WithLabelValues(scope).Inc()
	if s.stats != nil {
		s.stats.InvalidateStats(ctx, exam.ID)
	}

	response := dto.ExamResetResponse{
		ExamID:    exam.ID,
		StudentID: resetScope.StudentID,
		Deleted: dto.DeletedCounts{
			Attempts: counts.Attempts,
			Answers:  counts.Answers,
			Results:  counts.Results,
		},
	}

	if s.monitor != nil {
		event := dto.MonitorEvent{
			Type:       dto.MonitorAttemptsReset,
			ExamID:     exam.ID,
			Data:       map[string]interface{}{"results": counts.Results, "attempts": counts.Attempts},
			OccurredAt: s.now().UTC(),
		}
		if resetScope.StudentID != nil {
			event.StudentID = *resetScope.StudentID
		}
		s.monitor.Publish(ctx, event)
	}

	entityID := exam.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      principal,
		Action:     "exam.reset",
		EntityType: "exam",
		EntityID:   &entityID,
		Metadata: map[string]interface{}{
			"scope":    scope,
			"results":  counts.Results,
			"answers":  counts.Answers,
			"attempts": counts.Attempts,
		},
	})

	return response, nil
}

func (s *examControlService) Control(ctx context.Context, principal policy.Principal, examID uint, req dto.ExamControlRequest) (dto.ExamResponse, error) {
	response, err := s.control(ctx, principal, examID, req)
	outcome := "applied"
	if err != nil {
		outcome = "refused"
	}
	observability.ExamControlActions().WithLabelValues(req.Action, outcome).Inc()
	return response, err
}

func (s *examControlService) control(ctx context.Context, principal policy.Principal, examID uint, req dto.ExamControlRequest) (dto.ExamResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ExamResponse{}, err
	}

	exam, err := loadExam(ctx, s.exams, examID, false)
	if err != nil {
		return dto.ExamResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.ExamManage, examResource(exam)); err != nil {
		return dto.ExamResponse{}, err
	}

	var flags map[string]interface{}
	switch req.Action {
	case dto.ExamActionMakeLive:
		// The count and the update are separate statements; a student starting in between
		// is accepted.
		started, err := s.exams.CountAttempts(ctx, exam.ID, models.AttemptInProgress, models.AttemptSubmitted)
		if err != nil {
			return dto.ExamResponse{}, err
		}
		if started > 0 {
			return dto.ExamResponse{}, ErrAttemptsInProgress
		}
		flags = map[string]interface{}{"is_live": true, "is_completed": false, "manual_control": true}
	case dto.ExamActionMakeCompleted:
		flags = map[string]interface{}{"is_live": false, "is_completed": true, "manual_control": true}
	case dto.ExamActionToggleManualControl:
		enabled := !exam.ManualControl
		if req.ManualControl != nil {
			enabled = *req.ManualControl
		}
		flags = map[string]interface{}{"manual_control": enabled}
		if !enabled {
			flags["is_live"] = false
			flags["is_completed"] = false
		}
	default:
		return dto.ExamResponse{}, kindError(ErrInvalidInput, fmt.Sprintf("unknown action %q", req.Action))
	}

	if err := s.exams.UpdateFlags(ctx, exam.ID, flags); err != nil {
		return dto.ExamResponse{}, err
	}

	updated, err := loadExam(ctx, s.exams, exam.ID, true)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	if s.monitor != nil {
		s.monitor.Publish(ctx, dto.MonitorEvent{
			Type:   dto.MonitorExamControl,
			ExamID: updated.ID,
			Data: map[string]interface{}{
				"action":         req.Action,
				"is_live":        updated.IsLive,
				"is_completed":   updated.IsCompleted,
				"manual_control": updated.ManualControl,
			},
			OccurredAt: s.now().UTC(),
		})
	}

	entityID := updated.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      principal,
		Action:     "exam." + req.Action,
		EntityType: "exam",
		EntityID:   &entityID,
	})

	return dto.NewExamResponse(updated), nil
}
