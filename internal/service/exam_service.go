package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
)

// ExamService covers exam authoring and the student view of an exam.
type ExamService interface {
	Create(ctx context.Context, principal policy.Principal, req dto.ExamCreateRequest) (dto.ExamResponse, error)
	List(ctx context.Context, principal policy.Principal, req dto.ExamListRequest) ([]dto.ExamResponse, error)
	Get(ctx context.Context, principal policy.Principal, id uint) (dto.ExamResponse, error)
	Delete(ctx context.Context, principal policy.Principal, id uint) error
	ListForStudent(ctx context.Context, principal policy.Principal) ([]dto.StudentExamSummary, error)
	Paper(ctx context.Context, principal policy.Principal, id uint) (dto.PaperResponse, error)
	Start(ctx context.Context, principal policy.Principal, id uint) (dto.AttemptResponse, error)
}

type examService struct {
	exams     repository.ExamRepository
	attempts  repository.AttemptRepository
	students  repository.StudentRepository
	classes   repository.ClassRepository
	monitor   MonitorPublisher
	activity  ActivityRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExamService constructs the exam service. monitor and activity may be nil.
func NewExamService(exams repository.ExamRepository, attempts repository.AttemptRepository, students repository.StudentRepository, classes repository.ClassRepository, monitor MonitorPublisher, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) ExamService {
	return &examService{
		exams:     exams,
		attempts:  attempts,
		students:  students,
		classes:   classes,
		monitor:   monitor,
		activity:  activity,
		validator: validate,
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "exam_service").Logger(),
		now:       time.Now,
	}
}

func (s *examService) Create(ctx context.Context, principal policy.Principal, req dto.ExamCreateRequest) (dto.ExamResponse, error) {
	if err := policy.Precheck(principal, policy.ExamAuthor); err != nil {
		return dto.ExamResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ExamResponse{}, err
	}
	if err := s.checkClassAndSubject(ctx, principal.SchoolID, req.ClassID, req.SubjectID); err != nil {
		return dto.ExamResponse{}, err
	}

	exam := models.Exam{
		SchoolID:        principal.SchoolID,
		TeacherID:       principal.TeacherID,
		ClassID:         req.ClassID,
		SubjectID:       req.SubjectID,
		Title:           strings.TrimSpace(req.Title),
		Instructions:    s.sanitizer.Sanitize(req.Instructions),
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		DurationMinutes: req.DurationMinutes,
	}

	for index, input := range req.Questions {
		question := models.Question{
			Type:          models.QuestionType(input.Type),
			Text:          s.sanitizer.Sanitize(input.Text),
			CorrectAnswer: strings.TrimSpace(input.CorrectAnswer),
			Points:        input.Points,
			Position:      input.Position,
		}
		if question.Position == 0 {
			question.Position = index + 1
		}
		if len(input.Options) > 0 {
			encoded, err := json.Marshal(input.Options)
			if err != nil {
				return dto.ExamResponse{}, err
			}
			question.Options = datatypes.JSON(encoded)
		}
		exam.Questions = append(exam.Questions, question)
	}

	if err := s.exams.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	examID := exam.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      principal,
		Action:     "exam.create",
		EntityType: "exam",
		EntityID:   &examID,
		Metadata:   map[string]interface{}{"title": exam.Title, "questions": len(exam.Questions)},
	})

	return dto.NewExamResponse(exam), nil
}

func (s *examService) checkClassAndSubject(ctx context.Context, schoolID uint, classID, subjectID *uint) error {
	if classID != nil {
		class, err := s.classes.GetClass(ctx, *classID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClassNotFound
			}
			return err
		}
		if class.SchoolID != schoolID {
			return ErrClassNotFound
		}
	}
	if subjectID != nil {
		subject, err := s.classes.GetSubject(ctx, *subjectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubjectNotFound
			}
			return err
		}
		if subject.SchoolID != schoolID {
			return ErrSubjectNotFound
		}
	}
	return nil
}

func (s *examService) List(ctx context.Context, principal policy.Principal, req dto.ExamListRequest) ([]dto.ExamResponse, error) {
	if err := policy.Evaluate(principal, policy.DirectoryRead, principal.Own()); err != nil {
		return nil, err
	}

	filter := repository.ExamFilter{
		SchoolID:  principal.SchoolID,
		ClassID:   req.ClassID,
		SubjectID: req.SubjectID,
	}
	if req.Mine || principal.Role == models.RoleTeacher {
		teacherID := principal.TeacherID
		filter.TeacherID = &teacherID
	}

	exams, err := s.exams.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ExamResponse, 0, len(exams))
	for _, exam := range exams {
		responses = append(responses, dto.NewExamResponse(exam))
	}
	return responses, nil
}

func (s *examService) Get(ctx context.Context, principal policy.Principal, id uint) (dto.ExamResponse, error) {
	exam, err := loadExam(ctx, s.exams, id, true)
	if err != nil {
		return dto.ExamResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.ExamManage, examResource(exam)); err != nil {
		return dto.ExamResponse{}, err
	}
	return dto.NewExamResponse(exam), nil
}

func (s *examService) Delete(ctx context.Context, principal policy.Principal, id uint) error {
	exam, err := loadExam(ctx, s.exams, id, false)
	if err != nil {
		return err
	}
	if err := policy.Evaluate(principal, policy.ExamManage, examResource(exam)); err != nil {
		return err
	}
	if err := s.exams.Delete(ctx, exam.ID); err != nil {
		return err
	}

	examID := exam.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      principal,
		Action:     "exam.delete",
		EntityType: "exam",
		EntityID:   &examID,
		Metadata:   map[string]interface{}{"title": exam.Title},
	})
	return nil
}

// ListForStudent returns the exams of the student's class plus school-wide exams.
func (s *examService) ListForStudent(ctx context.Context, principal policy.Principal) ([]dto.StudentExamSummary, error) {
	if err := policy.Precheck(principal, policy.ExamTake); err != nil {
		return nil, err
	}
	student, err := s.studentProfile(ctx, principal)
	if err != nil {
		return nil, err
	}

	exams, err := s.exams.List(ctx, repository.ExamFilter{SchoolID: principal.SchoolID})
	if err != nil {
		return nil, err
	}

	now := s.now()
	summaries := make([]dto.StudentExamSummary, 0, len(exams))
	for _, exam := range exams {
		if exam.ClassID != nil && (student.ClassID == nil || *exam.ClassID != *student.ClassID) {
			continue
		}
		summaries = append(summaries, dto.StudentExamSummary{
			ID:              exam.ID,
			Title:           exam.Title,
			StartTime:       exam.StartTime,
			EndTime:         exam.EndTime,
			DurationMinutes: exam.DurationMinutes,
			Open:            exam.IsOpen(now),
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].StartTime.Before(summaries[j].StartTime)
	})
	return summaries, nil
}

func (s *examService) Paper(ctx context.Context, principal policy.Principal, id uint) (dto.PaperResponse, error) {
	exam, err := s.openExamForStudent(ctx, principal, id)
	if err != nil {
		return dto.PaperResponse{}, err
	}
	return dto.NewPaperResponse(exam), nil
}

func (s *examService) Start(ctx context.Context, principal policy.Principal, id uint) (dto.AttemptResponse, error) {
	exam, err := s.openExamForStudent(ctx, principal, id)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	submitted, err := s.attempts.HasResult(ctx, principal.StudentID, exam.ID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	if submitted {
		return dto.AttemptResponse{}, ErrAlreadySubmitted
	}

	attempt, err := s.attempts.Start(ctx, principal.StudentID, exam.ID, s.now().UTC())
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	if s.monitor != nil {
		s.monitor.Publish(ctx, dto.MonitorEvent{
			Type:       dto.MonitorAttemptStarted,
			ExamID:     exam.ID,
			StudentID:  principal.StudentID,
			OccurredAt: attempt.StartedAt,
		})
	}

	return dto.NewAttemptResponse(attempt), nil
}

func (s *examService) openExamForStudent(ctx context.Context, principal policy.Principal, id uint) (models.Exam, error) {
	if err := policy.Precheck(principal, policy.ExamTake); err != nil {
		return models.Exam{}, err
	}
	if principal.StudentID == 0 {
		return models.Exam{}, ErrStudentProfileMissing
	}

	exam, err := loadExam(ctx, s.exams, id, true)
	if err != nil {
		return models.Exam{}, err
	}
	if err := policy.Evaluate(principal, policy.ExamTake, examResource(exam)); err != nil {
		return models.Exam{}, err
	}

	now := s.now()
	if examClosed(exam, now) {
		return models.Exam{}, ErrExamEnded
	}
	if !exam.IsOpen(now) {
		return models.Exam{}, ErrExamNotOpen
	}
	return exam, nil
}

func (s *examService) studentProfile(ctx context.Context, principal policy.Principal) (models.Student, error) {
	if principal.StudentID == 0 {
		return models.Student{}, ErrStudentProfileMissing
	}
	student, err := s.students.GetByID(ctx, principal.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, ErrStudentProfileMissing
		}
		return models.Student{}, err
	}
	return student, nil
}

func loadExam(ctx context.Context, exams repository.ExamRepository, id uint, withQuestions bool) (models.Exam, error) {
	var (
		exam models.Exam
		err  error
	)
	if withQuestions {
		exam, err = exams.GetWithQuestions(ctx, id)
	} else {
		exam, err = exams.GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Exam{}, ErrExamNotFound
		}
		return models.Exam{}, err
	}
	return exam, nil
}

func examResource(exam models.Exam) policy.Resource {
	return policy.Resource{SchoolID: exam.SchoolID, TeacherID: exam.TeacherID}
}

// examClosed reports whether submissions are no longer accepted. A manually completed exam is
// closed even before its scheduled end.
func examClosed(exam models.Exam, now time.Time) bool {
	return exam.HasEnded(now) || (exam.ManualControl && exam.IsCompleted)
}
