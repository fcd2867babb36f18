package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
)

type examHarness struct {
	db         *gorm.DB
	fx         schoolFixture
	exam       models.Exam
	exams      ExamService
	submission ExamSubmissionService
	control    ExamControlService
	stats      *countingInvalidator
	monitor    *recordingMonitor
}

func newExamHarness(t *testing.T) examHarness {
	t.Helper()
	db := setupServiceDB(t)
	fx := seedSchool(t, db, "Hill Top")
	exam := seedOpenExam(t, db, fx)

	examRepo := repository.NewExamRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	stats := &countingInvalidator{}
	monitor := &recordingMonitor{}
	validate := testValidator()

	return examHarness{
		db:         db,
		fx:         fx,
		exam:       exam,
		exams:      NewExamService(examRepo, attemptRepo, repository.NewStudentRepository(db), repository.NewClassRepository(db), monitor, nil, validate, testLogger()),
		submission: NewExamSubmissionService(examRepo, attemptRepo, stats, monitor, validate, testLogger()),
		control:    NewExamControlService(examRepo, attemptRepo, stats, monitor, nil, validate, testLogger()),
		stats:      stats,
		monitor:    monitor,
	}
}

func answersFor(exam models.Exam, responses ...string) dto.ExamSubmitRequest {
	answers := map[string]json.RawMessage{}
	for i, response := range responses {
		if i >= len(exam.Questions) {
			break
		}
		answers[fmt.Sprint(exam.Questions[i].ID)] = json.RawMessage(response)
	}
	return dto.ExamSubmitRequest{Answers: answers}
}

func TestExamSubmissionGradesAndNotifiesMonitor(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()
	student := h.fx.studentPrincipal(h.fx.studentA)

	_, err := h.exams.Start(ctx, student, h.exam.ID)
	require.NoError(t, err)

	result, err := h.submission.Submit(ctx, student, h.exam.ID, answersFor(h.exam, `"4"`, `false`))
	require.NoError(t, err)
	require.Equal(t, float64(10), result.Score)
	require.Equal(t, float64(30), result.TotalPoints)
	require.Equal(t, 33, result.Percentage)

	require.Equal(t, []uint{h.exam.ID}, h.stats.calls)
	require.Equal(t, []string{dto.MonitorAttemptStarted, dto.MonitorAttemptSubmitted}, h.monitor.types())

	var attempt models.ExamAttempt
	require.NoError(t, h.db.Where("student_id = ? AND exam_id = ?", h.fx.studentA.ID, h.exam.ID).First(&attempt).Error)
	require.Equal(t, models.AttemptSubmitted, attempt.Status)
}

func TestExamSubmissionRejectsSecondSubmission(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()
	student := h.fx.studentPrincipal(h.fx.studentA)

	_, err := h.submission.Submit(ctx, student, h.exam.ID, answersFor(h.exam, `"4"`, `true`))
	require.NoError(t, err)

	_, err = h.submission.Submit(ctx, student, h.exam.ID, answersFor(h.exam, `"5"`, `false`))
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.ErrorIs(t, err, ErrConflict)

	var results []models.Result
	require.NoError(t, h.db.Find(&results).Error)
	require.Len(t, results, 1)
	require.Equal(t, 100, results[0].Percentage)

	_, err = h.exams.Start(ctx, student, h.exam.ID)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestExamSubmissionAfterEndIsLate(t *testing.T) {
	h := newExamHarness(t)
	h.submission.(*examSubmissionService).now = func() time.Time {
		return h.exam.EndTime.Add(time.Second)
	}

	_, err := h.submission.Submit(context.Background(), h.fx.studentPrincipal(h.fx.studentA), h.exam.ID, answersFor(h.exam, `"4"`))
	require.ErrorIs(t, err, ErrExamEnded)

	var count int64
	require.NoError(t, h.db.Model(&models.Answer{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestExamSubmissionClosedWhenManuallyCompleted(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()

	_, err := h.control.Control(ctx, h.fx.teacherPrincipal(), h.exam.ID, dto.ExamControlRequest{Action: dto.ExamActionMakeCompleted})
	require.NoError(t, err)

	_, err = h.submission.Submit(ctx, h.fx.studentPrincipal(h.fx.studentA), h.exam.ID, answersFor(h.exam, `"4"`))
	require.ErrorIs(t, err, ErrExamEnded)
}

func TestExamSubmissionRefusesExamNotYetOpen(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()
	student := h.fx.studentPrincipal(h.fx.studentA)

	start := time.Now().UTC().Add(time.Hour)
	require.NoError(t, h.db.Model(&models.Exam{}).Where("id = ?", h.exam.ID).Updates(map[string]interface{}{
		"start_time": start,
		"end_time":   start.Add(time.Hour),
	}).Error)

	_, err := h.exams.Start(ctx, student, h.exam.ID)
	require.ErrorIs(t, err, ErrExamNotOpen)
	_, err = h.submission.Submit(ctx, student, h.exam.ID, answersFor(h.exam, `"4"`, `true`))
	require.ErrorIs(t, err, ErrExamNotOpen)

	require.NoError(t, h.db.Model(&models.Exam{}).Where("id = ?", h.exam.ID).Updates(map[string]interface{}{
		"start_time": time.Now().UTC().Add(-time.Hour),
		"end_time":   time.Now().UTC().Add(time.Hour),
	}).Error)
	on := true
	manual, err := h.control.Control(ctx, h.fx.teacherPrincipal(), h.exam.ID, dto.ExamControlRequest{Action: dto.ExamActionToggleManualControl, ManualControl: &on})
	require.NoError(t, err)
	require.True(t, manual.ManualControl)
	require.False(t, manual.IsLive)

	_, err = h.submission.Submit(ctx, student, h.exam.ID, answersFor(h.exam, `"4"`, `true`))
	require.ErrorIs(t, err, ErrExamNotOpen, "manual control without going live keeps the exam shut")

	var count int64
	require.NoError(t, h.db.Model(&models.Result{}).Count(&count).Error)
	require.Zero(t, count)

	_, err = h.control.Control(ctx, h.fx.teacherPrincipal(), h.exam.ID, dto.ExamControlRequest{Action: dto.ExamActionMakeLive})
	require.NoError(t, err)
	_, err = h.submission.Submit(ctx, student, h.exam.ID, answersFor(h.exam, `"4"`, `true`))
	require.NoError(t, err)
}

func TestExamSubmissionRejectsForeignQuestion(t *testing.T) {
	h := newExamHarness(t)
	req := dto.ExamSubmitRequest{Answers: map[string]json.RawMessage{"999999": json.RawMessage(`"4"`)}}

	_, err := h.submission.Submit(context.Background(), h.fx.studentPrincipal(h.fx.studentA), h.exam.ID, req)
	require.ErrorIs(t, err, ErrUnknownQuestion)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestExamSubmissionRejectsOtherSchoolStudent(t *testing.T) {
	h := newExamHarness(t)
	other := seedSchool(t, h.db, "Valley View")

	_, err := h.submission.Submit(context.Background(), other.studentPrincipal(other.studentA), h.exam.ID, answersFor(h.exam, `"4"`))
	require.ErrorIs(t, err, policy.ErrForbidden)
}

func TestExamSubmissionRequiresStudentRole(t *testing.T) {
	h := newExamHarness(t)

	_, err := h.submission.Submit(context.Background(), h.fx.teacherPrincipal(), h.exam.ID, answersFor(h.exam, `"4"`))
	require.ErrorIs(t, err, policy.ErrForbidden)

	_, err = h.submission.Submit(context.Background(), policy.Principal{}, h.exam.ID, answersFor(h.exam, `"4"`))
	require.ErrorIs(t, err, policy.ErrUnauthenticated)
}

func TestExamStartRefusesExamNotYetOpen(t *testing.T) {
	h := newExamHarness(t)
	h.exams.(*examService).now = func() time.Time {
		return h.exam.StartTime.Add(-time.Minute)
	}

	_, err := h.exams.Start(context.Background(), h.fx.studentPrincipal(h.fx.studentA), h.exam.ID)
	require.ErrorIs(t, err, ErrExamNotOpen)
}

func TestExamPaperHidesAnswerKey(t *testing.T) {
	h := newExamHarness(t)

	paper, err := h.exams.Paper(context.Background(), h.fx.studentPrincipal(h.fx.studentA), h.exam.ID)
	require.NoError(t, err)
	require.Len(t, paper.Questions, 2)

	encoded, err := json.Marshal(paper)
	require.NoError(t, err)
	require.NotContains(t, string(encoded), "correct_answer")
}

func TestExamCreateSanitizesAndScopesToSchool(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()
	now := time.Now().UTC()

	req := dto.ExamCreateRequest{
		Title:           "Physics mid-term",
		Instructions:    `<p>Answer all</p><script>alert(1)</script>`,
		ClassID:         &h.fx.class.ID,
		StartTime:       now,
		EndTime:         now.Add(time.Hour),
		DurationMinutes: 45,
		Questions: []dto.QuestionInput{
			{Type: "multiple_choice", Text: "Unit of force", Options: []string{"Newton", "Joule"}, CorrectAnswer: "Newton", Points: 5},
		},
	}

	created, err := h.exams.Create(ctx, h.fx.teacherPrincipal(), req)
	require.NoError(t, err)
	require.Equal(t, "<p>Answer all</p>", created.Instructions)
	require.Equal(t, h.fx.teacher.ID, created.TeacherID)
	require.Equal(t, float64(5), created.TotalPoints)
	require.Equal(t, 1, created.Questions[0].Position)

	other := seedSchool(t, h.db, "Valley View")
	req.ClassID = &other.class.ID
	_, err = h.exams.Create(ctx, h.fx.teacherPrincipal(), req)
	require.ErrorIs(t, err, ErrClassNotFound)
}

func TestExamResetSingleStudentKeepsOthers(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()

	for _, student := range []models.Student{h.fx.studentA, h.fx.studentB} {
		_, err := h.submission.Submit(ctx, h.fx.studentPrincipal(student), h.exam.ID, answersFor(h.exam, `"4"`, `true`))
		require.NoError(t, err)
	}

	response, err := h.control.Reset(ctx, h.fx.teacherPrincipal(), h.exam.ID, dto.ExamResetRequest{StudentID: &h.fx.studentA.ID})
	require.NoError(t, err)
	require.Equal(t, int64(1), response.Deleted.Results)
	require.Equal(t, int64(2), response.Deleted.Answers)

	var remaining []models.Result
	require.NoError(t, h.db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, h.fx.studentB.ID, remaining[0].StudentID)

	_, err = h.submission.Submit(ctx, h.fx.studentPrincipal(h.fx.studentA), h.exam.ID, answersFor(h.exam, `"4"`))
	require.NoError(t, err, "reset student may sit the exam again")
}

func TestExamResetRequiresOwnership(t *testing.T) {
	h := newExamHarness(t)
	other := seedSchool(t, h.db, "Valley View")

	_, err := h.control.Reset(context.Background(), other.teacherPrincipal(), h.exam.ID, dto.ExamResetRequest{ResetAll: true})
	require.ErrorIs(t, err, policy.ErrForbidden)

	_, err = h.control.Reset(context.Background(), h.fx.adminPrincipal(), h.exam.ID, dto.ExamResetRequest{ResetAll: true})
	require.NoError(t, err)
}

func TestExamControlMakeLiveRefusedOnceStarted(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()

	live, err := h.control.Control(ctx, h.fx.teacherPrincipal(), h.exam.ID, dto.ExamControlRequest{Action: dto.ExamActionMakeLive})
	require.NoError(t, err)
	require.True(t, live.IsLive)
	require.True(t, live.ManualControl)

	_, err = h.exams.Start(ctx, h.fx.studentPrincipal(h.fx.studentA), h.exam.ID)
	require.NoError(t, err)

	_, err = h.control.Control(ctx, h.fx.teacherPrincipal(), h.exam.ID, dto.ExamControlRequest{Action: dto.ExamActionMakeLive})
	require.ErrorIs(t, err, ErrAttemptsInProgress)
}

func TestExamControlMakeCompletedIgnoresAttempts(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()

	_, err := h.exams.Start(ctx, h.fx.studentPrincipal(h.fx.studentA), h.exam.ID)
	require.NoError(t, err)

	completed, err := h.control.Control(ctx, h.fx.teacherPrincipal(), h.exam.ID, dto.ExamControlRequest{Action: dto.ExamActionMakeCompleted})
	require.NoError(t, err)
	require.True(t, completed.IsCompleted)
	require.False(t, completed.IsLive)
	require.True(t, completed.ManualControl)

	var stored models.Exam
	require.NoError(t, h.db.First(&stored, h.exam.ID).Error)
	require.True(t, stored.IsCompleted)
	require.False(t, stored.IsLive)
	require.True(t, stored.ManualControl)

	var attempt models.ExamAttempt
	require.NoError(t, h.db.Where("student_id = ? AND exam_id = ?", h.fx.studentA.ID, h.exam.ID).First(&attempt).Error)
	require.Equal(t, models.AttemptInProgress, attempt.Status)
}

func TestExamControlToggleManualClearsFlags(t *testing.T) {
	h := newExamHarness(t)
	ctx := context.Background()

	_, err := h.control.Control(ctx, h.fx.teacherPrincipal(), h.exam.ID, dto.ExamControlRequest{Action: dto.ExamActionMakeCompleted})
	require.NoError(t, err)

	off := false
	updated, err := h.control.Control(ctx, h.fx.teacherPrincipal(), h.exam.ID, dto.ExamControlRequest{Action: dto.ExamActionToggleManualControl, ManualControl: &off})
	require.NoError(t, err)
	require.False(t, updated.ManualControl)
	require.False(t, updated.IsCompleted)
	require.False(t, updated.IsLive)
}

func TestExamResultsStatsCachedUntilInvalidated(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	h := newExamHarness(t)
	ctx := context.Background()
	results := NewExamResultService(repository.NewExamRepository(h.db), repository.NewAttemptRepository(h.db), redisClient, time.Minute, testLogger())
	submission := NewExamSubmissionService(repository.NewExamRepository(h.db), repository.NewAttemptRepository(h.db), results, nil, testValidator(), testLogger())

	_, err = submission.Submit(ctx, h.fx.studentPrincipal(h.fx.studentA), h.exam.ID, answersFor(h.exam, `"4"`, `true`))
	require.NoError(t, err)

	first, err := results.Results(ctx, h.fx.teacherPrincipal(), h.exam.ID)
	require.NoError(t, err)
	require.False(t, first.Stats.CacheHit)
	require.Equal(t, 1, first.Stats.Submissions)
	require.Len(t, first.Results, 1)
	require.Equal(t, "Student a", first.Results[0].StudentName)

	second, err := results.Results(ctx, h.fx.teacherPrincipal(), h.exam.ID)
	require.NoError(t, err)
	require.True(t, second.Stats.CacheHit)

	_, err = submission.Submit(ctx, h.fx.studentPrincipal(h.fx.studentB), h.exam.ID, answersFor(h.exam, `"1"`, `false`))
	require.NoError(t, err)

	third, err := results.Results(ctx, h.fx.teacherPrincipal(), h.exam.ID)
	require.NoError(t, err)
	require.False(t, third.Stats.CacheHit)
	require.Equal(t, 2, third.Stats.Submissions)
	require.Equal(t, float64(50), third.Stats.AveragePercentage)
	require.Equal(t, float64(50), third.Stats.PassRate)

	mine, err := results.MyResult(ctx, h.fx.studentPrincipal(h.fx.studentB), h.exam.ID)
	require.NoError(t, err)
	require.Equal(t, 0, mine.Percentage)
}

func TestAggregateResults(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	empty := AggregateResults(nil, at)
	require.Zero(t, empty.Submissions)
	require.Zero(t, empty.AveragePercentage)

	stats := AggregateResults([]models.Result{{Percentage: 40}, {Percentage: 50}, {Percentage: 91}}, at)
	require.Equal(t, 3, stats.Submissions)
	require.Equal(t, 60.33, stats.AveragePercentage)
	require.Equal(t, 91, stats.HighestPercentage)
	require.Equal(t, 40, stats.LowestPercentage)
	require.Equal(t, 66.67, stats.PassRate)
	require.Equal(t, at, stats.GeneratedAt)
}
