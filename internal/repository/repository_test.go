package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/workflow"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type examFixture struct {
	school    models.School
	exam      models.Exam
	studentA  models.Student
	studentB  models.Student
	questions []models.Question
}

func seedExam(t *testing.T, db *gorm.DB) examFixture {
	t.Helper()
	school := models.School{Name: "Hill Top", Slug: "hill-top-" + uuid.NewString()[:8], Email: "office@hilltop.test", Status: models.SchoolStatusApproved}
	require.NoError(t, db.Create(&school).Error)

	newStudent := func(email string) models.Student {
		student := models.Student{
			SchoolID: school.ID,
			User:     models.User{SchoolID: &school.ID, Name: email, Email: email, PasswordHash: "x", Role: models.RoleStudent},
		}
		require.NoError(t, NewStudentRepository(db).CreateWithUser(context.Background(), &student))
		return student
	}

	now := time.Now().UTC()
	exam := models.Exam{
		SchoolID:        school.ID,
		TeacherID:       1,
		Title:           "Algebra",
		StartTime:       now.Add(-time.Hour),
		EndTime:         now.Add(time.Hour),
		DurationMinutes: 60,
		Questions: []models.Question{
			{Type: models.QuestionMultipleChoice, Text: "2+2", CorrectAnswer: "4", Points: 10, Position: 1},
			{Type: models.QuestionTrueFalse, Text: "sky is blue", CorrectAnswer: "true", Points: 20, Position: 2},
		},
	}
	require.NoError(t, db.Create(&exam).Error)

	return examFixture{
		school:    school,
		exam:      exam,
		studentA:  newStudent("a@student.test"),
		studentB:  newStudent("b@student.test"),
		questions: exam.Questions,
	}
}

func fullMarks(answers []models.Answer) models.Result {
	return models.Result{Score: float64(len(answers)), TotalPoints: 2, Percentage: len(answers) * 50}
}

func TestAttemptRepositorySubmitPersistsEverything(t *testing.T) {
	db := setupTestDB(t)
	fx := seedExam(t, db)
	repo := NewAttemptRepository(db)
	ctx := context.Background()

	_, err := repo.Start(ctx, fx.studentA.ID, fx.exam.ID, time.Now().UTC())
	require.NoError(t, err)

	result, err := repo.Submit(ctx, SubmissionInput{
		StudentID: fx.studentA.ID,
		ExamID:    fx.exam.ID,
		Answers: []AnswerInput{
			{QuestionID: fx.questions[0].ID, Response: datatypes.JSON(`"4"`)},
			{QuestionID: fx.questions[1].ID, Response: datatypes.JSON(`true`)},
		},
		SubmittedAt: time.Now().UTC(),
	}, fullMarks)
	require.NoError(t, err)
	require.NotZero(t, result.ID)
	require.Equal(t, 100, result.Percentage)

	attempt, err := repo.GetAttempt(ctx, fx.studentA.ID, fx.exam.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptSubmitted, attempt.Status)
	require.NotNil(t, attempt.SubmittedAt)

	has, err := repo.HasResult(ctx, fx.studentA.ID, fx.exam.ID)
	require.NoError(t, err)
	require.True(t, has)
}

func TestAttemptRepositorySubmitRollsBackOnDuplicateResult(t *testing.T) {
	db := setupTestDB(t)
	fx := seedExam(t, db)
	repo := NewAttemptRepository(db)
	ctx := context.Background()

	input := SubmissionInput{
		StudentID:   fx.studentA.ID,
		ExamID:      fx.exam.ID,
		Answers:     []AnswerInput{{QuestionID: fx.questions[0].ID, Response: datatypes.JSON(`"4"`)}},
		SubmittedAt: time.Now().UTC(),
	}
	_, err := repo.Submit(ctx, input, fullMarks)
	require.NoError(t, err)

	input.Answers = []AnswerInput{{QuestionID: fx.questions[1].ID, Response: datatypes.JSON(`false`)}}
	_, err = repo.Submit(ctx, input, fullMarks)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	var answers int64
	require.NoError(t, db.Model(&models.Answer{}).Where("student_id = ?", fx.studentA.ID).Count(&answers).Error)
	require.Equal(t, int64(1), answers, "second submission must not leave answers behind")

	var results int64
	require.NoError(t, db.Model(&models.Result{}).Count(&results).Error)
	require.Equal(t, int64(1), results)
}

func TestAttemptRepositoryResetScopesToExamAndStudent(t *testing.T) {
	db := setupTestDB(t)
	fx := seedExam(t, db)
	repo := NewAttemptRepository(db)
	ctx := context.Background()

	other := models.Exam{
		SchoolID: fx.school.ID, TeacherID: 1, Title: "Other", StartTime: fx.exam.StartTime, EndTime: fx.exam.EndTime, DurationMinutes: 30,
		Questions: []models.Question{{Type: models.QuestionTrueFalse, Text: "water is wet", CorrectAnswer: "true", Points: 5, Position: 1}},
	}
	require.NoError(t, db.Create(&other).Error)

	for _, student := range []models.Student{fx.studentA, fx.studentB} {
		_, err := repo.Submit(ctx, SubmissionInput{
			StudentID:   student.ID,
			ExamID:      fx.exam.ID,
			Answers:     []AnswerInput{{QuestionID: fx.questions[0].ID, Response: datatypes.JSON(`"4"`)}},
			SubmittedAt: time.Now().UTC(),
		}, fullMarks)
		require.NoError(t, err)
	}
	_, err := repo.Start(ctx, fx.studentA.ID, other.ID, time.Now().UTC())
	require.NoError(t, err)
	_, err = repo.Submit(ctx, SubmissionInput{
		StudentID:   fx.studentB.ID,
		ExamID:      other.ID,
		Answers:     []AnswerInput{{QuestionID: other.Questions[0].ID, Response: datatypes.JSON(`true`)}},
		SubmittedAt: time.Now().UTC(),
	}, fullMarks)
	require.NoError(t, err)

	counts, err := repo.Reset(ctx, ResetScope{ExamID: fx.exam.ID, StudentID: &fx.studentA.ID})
	require.NoError(t, err)
	require.Equal(t, ResetCounts{Attempts: 1, Answers: 1, Results: 1}, counts)

	has, err := repo.HasResult(ctx, fx.studentB.ID, fx.exam.ID)
	require.NoError(t, err)
	require.True(t, has, "other students keep their result")

	_, err = repo.GetAttempt(ctx, fx.studentA.ID, other.ID)
	require.NoError(t, err, "attempts on other exams are untouched")

	counts, err = repo.Reset(ctx, ResetScope{ExamID: fx.exam.ID})
	require.NoError(t, err)
	require.Equal(t, ResetCounts{Attempts: 1, Answers: 1, Results: 1}, counts)

	countFor := func(model interface{}, examID uint) int64 {
		var n int64
		require.NoError(t, db.Model(model).Where("exam_id = ?", examID).Count(&n).Error)
		return n
	}
	require.Zero(t, countFor(&models.ExamAttempt{}, fx.exam.ID))
	require.Zero(t, countFor(&models.Answer{}, fx.exam.ID))
	require.Zero(t, countFor(&models.Result{}, fx.exam.ID))

	require.Equal(t, int64(2), countFor(&models.ExamAttempt{}, other.ID), "reset-all leaves other exams alone")
	require.Equal(t, int64(1), countFor(&models.Answer{}, other.ID))
	require.Equal(t, int64(1), countFor(&models.Result{}, other.ID))
	has, err = repo.HasResult(ctx, fx.studentB.ID, other.ID)
	require.NoError(t, err)
	require.True(t, has)
}

func TestAttemptRepositoryStartIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	fx := seedExam(t, db)
	repo := NewAttemptRepository(db)
	ctx := context.Background()

	first, err := repo.Start(ctx, fx.studentA.ID, fx.exam.ID, time.Now().UTC())
	require.NoError(t, err)
	second, err := repo.Start(ctx, fx.studentA.ID, fx.exam.ID, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.WithinDuration(t, first.StartedAt, second.StartedAt, time.Millisecond)
}

func TestAcademicResultTransitionIsAllOrNothing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAcademicResultRepository(db)
	ctx := context.Background()

	rows := []models.AcademicResult{
		{SchoolID: 1, TeacherID: 1, StudentID: 1, SubjectID: 1, ClassID: 1, Term: "first", Session: "2024/2025", Status: workflow.ResultDraft},
		{SchoolID: 1, TeacherID: 1, StudentID: 2, SubjectID: 1, ClassID: 1, Term: "first", Session: "2024/2025", Status: workflow.ResultSubmitted},
	}
	for i := range rows {
		require.NoError(t, repo.Create(ctx, &rows[i]))
	}

	err := repo.Transition(ctx, []uint{rows[0].ID, rows[1].ID}, []workflow.ResultStatus{workflow.ResultDraft}, map[string]interface{}{"status": workflow.ResultSubmitted})
	require.True(t, errors.Is(err, ErrStaleState))

	reloaded, err := repo.GetByID(ctx, rows[0].ID)
	require.NoError(t, err)
	require.Equal(t, workflow.ResultDraft, reloaded.Status, "batch rolled back")

	require.NoError(t, repo.Transition(ctx, []uint{rows[0].ID}, []workflow.ResultStatus{workflow.ResultDraft}, map[string]interface{}{"status": workflow.ResultSubmitted}))
	reloaded, err = repo.GetByID(ctx, rows[0].ID)
	require.NoError(t, err)
	require.Equal(t, workflow.ResultSubmitted, reloaded.Status)
}

func TestPaymentSettleAppliesOnceAndExtendsSubscription(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	current := time.Now().UTC().Add(10 * 24 * time.Hour)
	school := models.School{Name: "Ridge", Slug: "ridge", Email: "ridge@test", Status: models.SchoolStatusApproved, SubscriptionExpiresAt: &current}
	require.NoError(t, db.Create(&school).Error)

	payment := models.Payment{SchoolID: school.ID, Reference: "CBT-1", Plan: "term", Amount: 150000, Currency: "IDR", Status: models.PaymentPending, InitiatedBy: 1}
	require.NoError(t, repo.Create(ctx, &payment))

	settledAt := time.Now().UTC()
	settled, applied, err := repo.Settle(ctx, Settlement{Reference: "CBT-1", Status: models.PaymentSuccess, SettledAt: settledAt, ExtendByDays: 30})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, models.PaymentSuccess, settled.Status)
	require.NotNil(t, settled.PaidAt)

	var reloaded models.School
	require.NoError(t, db.First(&reloaded, school.ID).Error)
	require.NotNil(t, reloaded.SubscriptionExpiresAt)
	require.WithinDuration(t, current.AddDate(0, 0, 30), *reloaded.SubscriptionExpiresAt, time.Second)

	again, applied, err := repo.Settle(ctx, Settlement{Reference: "CBT-1", Status: models.PaymentFailed, SettledAt: time.Now().UTC(), ExtendByDays: 30})
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, models.PaymentSuccess, again.Status)

	require.NoError(t, db.First(&reloaded, school.ID).Error)
	require.WithinDuration(t, current.AddDate(0, 0, 30), *reloaded.SubscriptionExpiresAt, time.Second, "no double extension")
}

func TestStudentRepositoryListFiltersBySchoolAndSearch(t *testing.T) {
	db := setupTestDB(t)
	fx := seedExam(t, db)
	repo := NewStudentRepository(db)

	students, total, err := repo.List(context.Background(), StudentFilter{SchoolID: fx.school.ID, Search: "a@student"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, students, 1)
	require.Equal(t, "a@student.test", students[0].User.Email)

	_, total, err = repo.List(context.Background(), StudentFilter{SchoolID: fx.school.ID + 1})
	require.NoError(t, err)
	require.Zero(t, total)
}
