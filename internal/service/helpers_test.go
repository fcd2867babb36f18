package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
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

func ptrUint(v uint) *uint {
	return &v
}

type sentNotification struct {
	UserID  uint
	Kind    string
	Message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Notify(ctx context.Context, userID uint, kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{UserID: userID, Kind: kind, Message: message})
}

func (r *recordingNotifier) to(userID uint) []sentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentNotification
	for _, item := range r.sent {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out
}

type recordingMonitor struct {
	mu     sync.Mutex
	events []dto.MonitorEvent
}

func (r *recordingMonitor) Publish(ctx context.Context, event dto.MonitorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingMonitor) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type)
	}
	return out
}

type countingInvalidator struct {
	calls []uint
}

func (c *countingInvalidator) InvalidateStats(ctx context.Context, examID uint) {
	c.calls = append(c.calls, examID)
}

// schoolFixture is one approved school with an admin, a teacher, a class, a subject and
// two students in that class.
type schoolFixture struct {
	school   models.School
	admin    models.User
	teacher  models.Teacher
	class    models.Class
	subject  models.Subject
	studentA models.Student
	studentB models.Student
}

func (f schoolFixture) adminPrincipal() policy.Principal {
	return policy.Principal{UserID: f.admin.ID, Role: models.RoleSchoolAdmin, SchoolID: f.school.ID}
}

func (f schoolFixture) teacherPrincipal() policy.Principal {
	return policy.Principal{UserID: f.teacher.UserID, Role: models.RoleTeacher, SchoolID: f.school.ID, TeacherID: f.teacher.ID}
}

func (f schoolFixture) studentPrincipal(student models.Student) policy.Principal {
	return policy.Principal{UserID: student.UserID, Role: models.RoleStudent, SchoolID: f.school.ID, StudentID: student.ID}
}

func seedSchool(t *testing.T, db *gorm.DB, name string) schoolFixture {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	school := models.School{Name: name, Slug: "school-" + suffix, Email: "office-" + suffix + "@school.test", Status: models.SchoolStatusApproved}
	admin := models.User{Name: name + " Admin", Email: "admin-" + suffix + "@school.test", PasswordHash: "x", Role: models.RoleSchoolAdmin}
	require.NoError(t, repository.NewSchoolRepository(db).RegisterWithAdmin(ctx, &school, &admin))

	class := models.Class{SchoolID: school.ID, Name: "JSS 2A"}
	classes := repository.NewClassRepository(db)
	require.NoError(t, classes.CreateClass(ctx, &class))
	subject := models.Subject{SchoolID: school.ID, Name: "Mathematics", Code: "MTH"}
	require.NoError(t, classes.CreateSubject(ctx, &subject))

	teacher := models.Teacher{
		SchoolID: school.ID,
		User:     models.User{SchoolID: &school.ID, Name: "Mr Okafor", Email: "teacher-" + suffix + "@school.test", PasswordHash: "x", Role: models.RoleTeacher},
	}
	require.NoError(t, repository.NewTeacherRepository(db).CreateWithUser(ctx, &teacher))

	students := repository.NewStudentRepository(db)
	newStudent := func(label string) models.Student {
		student := models.Student{
			SchoolID: school.ID,
			ClassID:  &class.ID,
			User:     models.User{SchoolID: &school.ID, Name: "Student " + label, Email: label + "-" + suffix + "@school.test", PasswordHash: "x", Role: models.RoleStudent},
		}
		require.NoError(t, students.CreateWithUser(ctx, &student))
		return student
	}

	return schoolFixture{
		school:   school,
		admin:    admin,
		teacher:  teacher,
		class:    class,
		subject:  subject,
		studentA: newStudent("a"),
		studentB: newStudent("b"),
	}
}

// seedOpenExam creates a scheduled exam open around now with two auto-graded questions
// worth 10 and 20 points.
func seedOpenExam(t *testing.T, db *gorm.DB, fx schoolFixture) models.Exam {
	t.Helper()
	now := time.Now().UTC()
	exam := models.Exam{
		SchoolID:        fx.school.ID,
		TeacherID:       fx.teacher.ID,
		ClassID:         &fx.class.ID,
		SubjectID:       &fx.subject.ID,
		Title:           "Algebra",
		StartTime:       now.Add(-time.Hour),
		EndTime:         now.Add(time.Hour),
		DurationMinutes: 60,
		Questions: []models.Question{
			{Type: models.QuestionMultipleChoice, Text: "2+2", CorrectAnswer: "4", Points: 10, Position: 1},
			{Type: models.QuestionTrueFalse, Text: "The sky is blue", CorrectAnswer: "true", Points: 20, Position: 2},
		},
	}
	require.NoError(t, repository.NewExamRepository(db).Create(context.Background(), &exam))
	return exam
}
