package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
	"github.com/noah-isme/cbt-go-api/internal/workflow"
)

func newAcademicResultService(t *testing.T) (AcademicResultService, *gorm.DB, schoolFixture, *recordingNotifier) {
	t.Helper()
	db := setupServiceDB(t)
	fx := seedSchool(t, db, "Hill Top")
	notifier := &recordingNotifier{}
	activity := NewActivityService(repository.NewActivityLogRepository(db), testValidator(), testLogger())
	svc := NewAcademicResultService(
		repository.NewAcademicResultRepository(db),
		repository.NewStudentRepository(db),
		repository.NewTeacherRepository(db),
		repository.NewClassRepository(db),
		notifier,
		activity,
		testValidator(),
		testLogger(),
	)
	return svc, db, fx, notifier
}

func createResult(t *testing.T, svc AcademicResultService, fx schoolFixture, student models.Student, ca, exam float64) dto.AcademicResultResponse {
	t.Helper()
	created, err := svc.Create(context.Background(), fx.teacherPrincipal(), dto.AcademicResultCreateRequest{
		StudentID: student.ID,
		SubjectID: fx.subject.ID,
		ClassID:   fx.class.ID,
		Term:      "first",
		Session:   "2025/2026",
		CAScore:   ca,
		ExamScore: exam,
	})
	require.NoError(t, err)
	return created
}

func TestAcademicResultCreateComputesGrade(t *testing.T) {
	svc, _, fx, _ := newAcademicResultService(t)

	created := createResult(t, svc, fx, fx.studentA, 30, 42)
	require.Equal(t, float64(72), created.TotalScore)
	require.Equal(t, "A", created.Grade)
	require.Equal(t, string(workflow.ResultDraft), created.Status)
	require.Equal(t, fx.teacher.ID, created.TeacherID)

	_, err := svc.Create(context.Background(), fx.teacherPrincipal(), dto.AcademicResultCreateRequest{
		StudentID: fx.studentA.ID,
		SubjectID: fx.subject.ID,
		ClassID:   fx.class.ID,
		Term:      "first",
		Session:   "2025/2026",
		CAScore:   10,
	})
	require.ErrorIs(t, err, ErrDuplicateAcademicResult)
}

func TestAcademicResultCreateRejectsForeignStudent(t *testing.T) {
	svc, db, fx, _ := newAcademicResultService(t)
	other := seedSchool(t, db, "Valley View")

	_, err := svc.Create(context.Background(), fx.teacherPrincipal(), dto.AcademicResultCreateRequest{
		StudentID: other.studentA.ID,
		SubjectID: fx.subject.ID,
		ClassID:   fx.class.ID,
		Term:      "first",
		Session:   "2025/2026",
	})
	require.ErrorIs(t, err, ErrStudentNotFound)
}

func TestAcademicResultPipelineToPublished(t *testing.T) {
	svc, _, fx, notifier := newAcademicResultService(t)
	ctx := context.Background()

	first := createResult(t, svc, fx, fx.studentA, 20, 30)
	second := createResult(t, svc, fx, fx.studentB, 15, 20)

	submitted, err := svc.Submit(ctx, fx.teacherPrincipal(), dto.AcademicResultIDsRequest{IDs: []uint{first.ID, second.ID, first.ID}})
	require.NoError(t, err)
	require.Equal(t, string(workflow.ResultSubmitted), submitted.Status)
	require.Equal(t, 2, submitted.Affected)

	_, err = svc.Update(ctx, fx.teacherPrincipal(), first.ID, dto.AcademicResultUpdateRequest{})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition, "submitted rows are frozen")

	for _, id := range []uint{first.ID, second.ID} {
		approved, err := svc.Approve(ctx, fx.adminPrincipal(), id, dto.AcademicResultApproveRequest{Comment: "ok"})
		require.NoError(t, err)
		require.Equal(t, string(workflow.ResultApproved), approved.Status)
		require.NotNil(t, approved.ApprovedBy)
		require.Equal(t, fx.admin.ID, *approved.ApprovedBy)
	}

	student := fx.studentPrincipal(fx.studentA)
	visible, err := svc.ListForStudent(ctx, student, dto.AcademicResultListRequest{})
	require.NoError(t, err)
	require.Empty(t, visible, "approved rows stay hidden from students")

	classID := fx.class.ID
	published, err := svc.Publish(ctx, fx.adminPrincipal(), dto.AcademicResultPublishRequest{ClassID: &classID, Term: "first", Session: "2025/2026"})
	require.NoError(t, err)
	require.Equal(t, 2, published.Affected)

	visible, err = svc.ListForStudent(ctx, student, dto.AcademicResultListRequest{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, first.ID, visible[0].ID)

	require.Len(t, notifier.to(fx.studentA.UserID), 1)
	require.Equal(t, NotificationResultsPublished, notifier.to(fx.studentB.UserID)[0].Kind)

	_, err = svc.Publish(ctx, fx.adminPrincipal(), dto.AcademicResultPublishRequest{ClassID: &classID, Term: "first", Session: "2025/2026"})
	require.ErrorIs(t, err, ErrNothingToPublish)
}

func TestAcademicResultRejectReturnsToDraftAndNotifiesTeacher(t *testing.T) {
	svc, _, fx, notifier := newAcademicResultService(t)
	ctx := context.Background()

	created := createResult(t, svc, fx, fx.studentA, 20, 30)
	_, err := svc.Submit(ctx, fx.teacherPrincipal(), dto.AcademicResultIDsRequest{IDs: []uint{created.ID}})
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, fx.adminPrincipal(), created.ID, dto.AcademicResultRejectRequest{Reason: "CA score looks wrong"})
	require.NoError(t, err)
	require.Equal(t, string(workflow.ResultDraft), rejected.Status)
	require.Equal(t, "CA score looks wrong", rejected.RejectionReason)
	require.Nil(t, rejected.SubmittedAt)

	notices := notifier.to(fx.teacher.UserID)
	require.Len(t, notices, 1)
	require.Equal(t, NotificationResultRejected, notices[0].Kind)
	require.Contains(t, notices[0].Message, "CA score looks wrong")

	ca := 25.0
	updated, err := svc.Update(ctx, fx.teacherPrincipal(), created.ID, dto.AcademicResultUpdateRequest{CAScore: &ca})
	require.NoError(t, err)
	require.Equal(t, float64(55), updated.TotalScore)
	require.Equal(t, "C", updated.Grade)
}

func TestAcademicResultOutOfOrderTransitionsRefused(t *testing.T) {
	svc, _, fx, _ := newAcademicResultService(t)
	ctx := context.Background()

	created := createResult(t, svc, fx, fx.studentA, 20, 30)

	_, err := svc.Approve(ctx, fx.adminPrincipal(), created.ID, dto.AcademicResultApproveRequest{})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = svc.Publish(ctx, fx.adminPrincipal(), dto.AcademicResultPublishRequest{IDs: []uint{created.ID}})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = svc.Reject(ctx, fx.adminPrincipal(), created.ID, dto.AcademicResultRejectRequest{Reason: "not yet"})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestAcademicResultPublishBatchIsAllOrNothing(t *testing.T) {
	svc, db, fx, _ := newAcademicResultService(t)
	ctx := context.Background()

	approvedRow := createResult(t, svc, fx, fx.studentA, 20, 30)
	draftRow := createResult(t, svc, fx, fx.studentB, 20, 30)

	_, err := svc.Submit(ctx, fx.teacherPrincipal(), dto.AcademicResultIDsRequest{IDs: []uint{approvedRow.ID}})
	require.NoError(t, err)
	_, err = svc.Approve(ctx, fx.adminPrincipal(), approvedRow.ID, dto.AcademicResultApproveRequest{})
	require.NoError(t, err)

	_, err = svc.Publish(ctx, fx.adminPrincipal(), dto.AcademicResultPublishRequest{IDs: []uint{approvedRow.ID, draftRow.ID}})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	var row models.AcademicResult
	require.NoError(t, db.First(&row, approvedRow.ID).Error)
	require.Equal(t, workflow.ResultApproved, row.Status)

	_, err = svc.Publish(ctx, fx.adminPrincipal(), dto.AcademicResultPublishRequest{IDs: []uint{approvedRow.ID, 424242}})
	require.ErrorIs(t, err, ErrAcademicResultNotFound)
}

func TestAcademicResultSubmitRequiresAuthor(t *testing.T) {
	svc, db, fx, _ := newAcademicResultService(t)
	ctx := context.Background()

	created := createResult(t, svc, fx, fx.studentA, 20, 30)

	otherTeacher := models.Teacher{
		SchoolID: fx.school.ID,
		User:     models.User{SchoolID: &fx.school.ID, Name: "Mrs Bello", Email: "bello@school.test", PasswordHash: "x", Role: models.RoleTeacher},
	}
	require.NoError(t, repository.NewTeacherRepository(db).CreateWithUser(ctx, &otherTeacher))
	principal := policy.Principal{UserID: otherTeacher.UserID, Role: models.RoleTeacher, SchoolID: fx.school.ID, TeacherID: otherTeacher.ID}

	_, err := svc.Submit(ctx, principal, dto.AcademicResultIDsRequest{IDs: []uint{created.ID}})
	require.ErrorIs(t, err, policy.ErrForbidden)

	_, err = svc.Approve(ctx, fx.teacherPrincipal(), created.ID, dto.AcademicResultApproveRequest{})
	require.ErrorIs(t, err, policy.ErrForbidden, "teachers cannot review")
}

func TestAcademicResultPublishFilterNeedsTermAndSession(t *testing.T) {
	svc, _, fx, _ := newAcademicResultService(t)
	classID := fx.class.ID

	_, err := svc.Publish(context.Background(), fx.adminPrincipal(), dto.AcademicResultPublishRequest{ClassID: &classID})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAcademicResultListScopesTeacherToOwnRows(t *testing.T) {
	svc, _, fx, _ := newAcademicResultService(t)
	ctx := context.Background()
	createResult(t, svc, fx, fx.studentA, 20, 30)

	rows, err := svc.List(ctx, fx.teacherPrincipal(), dto.AcademicResultListRequest{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = svc.List(ctx, fx.adminPrincipal(), dto.AcademicResultListRequest{Status: "PUBLISHED"})
	require.NoError(t, err)
	require.Empty(t, rows)

	_, err = svc.List(ctx, fx.studentPrincipal(fx.studentA), dto.AcademicResultListRequest{})
	require.ErrorIs(t, err, policy.ErrForbidden)
}
