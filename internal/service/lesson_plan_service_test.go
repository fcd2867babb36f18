package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
	"github.com/noah-isme/cbt-go-api/internal/workflow"
)

type memoryUploader struct {
	files map[string][]byte
}

func (m *memoryUploader) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[name] = data
	return "https://files.test/" + name, nil
}

func formFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("attachment", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["attachment"][0]
}

func lessonPlanRequest(fx schoolFixture) dto.LessonPlanCreateRequest {
	return dto.LessonPlanCreateRequest{
		SubjectID:  fx.subject.ID,
		ClassID:    fx.class.ID,
		Title:      "Linear equations",
		Term:       "second",
		Session:    "2025/2026",
		Week:       3,
		Objectives: "<p>Solve for x</p><script>steal()</script>",
	}
}

func TestLessonPlanReviewCycle(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db, "Hill Top")
	notifier := &recordingNotifier{}
	uploader := &memoryUploader{}
	svc := NewLessonPlanService(repository.NewLessonPlanRepository(db), repository.NewTeacherRepository(db), repository.NewClassRepository(db), uploader, notifier, nil, testValidator(), testLogger())
	ctx := context.Background()

	attachment := formFile(t, "week3.pdf", []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"))
	created, err := svc.Create(ctx, fx.teacherPrincipal(), lessonPlanRequest(fx), attachment)
	require.NoError(t, err)
	require.Equal(t, string(workflow.LessonPlanDraft), created.Status)
	require.Equal(t, "<p>Solve for x</p>", created.Objectives)
	require.Equal(t, "https://files.test/week3.pdf", created.AttachmentURL)
	require.Contains(t, uploader.files, "week3.pdf")

	_, err = svc.Review(ctx, fx.adminPrincipal(), created.ID, dto.LessonPlanReviewRequest{Action: "approve"})
	require.ErrorIs(t, err, workflow.ErrInvalidTransition, "drafts cannot be reviewed")

	submitted, err := svc.Submit(ctx, fx.teacherPrincipal(), created.ID)
	require.NoError(t, err)
	require.Equal(t, string(workflow.LessonPlanSubmitted), submitted.Status)

	title := "Changed while under review"
	_, err = svc.Update(ctx, fx.teacherPrincipal(), created.ID, dto.LessonPlanUpdateRequest{Title: &title}, nil)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	revised, err := svc.Review(ctx, fx.adminPrincipal(), created.ID, dto.LessonPlanReviewRequest{Action: "request_revision", Comment: "Add an exit ticket"})
	require.NoError(t, err)
	require.Equal(t, string(workflow.LessonPlanNeedsRevision), revised.Status)
	require.Equal(t, "Add an exit ticket", revised.ReviewComment)
	require.Equal(t, fx.admin.ID, *revised.ReviewerID)

	updated, err := svc.Update(ctx, fx.teacherPrincipal(), created.ID, dto.LessonPlanUpdateRequest{Title: &title}, nil)
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)

	_, err = svc.Submit(ctx, fx.teacherPrincipal(), created.ID)
	require.NoError(t, err)
	approved, err := svc.Review(ctx, fx.adminPrincipal(), created.ID, dto.LessonPlanReviewRequest{Action: "approve"})
	require.NoError(t, err)
	require.Equal(t, string(workflow.LessonPlanApproved), approved.Status)

	notices := notifier.to(fx.teacher.UserID)
	require.Len(t, notices, 2)
	require.Equal(t, NotificationLessonPlanReviewed, notices[1].Kind)
}

func TestLessonPlanRejectNeedsComment(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db, "Hill Top")
	svc := NewLessonPlanService(repository.NewLessonPlanRepository(db), repository.NewTeacherRepository(db), repository.NewClassRepository(db), nil, nil, nil, testValidator(), testLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, fx.teacherPrincipal(), lessonPlanRequest(fx), nil)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, fx.teacherPrincipal(), created.ID)
	require.NoError(t, err)

	_, err = svc.Review(ctx, fx.adminPrincipal(), created.ID, dto.LessonPlanReviewRequest{Action: "reject"})
	require.Error(t, err)

	rejected, err := svc.Review(ctx, fx.adminPrincipal(), created.ID, dto.LessonPlanReviewRequest{Action: "reject", Comment: "Wrong syllabus"})
	require.NoError(t, err)
	require.Equal(t, string(workflow.LessonPlanRejected), rejected.Status)

	_, err = svc.Submit(ctx, fx.teacherPrincipal(), created.ID)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition, "rejected plans are terminal")
}

func TestLessonPlanAttachmentRules(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db, "Hill Top")
	ctx := context.Background()

	withUploader := NewLessonPlanService(repository.NewLessonPlanRepository(db), repository.NewTeacherRepository(db), repository.NewClassRepository(db), &memoryUploader{}, nil, nil, testValidator(), testLogger())
	_, err := withUploader.Create(ctx, fx.teacherPrincipal(), lessonPlanRequest(fx), formFile(t, "photo.gif", []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")))
	require.ErrorIs(t, err, ErrAttachmentType)

	withoutUploader := NewLessonPlanService(repository.NewLessonPlanRepository(db), repository.NewTeacherRepository(db), repository.NewClassRepository(db), nil, nil, nil, testValidator(), testLogger())
	_, err = withoutUploader.Create(ctx, fx.teacherPrincipal(), lessonPlanRequest(fx), formFile(t, "notes.txt", []byte("plain notes")))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestLessonPlanVisibility(t *testing.T) {
	db := setupServiceDB(t)
	fx := seedSchool(t, db, "Hill Top")
	other := seedSchool(t, db, "Valley View")
	svc := NewLessonPlanService(repository.NewLessonPlanRepository(db), repository.NewTeacherRepository(db), repository.NewClassRepository(db), nil, nil, nil, testValidator(), testLogger())
	ctx := context.Background()

	created, err := svc.Create(ctx, fx.teacherPrincipal(), lessonPlanRequest(fx), nil)
	require.NoError(t, err)

	_, err = svc.Get(ctx, other.adminPrincipal(), created.ID)
	require.ErrorIs(t, err, policy.ErrForbidden)

	_, err = svc.Get(ctx, fx.studentPrincipal(fx.studentA), created.ID)
	require.ErrorIs(t, err, policy.ErrForbidden)

	plans, err := svc.List(ctx, fx.adminPrincipal(), dto.LessonPlanListRequest{Term: "second"})
	require.NoError(t, err)
	require.Len(t, plans, 1)

	plans, err = svc.List(ctx, other.teacherPrincipal(), dto.LessonPlanListRequest{})
	require.NoError(t, err)
	require.Empty(t, plans)

	_, err = svc.Submit(ctx, fx.adminPrincipal(), created.ID)
	require.ErrorIs(t, err, policy.ErrForbidden, "only the author submits")
}
