package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
)

type memoryActivityRepo struct {
	entries []models.ActivityLog
	filters []repository.ActivityLogFilter
}

func (m *memoryActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	entry.ID = uint(len(m.entries) + 1)
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityRepo) List(ctx context.Context, filter repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	m.filters = append(m.filters, filter)
	var out []models.ActivityLog
	for _, entry := range m.entries {
		if filter.SchoolID != nil && (entry.SchoolID == nil || *entry.SchoolID != *filter.SchoolID) {
			continue
		}
		out = append(out, entry)
	}
	return out, int64(len(out)), nil
}

func TestActivityServiceRecordMasksSecrets(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testValidator(), testLogger())

	err := svc.Record(context.Background(), ActivityEntry{
		Actor:      policy.Principal{UserID: 1, Role: "School_Admin", SchoolID: 3},
		Action:     "Student.Create",
		EntityType: "student",
		EntityID:   ptrUint(5),
		Metadata: map[string]interface{}{
			"email":          "student@example.com",
			"reset_token":    "abc",
			"admin_password": "hunter2",
			"class":          "JSS 1",
		},
	})
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)

	entry := repo.entries[0]
	require.Equal(t, "***", entry.Metadata["email"])
	require.Equal(t, "***", entry.Metadata["reset_token"])
	require.Equal(t, "***", entry.Metadata["admin_password"])
	require.Equal(t, "JSS 1", entry.Metadata["class"])
	require.Equal(t, "student.create", entry.Action)
	require.Equal(t, "school_admin", entry.ActorRole)
	require.Equal(t, uint(3), *entry.SchoolID)
}

func TestActivityServiceRecordRequiresAction(t *testing.T) {
	svc := NewActivityService(&memoryActivityRepo{}, testValidator(), testLogger())

	err := svc.Record(context.Background(), ActivityEntry{EntityType: "exam"})
	require.Error(t, err)
}

func TestActivityServiceListScopesSchoolAdmins(t *testing.T) {
	repo := &memoryActivityRepo{}
	svc := NewActivityService(repo, testValidator(), testLogger())
	ctx := context.Background()

	for _, schoolID := range []uint{1, 2} {
		require.NoError(t, svc.Record(ctx, ActivityEntry{
			Actor:      policy.Principal{UserID: schoolID, Role: models.RoleSchoolAdmin, SchoolID: schoolID},
			Action:     "exam.create",
			EntityType: "exam",
		}))
	}

	admin := policy.Principal{UserID: 1, Role: models.RoleSchoolAdmin, SchoolID: 1}
	scoped, err := svc.List(ctx, admin, dto.ActivityListRequest{ActorID: 2})
	require.NoError(t, err)
	require.Len(t, scoped.Items, 1)
	require.Equal(t, uint(1), *scoped.Items[0].SchoolID)
	require.Equal(t, uint(2), *repo.filters[0].ActorID)

	superAdmin := policy.Principal{UserID: 9, Role: models.RoleSuperAdmin}
	all, err := svc.List(ctx, superAdmin, dto.ActivityListRequest{})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)

	teacher := policy.Principal{UserID: 4, Role: models.RoleTeacher, SchoolID: 1, TeacherID: 1}
	_, err = svc.List(ctx, teacher, dto.ActivityListRequest{})
	require.ErrorIs(t, err, policy.ErrForbidden)
}
