package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/workflow"
)

// LessonPlanFilter narrows lesson plan listings.
type LessonPlanFilter struct {
	SchoolID  uint
	TeacherID *uint
	SubjectID *uint
	ClassID   *uint
	Term      string
	Session   string
	Status    string
}

// LessonPlanRepository persists lesson plans.
type LessonPlanRepository interface {
	Create(ctx context.Context, plan *models.LessonPlan) error
	GetByID(ctx context.Context, id uint) (models.LessonPlan, error)
	List(ctx context.Context, filter LessonPlanFilter) ([]models.LessonPlan, error)
	UpdateContent(ctx context.Context, plan *models.LessonPlan) error
	Transition(ctx context.Context, id uint, from []workflow.LessonPlanStatus, updates map[string]interface{}) error
}

type lessonPlanRepository struct {
	db *gorm.DB
}

// NewLessonPlanRepository constructs the repository.
func NewLessonPlanRepository(db *gorm.DB) LessonPlanRepository {
	return &lessonPlanRepository{db: db}
}

func (r *lessonPlanRepository) Create(ctx context.Context, plan *models.LessonPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *lessonPlanRepository) GetByID(ctx context.Context, id uint) (models.LessonPlan, error) {
	var plan models.LessonPlan
	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return models.LessonPlan{}, err
	}
	return plan, nil
}

func (r *lessonPlanRepository) List(ctx context.Context, filter LessonPlanFilter) ([]models.LessonPlan, error) {
	query := r.db.WithContext(ctx).Model(&models.LessonPlan{}).Where("school_id = ?", filter.SchoolID)
	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if filter.SubjectID != nil {
		query = query.Where("subject_id = ?", *filter.SubjectID)
	}
	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}
	if filter.Term != "" {
		query = query.Where("term = ?", filter.Term)
	}
	if filter.Session != "" {
		query = query.Where("session = ?", filter.Session)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var plans []models.LessonPlan
	if err := query.Order("week ASC, id ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// UpdateContent saves author-editable fields; it only matches plans the author may still edit.
func (r *lessonPlanRepository) UpdateContent(ctx context.Context, plan *models.LessonPlan) error {
	res := r.db.WithContext(ctx).Model(&models.LessonPlan{}).
		Where("id = ? AND status IN ?", plan.ID, []workflow.LessonPlanStatus{workflow.LessonPlanDraft, workflow.LessonPlanNeedsRevision}).
		Updates(map[string]interface{}{
			"title":          plan.Title,
			"week":           plan.Week,
			"objectives":     plan.Objectives,
			"content":        plan.Content,
			"attachment_url": plan.AttachmentURL,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *lessonPlanRepository) Transition(ctx context.Context, id uint, from []workflow.LessonPlanStatus, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.LessonPlan{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}
