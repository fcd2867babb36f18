package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// ExamFilter narrows exam listings.
type ExamFilter struct {
	SchoolID  uint
	TeacherID *uint
	ClassID   *uint
	SubjectID *uint
}

// ExamRepository persists exams together with their questions.
type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	GetByID(ctx context.Context, id uint) (models.Exam, error)
	GetWithQuestions(ctx context.Context, id uint) (models.Exam, error)
	List(ctx context.Context, filter ExamFilter) ([]models.Exam, error)
	Delete(ctx context.Context, id uint) error
	UpdateFlags(ctx context.Context, id uint, flags map[string]interface{}) error
	CountAttempts(ctx context.Context, examID uint, statuses ...models.AttemptStatus) (int64, error)
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository constructs the exam repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) Create(ctx context.Context, exam *models.Exam) error {
	return r.db.WithContext(ctx).Create(exam).Error
}

func (r *examRepository) GetByID(ctx context.Context, id uint) (models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return models.Exam{}, err
	}
	return exam, nil
}

func (r *examRepository) GetWithQuestions(ctx context.Context, id uint) (models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		First(&exam, id).Error; err != nil {
		return models.Exam{}, err
	}
	return exam, nil
}

func (r *examRepository) List(ctx context.Context, filter ExamFilter) ([]models.Exam, error) {
	query := r.db.WithContext(ctx).Model(&models.Exam{}).Where("school_id = ?", filter.SchoolID)
	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}
	if filter.SubjectID != nil {
		query = query.Where("subject_id = ?", *filter.SubjectID)
	}

	var exams []models.Exam
	if err := query.Order("start_time DESC").Find(&exams).Error; err != nil {
		return nil, err
	}
	return exams, nil
}

// Delete removes the exam and everything students produced for it.
func (r *examRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.Result{}, &models.Answer{}, &models.ExamAttempt{}, &models.Question{}} {
			if err := tx.Where("exam_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		result := tx.Delete(&models.Exam{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// UpdateFlags applies the lifecycle flags in a single UPDATE statement.
func (r *examRepository) UpdateFlags(ctx context.Context, id uint, flags map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Exam{}).Where("id = ?", id).Updates(flags)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *examRepository) CountAttempts(ctx context.Context, examID uint, statuses ...models.AttemptStatus) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ExamAttempt{}).Where("exam_id = ?", examID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
