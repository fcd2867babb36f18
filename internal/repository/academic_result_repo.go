package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/workflow"
)

// AcademicResultFilter narrows academic result listings.
type AcademicResultFilter struct {
	SchoolID  uint
	TeacherID *uint
	StudentID *uint
	ClassID   *uint
	SubjectID *uint
	Term      string
	Session   string
	Statuses  []workflow.ResultStatus
}

// AcademicResultRepository persists term results. Status changes go through Transition so that a
// batch either moves completely or not at all.
type AcademicResultRepository interface {
	Create(ctx context.Context, result *models.AcademicResult) error
	GetByID(ctx context.Context, id uint) (models.AcademicResult, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.AcademicResult, error)
	List(ctx context.Context, filter AcademicResultFilter) ([]models.AcademicResult, error)
	UpdateScores(ctx context.Context, result *models.AcademicResult) error
	Transition(ctx context.Context, ids []uint, from []workflow.ResultStatus, updates map[string]interface{}) error
}

type academicResultRepository struct {
	db *gorm.DB
}

// NewAcademicResultRepository constructs the repository.
func NewAcademicResultRepository(db *gorm.DB) AcademicResultRepository {
	return &academicResultRepository{db: db}
}

func (r *academicResultRepository) Create(ctx context.Context, result *models.AcademicResult) error {
	return r.db.WithContext(ctx).Omit("Student", "Subject").Create(result).Error
}

func (r *academicResultRepository) GetByID(ctx context.Context, id uint) (models.AcademicResult, error) {
	var result models.AcademicResult
	if err := r.db.WithContext(ctx).Preload("Student.User").Preload("Subject").First(&result, id).Error; err != nil {
		return models.AcademicResult{}, err
	}
	return result, nil
}

func (r *academicResultRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.AcademicResult, error) {
	var results []models.AcademicResult
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *academicResultRepository) List(ctx context.Context, filter AcademicResultFilter) ([]models.AcademicResult, error) {
	query := r.db.WithContext(ctx).Model(&models.AcademicResult{})
	if filter.SchoolID != 0 {
		query = query.Where("school_id = ?", filter.SchoolID)
	}
	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.ClassID != nil {
		query = query.Where("class_id = ?", *filter.ClassID)
	}
	if filter.SubjectID != nil {
		query = query.Where("subject_id = ?", *filter.SubjectID)
	}
	if filter.Term != "" {
		query = query.Where("term = ?", filter.Term)
	}
	if filter.Session != "" {
		query = query.Where("session = ?", filter.Session)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var results []models.AcademicResult
	if err := query.Preload("Subject").Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateScores saves the editable columns while the row is still a draft.
func (r *academicResultRepository) UpdateScores(ctx context.Context, result *models.AcademicResult) error {
	res := r.db.WithContext(ctx).Model(&models.AcademicResult{}).
		Where("id = ? AND status = ?", result.ID, workflow.ResultDraft).
		Updates(map[string]interface{}{
			"ca_score":        result.CAScore,
			"exam_score":      result.ExamScore,
			"total_score":     result.TotalScore,
			"grade":           result.Grade,
			"teacher_comment": result.TeacherComment,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleState
	}
	return nil
}

// Transition updates every id whose status is still one of from. When fewer rows match than ids
// were given the whole batch is rolled back with ErrStaleState.
func (r *academicResultRepository) Transition(ctx context.Context, ids []uint, from []workflow.ResultStatus, updates map[string]interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.AcademicResult{}).
			Where("id IN ? AND status IN ?", ids, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			return ErrStaleState
		}
		return nil
	})
}
