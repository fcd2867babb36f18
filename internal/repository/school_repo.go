package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// SchoolFilter narrows school listings.
type SchoolFilter struct {
	Status   string
	Page     int
	PageSize int
}

// SchoolRepository persists tenants.
type SchoolRepository interface {
	RegisterWithAdmin(ctx context.Context, school *models.School, admin *models.User) error
	GetByID(ctx context.Context, id uint) (models.School, error)
	List(ctx context.Context, filter SchoolFilter) ([]models.School, int64, error)
	UpdateStatus(ctx context.Context, id uint, status models.SchoolStatus) (models.School, error)
}

type schoolRepository struct {
	db *gorm.DB
}

// NewSchoolRepository constructs the school repository.
func NewSchoolRepository(db *gorm.DB) SchoolRepository {
	return &schoolRepository{db: db}
}

// RegisterWithAdmin creates a school and its first administrator in one transaction.
func (r *schoolRepository) RegisterWithAdmin(ctx context.Context, school *models.School, admin *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(school).Error; err != nil {
			return err
		}
		admin.SchoolID = &school.ID
		return tx.Create(admin).Error
	})
}

func (r *schoolRepository) GetByID(ctx context.Context, id uint) (models.School, error) {
	var school models.School
	if err := r.db.WithContext(ctx).First(&school, id).Error; err != nil {
		return models.School{}, err
	}
	return school, nil
}

func (r *schoolRepository) List(ctx context.Context, filter SchoolFilter) ([]models.School, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.School{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = paginate(query, filter.Page, filter.PageSize)

	var schools []models.School
	if err := query.Order("created_at DESC").Find(&schools).Error; err != nil {
		return nil, 0, err
	}
	return schools, total, nil
}

func (r *schoolRepository) UpdateStatus(ctx context.Context, id uint, status models.SchoolStatus) (models.School, error) {
	result := r.db.WithContext(ctx).Model(&models.School{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return models.School{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.School{}, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		return query
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if page <= 0 {
		page = 1
	}
	return query.Offset((page - 1) * pageSize).Limit(pageSize)
}
