package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// ClassRepository persists classes and subjects, the two flat lookup tables of a school.
type ClassRepository interface {
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, id uint) (models.Class, error)
	ListClasses(ctx context.Context, schoolID uint) ([]models.Class, error)
	CreateSubject(ctx context.Context, subject *models.Subject) error
	GetSubject(ctx context.Context, id uint) (models.Subject, error)
	ListSubjects(ctx context.Context, schoolID uint) ([]models.Subject, error)
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository constructs the class and subject repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) CreateClass(ctx context.Context, class *models.Class) error {
	return r.db.WithContext(ctx).Create(class).Error
}

func (r *classRepository) GetClass(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}
	return class, nil
}

func (r *classRepository) ListClasses(ctx context.Context, schoolID uint) ([]models.Class, error) {
	var classes []models.Class
	if err := r.db.WithContext(ctx).Where("school_id = ?", schoolID).Order("name ASC").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *classRepository) CreateSubject(ctx context.Context, subject *models.Subject) error {
	return r.db.WithContext(ctx).Create(subject).Error
}

func (r *classRepository) GetSubject(ctx context.Context, id uint) (models.Subject, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).First(&subject, id).Error; err != nil {
		return models.Subject{}, err
	}
	return subject, nil
}

func (r *classRepository) ListSubjects(ctx context.Context, schoolID uint) ([]models.Subject, error) {
	var subjects []models.Subject
	if err := r.db.WithContext(ctx).Where("school_id = ?", schoolID).Order("name ASC").Find(&subjects).Error; err != nil {
		return nil, err
	}
	return subjects, nil
}
