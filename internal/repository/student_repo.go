package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// StudentFilter narrows student listings within a school.
type StudentFilter struct {
	SchoolID uint
	ClassID  *uint
	Search   string
	Page     int
	PageSize int
}

// StudentRepository provides access to student profiles.
type StudentRepository interface {
	CreateWithUser(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id uint) (models.Student, error)
	GetByUserID(ctx context.Context, userID uint) (models.Student, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Student, error)
	List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

// CreateWithUser inserts the embedded user and the profile atomically.
func (r *studentRepository) CreateWithUser(ctx context.Context, student *models.Student) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&student.User).Error; err != nil {
			return err
		}
		student.UserID = student.User.ID
		return tx.Omit("User", "Class").Create(student).Error
	})
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Preload("User").Preload("Class").First(&student, id).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) GetByUserID(ctx context.Context, userID uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&student).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Student, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var students []models.Student
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) List(ctx context.Context, filter StudentFilter) ([]models.Student, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{}).
		Joins("JOIN users ON users.id = students.user_id").
		Where("students.school_id = ?", filter.SchoolID)

	if filter.ClassID != nil {
		query = query.Where("students.class_id = ?", *filter.ClassID)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("users.name LIKE ? OR students.admission_number LIKE ?", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var students []models.Student
	if err := paginate(query, filter.Page, filter.PageSize).
		Preload("User").
		Preload("Class").
		Order("users.name ASC").
		Find(&students).Error; err != nil {
		return nil, 0, err
	}
	return students, total, nil
}

// TeacherRepository provides access to teacher profiles.
type TeacherRepository interface {
	CreateWithUser(ctx context.Context, teacher *models.Teacher) error
	GetByID(ctx context.Context, id uint) (models.Teacher, error)
	GetByUserID(ctx context.Context, userID uint) (models.Teacher, error)
	ListBySchool(ctx context.Context, schoolID uint) ([]models.Teacher, error)
}

type teacherRepository struct {
	db *gorm.DB
}

// NewTeacherRepository constructs a teacher repository.
func NewTeacherRepository(db *gorm.DB) TeacherRepository {
	return &teacherRepository{db: db}
}

func (r *teacherRepository) CreateWithUser(ctx context.Context, teacher *models.Teacher) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&teacher.User).Error; err != nil {
			return err
		}
		teacher.UserID = teacher.User.ID
		return tx.Omit("User").Create(teacher).Error
	})
}

func (r *teacherRepository) GetByID(ctx context.Context, id uint) (models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.WithContext(ctx).Preload("User").First(&teacher, id).Error; err != nil {
		return models.Teacher{}, err
	}
	return teacher, nil
}

func (r *teacherRepository) GetByUserID(ctx context.Context, userID uint) (models.Teacher, error) {
	var teacher models.Teacher
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&teacher).Error; err != nil {
		return models.Teacher{}, err
	}
	return teacher, nil
}

func (r *teacherRepository) ListBySchool(ctx context.Context, schoolID uint) ([]models.Teacher, error) {
	var teachers []models.Teacher
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("school_id = ?", schoolID).
		Order("id ASC").
		Find(&teachers).Error; err != nil {
		return nil, err
	}
	return teachers, nil
}
