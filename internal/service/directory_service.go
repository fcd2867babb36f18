package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
)

// DirectoryService manages the people and groupings of a school.
type DirectoryService interface {
	CreateClass(ctx context.Context, principal policy.Principal, req dto.ClassCreateRequest) (dto.ClassResponse, error)
	ListClasses(ctx context.Context, principal policy.Principal) ([]dto.ClassResponse, error)
	CreateSubject(ctx context.Context, principal policy.Principal, req dto.SubjectCreateRequest) (dto.SubjectResponse, error)
	ListSubjects(ctx context.Context, principal policy.Principal) ([]dto.SubjectResponse, error)
	CreateTeacher(ctx context.Context, principal policy.Principal, req dto.TeacherCreateRequest) (dto.TeacherResponse, error)
	ListTeachers(ctx context.Context, principal policy.Principal) ([]dto.TeacherResponse, error)
	CreateStudent(ctx context.Context, principal policy.Principal, req dto.StudentCreateRequest) (dto.StudentResponse, error)
	ListStudents(ctx context.Context, principal policy.Principal, req dto.StudentListRequest) (dto.StudentListResponse, error)
}

type directoryService struct {
	classes   repository.ClassRepository
	teachers  repository.TeacherRepository
	students  repository.StudentRepository
	users     repository.UserRepository
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewDirectoryService constructs the directory service.
func NewDirectoryService(classes repository.ClassRepository, teachers repository.TeacherRepository, students repository.StudentRepository, users repository.UserRepository, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) DirectoryService {
	return &directoryService{
		classes:   classes,
		teachers:  teachers,
		students:  students,
		users:     users,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "directory_service").Logger(),
	}
}

func (s *directoryService) CreateClass(ctx context.Context, principal policy.Principal, req dto.ClassCreateRequest) (dto.ClassResponse, error) {
	if err := s.authorizeManage(principal); err != nil {
		return dto.ClassResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ClassResponse{}, err
	}

	class := models.Class{
		SchoolID: principal.SchoolID,
		Name:     strings.TrimSpace(req.Name),
		Level:    strings.TrimSpace(req.Level),
	}
	if err := s.classes.CreateClass(ctx, &class); err != nil {
		return dto.ClassResponse{}, err
	}
	s.record(ctx, principal, "class.create", "class", class.ID)
	return dto.NewClassResponse(class), nil
}

func (s *directoryService) ListClasses(ctx context.Context, principal policy.Principal) ([]dto.ClassResponse, error) {
	if err := policy.Precheck(principal, policy.DirectoryRead); err != nil {
		return nil, err
	}
	classes, err := s.classes.ListClasses(ctx, principal.SchoolID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ClassResponse, 0, len(classes))
	for _, class := range classes {
		out = append(out, dto.NewClassResponse(class))
	}
	return out, nil
}

func (s *directoryService) CreateSubject(ctx context.Context, principal policy.Principal, req dto.SubjectCreateRequest) (dto.SubjectResponse, error) {
	if err := s.authorizeManage(principal); err != nil {
		return dto.SubjectResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SubjectResponse{}, err
	}

	subject := models.Subject{
		SchoolID: principal.SchoolID,
		Name:     strings.TrimSpace(req.Name),
		Code:     strings.ToUpper(strings.TrimSpace(req.Code)),
	}
	if err := s.classes.CreateSubject(ctx, &subject); err != nil {
		return dto.SubjectResponse{}, err
	}
	s.record(ctx, principal, "subject.create", "subject", subject.ID)
	return dto.NewSubjectResponse(subject), nil
}

func (s *directoryService) ListSubjects(ctx context.Context, principal policy.Principal) ([]dto.SubjectResponse, error) {
	if err := policy.Precheck(principal, policy.DirectoryRead); err != nil {
		return nil, err
	}
	subjects, err := s.classes.ListSubjects(ctx, principal.SchoolID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.SubjectResponse, 0, len(subjects))
	for _, subject := range subjects {
		out = append(out, dto.NewSubjectResponse(subject))
	}
	return out, nil
}

func (s *directoryService) CreateTeacher(ctx context.Context, principal policy.Principal, req dto.TeacherCreateRequest) (dto.TeacherResponse, error) {
	if err := s.authorizeManage(principal); err != nil {
		return dto.TeacherResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.TeacherResponse{}, err
	}

	user, err := s.newUser(ctx, principal.SchoolID, models.RoleTeacher, req.Name, req.Email, req.Password)
	if err != nil {
		return dto.TeacherResponse{}, err
	}
	teacher := models.Teacher{
		SchoolID:    principal.SchoolID,
		StaffNumber: strings.TrimSpace(req.StaffNumber),
		User:        user,
	}
	if err := s.teachers.CreateWithUser(ctx, &teacher); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.TeacherResponse{}, ErrEmailTaken
		}
		return dto.TeacherResponse{}, err
	}
	s.record(ctx, principal, "teacher.create", "teacher", teacher.ID)
	return dto.NewTeacherResponse(teacher), nil
}

func (s *directoryService) ListTeachers(ctx context.Context, principal policy.Principal) ([]dto.TeacherResponse, error) {
	if err := policy.Precheck(principal, policy.DirectoryRead); err != nil {
		return nil, err
	}
	teachers, err := s.teachers.ListBySchool(ctx, principal.SchoolID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TeacherResponse, 0, len(teachers))
	for _, teacher := range teachers {
		out = append(out, dto.NewTeacherResponse(teacher))
	}
	return out, nil
}

func (s *directoryService) CreateStudent(ctx context.Context, principal policy.Principal, req dto.StudentCreateRequest) (dto.StudentResponse, error) {
	if err := s.authorizeManage(principal); err != nil {
		return dto.StudentResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentResponse{}, err
	}

	if req.ClassID != nil {
		class, err := s.classes.GetClass(ctx, *req.ClassID)
		if err != nil || class.SchoolID != principal.SchoolID {
			if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.StudentResponse{}, ErrClassNotFound
			}
			return dto.StudentResponse{}, err
		}
	}

	user, err := s.newUser(ctx, principal.SchoolID, models.RoleStudent, req.Name, req.Email, req.Password)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	student := models.Student{
		SchoolID:        principal.SchoolID,
		ClassID:         req.ClassID,
		AdmissionNumber: strings.TrimSpace(req.AdmissionNumber),
		User:            user,
	}
	if err := s.students.CreateWithUser(ctx, &student); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.StudentResponse{}, ErrEmailTaken
		}
		return dto.StudentResponse{}, err
	}
	s.record(ctx, principal, "student.create", "student", student.ID)

	created, err := s.students.GetByID(ctx, student.ID)
	if err != nil {
		return dto.StudentResponse{}, err
	}
	return dto.NewStudentResponse(created), nil
}

func (s *directoryService) ListStudents(ctx context.Context, principal policy.Principal, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	if err := policy.Precheck(principal, policy.DirectoryRead); err != nil {
		return dto.StudentListResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.StudentListResponse{}, err
	}

	students, total, err := s.students.List(ctx, repository.StudentFilter{
		SchoolID: principal.SchoolID,
		ClassID:  req.ClassID,
		Search:   strings.TrimSpace(req.Search),
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	items := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		items = append(items, dto.NewStudentResponse(student))
	}
	return dto.StudentListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

// authorizeManage requires a school-bound administrator; super admins have no school to write to.
func (s *directoryService) authorizeManage(principal policy.Principal) error {
	if err := policy.Precheck(principal, policy.DirectoryManage); err != nil {
		return err
	}
	if principal.SchoolID == 0 {
		return policy.ErrForbidden
	}
	return nil
}

func (s *directoryService) newUser(ctx context.Context, schoolID uint, role, name, email, password string) (models.User, error) {
	normalized := normalizeEmail(email)
	if _, err := s.users.GetByEmail(ctx, normalized); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	school := schoolID
	return models.User{
		SchoolID:     &school,
		Name:         strings.TrimSpace(name),
		Email:        normalized,
		PasswordHash: hash,
		Role:         role,
	}, nil
}

func (s *directoryService) record(ctx context.Context, principal policy.Principal, action, entity string, id uint) {
	entityID := id
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      principal,
		Action:     action,
		EntityType: entity,
		EntityID:   &entityID,
	})
}
