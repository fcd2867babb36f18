package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/observability"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
)

// AuthService signs users in and onboards schools.
type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResponse, error)
	RegisterSchool(ctx context.Context, req dto.RegisterSchoolRequest) (dto.SchoolResponse, error)
	Me(ctx context.Context, principal policy.Principal) (dto.UserResponse, error)
	CreateSuperAdmin(ctx context.Context, name, email, password string) (dto.UserResponse, error)
}

type authService struct {
	users     repository.UserRepository
	schools   repository.SchoolRepository
	students  repository.StudentRepository
	teachers  repository.TeacherRepository
	activity  ActivityRecorder
	secret    []byte
	ttl       time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService constructs the auth service. Tokens are HS256-signed with secret.
func NewAuthService(users repository.UserRepository, schools repository.SchoolRepository, students repository.StudentRepository, teachers repository.TeacherRepository, activity ActivityRecorder, secret string, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &authService{
		users:     users,
		schools:   schools,
		students:  students,
		teachers:  teachers,
		activity:  activity,
		secret:    []byte(secret),
		ttl:       ttl,
		validator: validate,
		logger:    logger.With().Str("component", "auth_service").Logger(),
		now:       time.Now,
	}
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (dto.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LoginResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LoginResponse{}, ErrInvalidCredentials
		}
		return dto.LoginResponse{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return dto.LoginResponse{}, ErrInvalidCredentials
	}

	if user.Role != models.RoleSuperAdmin {
		if user.School == nil || !user.School.IsApproved() {
			observability.Logger(ctx, s.logger).Info().Uint("user_id", user.ID).Msg("login refused for inactive school")
			return dto.LoginResponse{}, ErrSchoolInactive
		}
	}

	principal, err := s.principalFor(ctx, user)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	token, err := s.issueToken(principal, now, expiresAt)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		observability.Logger(ctx, s.logger).Warn().Err(err).Uint("user_id", user.ID).Msg("failed to record login time")
	}
	user.LastLoginAt = &now

	return dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      userResponse(user, principal),
	}, nil
}

func (s *authService) principalFor(ctx context.Context, user models.User) (policy.Principal, error) {
	principal := policy.Principal{UserID: user.ID, Role: user.Role}
	if user.SchoolID != nil {
		principal.SchoolID = *user.SchoolID
	}

	switch user.Role {
	case models.RoleStudent:
		student, err := s.students.GetByUserID(ctx, user.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.Principal{}, err
		}
		principal.StudentID = student.ID
	case models.RoleTeacher:
		teacher, err := s.teachers.GetByUserID(ctx, user.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.Principal{}, err
		}
		principal.TeacherID = teacher.ID
	}
	return principal, nil
}

func (s *authService) issueToken(principal policy.Principal, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(principal.UserID), 10),
		"role": principal.Role,
		"iat":  issuedAt.Unix(),
		"exp":  expiresAt.Unix(),
	}
	if principal.SchoolID != 0 {
		claims["school_id"] = principal.SchoolID
	}
	if principal.StudentID != 0 {
		claims["student_id"] = principal.StudentID
	}
	if principal.TeacherID != 0 {
		claims["teacher_id"] = principal.TeacherID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// RegisterSchool creates a pending school with its administrator. Nobody can sign in until a
// super admin approves the school.
func (s *authService) RegisterSchool(ctx context.Context, req dto.RegisterSchoolRequest) (dto.SchoolResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SchoolResponse{}, err
	}

	email := normalizeEmail(req.AdminEmail)
	if err := s.ensureEmailFree(ctx, email); err != nil {
		return dto.SchoolResponse{}, err
	}

	hash, err := HashPassword(req.AdminPassword)
	if err != nil {
		return dto.SchoolResponse{}, err
	}

	school := models.School{
		Name:    strings.TrimSpace(req.SchoolName),
		Slug:    slugify(req.SchoolName) + "-" + uuid.NewString()[:6],
		Email:   normalizeEmail(req.SchoolEmail),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
		Status:  models.SchoolStatusPending,
	}
	admin := models.User{
		Name:         strings.TrimSpace(req.AdminName),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleSchoolAdmin,
	}

	if err := s.schools.RegisterWithAdmin(ctx, &school, &admin); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.SchoolResponse{}, ErrEmailTaken
		}
		return dto.SchoolResponse{}, err
	}

	schoolID := school.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      policy.Principal{UserID: admin.ID, Role: admin.Role, SchoolID: school.ID},
		Action:     "school.register",
		EntityType: "school",
		EntityID:   &schoolID,
		Metadata:   map[string]interface{}{"name": school.Name},
	})

	return dto.NewSchoolResponse(school), nil
}

func (s *authService) Me(ctx context.Context, principal policy.Principal) (dto.UserResponse, error) {
	if !principal.Authenticated() {
		return dto.UserResponse{}, policy.ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return userResponse(user, principal), nil
}

// CreateSuperAdmin provisions a platform operator account.
func (s *authService) CreateSuperAdmin(ctx context.Context, name, email, password string) (dto.UserResponse, error) {
	if err := s.validator.Var(email, "required,email"); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Var(password, "required,min=8,max=72"); err != nil {
		return dto.UserResponse{}, err
	}

	normalized := normalizeEmail(email)
	if err := s.ensureEmailFree(ctx, normalized); err != nil {
		return dto.UserResponse{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return dto.UserResponse{}, err
	}
	user := models.User{
		Name:         strings.TrimSpace(name),
		Email:        normalized,
		PasswordHash: hash,
		Role:         models.RoleSuperAdmin,
	}
	if user.Name == "" {
		user.Name = "Super Admin"
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrEmailTaken
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrEmailTaken
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

func userResponse(user models.User, principal policy.Principal) dto.UserResponse {
	response := dto.NewUserResponse(user)
	if principal.StudentID != 0 {
		studentID := principal.StudentID
		response.StudentID = &studentID
	}
	if principal.TeacherID != 0 {
		teacherID := principal.TeacherID
		response.TeacherID = &teacherID
	}
	return response
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func slugify(value string) string {
	var builder strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			builder.WriteRune(r)
			dash = false
		case !dash && builder.Len() > 0:
			builder.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(builder.String(), "-")
	if slug == "" {
		return "school"
	}
	return slug
}
