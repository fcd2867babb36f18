package dto

import (
	"time"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// LoginRequest carries credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterSchoolRequest onboards a new school and its first administrator.
type RegisterSchoolRequest struct {
	SchoolName    string `json:"school_name" validate:"required,min=3,max=255"`
	SchoolEmail   string `json:"school_email" validate:"required,email"`
	Phone         string `json:"phone" validate:"omitempty,max=32"`
	Address       string `json:"address" validate:"omitempty,max=1000"`
	AdminName     string `json:"admin_name" validate:"required,min=2,max=255"`
	AdminEmail    string `json:"admin_email" validate:"required,email"`
	AdminPassword string `json:"admin_password" validate:"required,min=8,max=72"`
}

// UserResponse serializes an account.
type UserResponse struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	SchoolID    *uint      `json:"school_id"`
	StudentID   *uint      `json:"student_id,omitempty"`
	TeacherID   *uint      `json:"teacher_id,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// NewUserResponse converts a user model.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Role:        user.Role,
		SchoolID:    user.SchoolID,
		LastLoginAt: user.LastLoginAt,
	}
}

// LoginResponse returns a bearer token and the authenticated user.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}
