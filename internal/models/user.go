package models

import "time"

// Role names stored on users and carried in JWT claims.
const (
	RoleSuperAdmin  = "super_admin"
	RoleSchoolAdmin = "school_admin"
	RoleTeacher     = "teacher"
	RoleStudent     = "student"
)

// User is an authenticated account. Students and teachers additionally own a profile row.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SchoolID     *uint      `gorm:"index" json:"school_id"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Role         string     `gorm:"size:32;not null;index" json:"role"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	School       *School    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"school,omitempty"`
}
