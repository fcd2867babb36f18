package models

import "time"

// Student is the learner profile attached to a user with the student role.
type Student struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	SchoolID        uint      `gorm:"index;not null" json:"school_id"`
	ClassID         *uint     `gorm:"index" json:"class_id"`
	AdmissionNumber string    `gorm:"size:64" json:"admission_number"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	User            User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user"`
	Class           *Class    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"class,omitempty"`
}

// Teacher is the staff profile attached to a user with the teacher role.
type Teacher struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	SchoolID    uint      `gorm:"index;not null" json:"school_id"`
	StaffNumber string    `gorm:"size:64" json:"staff_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	User        User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user"`
}

// Class groups students of a school, e.g. "JSS 2A".
type Class struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SchoolID  uint      `gorm:"index;not null" json:"school_id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Level     string    `gorm:"size:64" json:"level"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subject is a taught course within a school.
type Subject struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SchoolID  uint      `gorm:"index;not null" json:"school_id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Code      string    `gorm:"size:32" json:"code"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
