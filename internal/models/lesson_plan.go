package models

import (
	"time"

	"github.com/noah-isme/cbt-go-api/internal/workflow"
)

// LessonPlan is a weekly teaching plan reviewed by the school admin.
type LessonPlan struct {
	ID            uint                      `gorm:"primaryKey" json:"id"`
	SchoolID      uint                      `gorm:"index;not null" json:"school_id"`
	TeacherID     uint                      `gorm:"index;not null" json:"teacher_id"`
	SubjectID     uint                      `gorm:"index;not null" json:"subject_id"`
	ClassID       uint                      `gorm:"index;not null" json:"class_id"`
	Title         string                    `gorm:"size:255;not null" json:"title"`
	Term          string                    `gorm:"size:32;not null" json:"term"`
	Session       string                    `gorm:"size:32;not null" json:"session"`
	Week          int                       `gorm:"not null" json:"week"`
	Objectives    string                    `gorm:"type:text" json:"objectives"`
	Content       string                    `gorm:"type:text" json:"content"`
	AttachmentURL string                    `gorm:"size:512" json:"attachment_url"`
	Status        workflow.LessonPlanStatus `gorm:"size:16;not null;index" json:"status"`
	SubmittedAt   *time.Time                `json:"submitted_at"`
	ReviewerID    *uint                     `json:"reviewer_id"`
	ReviewedAt    *time.Time                `json:"reviewed_at"`
	ReviewComment string                    `gorm:"type:text" json:"review_comment"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`
}
