package models

import (
	"time"

	"github.com/noah-isme/cbt-go-api/internal/workflow"
)

// AcademicResult is a per-subject term report entry moved through the approval pipeline.
type AcademicResult struct {
	ID              uint                  `gorm:"primaryKey" json:"id"`
	SchoolID        uint                  `gorm:"index;not null" json:"school_id"`
	TeacherID       uint                  `gorm:"index;not null" json:"teacher_id"`
	StudentID       uint                  `gorm:"uniqueIndex:idx_academic_result_scope;not null" json:"student_id"`
	SubjectID       uint                  `gorm:"uniqueIndex:idx_academic_result_scope;not null" json:"subject_id"`
	ClassID         uint                  `gorm:"index;not null" json:"class_id"`
	Term            string                `gorm:"uniqueIndex:idx_academic_result_scope;size:32;not null" json:"term"`
	Session         string                `gorm:"uniqueIndex:idx_academic_result_scope;size:32;not null" json:"session"`
	CAScore         float64               `gorm:"not null" json:"ca_score"`
	ExamScore       float64               `gorm:"not null" json:"exam_score"`
	TotalScore      float64               `gorm:"not null" json:"total_score"`
	Grade           string                `gorm:"size:4" json:"grade"`
	TeacherComment  string                `gorm:"type:text" json:"teacher_comment"`
	AdminComment    string                `gorm:"type:text" json:"admin_comment"`
	RejectionReason string                `gorm:"type:text" json:"rejection_reason"`
	Status          workflow.ResultStatus `gorm:"size:16;not null;index" json:"status"`
	SubmittedAt     *time.Time            `json:"submitted_at"`
	ApprovedBy      *uint                 `json:"approved_by"`
	ApprovedAt      *time.Time            `json:"approved_at"`
	PublishedAt     *time.Time            `json:"published_at"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Student         *Student              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
	Subject         *Subject              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"subject,omitempty"`
}

// GradeFor maps a total out of 100 to the report card letter.
func GradeFor(total float64) string {
	switch {
	case total >= 70:
		return "A"
	case total >= 60:
		return "B"
	case total >= 50:
		return "C"
	case total >= 45:
		return "D"
	case total >= 40:
		return "E"
	default:
		return "F"
	}
}
