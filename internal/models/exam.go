package models

import (
	"time"

	"gorm.io/datatypes"
)

// QuestionType enumerates supported question kinds.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
)

// AttemptStatus describes how far a student got with an exam.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// Exam is a timed assessment authored by a teacher for a school.
type Exam struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	SchoolID        uint       `gorm:"index;not null" json:"school_id"`
	TeacherID       uint       `gorm:"index;not null" json:"teacher_id"`
	ClassID         *uint      `gorm:"index" json:"class_id"`
	SubjectID       *uint      `gorm:"index" json:"subject_id"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Instructions    string     `gorm:"type:text" json:"instructions"`
	StartTime       time.Time  `gorm:"not null" json:"start_time"`
	EndTime         time.Time  `gorm:"not null" json:"end_time"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	IsLive          bool       `gorm:"not null;default:false" json:"is_live"`
	IsCompleted     bool       `gorm:"not null;default:false" json:"is_completed"`
	ManualControl   bool       `gorm:"not null;default:false" json:"manual_control"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Questions       []Question `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// HasEnded reports whether submissions are closed at the reference time.
func (e Exam) HasEnded(reference time.Time) bool {
	return reference.After(e.EndTime)
}

// IsOpen reports whether students may take the exam at the reference time. Under manual
// control the live/completed flags win over the schedule.
func (e Exam) IsOpen(reference time.Time) bool {
	if e.ManualControl {
		return e.IsLive && !e.IsCompleted
	}
	return !reference.Before(e.StartTime) && !e.HasEnded(reference)
}

// Question belongs to exactly one exam.
type Question struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ExamID        uint           `gorm:"index;not null" json:"exam_id"`
	Type          QuestionType   `gorm:"size:32;not null" json:"type"`
	Text          string         `gorm:"type:text;not null" json:"text"`
	Options       datatypes.JSON `gorm:"type:json" json:"options"`
	CorrectAnswer string         `gorm:"size:512" json:"-"`
	Points        float64        `gorm:"not null;default:0" json:"points"`
	Position      int            `gorm:"not null;default:0" json:"position"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Answer stores one student's response to one question.
type Answer struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	StudentID  uint           `gorm:"uniqueIndex:idx_answer_student_exam_question;not null" json:"student_id"`
	ExamID     uint           `gorm:"uniqueIndex:idx_answer_student_exam_question;index;not null" json:"exam_id"`
	QuestionID uint           `gorm:"uniqueIndex:idx_answer_student_exam_question;not null" json:"question_id"`
	Response   datatypes.JSON `gorm:"type:json" json:"response"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Result is the single scored outcome of a student's exam.
type Result struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	StudentID   uint      `gorm:"uniqueIndex:idx_result_student_exam;not null" json:"student_id"`
	ExamID      uint      `gorm:"uniqueIndex:idx_result_student_exam;index;not null" json:"exam_id"`
	Score       float64   `gorm:"not null" json:"score"`
	TotalPoints float64   `gorm:"not null" json:"total_points"`
	Percentage  int       `gorm:"not null" json:"percentage"`
	GradedAt    time.Time `gorm:"not null" json:"graded_at"`
	CreatedAt   time.Time `json:"created_at"`
	Student     *Student  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student,omitempty"`
}

// ExamAttempt tracks whether a student started or finished an exam.
type ExamAttempt struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	StudentID   uint          `gorm:"uniqueIndex:idx_attempt_student_exam;not null" json:"student_id"`
	ExamID      uint          `gorm:"uniqueIndex:idx_attempt_student_exam;index;not null" json:"exam_id"`
	Status      AttemptStatus `gorm:"size:16;not null;index" json:"status"`
	StartedAt   time.Time     `gorm:"not null" json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
