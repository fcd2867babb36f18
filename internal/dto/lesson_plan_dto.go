package dto

import (
	"time"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// LessonPlanCreateRequest drafts a lesson plan.
type LessonPlanCreateRequest struct {
	SubjectID  uint   `json:"subject_id" form:"subject_id" validate:"required"`
	ClassID    uint   `json:"class_id" form:"class_id" validate:"required"`
	Title      string `json:"title" form:"title" validate:"required,min=3,max=255"`
	Term       string `json:"term" form:"term" validate:"required,oneof=first second third"`
	Session    string `json:"session" form:"session" validate:"required,len=9"`
	Week       int    `json:"week" form:"week" validate:"required,gte=1,lte=20"`
	Objectives string `json:"objectives" form:"objectives" validate:"omitempty,max=5000"`
	Content    string `json:"content" form:"content" validate:"omitempty,max=20000"`
}

// LessonPlanUpdateRequest edits a draft or a plan sent back for revision.
type LessonPlanUpdateRequest struct {
	Title      *string `json:"title" form:"title" validate:"omitempty,min=3,max=255"`
	Week       *int    `json:"week" form:"week" validate:"omitempty,gte=1,lte=20"`
	Objectives *string `json:"objectives" form:"objectives" validate:"omitempty,max=5000"`
	Content    *string `json:"content" form:"content" validate:"omitempty,max=20000"`
}

// LessonPlanReviewRequest records the admin decision.
type LessonPlanReviewRequest struct {
	Action  string `json:"action" validate:"required,oneof=approve reject request_revision"`
	Comment string `json:"comment" validate:"required_unless=Action approve,max=2000"`
}

// LessonPlanListRequest filters listings.
type LessonPlanListRequest struct {
	SubjectID *uint
	ClassID   *uint
	Term      string `validate:"omitempty,oneof=first second third"`
	Session   string `validate:"omitempty,len=9"`
	Status    string `validate:"omitempty,oneof=DRAFT SUBMITTED APPROVED REJECTED NEEDS_REVISION"`
}

// LessonPlanResponse serializes a lesson plan.
type LessonPlanResponse struct {
	ID            uint       `json:"id"`
	TeacherID     uint       `json:"teacher_id"`
	SubjectID     uint       `json:"subject_id"`
	ClassID       uint       `json:"class_id"`
	Title         string     `json:"title"`
	Term          string     `json:"term"`
	Session       string     `json:"session"`
	Week          int        `json:"week"`
	Objectives    string     `json:"objectives"`
	Content       string     `json:"content"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	Status        string     `json:"status"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	ReviewerID    *uint      `json:"reviewer_id"`
	ReviewedAt    *time.Time `json:"reviewed_at"`
	ReviewComment string     `json:"review_comment,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewLessonPlanResponse converts a model.
func NewLessonPlanResponse(plan models.LessonPlan) LessonPlanResponse {
	return LessonPlanResponse{
		ID:            plan.ID,
		TeacherID:     plan.TeacherID,
		SubjectID:     plan.SubjectID,
		ClassID:       plan.ClassID,
		Title:         plan.Title,
		Term:          plan.Term,
		Session:       plan.Session,
		Week:          plan.Week,
		Objectives:    plan.Objectives,
		Content:       plan.Content,
		AttachmentURL: plan.AttachmentURL,
		Status:        string(plan.Status),
		SubmittedAt:   plan.SubmittedAt,
		ReviewerID:    plan.ReviewerID,
		ReviewedAt:    plan.ReviewedAt,
		ReviewComment: plan.ReviewComment,
		UpdatedAt:     plan.UpdatedAt,
	}
}
