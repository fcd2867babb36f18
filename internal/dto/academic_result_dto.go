package dto

import (
	"time"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// AcademicResultCreateRequest records a draft term result.
type AcademicResultCreateRequest struct {
	StudentID      uint    `json:"student_id" validate:"required"`
	SubjectID      uint    `json:"subject_id" validate:"required"`
	ClassID        uint    `json:"class_id" validate:"required"`
	Term           string  `json:"term" validate:"required,oneof=first second third"`
	Session        string  `json:"session" validate:"required,len=9"`
	CAScore        float64 `json:"ca_score" validate:"gte=0,lte=40"`
	ExamScore      float64 `json:"exam_score" validate:"gte=0,lte=60"`
	TeacherComment string  `json:"teacher_comment" validate:"omitempty,max=1000"`
}

// AcademicResultUpdateRequest edits a draft.
type AcademicResultUpdateRequest struct {
	CAScore        *float64 `json:"ca_score" validate:"omitempty,gte=0,lte=40"`
	ExamScore      *float64 `json:"exam_score" validate:"omitempty,gte=0,lte=60"`
	TeacherComment *string  `json:"teacher_comment" validate:"omitempty,max=1000"`
}

// AcademicResultIDsRequest selects rows by id.
type AcademicResultIDsRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1,max=500,dive,required"`
}

// AcademicResultApproveRequest approves a submitted row.
type AcademicResultApproveRequest struct {
	Comment string `json:"comment" validate:"omitempty,max=1000"`
}

// AcademicResultRejectRequest sends a submitted row back to its author.
type AcademicResultRejectRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

// AcademicResultPublishRequest publishes by explicit ids or by class/term/session.
type AcademicResultPublishRequest struct {
	IDs     []uint `json:"ids" validate:"omitempty,max=500,dive,required"`
	ClassID *uint  `json:"class_id" validate:"required_without=IDs"`
	Term    string `json:"term" validate:"omitempty,oneof=first second third"`
	Session string `json:"session" validate:"omitempty,len=9"`
}

// AcademicResultListRequest filters listings.
type AcademicResultListRequest struct {
	ClassID   *uint
	SubjectID *uint
	StudentID *uint
	Term      string `validate:"omitempty,oneof=first second third"`
	Session   string `validate:"omitempty,len=9"`
	Status    string `validate:"omitempty,oneof=DRAFT SUBMITTED APPROVED PUBLISHED"`
}

// AcademicResultResponse serializes a term result.
type AcademicResultResponse struct {
	ID              uint       `json:"id"`
	StudentID       uint       `json:"student_id"`
	SubjectID       uint       `json:"subject_id"`
	SubjectName     string     `json:"subject_name,omitempty"`
	ClassID         uint       `json:"class_id"`
	TeacherID       uint       `json:"teacher_id"`
	Term            string     `json:"term"`
	Session         string     `json:"session"`
	CAScore         float64    `json:"ca_score"`
	ExamScore       float64    `json:"exam_score"`
	TotalScore      float64    `json:"total_score"`
	Grade           string     `json:"grade"`
	TeacherComment  string     `json:"teacher_comment"`
	AdminComment    string     `json:"admin_comment"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	Status          string     `json:"status"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	ApprovedBy      *uint      `json:"approved_by"`
	ApprovedAt      *time.Time `json:"approved_at"`
	PublishedAt     *time.Time `json:"published_at"`
}

// TransitionResponse reports how many rows a bulk action moved.
type TransitionResponse struct {
	Status   string `json:"status"`
	Affected int    `json:"affected"`
	IDs      []uint `json:"ids"`
}

// NewAcademicResultResponse converts a model.
func NewAcademicResultResponse(result models.AcademicResult) AcademicResultResponse {
	response := AcademicResultResponse{
		ID:              result.ID,
		StudentID:       result.StudentID,
		SubjectID:       result.SubjectID,
		ClassID:         result.ClassID,
		TeacherID:       result.TeacherID,
		Term:            result.Term,
		Session:         result.Session,
		CAScore:         result.CAScore,
		ExamScore:       result.ExamScore,
		TotalScore:      result.TotalScore,
		Grade:           result.Grade,
		TeacherComment:  result.TeacherComment,
		AdminComment:    result.AdminComment,
		RejectionReason: result.RejectionReason,
		Status:          string(result.Status),
		SubmittedAt:     result.SubmittedAt,
		ApprovedBy:      result.ApprovedBy,
		ApprovedAt:      result.ApprovedAt,
		PublishedAt:     result.PublishedAt,
	}
	if result.Subject != nil {
		response.SubjectName = result.Subject.Name
	}
	return response
}

// NewAcademicResultResponseSlice converts a slice.
func NewAcademicResultResponseSlice(results []models.AcademicResult) []AcademicResultResponse {
	out := make([]AcademicResultResponse, 0, len(results))
	for _, result := range results {
		out = append(out, NewAcademicResultResponse(result))
	}
	return out
}
