package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// QuestionInput describes one question when authoring an exam.
type QuestionInput struct {
	Type          string   `json:"type" validate:"required,oneof=multiple_choice true_false short_answer essay"`
	Text          string   `json:"text" validate:"required,min=1,max=5000"`
	Options       []string `json:"options" validate:"omitempty,max=10,dive,required,max=500"`
	CorrectAnswer string   `json:"correct_answer" validate:"required_if=Type multiple_choice,required_if=Type true_false,max=512"`
	Points        float64  `json:"points" validate:"gte=0"`
	Position      int      `json:"position" validate:"gte=0"`
}

// ExamCreateRequest authors an exam with its questions.
type ExamCreateRequest struct {
	Title           string          `json:"title" validate:"required,min=3,max=255"`
	Instructions    string          `json:"instructions" validate:"omitempty,max=5000"`
	ClassID         *uint           `json:"class_id"`
	SubjectID       *uint           `json:"subject_id"`
	StartTime       time.Time       `json:"start_time" validate:"required"`
	EndTime         time.Time       `json:"end_time" validate:"required,gtfield=StartTime"`
	DurationMinutes int             `json:"duration_minutes" validate:"required,gt=0,lte=1440"`
	Questions       []QuestionInput `json:"questions" validate:"required,min=1,max=500,dive"`
}

// ExamListRequest filters the teacher exam listing.
type ExamListRequest struct {
	ClassID   *uint
	SubjectID *uint
	Mine      bool
}

// ExamSubmitRequest maps question ids to raw responses.
type ExamSubmitRequest struct {
	Answers map[string]json.RawMessage `json:"answers" validate:"required"`
}

// ExamResetRequest selects a single student or every student of the exam.
type ExamResetRequest struct {
	StudentID *uint `json:"student_id" validate:"required_without=ResetAll,excluded_with=ResetAll"`
	ResetAll  bool  `json:"reset_all"`
}

// Exam lifecycle control actions.
const (
	ExamActionMakeLive            = "make_live"
	ExamActionMakeCompleted       = "make_completed"
	ExamActionToggleManualControl = "toggle_manual_control"
)

// ExamControlRequest drives manual lifecycle control.
type ExamControlRequest struct {
	Action        string `json:"action" validate:"required,oneof=make_live make_completed toggle_manual_control"`
	ManualControl *bool  `json:"manual_control"`
}

// QuestionResponse is the authoring view of a question, answer key included.
type QuestionResponse struct {
	ID            uint            `json:"id"`
	Type          string          `json:"type"`
	Text          string          `json:"text"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer string          `json:"correct_answer"`
	Points        float64         `json:"points"`
	Position      int             `json:"position"`
}

// PaperQuestion is the student view of a question, without the answer key.
type PaperQuestion struct {
	ID       uint            `json:"id"`
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Options  json.RawMessage `json:"options,omitempty"`
	Points   float64         `json:"points"`
	Position int             `json:"position"`
}

// ExamResponse serializes an exam.
type ExamResponse struct {
	ID              uint               `json:"id"`
	SchoolID        uint               `json:"school_id"`
	TeacherID       uint               `json:"teacher_id"`
	ClassID         *uint              `json:"class_id"`
	SubjectID       *uint              `json:"subject_id"`
	Title           string             `json:"title"`
	Instructions    string             `json:"instructions"`
	StartTime       time.Time          `json:"start_time"`
	EndTime         time.Time          `json:"end_time"`
	DurationMinutes int                `json:"duration_minutes"`
	IsLive          bool               `json:"is_live"`
	IsCompleted     bool               `json:"is_completed"`
	ManualControl   bool               `json:"manual_control"`
	TotalPoints     float64            `json:"total_points"`
	Questions       []QuestionResponse `json:"questions,omitempty"`
}

// PaperResponse is what a student sees while taking an exam.
type PaperResponse struct {
	ID              uint            `json:"id"`
	Title           string          `json:"title"`
	Instructions    string          `json:"instructions"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	DurationMinutes int             `json:"duration_minutes"`
	Questions       []PaperQuestion `json:"questions"`
}

// StudentExamSummary lists an exam from the student's point of view.
type StudentExamSummary struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Open            bool      `json:"open"`
}

// AttemptResponse serializes an exam attempt.
type AttemptResponse struct {
	ExamID      uint       `json:"exam_id"`
	StudentID   uint       `json:"student_id"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

// SubmissionResultResponse is returned after a successful submission.
type SubmissionResultResponse struct {
	Score       float64 `json:"score"`
	TotalPoints float64 `json:"total_points"`
	Percentage  int     `json:"percentage"`
}

// ExamResultResponse serializes a stored result.
type ExamResultResponse struct {
	ID          uint      `json:"id"`
	ExamID      uint      `json:"exam_id"`
	StudentID   uint      `json:"student_id"`
	StudentName string    `json:"student_name,omitempty"`
	Score       float64   `json:"score"`
	TotalPoints float64   `json:"total_points"`
	Percentage  int       `json:"percentage"`
	GradedAt    time.Time `json:"graded_at"`
}

// ExamStats aggregates results of one exam.
type ExamStats struct {
	Submissions       int       `json:"submissions"`
	AveragePercentage float64   `json:"average_percentage"`
	HighestPercentage int       `json:"highest_percentage"`
	LowestPercentage  int       `json:"lowest_percentage"`
	PassRate          float64   `json:"pass_rate"`
	GeneratedAt       time.Time `json:"generated_at"`
	CacheHit          bool      `json:"cache_hit"`
}

// ExamResultsResponse lists results together with their statistics.
type ExamResultsResponse struct {
	Results []ExamResultResponse `json:"results"`
	Stats   ExamStats            `json:"stats"`
}

// DeletedCounts reports how many rows a reset removed per table.
type DeletedCounts struct {
	Attempts int64 `json:"attempts"`
	Answers  int64 `json:"answers"`
	Results  int64 `json:"results"`
}

// ExamResetResponse reports deleted row counts.
type ExamResetResponse struct {
	ExamID    uint          `json:"exam_id"`
	StudentID *uint         `json:"student_id,omitempty"`
	Deleted   DeletedCounts `json:"deleted"`
}

// NewExamResponse converts an exam; questions are included when loaded.
func NewExamResponse(exam models.Exam) ExamResponse {
	response := ExamResponse{
		ID:              exam.ID,
		SchoolID:        exam.SchoolID,
		TeacherID:       exam.TeacherID,
		ClassID:         exam.ClassID,
		SubjectID:       exam.SubjectID,
		Title:           exam.Title,
		Instructions:    exam.Instructions,
		StartTime:       exam.StartTime,
		EndTime:         exam.EndTime,
		DurationMinutes: exam.DurationMinutes,
		IsLive:          exam.IsLive,
		IsCompleted:     exam.IsCompleted,
		ManualControl:   exam.ManualControl,
	}
	for _, question := range exam.Questions {
		response.TotalPoints += question.Points
		response.Questions = append(response.Questions, QuestionResponse{
			ID:            question.ID,
			Type:          string(question.Type),
			Text:          question.Text,
			Options:       json.RawMessage(question.Options),
			CorrectAnswer: question.CorrectAnswer,
			Points:        question.Points,
			Position:      question.Position,
		})
	}
	return response
}

// NewPaperResponse converts an exam into the student paper.
func NewPaperResponse(exam models.Exam) PaperResponse {
	paper := PaperResponse{
		ID:              exam.ID,
		Title:           exam.Title,
		Instructions:    exam.Instructions,
		StartTime:       exam.StartTime,
		EndTime:         exam.EndTime,
		DurationMinutes: exam.DurationMinutes,
		Questions:       make([]PaperQuestion, 0, len(exam.Questions)),
	}
	for _, question := range exam.Questions {
		paper.Questions = append(paper.Questions, PaperQuestion{
			ID:       question.ID,
			Type:     string(question.Type),
			Text:     question.Text,
			Options:  json.RawMessage(question.Options),
			Points:   question.Points,
			Position: question.Position,
		})
	}
	return paper
}

// NewAttemptResponse converts an attempt.
func NewAttemptResponse(attempt models.ExamAttempt) AttemptResponse {
	return AttemptResponse{
		ExamID:      attempt.ExamID,
		StudentID:   attempt.StudentID,
		Status:      string(attempt.Status),
		StartedAt:   attempt.StartedAt,
		SubmittedAt: attempt.SubmittedAt,
	}
}

// NewExamResultResponse converts a result.
func NewExamResultResponse(result models.Result) ExamResultResponse {
	response := ExamResultResponse{
		ID:          result.ID,
		ExamID:      result.ExamID,
		StudentID:   result.StudentID,
		Score:       result.Score,
		TotalPoints: result.TotalPoints,
		Percentage:  result.Percentage,
		GradedAt:    result.GradedAt,
	}
	if result.Student != nil {
		response.StudentName = result.Student.User.Name
	}
	return response
}
