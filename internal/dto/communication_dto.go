package dto

import (
	"time"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// NotificationCreateRequest describes a notification addressed to one user.
type NotificationCreateRequest struct {
	UserID  uint   `json:"user_id" validate:"required"`
	Type    string `json:"type" validate:"required,max=64"`
	Message string `json:"message" validate:"required,min=1,max=2000"`
}

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      model.Type,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}

// Monitor event types pushed to teachers watching an exam.
const (
	MonitorAttemptStarted   = "attempt.started"
	MonitorAttemptSubmitted = "attempt.submitted"
	MonitorAttemptsReset    = "attempts.reset"
	MonitorExamControl      = "exam.control"
)

// MonitorEvent is a live update about activity on one exam.
type MonitorEvent struct {
	Type       string                 `json:"type"`
	ExamID     uint                   `json:"exam_id"`
	StudentID  uint                   `json:"student_id,omitempty"`
	Percentage *int                   `json:"percentage,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}
