package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta derives the page count from the total.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	if page <= 0 {
		page = 1
	}
	meta := PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: 1}
	if pageSize > 0 {
		meta.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return meta
}

// SchoolListRequest filters the super-admin school listing.
type SchoolListRequest struct {
	Status   string `validate:"omitempty,oneof=pending approved suspended"`
	Page     int
	PageSize int
}

// SchoolResponse serializes a tenant.
type SchoolResponse struct {
	ID                    uint       `json:"id"`
	Name                  string     `json:"name"`
	Slug                  string     `json:"slug"`
	Email                 string     `json:"email"`
	Phone                 string     `json:"phone"`
	Address               string     `json:"address"`
	Status                string     `json:"status"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at"`
	CreatedAt             time.Time  `json:"created_at"`
}

// SchoolListResponse wraps a paginated school listing.
type SchoolListResponse struct {
	Items      []SchoolResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
}

// NewSchoolResponse converts a school model.
func NewSchoolResponse(school models.School) SchoolResponse {
	return SchoolResponse{
		ID:                    school.ID,
		Name:                  school.Name,
		Slug:                  school.Slug,
		Email:                 school.Email,
		Phone:                 school.Phone,
		Address:               school.Address,
		Status:                string(school.Status),
		SubscriptionExpiresAt: school.SubscriptionExpiresAt,
		CreatedAt:             school.CreatedAt,
	}
}

// ActivityListRequest defines filters for retrieving activity logs.
type ActivityListRequest struct {
	Page       int
	PageSize   int
	ActorID    uint
	Action     string
	EntityType string
}

// ActivityResponse serializes activity log entries.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	SchoolID   *uint                  `json:"school_id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ActivityListResponse wraps paginated activity logs.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

func metadataFromJSON(data datatypes.JSONMap) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}(data)
}

// NewActivityResponse converts a model into an activity DTO.
func NewActivityResponse(entry models.ActivityLog) ActivityResponse {
	return ActivityResponse{
		ID:         entry.ID,
		SchoolID:   entry.SchoolID,
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   metadataFromJSON(entry.Metadata),
		CreatedAt:  entry.CreatedAt,
	}
}
