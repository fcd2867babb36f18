package models

import "time"

// SchoolStatus tracks the onboarding state of a tenant.
type SchoolStatus string

const (
	// SchoolStatusPending marks a freshly registered school awaiting super-admin review.
	SchoolStatusPending SchoolStatus = "pending"
	// SchoolStatusApproved marks a school whose users may sign in.
	SchoolStatusApproved SchoolStatus = "approved"
	// SchoolStatusSuspended blocks sign-in for every user of the school.
	SchoolStatusSuspended SchoolStatus = "suspended"
)

// School is the tenant boundary: every exam, student and teacher belongs to one.
type School struct {
	ID                    uint         `gorm:"primaryKey" json:"id"`
	Name                  string       `gorm:"size:255;not null" json:"name"`
	Slug                  string       `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Email                 string       `gorm:"size:255;not null" json:"email"`
	Phone                 string       `gorm:"size:32" json:"phone"`
	Address               string       `gorm:"type:text" json:"address"`
	Status                SchoolStatus `gorm:"size:16;not null;index" json:"status"`
	SubscriptionExpiresAt *time.Time   `json:"subscription_expires_at"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

// IsApproved reports whether users of the school may authenticate.
func (s School) IsApproved() bool {
	return s.Status == SchoolStatusApproved
}

// SubscriptionActive reports whether the paid subscription covers the reference time.
func (s School) SubscriptionActive(reference time.Time) bool {
	return s.SubscriptionExpiresAt != nil && s.SubscriptionExpiresAt.After(reference)
}
