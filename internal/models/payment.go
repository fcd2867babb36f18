package models

import "time"

// PaymentStatus reflects what the gateway reported for a reference.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment is a subscription charge initiated by a school admin.
type Payment struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	SchoolID    uint          `gorm:"index;not null" json:"school_id"`
	Reference   string        `gorm:"size:64;uniqueIndex;not null" json:"reference"`
	Plan        string        `gorm:"size:32;not null" json:"plan"`
	Amount      int64         `gorm:"not null" json:"amount"`
	Currency    string        `gorm:"size:8;not null" json:"currency"`
	Status      PaymentStatus `gorm:"size:16;not null;index" json:"status"`
	CheckoutKey string        `gorm:"size:255" json:"-"`
	RedirectURL string        `gorm:"size:512" json:"redirect_url"`
	GatewayNote string        `gorm:"size:255" json:"gateway_note"`
	InitiatedBy uint          `gorm:"not null" json:"initiated_by"`
	PaidAt      *time.Time    `json:"paid_at"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsFinal reports whether the payment no longer changes on verification.
func (p Payment) IsFinal() bool {
	return p.Status == PaymentSuccess || p.Status == PaymentFailed
}
