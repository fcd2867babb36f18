package dto

import (
	"time"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// PaymentInitializeRequest starts a subscription checkout.
type PaymentInitializeRequest struct {
	Plan string `json:"plan" validate:"required,min=2,max=32"`
}

// PaymentNotification is the gateway webhook body.
type PaymentNotification struct {
	OrderID           string `json:"order_id" validate:"required"`
	StatusCode        string `json:"status_code" validate:"required"`
	GrossAmount       string `json:"gross_amount" validate:"required"`
	SignatureKey      string `json:"signature_key" validate:"required"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// PaymentListRequest filters payments.
type PaymentListRequest struct {
	SchoolID *uint
	Status   string `validate:"omitempty,oneof=pending success failed"`
	Page     int
	PageSize int
}

// PaymentResponse serializes a payment.
type PaymentResponse struct {
	ID          uint       `json:"id"`
	SchoolID    uint       `json:"school_id"`
	Reference   string     `json:"reference"`
	Plan        string     `json:"plan"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	RedirectURL string     `json:"redirect_url,omitempty"`
	PaidAt      *time.Time `json:"paid_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PaymentInitializeResponse returns checkout details to the client.
type PaymentInitializeResponse struct {
	Payment     PaymentResponse `json:"payment"`
	Token       string          `json:"token"`
	RedirectURL string          `json:"redirect_url"`
}

// PaymentListResponse wraps a paginated payment listing.
type PaymentListResponse struct {
	Items      []PaymentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewPaymentResponse converts a model.
func NewPaymentResponse(payment models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          payment.ID,
		SchoolID:    payment.SchoolID,
		Reference:   payment.Reference,
		Plan:        payment.Plan,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Status:      string(payment.Status),
		RedirectURL: payment.RedirectURL,
		PaidAt:      payment.PaidAt,
		CreatedAt:   payment.CreatedAt,
	}
}
