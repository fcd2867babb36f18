package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/models"
)

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	SchoolID *uint
	Status   string
	Page     int
	PageSize int
}

// Settlement is the terminal outcome applied to a pending payment.
type Settlement struct {
	Reference    string
	Status       models.PaymentStatus
	Note         string
	SettledAt    time.Time
	ExtendByDays int
}

// PaymentRepository persists subscription payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByReference(ctx context.Context, reference string) (models.Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error)
	Settle(ctx context.Context, settlement Settlement) (models.Payment, bool, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository constructs the payment repository.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) GetByReference(ctx context.Context, reference string) (models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&payment).Error; err != nil {
		return models.Payment{}, err
	}
	return payment, nil
}

func (r *paymentRepository) List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Payment{})
	if filter.SchoolID != nil {
		query = query.Where("school_id = ?", *filter.SchoolID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	if err := paginate(query, filter.Page, filter.PageSize).Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// Settle moves a pending payment to its final status and, on success, extends the school
// subscription. Only the first settlement of a reference has an effect; the boolean reports
// whether this call applied it.
func (r *paymentRepository) Settle(ctx context.Context, settlement Settlement) (models.Payment, bool, error) {
	var (
		payment models.Payment
		applied bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":       settlement.Status,
			"gateway_note": settlement.Note,
		}
		if settlement.Status == models.PaymentSuccess {
			updates["paid_at"] = settlement.SettledAt
		}

		res := tx.Model(&models.Payment{}).
			Where("reference = ? AND status = ?", settlement.Reference, models.PaymentPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected == 1

		if err := tx.Where("reference = ?", settlement.Reference).First(&payment).Error; err != nil {
			return err
		}

		if !applied || settlement.Status != models.PaymentSuccess || settlement.ExtendByDays <= 0 {
			return nil
		}

		var school models.School
		if err := tx.First(&school, payment.SchoolID).Error; err != nil {
			return err
		}
		base := settlement.SettledAt
		if school.SubscriptionExpiresAt != nil && school.SubscriptionExpiresAt.After(base) {
			base = *school.SubscriptionExpiresAt
		}
		expires := base.AddDate(0, 0, settlement.ExtendByDays)
		return tx.Model(&models.School{}).Where("id = ?", school.ID).Update("subscription_expires_at", expires).Error
	})
	if err != nil {
		return models.Payment{}, false, err
	}
	return payment, applied, nil
}
