package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/observability"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
	"github.com/noah-isme/cbt-go-api/pkg/payment"
)

// PaymentPlan is a purchasable subscription period.
type PaymentPlan struct {
	Code   string
	Amount int64
	Days   int
}

// PaymentService initialises subscription checkouts and settles them from gateway reports.
type PaymentService interface {
	Initialize(ctx context.Context, principal policy.Principal, req dto.PaymentInitializeRequest) (dto.PaymentInitializeResponse, error)
	Verify(ctx context.Context, principal policy.Principal, reference string) (dto.PaymentResponse, error)
	HandleNotification(ctx context.Context, notification dto.PaymentNotification) (dto.PaymentResponse, error)
	List(ctx context.Context, principal policy.Principal, req dto.PaymentListRequest) (dto.PaymentListResponse, error)
}

type paymentService struct {
	payments  repository.PaymentRepository
	schools   repository.SchoolRepository
	users     repository.UserRepository
	gateway   payment.Gateway
	plans     map[string]PaymentPlan
	currency  string
	notifier  Notifier
	activity  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewPaymentService constructs the payment service.
func NewPaymentService(payments repository.PaymentRepository, schools repository.SchoolRepository, users repository.UserRepository, gateway payment.Gateway, plans []PaymentPlan, currency string, notifier Notifier, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) PaymentService {
	byCode := make(map[string]PaymentPlan, len(plans))
	for _, plan := range plans {
		byCode[strings.ToLower(plan.Code)] = plan
	}
	if currency == "" {
		currency = "IDR"
	}

	return &paymentService{
		payments:  payments,
		schools:   schools,
		users:     users,
		gateway:   gateway,
		plans:     byCode,
		currency:  currency,
		notifier:  notifier,
		activity:  activity,
		validator: validate,
		logger:    logger.With().Str("component", "payment_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/cbt-go-api/internal/service/payment"),
		now:       time.Now,
	}
}

// NewPaymentReference returns a unique, gateway-safe order id.
func NewPaymentReference() string {
	return "CBT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (s *paymentService) Initialize(ctx context.Context, principal policy.Principal, req dto.PaymentInitializeRequest) (dto.PaymentInitializeResponse, error) {
	if err := policy.Precheck(principal, policy.PaymentInitiate); err != nil {
		return dto.PaymentInitializeResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.PaymentInitializeResponse{}, err
	}

	plan, ok := s.plans[strings.ToLower(strings.TrimSpace(req.Plan))]
	if !ok {
		return dto.PaymentInitializeResponse{}, fmt.Errorf("%w: %s", ErrUnknownPlan, req.Plan)
	}

	school, err := s.schools.GetByID(ctx, principal.SchoolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PaymentInitializeResponse{}, ErrSchoolNotFound
		}
		return dto.PaymentInitializeResponse{}, err
	}
	if school.Status == models.SchoolStatusPending {
		return dto.PaymentInitializeResponse{}, ErrSchoolStatus
	}

	reference := NewPaymentReference()
	ctx, span := s.tracer.Start(ctx, "payments.initialize", trace.WithAttributes(
		attribute.String("payment.reference", reference),
		attribute.String("payment.plan", plan.Code),
	))
	defer span.End()

	session, err := s.gateway.CreateCheckout(ctx, payment.Checkout{
		Reference:     reference,
		Amount:        plan.Amount,
		ItemName:      fmt.Sprintf("%s subscription (%d days)", plan.Code, plan.Days),
		CustomerName:  school.Name,
		CustomerEmail: school.Email,
	})
	if err != nil {
		observability.Payments().WithLabelValues("initialize", "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.PaymentInitializeResponse{}, err
	}

	record := models.Payment{
		SchoolID:    school.ID,
		Reference:   reference,
		Plan:        plan.Code,
		Amount:      plan.Amount,
		Currency:    s.currency,
		Status:      models.PaymentPending,
		CheckoutKey: session.Token,
		RedirectURL: session.RedirectURL,
		InitiatedBy: principal.UserID,
	}
	if err := s.payments.Create(ctx, &record); err != nil {
		return dto.PaymentInitializeResponse{}, err
	}

	observability.Payments().WithLabelValues("initialize", string(record.Status)).Inc()
	paymentID := record.ID
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      principal,
		Action:     "payment.initialize",
		EntityType: "payment",
		EntityID:   &paymentID,
		Metadata:   map[string]interface{}{"reference": reference, "plan": plan.Code, "amount": plan.Amount},
	})

	return dto.PaymentInitializeResponse{
		Payment:     dto.NewPaymentResponse(record),
		Token:       session.Token,
		RedirectURL: session.RedirectURL,
	}, nil
}

// Verify re-reads the gateway status and settles the payment. Verifying a settled payment
// returns it unchanged.
func (s *paymentService) Verify(ctx context.Context, principal policy.Principal, reference string) (dto.PaymentResponse, error) {
	record, err := s.load(ctx, reference)
	if err != nil {
		return dto.PaymentResponse{}, err
	}
	if err := policy.Evaluate(principal, policy.PaymentView, policy.Resource{SchoolID: record.SchoolID}); err != nil {
		return dto.PaymentResponse{}, err
	}

	settled, err := s.reconcile(ctx, record, "verify")
	if err != nil {
		return dto.PaymentResponse{}, err
	}
	return dto.NewPaymentResponse(settled), nil
}

// HandleNotification authenticates a gateway webhook by signature, then trusts only the
// status fetched back from the gateway.
func (s *paymentService) HandleNotification(ctx context.Context, notification dto.PaymentNotification) (dto.PaymentResponse, error) {
	if err := s.validator.Struct(notification); err != nil {
		return dto.PaymentResponse{}, err
	}
	if !s.gateway.VerifySignature(notification.OrderID, notification.StatusCode, notification.GrossAmount, notification.SignatureKey) {
		observability.Payments().WithLabelValues("webhook", "invalid_signature").Inc()
		observability.Logger(ctx, s.logger).Warn().Str("reference", notification.OrderID).Msg("payment notification with invalid signature")
		return dto.PaymentResponse{}, ErrInvalidSignature
	}

	record, err := s.load(ctx, notification.OrderID)
	if err != nil {
		return dto.PaymentResponse{}, err
	}

	settled, err := s.reconcile(ctx, record, "webhook")
	if err != nil {
		return dto.PaymentResponse{}, err
	}
	return dto.NewPaymentResponse(settled), nil
}

func (s *paymentService) List(ctx context.Context, principal policy.Principal, req dto.PaymentListRequest) (dto.PaymentListResponse, error) {
	if err := policy.Precheck(principal, policy.PaymentView); err != nil {
		return dto.PaymentListResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.PaymentListResponse{}, err
	}

	filter := repository.PaymentFilter{
		SchoolID: req.SchoolID,
		Status:   req.Status,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if principal.Role != models.RoleSuperAdmin {
		schoolID := principal.SchoolID
		filter.SchoolID = &schoolID
	}

	records, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return dto.PaymentListResponse{}, err
	}

	items := make([]dto.PaymentResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewPaymentResponse(record))
	}
	return dto.PaymentListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *paymentService) reconcile(ctx context.Context, record models.Payment, stage string) (models.Payment, error) {
	if record.IsFinal() {
		return record, nil
	}

	ctx, span := s.tracer.Start(ctx, "payments."+stage, trace.WithAttributes(
		attribute.String("payment.reference", record.Reference),
	))
	defer span.End()

	txn, err := s.gateway.TransactionStatus(ctx, record.Reference)
	if err != nil {
		observability.Payments().WithLabelValues(stage, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Payment{}, err
	}
	if txn.Status == payment.StatusPending {
		observability.Payments().WithLabelValues(stage, string(models.PaymentPending)).Inc()
		return record, nil
	}

	settlement := repository.Settlement{
		Reference: record.Reference,
		Status:    models.PaymentStatus(txn.Status),
		Note:      strings.TrimSpace(txn.TransactionStatus + " " + txn.FraudStatus),
		SettledAt: s.now().UTC(),
	}
	if settlement.Status == models.PaymentSuccess {
		plan, ok := s.plans[strings.ToLower(record.Plan)]
		if !ok {
			observability.Logger(ctx, s.logger).Warn().Str("plan", record.Plan).Str("reference", record.Reference).Msg("settling payment for a plan no longer configured")
		}
		settlement.ExtendByDays = plan.Days
	}

	settled, applied, err := s.payments.Settle(ctx, settlement)
	if err != nil {
		span.RecordError(err)
		return models.Payment{}, err
	}

	observability.Payments().WithLabelValues(stage, string(settled.Status)).Inc()
	if applied {
		observability.Logger(ctx, s.logger).Info().
			Str("reference", settled.Reference).
			Str("status", string(settled.Status)).
			Str("stage", stage).
			Msg("payment settled")
		s.notifyAdmins(ctx, settled)
	}
	return settled, nil
}

func (s *paymentService) notifyAdmins(ctx context.Context, record models.Payment) {
	if s.notifier == nil {
		return
	}
	admins, err := s.users.ListBySchoolAndRole(ctx, record.SchoolID, models.RoleSchoolAdmin)
	if err != nil {
		observability.Logger(ctx, s.logger).Warn().Err(err).Msg("payment notice skipped")
		return
	}
	message := fmt.Sprintf("Payment %s for the %s plan is %s.", record.Reference, record.Plan, record.Status)
	for _, admin := range admins {
		s.notifier.Notify(ctx, admin.ID, NotificationPaymentSettled, message)
	}
}

func (s *paymentService) load(ctx context.Context, reference string) (models.Payment, error) {
	record, err := s.payments.GetByReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Payment{}, ErrPaymentNotFound
		}
		return models.Payment{}, err
	}
	return record, nil
}
