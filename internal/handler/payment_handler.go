package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/middleware"
	"github.com/noah-isme/cbt-go-api/internal/service"
	"github.com/noah-isme/cbt-go-api/internal/utils"
)

// PaymentHandler exposes subscription checkout, verification and the gateway webhook.
type PaymentHandler struct {
	service service.PaymentService
	logger  zerolog.Logger
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(service service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With().Str("component", "payment_handler").Logger(),
	}
}

// RegisterWebhook binds the unauthenticated gateway callback. Authenticity is established by
// the notification signature.
func (h *PaymentHandler) RegisterWebhook(router fiber.Router) {
	router.Post("/webhook", h.webhook)
}

// Register binds the school admin routes.
func (h *PaymentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("/initialize", h.initialize)
	router.Get("/verify/:reference", h.verify)
}

func (h *PaymentHandler) initialize(c *fiber.Ctx) error {
	var payload dto.PaymentInitializeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.service.Initialize(userContext(c), middleware.Principal(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "initialize payment")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "payment initialized", resp)
}

func (h *PaymentHandler) verify(c *fiber.Ctx) error {
	reference := strings.TrimSpace(c.Params("reference"))
	if reference == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "payment reference required")
	}

	payment, err := h.service.Verify(userContext(c), middleware.Principal(c), reference)
	if err != nil {
		return handleError(c, h.logger, err, "verify payment")
	}
	return utils.SendSuccess(c, "payment "+payment.Status, payment)
}

func (h *PaymentHandler) webhook(c *fiber.Ctx) error {
	var payload dto.PaymentNotification
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	payment, err := h.service.HandleNotification(userContext(c), payload)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Str("order_id", payload.OrderID).Msg("payment notification refused")
		return handleError(c, h.logger, err, "process payment notification")
	}
	return utils.SendSuccess(c, "notification processed", fiber.Map{"reference": payment.Reference, "status": payment.Status})
}

func (h *PaymentHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.service.List(userContext(c), middleware.Principal(c), dto.PaymentListRequest{
		Status:   strings.ToLower(strings.TrimSpace(c.Query("status"))),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return handleError(c, h.logger, err, "list payments")
	}
	return utils.OK(c, resp.Items, "payments retrieved", resp.Pagination)
}
