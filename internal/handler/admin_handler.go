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

// AdminHandler serves the platform operator endpoints: tenant review and payments overview.
type AdminHandler struct {
	schools  service.SchoolService
	payments service.PaymentService
	logger   zerolog.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(schools service.SchoolService, payments service.PaymentService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		schools:  schools,
		payments: payments,
		logger:   logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register attaches the super-admin routes.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/schools", h.listSchools)
	router.Get("/schools/:id", h.getSchool)
	router.Patch("/schools/:id/approve", h.approveSchool)
	router.Patch("/schools/:id/suspend", h.suspendSchool)
	if h.payments != nil {
		router.Get("/payments", h.listPayments)
	}
}

func (h *AdminHandler) listSchools(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.schools.List(userContext(c), middleware.Principal(c), dto.SchoolListRequest{
		Status:   strings.ToLower(strings.TrimSpace(c.Query("status"))),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return handleError(c, h.logger, err, "list schools")
	}
	return utils.OK(c, resp.Items, "schools retrieved", resp.Pagination)
}

func (h *AdminHandler) getSchool(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	school, err := h.schools.Get(userContext(c), middleware.Principal(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "fetch school")
	}
	return utils.SendSuccess(c, "school retrieved", school)
}

func (h *AdminHandler) approveSchool(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	school, err := h.schools.Approve(userContext(c), middleware.Principal(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "approve school")
	}
	return utils.SendSuccess(c, "school approved", school)
}

func (h *AdminHandler) suspendSchool(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	school, err := h.schools.Suspend(userContext(c), middleware.Principal(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "suspend school")
	}
	return utils.SendSuccess(c, "school suspended", school)
}

func (h *AdminHandler) listPayments(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	schoolID, err := parseOptionalUintQuery(c, "school_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid school id")
	}

	resp, err := h.payments.List(userContext(c), middleware.Principal(c), dto.PaymentListRequest{
		SchoolID: schoolID,
		Status:   strings.ToLower(strings.TrimSpace(c.Query("status"))),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return handleError(c, h.logger, err, "list payments")
	}
	return utils.OK(c, resp.Items, "payments retrieved", resp.Pagination)
}
