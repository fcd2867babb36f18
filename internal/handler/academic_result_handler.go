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

// AcademicResultHandler exposes the term result approval pipeline.
type AcademicResultHandler struct {
	service service.AcademicResultService
	logger  zerolog.Logger
}

// NewAcademicResultHandler constructs the handler.
func NewAcademicResultHandler(service service.AcademicResultService, logger zerolog.Logger) *AcademicResultHandler {
	return &AcademicResultHandler{
		service: service,
		logger:  logger.With().Str("component", "academic_result_handler").Logger(),
	}
}

// Register attaches the staff routes.
func (h *AcademicResultHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Post("/submit", h.submit)
	router.Post("/publish", h.publish)
	router.Patch("/:id", h.update)
	router.Patch("/:id/approve", h.approve)
	router.Patch("/:id/reject", h.reject)
}

// RegisterStudent attaches the published-results route for students.
func (h *AcademicResultHandler) RegisterStudent(router fiber.Router) {
	router.Get("", h.listForStudent)
}

func (h *AcademicResultHandler) create(c *fiber.Ctx) error {
	var payload dto.AcademicResultCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Create(userContext(c), middleware.Principal(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "create academic result")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "academic result created", result)
}

func (h *AcademicResultHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AcademicResultUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Update(userContext(c), middleware.Principal(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "update academic result")
	}
	return utils.SendSuccess(c, "academic result updated", result)
}

func (h *AcademicResultHandler) submit(c *fiber.Ctx) error {
	var payload dto.AcademicResultIDsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.service.Submit(userContext(c), middleware.Principal(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "submit academic results")
	}
	return utils.SendSuccess(c, "academic results submitted", resp)
}

func (h *AcademicResultHandler) approve(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AcademicResultApproveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	result, err := h.service.Approve(userContext(c), middleware.Principal(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "approve academic result")
	}
	return utils.SendSuccess(c, "academic result approved", result)
}

func (h *AcademicResultHandler) reject(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AcademicResultRejectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Reject(userContext(c), middleware.Principal(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "reject academic result")
	}
	return utils.SendSuccess(c, "academic result returned to draft", result)
}

func (h *AcademicResultHandler) publish(c *fiber.Ctx) error {
	var payload dto.AcademicResultPublishRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.service.Publish(userContext(c), middleware.Principal(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "publish academic results")
	}
	return utils.SendSuccess(c, "academic results published", resp)
}

func (h *AcademicResultHandler) list(c *fiber.Ctx) error {
	req, err := academicResultFilter(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.service.List(userContext(c), middleware.Principal(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "list academic results")
	}
	return utils.SendSuccess(c, "academic results retrieved", results)
}

func (h *AcademicResultHandler) listForStudent(c *fiber.Ctx) error {
	req, err := academicResultFilter(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	results, err := h.service.ListForStudent(userContext(c), middleware.Principal(c), req)
	if err != nil {
		return handleError(c, h.logger, err, "list academic results")
	}
	return utils.SendSuccess(c, "academic results retrieved", results)
}

func academicResultFilter(c *fiber.Ctx) (dto.AcademicResultListRequest, error) {
	var req dto.AcademicResultListRequest
	var err error
	if req.ClassID, err = parseOptionalUintQuery(c, "class_id"); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "invalid class id")
	}
	if req.SubjectID, err = parseOptionalUintQuery(c, "subject_id"); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "invalid subject id")
	}
	if req.StudentID, err = parseOptionalUintQuery(c, "student_id"); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "invalid student id")
	}
	req.Term = strings.ToLower(strings.TrimSpace(c.Query("term")))
	req.Session = strings.TrimSpace(c.Query("session"))
	req.Status = strings.ToUpper(strings.TrimSpace(c.Query("status")))
	return req, nil
}
