package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/middleware"
	"github.com/noah-isme/cbt-go-api/internal/service"
	"github.com/noah-isme/cbt-go-api/internal/utils"
)

// StudentExamHandler serves exam taking: listing, the paper, starting and submitting.
type StudentExamHandler struct {
	exams       service.ExamService
	submissions service.ExamSubmissionService
	results     service.ExamResultService
	logger      zerolog.Logger
}

// NewStudentExamHandler constructs the handler.
func NewStudentExamHandler(exams service.ExamService, submissions service.ExamSubmissionService, results service.ExamResultService, logger zerolog.Logger) *StudentExamHandler {
	return &StudentExamHandler{
		exams:       exams,
		submissions: submissions,
		results:     results,
		logger:      logger.With().Str("component", "student_exam_handler").Logger(),
	}
}

// Register attaches the student exam routes. submitGuard, when set, runs before submission
// (the submission rate limiter).
func (h *StudentExamHandler) Register(router fiber.Router, submitGuard fiber.Handler) {
	router.Get("", h.list)
	router.Get("/:id", h.paper)
	router.Post("/:id/start", h.start)
	if submitGuard != nil {
		router.Post("/:id/submit", submitGuard, h.submit)
	} else {
		router.Post("/:id/submit", h.submit)
	}
	router.Get("/:id/result", h.myResult)
}

func (h *StudentExamHandler) list(c *fiber.Ctx) error {
	exams, err := h.exams.ListForStudent(userContext(c), middleware.Principal(c))
	if err != nil {
		return handleError(c, h.logger, err, "list exams")
	}
	return utils.SendSuccess(c, "exams retrieved", exams)
}

func (h *StudentExamHandler) paper(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	paper, err := h.exams.Paper(userContext(c), middleware.Principal(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "load exam paper")
	}
	return utils.SendSuccess(c, "exam paper retrieved", paper)
}

func (h *StudentExamHandler) start(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempt, err := h.exams.Start(userContext(c), middleware.Principal(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "start exam")
	}
	return utils.SendSuccess(c, "exam started", attempt)
}

func (h *StudentExamHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ExamSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.submissions.Submit(userContext(c), middleware.Principal(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "submit exam")
	}
	return utils.SendSuccess(c, "exam submitted", result)
}

func (h *StudentExamHandler) myResult(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.results.MyResult(userContext(c), middleware.Principal(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "load result")
	}
	return utils.SendSuccess(c, "result retrieved", result)
}
