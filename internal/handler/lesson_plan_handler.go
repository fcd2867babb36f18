package handler

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/middleware"
	"github.com/noah-isme/cbt-go-api/internal/service"
	"github.com/noah-isme/cbt-go-api/internal/utils"
)

const lessonPlanAttachmentField = "attachment"

// LessonPlanHandler exposes lesson plan authoring and review. Create and update accept either
// JSON or a multipart form carrying an optional attachment.
type LessonPlanHandler struct {
	service service.LessonPlanService
	logger  zerolog.Logger
}

// NewLessonPlanHandler constructs the handler.
func NewLessonPlanHandler(service service.LessonPlanService, logger zerolog.Logger) *LessonPlanHandler {
	return &LessonPlanHandler{
		service: service,
		logger:  logger.With().Str("component", "lesson_plan_handler").Logger(),
	}
}

// Register attaches the lesson plan routes.
func (h *LessonPlanHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Post("/:id/submit", h.submit)
	router.Patch("/:id/review", h.review)
}

func (h *LessonPlanHandler) create(c *fiber.Ctx) error {
	var payload dto.LessonPlanCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	file, err := attachmentFrom(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attachment")
	}

	plan, err := h.service.Create(userContext(c), middleware.Principal(c), payload, file)
	if err != nil {
		return handleError(c, h.logger, err, "create lesson plan")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "lesson plan created", plan)
}

func (h *LessonPlanHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.LessonPlanUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	file, err := attachmentFrom(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attachment")
	}

	plan, err := h.service.Update(userContext(c), middleware.Principal(c), id, payload, file)
	if err != nil {
		return handleError(c, h.logger, err, "update lesson plan")
	}
	return utils.SendSuccess(c, "lesson plan updated", plan)
}

func (h *LessonPlanHandler) submit(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	plan, err := h.service.Submit(userContext(c), middleware.Principal(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "submit lesson plan")
	}
	return utils.SendSuccess(c, "lesson plan submitted", plan)
}

func (h *LessonPlanHandler) review(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.LessonPlanReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	payload.Action = strings.ToLower(strings.TrimSpace(payload.Action))

	plan, err := h.service.Review(userContext(c), middleware.Principal(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "review lesson plan")
	}
	return utils.SendSuccess(c, "lesson plan reviewed", plan)
}

func (h *LessonPlanHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	plan, err := h.service.Get(userContext(c), middleware.Principal(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "fetch lesson plan")
	}
	return utils.SendSuccess(c, "lesson plan retrieved", plan)
}

func (h *LessonPlanHandler) list(c *fiber.Ctx) error {
	subjectID, err := parseOptionalUintQuery(c, "subject_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid subject id")
	}
	classID, err := parseOptionalUintQuery(c, "class_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid class id")
	}

	plans, err := h.service.List(userContext(c), middleware.Principal(c), dto.LessonPlanListRequest{
		SubjectID: subjectID,
		ClassID:   classID,
		Term:      strings.ToLower(strings.TrimSpace(c.Query("term"))),
		Session:   strings.TrimSpace(c.Query("session")),
		Status:    strings.ToUpper(strings.TrimSpace(c.Query("status"))),
	})
	if err != nil {
		return handleError(c, h.logger, err, "list lesson plans")
	}
	return utils.SendSuccess(c, "lesson plans retrieved", plans)
}

// attachmentFrom returns the uploaded attachment of a multipart request, or nil.
func attachmentFrom(c *fiber.Ctx) (*multipart.FileHeader, error) {
	if !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	if files := form.File[lessonPlanAttachmentField]; len(files) > 0 {
		return files[0], nil
	}
	return nil, nil
}
