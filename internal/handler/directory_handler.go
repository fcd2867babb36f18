package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/middleware"
	"github.com/noah-isme/cbt-go-api/internal/service"
	"github.com/noah-isme/cbt-go-api/internal/utils"
)

// DirectoryHandler manages classes, subjects, teachers and students of the caller's school.
type DirectoryHandler struct {
	service service.DirectoryService
	logger  zerolog.Logger
}

// NewDirectoryHandler constructs the handler.
func NewDirectoryHandler(service service.DirectoryService, logger zerolog.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		service: service,
		logger:  logger.With().Str("component", "directory_handler").Logger(),
	}
}

// Register attaches the directory routes.
func (h *DirectoryHandler) Register(router fiber.Router) {
	router.Get("/classes", h.listClasses)
	router.Post("/classes", h.createClass)
	router.Get("/subjects", h.listSubjects)
	router.Post("/subjects", h.createSubject)
	router.Get("/teachers", h.listTeachers)
	router.Post("/teachers", h.createTeacher)
	router.Get("/students", h.listStudents)
	router.Post("/students", h.createStudent)
}

func (h *DirectoryHandler) listClasses(c *fiber.Ctx) error {
	classes, err := h.service.ListClasses(userContext(c), middleware.Principal(c))
	if err != nil {
		return handleError(c, h.logger, err, "list classes")
	}
	return utils.SendSuccess(c, "classes retrieved", classes)
}

func (h *DirectoryHandler) createClass(c *fiber.Ctx) error {
	var payload dto.ClassCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	class, err := h.service.CreateClass(userContext(c), middleware.Principal(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "create class")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "class created", class)
}

func (h *DirectoryHandler) listSubjects(c *fiber.Ctx) error {
	subjects, err := h.service.ListSubjects(userContext(c), middleware.Principal(c))
	if err != nil {
		return handleError(c, h.logger, err, "list subjects")
	}
	return utils.SendSuccess(c, "subjects retrieved", subjects)
}

func (h *DirectoryHandler) createSubject(c *fiber.Ctx) error {
	var payload dto.SubjectCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	subject, err := h.service.CreateSubject(userContext(c), middleware.Principal(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "create subject")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "subject created", subject)
}

func (h *DirectoryHandler) listTeachers(c *fiber.Ctx) error {
	teachers, err := h.service.ListTeachers(userContext(c), middleware.Principal(c))
	if err != nil {
		return handleError(c, h.logger, err, "list teachers")
	}
	return utils.SendSuccess(c, "teachers retrieved", teachers)
}

func (h *DirectoryHandler) createTeacher(c *fiber.Ctx) error {
	var payload dto.TeacherCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	teacher, err := h.service.CreateTeacher(userContext(c), middleware.Principal(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "create teacher")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "teacher created", teacher)
}

func (h *DirectoryHandler) listStudents(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	classID, err := parseOptionalUintQuery(c, "class_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid class id")
	}

	resp, err := h.service.ListStudents(userContext(c), middleware.Principal(c), dto.StudentListRequest{
		ClassID:  classID,
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return handleError(c, h.logger, err, "list students")
	}
	return utils.OK(c, resp.Items, "students retrieved", resp.Pagination)
}

func (h *DirectoryHandler) createStudent(c *fiber.Ctx) error {
	var payload dto.StudentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	student, err := h.service.CreateStudent(userContext(c), middleware.Principal(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "create student")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "student created", student)
}
