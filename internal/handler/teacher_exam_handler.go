package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/middleware"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/service"
	"github.com/noah-isme/cbt-go-api/internal/utils"
)

// TeacherExamHandler serves exam authoring, results, attempt resets, lifecycle control and
// the live monitor socket.
type TeacherExamHandler struct {
	exams   service.ExamService
	control service.ExamControlService
	results service.ExamResultService
	monitor service.ExamMonitorService
	logger  zerolog.Logger
}

// NewTeacherExamHandler constructs the handler.
func NewTeacherExamHandler(exams service.ExamService, control service.ExamControlService, results service.ExamResultService, monitor service.ExamMonitorService, logger zerolog.Logger) *TeacherExamHandler {
	return &TeacherExamHandler{
		exams:   exams,
		control: control,
		results: results,
		monitor: monitor,
		logger:  logger.With().Str("component", "teacher_exam_handler").Logger(),
	}
}

// Register attaches the teacher exam routes.
func (h *TeacherExamHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Delete("/:id", h.delete)
	router.Get("/:id/results", h.examResults)
	router.Post("/:id/reset", h.reset)
	router.Post("/:id/control", h.controlExam)
	if h.monitor != nil {
		router.Get("/:id/monitor", h.upgradeMonitor, websocket.New(h.serveMonitor))
	}
}

func (h *TeacherExamHandler) create(c *fiber.Ctx) error {
	var payload dto.ExamCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	exam, err := h.exams.Create(userContext(c), middleware.Principal(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "create exam")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "exam created", exam)
}

func (h *TeacherExamHandler) list(c *fiber.Ctx) error {
	classID, err := parseOptionalUintQuery(c, "class_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid class id")
	}
	subjectID, err := parseOptionalUintQuery(c, "subject_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid subject id")
	}

	exams, err := h.exams.List(userContext(c), middleware.Principal(c), dto.ExamListRequest{
		ClassID:   classID,
		SubjectID: subjectID,
		Mine:      c.QueryBool("mine"),
	})
	if err != nil {
		return handleError(c, h.logger, err, "list exams")
	}
	return utils.SendSuccess(c, "exams retrieved", exams)
}

func (h *TeacherExamHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	exam, err := h.exams.Get(userContext(c), middleware.Principal(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "fetch exam")
	}
	return utils.SendSuccess(c, "exam retrieved", exam)
}

func (h *TeacherExamHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.exams.Delete(userContext(c), middleware.Principal(c), id); err != nil {
		return handleError(c, h.logger, err, "delete exam")
	}
	return utils.SendSuccess(c, "exam deleted", fiber.Map{"id": id})
}

func (h *TeacherExamHandler) examResults(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.results.Results(userContext(c), middleware.Principal(c), id)
	if err != nil {
		return handleError(c, h.logger, err, "load exam results")
	}
	if resp.Stats.CacheHit {
		c.Set("X-Cache-Hit", "true")
	}
	return utils.SendSuccess(c, "exam results retrieved", resp)
}

func (h *TeacherExamHandler) reset(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ExamResetRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.control.Reset(userContext(c), middleware.Principal(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "reset exam attempts")
	}
	return utils.SendSuccess(c, "exam attempts reset", resp)
}

func (h *TeacherExamHandler) controlExam(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ExamControlRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	exam, err := h.control.Control(userContext(c), middleware.Principal(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "update exam status")
	}
	return utils.SendSuccess(c, "exam status updated", exam)
}

// upgradeMonitor authorizes the watcher before the protocol switch so that refusals are
// ordinary JSON responses.
func (h *TeacherExamHandler) upgradeMonitor(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	principal := middleware.Principal(c)
	if err := h.monitor.Authorize(userContext(c), principal, id); err != nil {
		return handleError(c, h.logger, err, "open exam monitor")
	}

	c.Locals("monitor_exam_id", id)
	c.Locals("monitor_principal", principal)
	return c.Next()
}

func (h *TeacherExamHandler) serveMonitor(conn *websocket.Conn) {
	examID, _ := conn.Locals("monitor_exam_id").(uint)
	principal, _ := conn.Locals("monitor_principal").(policy.Principal)
	if examID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "exam id missing"))
		_ = conn.Close()
		return
	}

	h.logger.Info().Uint("exam_id", examID).Uint("user_id", principal.UserID).Msg("exam monitor connected")
	h.monitor.ServeConnection(conn, examID, principal)
	h.logger.Info().Uint("exam_id", examID).Uint("user_id", principal.UserID).Msg("exam monitor disconnected")
}
