package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/middleware"
	"github.com/noah-isme/cbt-go-api/internal/service"
	"github.com/noah-isme/cbt-go-api/internal/utils"
)

// AuthHandler exposes login, school registration and the current-user endpoint.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterPublic binds the unauthenticated routes.
func (h *AuthHandler) RegisterPublic(router fiber.Router) {
	router.Post("/login", h.login)
	router.Post("/register-school", h.registerSchool)
}

// RegisterProtected binds routes that need a verified token.
func (h *AuthHandler) RegisterProtected(router fiber.Router) {
	router.Get("/me", middleware.WithAuth(h.me, middleware.AuthOptions{RequireUser: true}))
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	resp, err := h.service.Login(userContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "log in")
	}
	return utils.SendSuccess(c, "login successful", resp)
}

func (h *AuthHandler) registerSchool(c *fiber.Ctx) error {
	var payload dto.RegisterSchoolRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	school, err := h.service.RegisterSchool(userContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err, "register school")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "school registered, awaiting approval", school)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	user, err := h.service.Me(userContext(c), middleware.Principal(c))
	if err != nil {
		return handleError(c, h.logger, err, "load account")
	}
	return utils.SendSuccess(c, "account retrieved", user)
}
