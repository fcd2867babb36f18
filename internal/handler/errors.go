package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/service"
	"github.com/noah-isme/cbt-go-api/internal/utils"
	"github.com/noah-isme/cbt-go-api/internal/workflow"
)

// handleError maps service errors onto the response envelope. Domain messages are surfaced
// verbatim; anything unrecognised is logged with the correlation id and hidden behind op.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error, op string) error {
	var transition *workflow.TransitionError
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, policy.ErrUnauthenticated):
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, policy.ErrForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.As(err, &transition):
		return utils.Fail(c, fiber.StatusBadRequest, err.Error(), fiber.Map{
			"from":   transition.From,
			"action": transition.Action,
		})
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrInvalidInput):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Str("operation", op).Msg("request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to "+op)
	}
}
