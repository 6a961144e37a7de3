package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/digischool/exam-api/internal/service"
	"github.com/digischool/exam-api/internal/utils"
)

// ResultHandler serves published results and exam statistics.
type ResultHandler struct {
	service service.ResultService
	logger  zerolog.Logger
}

// NewResultHandler builds a result handler instance.
func NewResultHandler(service service.ResultService, logger zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		service: service,
		logger:  logger.With().Str("component", "result_handler").Logger(),
	}
}

// Register attaches the routes to the provided exam router group.
func (h *ResultHandler) Register(router fiber.Router) {
	router.Get("/:examId/result", h.getResult)
	router.Get("/:examId/statistics", h.statistics)
}

func (h *ResultHandler) getResult(c *fiber.Ctx) error {
	examID := c.Params("examId")
	studentID := userIDFromContext(c)
	if studentID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	// Evaluators may inspect another student's result explicitly.
	if requested := c.Query("student_id"); requested != "" {
		role := userRoleFromContext(c)
		if role != "admin" && role != "teacher" {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		studentID = requested
	}

	result, err := h.service.GetStudentResult(c.UserContext(), studentID, examID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "result retrieved", result)
}

func (h *ResultHandler) statistics(c *fiber.Ctx) error {
	examID := c.Params("examId")

	stats, err := h.service.Statistics(c.UserContext(), examID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "statistics retrieved", stats)
}

func (h *ResultHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrResultNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "result not found")
	case errors.Is(err, service.ErrResultNotReady), errors.Is(err, service.ErrEvaluationsPending):
		return utils.SendError(c, fiber.StatusAccepted, "result is not published yet")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
