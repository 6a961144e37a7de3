package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/digischool/exam-api/internal/dto"
	"github.com/digischool/exam-api/internal/service"
	"github.com/digischool/exam-api/internal/utils"
)

// SubmissionHandler manages the student submission endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided exam router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Post("/:examId/start", h.start)
	router.Post("/:examId/submit", h.submit)
}

func (h *SubmissionHandler) start(c *fiber.Ctx) error {
	examID := c.Params("examId")
	studentID := userIDFromContext(c)
	if studentID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	var payload struct {
		Phase string `json:"phase"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	submission, err := h.service.Start(c.UserContext(), studentID, examID, payload.Phase)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exam session started", submission)
}

func (h *SubmissionHandler) submit(c *fiber.Ctx) error {
	examID := c.Params("examId")
	studentID := userIDFromContext(c)
	if studentID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	if err := validateSubmitBody(c.Body()); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission payload")
	}

	var payload dto.SubmitExamRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Submit(c.UserContext(), studentID, examID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	message := response.Message
	if message == "" {
		message = "submission accepted"
	}

	return utils.SendSuccess(c, message, response)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrExamNotStarted):
		return utils.SendError(c, fiber.StatusForbidden, "exam has not started yet")
	case errors.Is(err, service.ErrExamEnded):
		return utils.SendError(c, fiber.StatusForbidden, "exam window has closed")
	case errors.Is(err, service.ErrSectionTimeExpired):
		return utils.SendError(c, fiber.StatusForbidden, "section time limit expired")
	case errors.Is(err, service.ErrRetakeNotAllowed):
		return utils.SendError(c, fiber.StatusConflict, "exam was already submitted")
	case errors.Is(err, service.ErrEmptyAnswers):
		return utils.SendError(c, fiber.StatusBadRequest, "answers payload is empty")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
