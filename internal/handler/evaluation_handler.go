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

// EvaluationHandler manages the evaluator endpoints.
type EvaluationHandler struct {
	service  service.EvaluationService
	releaser service.ReleaseService
	logger   zerolog.Logger
}

// NewEvaluationHandler builds an evaluation handler instance.
func NewEvaluationHandler(service service.EvaluationService, releaser service.ReleaseService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:  service,
		releaser: releaser,
		logger:   logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Get("/:examId", h.list)
	router.Post("/:examId/marks", h.saveMarks)
	router.Post("/:examId/submit", h.submitAll)
	router.Post("/:examId/release", h.release)
}

func (h *EvaluationHandler) list(c *fiber.Ctx) error {
	worklist, err := h.service.ListExam(c.UserContext(), c.Params("examId"), activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluations retrieved", worklist)
}

func (h *EvaluationHandler) saveMarks(c *fiber.Ctx) error {
	var payload dto.SaveMarksRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.SaveMarks(c.UserContext(), c.Params("examId"), activityActorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "marks saved", submission)
}

func (h *EvaluationHandler) submitAll(c *fiber.Ctx) error {
	var payload dto.SubmitEvaluationsRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	summary, err := h.service.SubmitAll(c.UserContext(), c.Params("examId"), activityActorFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluations submitted", summary)
}

// release force-publishes an exam's results. Admin only; the router guards
// the role.
func (h *EvaluationHandler) release(c *fiber.Ctx) error {
	summary, err := h.releaser.FinalizeExam(c.UserContext(), c.Params("examId"), "manual")
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "results released", summary)
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrNotAssigned):
		return utils.SendError(c, fiber.StatusForbidden, "evaluator is not assigned to this exam")
	case errors.Is(err, service.ErrResultSuspended):
		return utils.SendError(c, fiber.StatusConflict, "result is suspended")
	case errors.Is(err, service.ErrUnknownQuestion):
		return utils.SendError(c, fiber.StatusBadRequest, "marks reference a question outside the exam")
	case errors.Is(err, service.ErrNotSubjective):
		return utils.SendError(c, fiber.StatusBadRequest, "marks may only be saved on cq and sq questions")
	case errors.Is(err, service.ErrMarksExceedMax):
		return utils.SendError(c, fiber.StatusBadRequest, "marks exceed the question maximum")
	case errors.Is(err, service.ErrEvaluationsPending):
		return utils.SendError(c, fiber.StatusConflict, "submissions are still awaiting evaluation")
	case errors.Is(err, service.ErrNothingToFinalize):
		return utils.SendError(c, fiber.StatusConflict, "no evaluated submissions to finalize")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
