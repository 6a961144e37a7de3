package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/digischool/exam-api/internal/config"
	"github.com/digischool/exam-api/internal/handler"
	"github.com/digischool/exam-api/internal/middleware"
	"github.com/digischool/exam-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	ResultHandler     *handler.ResultHandler
	EvaluationHandler *handler.EvaluationHandler
	ActivityHandler   *handler.ActivityHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Exams: student session, submission and results
	if deps.SubmissionHandler != nil {
		exams := app.Group("/api/v2/exams", jwtMiddleware)
		deps.SubmissionHandler.Register(exams)
		if deps.ResultHandler != nil {
			deps.ResultHandler.Register(exams)
		}
	}

	// Evaluations: teacher/admin grading surface
	if deps.EvaluationHandler != nil {
		evaluations := app.Group("/api/v2/evaluations", jwtMiddleware, middleware.RequireRole("teacher", "admin"))
		deps.EvaluationHandler.Register(evaluations)
	}

	// Audit trail
	if deps.ActivityHandler != nil {
		activities := app.Group("/api/v2/activities", jwtMiddleware, middleware.RequireRole("admin"))
		deps.ActivityHandler.Register(activities)
	}
}
