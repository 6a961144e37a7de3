package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/digischool/exam-api/internal/config"
	"github.com/digischool/exam-api/internal/database"
	"github.com/digischool/exam-api/internal/dto"
	"github.com/digischool/exam-api/internal/handler"
	"github.com/digischool/exam-api/internal/models"
	"github.com/digischool/exam-api/internal/repository"
	"github.com/digischool/exam-api/internal/router"
	"github.com/digischool/exam-api/internal/service"
)

func setupExamApp(t *testing.T, dsn string) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.Nop()

	examRepo := repository.NewExamRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	resultRepo := repository.NewResultRepository(db)
	assignmentRepo := repository.NewEvaluationAssignmentRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	atomic := repository.NewAtomic(db)

	activityService := service.NewActivityService(activityRepo, logger)
	events := service.NewResultEventPublisher(nil, nil, "exam", logger)
	releaseService := service.NewReleaseService(examRepo, submissionRepo, resultRepo, atomic, activityService, events, logger)
	submissionService := service.NewSubmissionService(examRepo, submissionRepo, atomic, validate, activityService, events, releaseService, logger)
	evaluationService := service.NewEvaluationService(examRepo, submissionRepo, resultRepo, assignmentRepo, releaseService, validate, activityService, logger)
	resultService := service.NewResultService(examRepo, resultRepo, submissionRepo, releaseService, nil, 0, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		ResultHandler:     handler.NewResultHandler(resultService, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, releaseService, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if id := c.Get("X-Test-User"); id != "" {
				c.Locals("user_id", id)
			}
			if role := c.Get("X-Test-Role"); role != "" {
				c.Locals("user_role", role)
			}
			return c.Next()
		},
	})

	return app, db
}

func seedObjectiveExam(t *testing.T, db *gorm.DB) models.Exam {
	t.Helper()

	questions, err := json.Marshal([]map[string]interface{}{
		{
			"id": "q1", "type": "mcq", "text": "pick a colour", "marks": 2.0,
			"options": []map[string]interface{}{
				{"text": "Red", "isCorrect": true},
				{"text": "Green", "isCorrect": false},
			},
		},
		{
			"id": "q2", "type": "mcq", "text": "pick another", "marks": 2.0,
			"options": []map[string]interface{}{
				{"text": "Red", "isCorrect": false},
				{"text": "Green", "isCorrect": true},
			},
		},
	})
	require.NoError(t, err)

	exam := models.Exam{
		ID:         "exam-obj",
		Name:       "Objective Exam",
		TotalMarks: 4,
		StartTime:  time.Now().Add(-time.Hour),
		EndTime:    time.Now().Add(time.Hour),
		IsActive:   true,
		ExamSets: []models.ExamSet{
			{ID: "set-a", ExamID: "exam-obj", Name: "A", QuestionsJSON: datatypes.JSON(questions)},
		},
	}
	require.NoError(t, db.Create(&exam).Error)

	return exam
}

func seedMixedExam(t *testing.T, db *gorm.DB) models.Exam {
	t.Helper()

	questions, err := json.Marshal([]map[string]interface{}{
		{
			"id": "q1", "type": "mcq", "text": "pick a colour", "marks": 2.0,
			"options": []map[string]interface{}{
				{"text": "Red", "isCorrect": true},
				{"text": "Green", "isCorrect": false},
			},
		},
		{"id": "c1", "type": "cq", "text": "explain in detail", "marks": 10.0},
	})
	require.NoError(t, err)

	exam := models.Exam{
		ID:         "exam-mixed",
		Name:       "Mixed Exam",
		TotalMarks: 12,
		StartTime:  time.Now().Add(-time.Hour),
		EndTime:    time.Now().Add(time.Hour),
		IsActive:   true,
		ExamSets: []models.ExamSet{
			{ID: "set-m", ExamID: "exam-mixed", Name: "A", QuestionsJSON: datatypes.JSON(questions)},
		},
	}
	require.NoError(t, db.Create(&exam).Error)

	return exam
}

func authedRequest(method, target, userID, role string, body interface{}) *http.Request {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}

	return req
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func TestSubmissionHandlerStartAndSubmit(t *testing.T) {
	app, db := setupExamApp(t, "file:submission_handler?mode=memory&cache=shared")
	seedObjectiveExam(t, db)

	startResp, err := app.Test(authedRequest("POST", "/api/v2/exams/exam-obj/start", "student-1", "student", map[string]interface{}{
		"phase": "objective",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, startResp.StatusCode)

	var startBody struct {
		Success bool                   `json:"success"`
		Data    dto.SubmissionResponse `json:"data"`
		Message string                 `json:"message"`
	}
	decodeResponse(t, startResp, &startBody)
	require.True(t, startBody.Success)
	require.NotEmpty(t, startBody.Data.ID)
	require.Equal(t, models.SubmissionStatusInProgress, startBody.Data.Status)

	submitResp, err := app.Test(authedRequest("POST", "/api/v2/exams/exam-obj/submit", "student-1", "student", map[string]interface{}{
		"answers": map[string]interface{}{"q1": "Red", "q2": "Green"},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, submitResp.StatusCode)

	var submitBody struct {
		Success bool                   `json:"success"`
		Data    dto.SubmitExamResponse `json:"data"`
	}
	decodeResponse(t, submitResp, &submitBody)
	require.True(t, submitBody.Success)
	require.True(t, submitBody.Data.AutoGraded)
	require.False(t, submitBody.Data.Suspended)
	require.NotNil(t, submitBody.Data.Result)
	require.InDelta(t, 4.0, submitBody.Data.Result.Total, 0.001)
	require.Equal(t, "A+", submitBody.Data.Result.Grade)
	require.True(t, submitBody.Data.Result.IsPublished)
}

func TestSubmissionHandlerErrorMapping(t *testing.T) {
	app, db := setupExamApp(t, "file:submission_errors?mode=memory&cache=shared")
	seedObjectiveExam(t, db)

	// missing authentication
	resp, err := app.Test(authedRequest("POST", "/api/v2/exams/exam-obj/submit", "", "", map[string]interface{}{
		"answers": map[string]interface{}{"q1": "Red"},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// unknown exam
	resp, err = app.Test(authedRequest("POST", "/api/v2/exams/missing/submit", "student-1", "student", map[string]interface{}{
		"answers": map[string]interface{}{"q1": "Red"},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// empty answers rejected before the service runs
	resp, err = app.Test(authedRequest("POST", "/api/v2/exams/exam-obj/submit", "student-1", "student", map[string]interface{}{
		"answers": map[string]interface{}{},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// retake after a final submission
	answers := map[string]interface{}{"answers": map[string]interface{}{"q1": "Red"}}
	resp, err = app.Test(authedRequest("POST", "/api/v2/exams/exam-obj/submit", "student-2", "student", answers))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(authedRequest("POST", "/api/v2/exams/exam-obj/submit", "student-2", "student", answers))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
