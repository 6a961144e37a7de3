package handler_test

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/digischool/exam-api/internal/dto"
	"github.com/digischool/exam-api/internal/models"
)

func TestEvaluationHandlerRoleGuard(t *testing.T) {
	app, db := setupExamApp(t, "file:evaluation_roles?mode=memory&cache=shared")
	seedMixedExam(t, db)

	resp, err := app.Test(authedRequest("GET", "/api/v2/evaluations/exam-mixed", "student-1", "student", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// teachers pass the role guard but still need an assignment
	resp, err = app.Test(authedRequest("GET", "/api/v2/evaluations/exam-mixed", "teacher-1", "teacher", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	require.NoError(t, db.Create(&models.EvaluationAssignment{
		ID:          "assign-1",
		ExamID:      "exam-mixed",
		EvaluatorID: "teacher-1",
	}).Error)

	resp, err = app.Test(authedRequest("GET", "/api/v2/evaluations/exam-mixed", "teacher-1", "teacher", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestEvaluationHandlerMarkAndSubmitFlow(t *testing.T) {
	app, db := setupExamApp(t, "file:evaluation_flow?mode=memory&cache=shared")
	seedMixedExam(t, db)

	require.NoError(t, db.Create(&models.EvaluationAssignment{
		ID:          "assign-1",
		ExamID:      "exam-mixed",
		EvaluatorID: "teacher-1",
	}).Error)

	resp, err := app.Test(authedRequest("POST", "/api/v2/exams/exam-mixed/submit", "student-1", "student", map[string]interface{}{
		"answers": map[string]interface{}{"q1": "Red", "c1": "a thorough answer"},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// the result is parked until the written answer gets marked
	resp, err = app.Test(authedRequest("GET", "/api/v2/exams/exam-mixed/result", "student-1", "student", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp, err = app.Test(authedRequest("GET", "/api/v2/evaluations/exam-mixed", "teacher-1", "teacher", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listBody struct {
		Success bool                       `json:"success"`
		Data    dto.EvaluationListResponse `json:"data"`
	}
	decodeResponse(t, resp, &listBody)
	require.True(t, listBody.Success)
	require.Equal(t, models.EvaluationStatusPending, listBody.Data.Status)
	require.Equal(t, 1, listBody.Data.TotalRows)
	require.Len(t, listBody.Data.Rows, 1)
	require.NotEmpty(t, listBody.Data.Rows[0].Breakdown)

	resp, err = app.Test(authedRequest("POST", "/api/v2/evaluations/exam-mixed/marks", "teacher-1", "teacher", map[string]interface{}{
		"student_id": "student-1",
		"marks":      map[string]float64{"c1": 8},
		"notes":      "well argued",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// marks beyond the question maximum are rejected
	resp, err = app.Test(authedRequest("POST", "/api/v2/evaluations/exam-mixed/marks", "teacher-1", "teacher", map[string]interface{}{
		"student_id": "student-1",
		"marks":      map[string]float64{"c1": 11},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(authedRequest("POST", "/api/v2/evaluations/exam-mixed/submit", "teacher-1", "teacher", map[string]interface{}{
		"comment": "good cohort",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var submitBody struct {
		Success bool               `json:"success"`
		Data    dto.ReleaseSummary `json:"data"`
	}
	decodeResponse(t, resp, &submitBody)
	require.True(t, submitBody.Success)
	require.Equal(t, 1, submitBody.Data.Released)

	resp, err = app.Test(authedRequest("GET", "/api/v2/exams/exam-mixed/result", "student-1", "student", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var resultBody struct {
		Success bool               `json:"success"`
		Data    dto.ResultResponse `json:"data"`
	}
	decodeResponse(t, resp, &resultBody)
	// mcq 2 + cq 8
	require.InDelta(t, 10.0, resultBody.Data.Total, 0.001)
	require.Equal(t, "good cohort", resultBody.Data.Comment)
	require.True(t, resultBody.Data.IsPublished)
}

func TestEvaluationHandlerAdminRelease(t *testing.T) {
	app, db := setupExamApp(t, "file:evaluation_release?mode=memory&cache=shared")
	seedObjectiveExam(t, db)

	resp, err := app.Test(authedRequest("POST", "/api/v2/exams/exam-obj/submit", "student-1", "student", map[string]interface{}{
		"answers": map[string]interface{}{"q1": "Red"},
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(authedRequest("POST", "/api/v2/evaluations/exam-obj/release", "admin-1", "admin", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool               `json:"success"`
		Data    dto.ReleaseSummary `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "manual", body.Data.Trigger)
}
