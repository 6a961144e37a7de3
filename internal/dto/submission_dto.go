package dto

import (
	"time"

	"gorm.io/datatypes"

	"github.com/digischool/exam-api/internal/models"
)

// SubmitExamRequest is the final-submission payload. Answers is the flat
// legacy document keyed by question id, with `${id}_images` and
// `${id}_marks` sibling keys left intact.
type SubmitExamRequest struct {
	Answers map[string]interface{} `json:"answers" validate:"required"`
	// Phase selects which section is being closed: "objective", "cq_sq"
	// or "" for a single-phase final submission.
	Phase string `json:"phase" validate:"omitempty,oneof=objective cq_sq final"`
}

// SubmitExamResponse reports the outcome of a submission.
type SubmitExamResponse struct {
	SubmissionID          string          `json:"submission_id"`
	Status                string          `json:"status"`
	AutoGraded            bool            `json:"auto_graded"`
	Suspended             bool            `json:"suspended"`
	ExceededQuestionLimit bool            `json:"exceeded_question_limit"`
	Message               string          `json:"message,omitempty"`
	Result                *ResultResponse `json:"result,omitempty"`
}

// SubmissionResponse serializes a stored submission for evaluators.
type SubmissionResponse struct {
	ID                    string            `json:"id"`
	StudentID             string            `json:"student_id"`
	ExamID                string            `json:"exam_id"`
	ExamSetID             *string           `json:"exam_set_id"`
	Answers               datatypes.JSONMap `json:"answers"`
	Status                string            `json:"status"`
	SubmittedAt           *time.Time        `json:"submitted_at"`
	ExceededQuestionLimit bool              `json:"exceeded_question_limit"`
	Score                 *float64          `json:"score"`
	EvaluatorNotes        string            `json:"evaluator_notes"`
	EvaluatedAt           *time.Time        `json:"evaluated_at"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// NewSubmissionResponse converts an ExamSubmission model into a DTO.
func NewSubmissionResponse(model models.ExamSubmission) SubmissionResponse {
	return SubmissionResponse{
		ID:                    model.ID,
		StudentID:             model.StudentID,
		ExamID:                model.ExamID,
		ExamSetID:             model.ExamSetID,
		Answers:               model.Answers,
		Status:                model.Status,
		SubmittedAt:           model.SubmittedAt,
		ExceededQuestionLimit: model.ExceededQuestionLimit,
		Score:                 model.Score,
		EvaluatorNotes:        model.EvaluatorNotes,
		EvaluatedAt:           model.EvaluatedAt,
		CreatedAt:             model.CreatedAt,
		UpdatedAt:             model.UpdatedAt,
	}
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(submissions []models.ExamSubmission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
