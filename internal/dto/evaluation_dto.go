package dto

import (
	"time"

	"github.com/digischool/exam-api/internal/grading"
	"github.com/digischool/exam-api/internal/models"
)

// SaveMarksRequest stores per-question manual marks for one submission.
// Marks is keyed by question id; values must not exceed the question's
// maximum.
type SaveMarksRequest struct {
	StudentID string             `json:"student_id" validate:"required"`
	Marks     map[string]float64 `json:"marks" validate:"required,min=1"`
	Notes     string             `json:"notes" validate:"omitempty,max=4000"`
}

// SubmitEvaluationsRequest finalizes every evaluated submission of an exam.
type SubmitEvaluationsRequest struct {
	Comment string `json:"comment" validate:"omitempty,max=4000"`
}

// QuestionBreakdown is the evaluator's per-question view of one submission.
type QuestionBreakdown struct {
	QuestionID  string        `json:"question_id"`
	Type        string        `json:"type"`
	Text        string        `json:"text"`
	MaxMarks    float64       `json:"max_marks"`
	Earned      float64       `json:"earned"`
	IsCorrect   bool          `json:"is_correct"`
	Answered    bool          `json:"answered"`
	NeedsManual bool          `json:"needs_manual"`
	Answer      interface{}   `json:"answer"`
	Images      []interface{} `json:"images,omitempty"`
	ManualMarks *float64      `json:"manual_marks,omitempty"`
}

// EvaluationRow pairs a submission with its graded breakdown.
type EvaluationRow struct {
	Submission SubmissionResponse  `json:"submission"`
	Breakdown  []QuestionBreakdown `json:"breakdown"`
	MCQMarks   float64             `json:"mcq_marks"`
	CQMarks    float64             `json:"cq_marks"`
	SQMarks    float64             `json:"sq_marks"`
	Total      float64             `json:"total"`
}

// EvaluationListResponse is the evaluator worklist for one exam.
type EvaluationListResponse struct {
	ExamID    string          `json:"exam_id"`
	Status    string          `json:"status"`
	Rows      []EvaluationRow `json:"rows"`
	TotalRows int             `json:"total_rows"`
	Evaluated int             `json:"evaluated"`
	Remaining int             `json:"remaining"`
}

// NewQuestionBreakdown builds the per-question evaluator view from a grading
// outcome and the stored answer entry.
func NewQuestionBreakdown(q grading.Question, res grading.QuestionResult, entry grading.AnswerEntry) QuestionBreakdown {
	return QuestionBreakdown{
		QuestionID:  q.ID,
		Type:        string(res.Type),
		Text:        q.Text,
		MaxMarks:    res.MaxMarks,
		Earned:      res.Earned,
		IsCorrect:   res.IsCorrect,
		Answered:    res.Answered,
		NeedsManual: res.NeedsManual,
		Answer:      entry.Value,
		Images:      entry.Images,
		ManualMarks: entry.ManualMarks,
	}
}

// EvaluationAssignmentResponse serializes an evaluator assignment.
type EvaluationAssignmentResponse struct {
	ID          string    `json:"id"`
	ExamID      string    `json:"exam_id"`
	EvaluatorID string    `json:"evaluator_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewEvaluationAssignmentResponse converts an assignment model into a DTO.
func NewEvaluationAssignmentResponse(model models.EvaluationAssignment) EvaluationAssignmentResponse {
	return EvaluationAssignmentResponse{
		ID:          model.ID,
		ExamID:      model.ExamID,
		EvaluatorID: model.EvaluatorID,
		CreatedAt:   model.CreatedAt,
	}
}
