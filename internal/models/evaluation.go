package models

import "time"

// EvaluationAssignment maps an evaluator (teacher or admin) to an exam they
// may review. Evaluation progress per submission is derived from the
// submission itself, never stored here.
type EvaluationAssignment struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	ExamID      string    `gorm:"size:36;uniqueIndex:idx_evaluation_exam_evaluator;not null" json:"exam_id"`
	EvaluatorID string    `gorm:"size:36;uniqueIndex:idx_evaluation_exam_evaluator;not null" json:"evaluator_id"`
	AssignedBy  string    `gorm:"size:36" json:"assigned_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Derived per-submission evaluation states.
const (
	EvaluationStatusPending    = "PENDING"
	EvaluationStatusInProgress = "IN_PROGRESS"
	EvaluationStatusCompleted  = "COMPLETED"
)
