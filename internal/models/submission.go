package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExamSubmission is the single submission row for one (student, exam) pair.
// Answers is the legacy flat document: question id mapped to the raw answer
// value, with `${id}_images` and `${id}_marks` sibling keys. The shape is
// preserved bit-exact for compatibility with existing clients.
type ExamSubmission struct {
	ID        string  `gorm:"primaryKey;size:36" json:"id"`
	StudentID string  `gorm:"size:36;uniqueIndex:idx_submission_student_exam;not null" json:"student_id"`
	ExamID    string  `gorm:"size:36;uniqueIndex:idx_submission_student_exam;not null" json:"exam_id"`
	ExamSetID *string `gorm:"size:36" json:"exam_set_id"`

	Answers datatypes.JSONMap `gorm:"type:json" json:"answers"`
	Status  string            `gorm:"size:32;not null;default:IN_PROGRESS" json:"status"`

	StartedAt            *time.Time `json:"started_at"`
	ObjectiveStartedAt   *time.Time `json:"objective_started_at"`
	CqSqStartedAt        *time.Time `json:"cq_sq_started_at"`
	ObjectiveStatus      string     `gorm:"size:32" json:"objective_status"`
	CqSqStatus           string     `gorm:"size:32" json:"cq_sq_status"`
	ObjectiveSubmittedAt *time.Time `json:"objective_submitted_at"`
	CqSqSubmittedAt      *time.Time `json:"cq_sq_submitted_at"`
	SubmittedAt          *time.Time `json:"submitted_at"`

	ExceededQuestionLimit bool       `json:"exceeded_question_limit"`
	Score                 *float64   `json:"score"`
	EvaluatorNotes        string     `gorm:"type:text" json:"evaluator_notes"`
	EvaluatedAt           *time.Time `json:"evaluated_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// SubmissionStatusInProgress marks a session that started but has not
	// been finally submitted.
	SubmissionStatusInProgress = "IN_PROGRESS"
	// SubmissionStatusSubmitted marks a finalized submission.
	SubmissionStatusSubmitted = "SUBMITTED"
)

// IsSubmitted reports whether the submission reached its final phase.
func (s ExamSubmission) IsSubmitted() bool {
	return s.Status == SubmissionStatusSubmitted
}

// IsEvaluated reports whether grading has stamped the submission.
func (s ExamSubmission) IsEvaluated() bool {
	return s.EvaluatedAt != nil
}
