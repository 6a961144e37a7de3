package models

import "time"

// Result carries the graded outcome for one (student, exam) pair. A result
// row exists as soon as grading starts; IsPublished gates student
// visibility.
type Result struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	StudentID string `gorm:"size:36;uniqueIndex:idx_result_student_exam;not null" json:"student_id"`
	ExamID    string `gorm:"size:36;uniqueIndex:idx_result_student_exam;not null" json:"exam_id"`

	MCQMarks   float64 `json:"mcq_marks"`
	CQMarks    float64 `json:"cq_marks"`
	SQMarks    float64 `json:"sq_marks"`
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
	Grade      string  `gorm:"size:8" json:"grade"`
	Rank       *int    `json:"rank"`

	Status           string `gorm:"size:32;not null;default:NORMAL" json:"status"`
	Comment          string `gorm:"type:text" json:"comment"`
	SuspensionReason string `gorm:"size:255" json:"suspension_reason"`

	IsPublished bool       `json:"is_published"`
	PublishedAt *time.Time `json:"published_at"`

	ExamSubmissionID string `gorm:"size:36" json:"exam_submission_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// ResultStatusNormal is a regularly graded result.
	ResultStatusNormal = "NORMAL"
	// ResultStatusSuspended marks a result zeroed by the question-limit
	// policy. Suspension is terminal and disclosed immediately.
	ResultStatusSuspended = "SUSPENDED"
)

// IsSuspended reports whether the result was voided by the limit policy.
func (r Result) IsSuspended() bool {
	return r.Status == ResultStatusSuspended
}
