package models

import (
	"time"

	"gorm.io/datatypes"
)

// Exam holds the configuration of a single scheduled exam. Once students
// begin submitting, it is treated as immutable outside administrative
// correction.
type Exam struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	ClassID     string    `gorm:"size:36;index" json:"class_id"`
	Subject     string    `gorm:"size:128" json:"subject"`
	TotalMarks  float64   `gorm:"not null" json:"total_marks"`
	StartTime   time.Time `gorm:"not null" json:"start_time"`
	EndTime     time.Time `gorm:"not null" json:"end_time"`
	// Duration is the overall time allowance in minutes.
	Duration int `json:"duration"`
	// ObjectiveTime and CqSqTime are optional per-section allowances in
	// minutes. Zero means the section has no dedicated limit.
	ObjectiveTime int `json:"objective_time"`
	CqSqTime      int `json:"cq_sq_time"`
	// MCQNegativeMarking is the deduction percentage applied per wrong MCQ
	// answer. Zero disables negative marking.
	MCQNegativeMarking float64 `json:"mcq_negative_marking"`
	// CQRequiredQuestions and SQRequiredQuestions cap how many subjective
	// items a student may answer. Nil means unlimited.
	CQRequiredQuestions *int `json:"cq_required_questions"`
	SQRequiredQuestions *int `json:"sq_required_questions"`
	CQTotalQuestions    int  `json:"cq_total_questions"`
	SQTotalQuestions    int  `json:"sq_total_questions"`
	AllowRetake         bool `json:"allow_retake"`
	IsActive            bool `gorm:"default:true" json:"is_active"`
	// ActiveStudents is the roster size used by the all-submitted early
	// release check for objective-only exams.
	ActiveStudents int       `json:"active_students"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	ExamSets []ExamSet `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"exam_sets,omitempty"`
}

// Ended reports whether the exam window has closed.
func (e Exam) Ended(now time.Time) bool {
	return now.After(e.EndTime)
}

// ExamSet is one of several parallel question sets for an exam. Questions
// are snapshotted as JSON at set-creation time so later question-bank edits
// never change a live exam.
type ExamSet struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	ExamID        string         `gorm:"size:36;index;not null" json:"exam_id"`
	Name          string         `gorm:"size:64" json:"name"`
	QuestionsJSON datatypes.JSON `gorm:"type:json" json:"questions_json"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// HasQuestions reports whether the set carries a cached question snapshot.
func (s ExamSet) HasQuestions() bool {
	return len(s.QuestionsJSON) > 0 && string(s.QuestionsJSON) != "null"
}

// ExamStudentMap assigns exactly one exam set to one student for one exam.
// Absence of a row means the student grades against the default question
// list resolved by the fallback chain.
type ExamStudentMap struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	StudentID string    `gorm:"size:36;uniqueIndex:idx_exam_student_map;not null" json:"student_id"`
	ExamID    string    `gorm:"size:36;uniqueIndex:idx_exam_student_map;not null" json:"exam_id"`
	ExamSetID string    `gorm:"size:36" json:"exam_set_id"`
	CreatedAt time.Time `json:"created_at"`
}
