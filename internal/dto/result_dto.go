package dto

import (
	"time"

	"github.com/digischool/exam-api/internal/models"
)

// ResultResponse is the student-facing view of a graded result.
type ResultResponse struct {
	ID               string     `json:"id"`
	StudentID        string     `json:"student_id"`
	ExamID           string     `json:"exam_id"`
	MCQMarks         float64    `json:"mcq_marks"`
	CQMarks          float64    `json:"cq_marks"`
	SQMarks          float64    `json:"sq_marks"`
	Total            float64    `json:"total"`
	Percentage       float64    `json:"percentage"`
	Grade            string     `json:"grade"`
	Rank             *int       `json:"rank"`
	Status           string     `json:"status"`
	Comment          string     `json:"comment,omitempty"`
	SuspensionReason string     `json:"suspension_reason,omitempty"`
	IsPublished      bool       `json:"is_published"`
	PublishedAt      *time.Time `json:"published_at"`
}

// NewResultResponse converts a Result model into a DTO.
func NewResultResponse(model models.Result) ResultResponse {
	return ResultResponse{
		ID:               model.ID,
		StudentID:        model.StudentID,
		ExamID:           model.ExamID,
		MCQMarks:         model.MCQMarks,
		CQMarks:          model.CQMarks,
		SQMarks:          model.SQMarks,
		Total:            model.Total,
		Percentage:       model.Percentage,
		Grade:            model.Grade,
		Rank:             model.Rank,
		Status:           model.Status,
		Comment:          model.Comment,
		SuspensionReason: model.SuspensionReason,
		IsPublished:      model.IsPublished,
		PublishedAt:      model.PublishedAt,
	}
}

// NewResultResponseSlice converts result models into DTOs.
func NewResultResponseSlice(results []models.Result) []ResultResponse {
	responses := make([]ResultResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, NewResultResponse(result))
	}

	return responses
}

// ReleaseSummary reports one exam's release pass.
type ReleaseSummary struct {
	ExamID   string `json:"exam_id"`
	Released int    `json:"released"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Trigger  string `json:"trigger"`
}

// ResultStatisticsResponse summarizes an exam's published results.
type ResultStatisticsResponse struct {
	ExamID         string  `json:"exam_id"`
	TotalSubmitted int     `json:"total_submitted"`
	TotalPublished int     `json:"total_published"`
	TotalSuspended int     `json:"total_suspended"`
	AverageMarks   float64 `json:"average_marks"`
	HighestMarks   float64 `json:"highest_marks"`
	LowestMarks    float64 `json:"lowest_marks"`
	PassRate       float64 `json:"pass_rate"`
}
