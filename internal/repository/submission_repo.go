package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/digischool/exam-api/internal/models"
)

// SubmissionRepository defines data operations for exam submissions.
type SubmissionRepository interface {
	GetByStudentAndExam(ctx context.Context, studentID, examID string) (*models.ExamSubmission, error)
	ListByExam(ctx context.Context, examID string) ([]models.ExamSubmission, error)
	CountSubmitted(ctx context.Context, examID string) (int64, error)
	Upsert(ctx context.Context, submission *models.ExamSubmission) error
	Update(ctx context.Context, submission *models.ExamSubmission) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByStudentAndExam(ctx context.Context, studentID, examID string) (*models.ExamSubmission, error) {
	var submission models.ExamSubmission
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("exam_id = ?", examID).
		First(&submission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &submission, nil
}

func (r *submissionRepository) ListByExam(ctx context.Context, examID string) ([]models.ExamSubmission, error) {
	var submissions []models.ExamSubmission
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("submitted_at ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) CountSubmitted(ctx context.Context, examID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ExamSubmission{}).
		Where("exam_id = ?", examID).
		Where("status = ?", models.SubmissionStatusSubmitted).
		Count(&count).Error
	return count, err
}

// Upsert writes the submission keyed by (student_id, exam_id); resubmission
// overwrites the previous row, which is what makes retakes and idempotent
// retries safe.
func (r *submissionRepository) Upsert(ctx context.Context, submission *models.ExamSubmission) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "student_id"}, {Name: "exam_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"exam_set_id", "answers", "status",
			"objective_status", "cq_sq_status",
			"objective_submitted_at", "cq_sq_submitted_at", "submitted_at",
			"exceeded_question_limit", "score", "evaluator_notes", "evaluated_at",
			"updated_at",
		}),
	}).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.ExamSubmission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}
