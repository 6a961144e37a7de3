package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/digischool/exam-api/internal/models"
)

// EvaluationAssignmentRepository defines access to evaluator-exam
// assignments.
type EvaluationAssignmentRepository interface {
	IsAssigned(ctx context.Context, examID, evaluatorID string) (bool, error)
	ListByExam(ctx context.Context, examID string) ([]models.EvaluationAssignment, error)
}

type evaluationAssignmentRepository struct {
	db *gorm.DB
}

// NewEvaluationAssignmentRepository instantiates the repository.
func NewEvaluationAssignmentRepository(db *gorm.DB) EvaluationAssignmentRepository {
	return &evaluationAssignmentRepository{db: db}
}

func (r *evaluationAssignmentRepository) IsAssigned(ctx context.Context, examID, evaluatorID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EvaluationAssignment{}).
		Where("exam_id = ?", examID).
		Where("evaluator_id = ?", evaluatorID).
		Count(&count).Error
	return count > 0, err
}

func (r *evaluationAssignmentRepository) ListByExam(ctx context.Context, examID string) ([]models.EvaluationAssignment, error) {
	var assignments []models.EvaluationAssignment
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}
