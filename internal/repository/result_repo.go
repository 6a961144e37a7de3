package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/digischool/exam-api/internal/models"
)

// ResultRepository defines data operations for graded results.
type ResultRepository interface {
	GetByStudentAndExam(ctx context.Context, studentID, examID string) (*models.Result, error)
	ListByExam(ctx context.Context, examID string) ([]models.Result, error)
	Upsert(ctx context.Context, result *models.Result) error
	Update(ctx context.Context, result *models.Result) error
}

type resultRepository struct {
	db *gorm.DB
}

// NewResultRepository instantiates the repository.
func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) GetByStudentAndExam(ctx context.Context, studentID, examID string) (*models.Result, error) {
	var result models.Result
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("exam_id = ?", examID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *resultRepository) ListByExam(ctx context.Context, examID string) ([]models.Result, error) {
	var results []models.Result
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("total DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}

// Upsert writes the result keyed by (student_id, exam_id) so re-running a
// grading pass never creates duplicate rows.
func (r *resultRepository) Upsert(ctx context.Context, result *models.Result) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "student_id"}, {Name: "exam_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"mcq_marks", "cq_marks", "sq_marks", "total",
			"percentage", "grade",
			"status", "comment", "suspension_reason",
			"is_published", "published_at",
			"exam_submission_id", "updated_at",
		}),
	}).Create(result).Error
}

func (r *resultRepository) Update(ctx context.Context, result *models.Result) error {
	return r.db.WithContext(ctx).Save(result).Error
}
