package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/digischool/exam-api/internal/models"
)

// ExamRepository defines read access to exams, their question sets and the
// per-student set assignments.
type ExamRepository interface {
	GetWithSets(ctx context.Context, examID string) (models.Exam, error)
	GetStudentMap(ctx context.Context, studentID, examID string) (*models.ExamStudentMap, error)
	ListStudentMaps(ctx context.Context, examID string) ([]models.ExamStudentMap, error)
	ListEnded(ctx context.Context, before time.Time) ([]models.Exam, error)
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository instantiates the repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) GetWithSets(ctx context.Context, examID string) (models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).
		Preload("ExamSets").
		First(&exam, "id = ?", examID).Error; err != nil {
		return models.Exam{}, err
	}

	return exam, nil
}

func (r *examRepository) GetStudentMap(ctx context.Context, studentID, examID string) (*models.ExamStudentMap, error) {
	var mapping models.ExamStudentMap
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Where("exam_id = ?", examID).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &mapping, nil
}

func (r *examRepository) ListStudentMaps(ctx context.Context, examID string) ([]models.ExamStudentMap, error) {
	var mappings []models.ExamStudentMap
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Find(&mappings).Error; err != nil {
		return nil, err
	}

	return mappings, nil
}

func (r *examRepository) ListEnded(ctx context.Context, before time.Time) ([]models.Exam, error) {
	var exams []models.Exam
	if err := r.db.WithContext(ctx).
		Preload("ExamSets").
		Where("is_active = ?", true).
		Where("end_time < ?", before).
		Find(&exams).Error; err != nil {
		return nil, err
	}

	return exams, nil
}
