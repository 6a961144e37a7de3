package service

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/digischool/exam-api/internal/dto"
	"github.com/digischool/exam-api/internal/models"
	"github.com/digischool/exam-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func submissionKey(studentID, examID string) string {
	return studentID + "/" + examID
}

type memExamRepo struct {
	exams    map[string]models.Exam
	mappings []models.ExamStudentMap
}

func newMemExamRepo(exams ...models.Exam) *memExamRepo {
	repo := &memExamRepo{exams: map[string]models.Exam{}}
	for _, exam := range exams {
		repo.exams[exam.ID] = exam
	}
	return repo
}

func (r *memExamRepo) GetWithSets(_ context.Context, examID string) (models.Exam, error) {
	exam, ok := r.exams[examID]
	if !ok {
		return models.Exam{}, gorm.ErrRecordNotFound
	}
	return exam, nil
}

func (r *memExamRepo) GetStudentMap(_ context.Context, studentID, examID string) (*models.ExamStudentMap, error) {
	for _, m := range r.mappings {
		if m.StudentID == studentID && m.ExamID == examID {
			mapping := m
			return &mapping, nil
		}
	}
	return nil, nil
}

func (r *memExamRepo) ListStudentMaps(_ context.Context, examID string) ([]models.ExamStudentMap, error) {
	var result []models.ExamStudentMap
	for _, m := range r.mappings {
		if m.ExamID == examID {
			result = append(result, m)
		}
	}
	return result, nil
}

func (r *memExamRepo) ListEnded(_ context.Context, before time.Time) ([]models.Exam, error) {
	var result []models.Exam
	for _, exam := range r.exams {
		if exam.IsActive && exam.EndTime.Before(before) {
			result = append(result, exam)
		}
	}
	return result, nil
}

type memSubmissionRepo struct {
	rows map[string]models.ExamSubmission
}

func newMemSubmissionRepo() *memSubmissionRepo {
	return &memSubmissionRepo{rows: map[string]models.ExamSubmission{}}
}

func (r *memSubmissionRepo) GetByStudentAndExam(_ context.Context, studentID, examID string) (*models.ExamSubmission, error) {
	if row, ok := r.rows[submissionKey(studentID, examID)]; ok {
		copied := row
		return &copied, nil
	}
	return nil, nil
}

func (r *memSubmissionRepo) ListByExam(_ context.Context, examID string) ([]models.ExamSubmission, error) {
	var result []models.ExamSubmission
	for _, row := range r.rows {
		if row.ExamID == examID {
			result = append(result, row)
		}
	}
	return result, nil
}

func (r *memSubmissionRepo) CountSubmitted(_ context.Context, examID string) (int64, error) {
	var count int64
	for _, row := range r.rows {
		if row.ExamID == examID && row.IsSubmitted() {
			count++
		}
	}
	return count, nil
}

func (r *memSubmissionRepo) Upsert(_ context.Context, submission *models.ExamSubmission) error {
	key := submissionKey(submission.StudentID, submission.ExamID)
	if existing, ok := r.rows[key]; ok {
		submission.ID = existing.ID
		submission.CreatedAt = existing.CreatedAt
	}
	r.rows[key] = *submission
	return nil
}

func (r *memSubmissionRepo) Update(_ context.Context, submission *models.ExamSubmission) error {
	r.rows[submissionKey(submission.StudentID, submission.ExamID)] = *submission
	return nil
}

type memResultRepo struct {
	rows map[string]models.Result
}

func newMemResultRepo() *memResultRepo {
	return &memResultRepo{rows: map[string]models.Result{}}
}

func (r *memResultRepo) GetByStudentAndExam(_ context.Context, studentID, examID string) (*models.Result, error) {
	if row, ok := r.rows[submissionKey(studentID, examID)]; ok {
		copied := row
		return &copied, nil
	}
	return nil, nil
}

func (r *memResultRepo) ListByExam(_ context.Context, examID string) ([]models.Result, error) {
	var result []models.Result
	for _, row := range r.rows {
		if row.ExamID == examID {
			result = append(result, row)
		}
	}
	return result, nil
}

func (r *memResultRepo) Upsert(_ context.Context, result *models.Result) error {
	key := submissionKey(result.StudentID, result.ExamID)
	if existing, ok := r.rows[key]; ok {
		result.ID = existing.ID
		result.Rank = existing.Rank
		result.CreatedAt = existing.CreatedAt
	}
	r.rows[key] = *result
	return nil
}

func (r *memResultRepo) Update(_ context.Context, result *models.Result) error {
	r.rows[submissionKey(result.StudentID, result.ExamID)] = *result
	return nil
}

type memAssignmentRepo struct {
	assignments map[string][]string
}

func newMemAssignmentRepo() *memAssignmentRepo {
	return &memAssignmentRepo{assignments: map[string][]string{}}
}

func (r *memAssignmentRepo) assign(examID, evaluatorID string) {
	r.assignments[examID] = append(r.assignments[examID], evaluatorID)
}

func (r *memAssignmentRepo) IsAssigned(_ context.Context, examID, evaluatorID string) (bool, error) {
	for _, id := range r.assignments[examID] {
		if id == evaluatorID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAssignmentRepo) ListByExam(_ context.Context, examID string) ([]models.EvaluationAssignment, error) {
	var result []models.EvaluationAssignment
	for _, id := range r.assignments[examID] {
		result = append(result, models.EvaluationAssignment{ExamID: examID, EvaluatorID: id})
	}
	return result, nil
}

type fakeAtomic struct {
	exams       repository.ExamRepository
	submissions repository.SubmissionRepository
	results     repository.ResultRepository
}

func (a *fakeAtomic) InTx(_ context.Context, fn func(repos repository.Repositories) error) error {
	return fn(repository.Repositories{
		Exams:       a.exams,
		Submissions: a.submissions,
		Results:     a.results,
	})
}

type recorderStub struct {
	entries []ActivityEntry
}

func (r *recorderStub) Record(_ context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{}, nil
}

type eventsStub struct {
	events []ResultEvent
}

func (e *eventsStub) ResultPublished(_ context.Context, event ResultEvent) error {
	e.events = append(e.events, event)
	return nil
}

func questionsJSON(t *testing.T, questions []map[string]interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(questions)
	if err != nil {
		t.Fatalf("marshal questions: %v", err)
	}
	return data
}

func mcqQuestion(id string, marks float64, correctIndex int) map[string]interface{} {
	options := []map[string]interface{}{
		{"text": "Red", "isCorrect": correctIndex == 0},
		{"text": "Green", "isCorrect": correctIndex == 1},
		{"text": "Blue", "isCorrect": correctIndex == 2},
	}
	return map[string]interface{}{
		"id":      id,
		"type":    "mcq",
		"text":    "pick a colour",
		"marks":   marks,
		"options": options,
	}
}

func cqQuestion(id string, marks float64) map[string]interface{} {
	return map[string]interface{}{
		"id":    id,
		"type":  "cq",
		"text":  "explain in detail",
		"marks": marks,
	}
}

func sqQuestion(id string, marks float64) map[string]interface{} {
	return map[string]interface{}{
		"id":    id,
		"type":  "sq",
		"text":  "answer briefly",
		"marks": marks,
	}
}
